package pin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"dagvault/pkg/core"
	"dagvault/pkg/datastore"
	"dagvault/pkg/errs"

	"github.com/ipfs/go-cid"
)

// PinSetKey pin 集合在 datastore 中的键
const PinSetKey = "/local/pins"

// record 是持久化的 pin 集合，canonical CBOR 编码
// CID 按字节排序，相同的集合总是得到相同的编码
type record struct {
	Direct    [][]byte `cbor:"direct"`
	Recursive [][]byte `cbor:"recursive"`
}

func sortedBytes(s *cid.Set) [][]byte {
	out := make([][]byte, 0, s.Len())
	_ = s.ForEach(func(c cid.Cid) error {
		out = append(out, c.Bytes())
		return nil
	})
	slices.SortFunc(out, bytes.Compare)
	return out
}

// Sorted 返回按字符串排序的 CID 列表
func Sorted(s *cid.Set) []cid.Cid {
	out := s.Keys()
	slices.SortFunc(out, func(a, b cid.Cid) int {
		return bytes.Compare(a.Bytes(), b.Bytes())
	})
	return out
}

func encodeRecord(direct, recursive *cid.Set) ([]byte, error) {
	return core.EncodeObject(record{
		Direct:    sortedBytes(direct),
		Recursive: sortedBytes(recursive),
	})
}

func decodeRecord(data []byte) (*cid.Set, *cid.Set, error) {
	var r record
	if err := core.DecodeObject(data, &r); err != nil {
		return nil, nil, fmt.Errorf("invalid pin record: %w", err)
	}
	toSet := func(raw [][]byte) (*cid.Set, error) {
		s := cid.NewSet()
		for _, b := range raw {
			c, err := cid.Cast(b)
			if err != nil {
				return nil, fmt.Errorf("invalid cid in pin record: %w", err)
			}
			s.Add(c)
		}
		return s, nil
	}
	direct, err := toSet(r.Direct)
	if err != nil {
		return nil, nil, err
	}
	recursive, err := toSet(r.Recursive)
	if err != nil {
		return nil, nil, err
	}
	return direct, recursive, nil
}

// loadRecord 从 datastore 读取 pin 集合，不存在时返回两个空集合
func loadRecord(ctx context.Context, ds datastore.Datastore) (*cid.Set, *cid.Set, error) {
	e, err := ds.Get(ctx, PinSetKey)
	if errors.Is(err, datastore.ErrNotFound) {
		return cid.NewSet(), cid.NewSet(), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: load pins: %v", errs.ErrStore, err)
	}
	return decodeRecord(e.Value)
}

func copySet(s *cid.Set) *cid.Set {
	out := cid.NewSet()
	_ = s.ForEach(func(c cid.Cid) error {
		out.Add(c)
		return nil
	})
	return out
}
