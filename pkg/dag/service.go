// Package dag 在块存储之上提供节点级别的读写：编码、计算 CID、解码与缓存。
package dag

import (
	"context"
	"errors"
	"fmt"
	"io"

	"dagvault/pkg/core"
	"dagvault/pkg/errs"
	"dagvault/pkg/storage"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("dagvault/dag")

const DefaultCacheSize = 4096

// Getter 是只读的节点来源，hamt/dirs/pin 只依赖它和 Service
type Getter interface {
	Get(ctx context.Context, id cid.Cid) (*core.Node, error)
}

// PutOptions 控制节点的编码方式与 CID 形式
type PutOptions struct {
	Codec      uint64
	HashAlg    string
	CidVersion uint64
	// VerifyOnly 只计算 CID，不写入存储
	VerifyOnly bool
}

// DefaultPutOptions CIDv0 + dag-pb + sha2-256
func DefaultPutOptions() PutOptions {
	return PutOptions{
		Codec:      core.DefaultCidBuilder.Codec,
		HashAlg:    core.DefaultCidBuilder.HashAlg,
		CidVersion: core.DefaultCidBuilder.Version,
	}
}

func (o PutOptions) builder() core.CidBuilder {
	return core.CidBuilder{Version: o.CidVersion, Codec: o.Codec, HashAlg: o.HashAlg}
}

// Validate 检查参数组合，不访问存储
func (o PutOptions) Validate() error {
	_, err := o.builder().Prefix()
	return err
}

// Service 是 Merkle DAG 的节点存储
type Service struct {
	store storage.Store
	cache *lru.Cache[cid.Cid, *core.Node]
}

// NewService cacheSize <= 0 时使用默认值
func NewService(store storage.Store, cacheSize int) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[cid.Cid, *core.Node](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create node cache: %w", err)
	}
	return &Service{store: store, cache: cache}, nil
}

// Store 暴露底层块存储
func (s *Service) Store() storage.Store { return s.store }

// Get 读取并解码节点
// 缺失的块返回 errs.ErrNotFound，其他存储错误归类为 errs.ErrStore
func (s *Service) Get(ctx context.Context, id cid.Cid) (*core.Node, error) {
	if !id.Defined() {
		return nil, fmt.Errorf("%w: undefined cid", errs.ErrValidation)
	}
	if n, ok := s.cache.Get(id); ok {
		return n, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, classify(ctx, id, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, classify(ctx, id, err)
	}

	n, err := core.Decode(id, data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", errs.ErrStore, id, err)
	}
	s.cache.Add(id, n)
	return n, nil
}

// Sum 编码节点并计算 CID，不写入
func (s *Service) Sum(n *core.Node, opts PutOptions) (core.Block, error) {
	data, err := core.Encode(n, opts.Codec)
	if err != nil {
		return nil, err
	}
	id, err := opts.builder().Sum(data)
	if err != nil {
		return nil, err
	}
	return core.NewBlock(id, data), nil
}

// Put 编码、计算 CID，并在非 VerifyOnly 时写入存储
func (s *Service) Put(ctx context.Context, n *core.Node, opts PutOptions) (cid.Cid, error) {
	blk, err := s.Sum(n, opts)
	if err != nil {
		return cid.Undef, err
	}
	if opts.VerifyOnly {
		return blk.Cid(), nil
	}
	if err := s.PutBlocks(ctx, []core.Block{blk}); err != nil {
		return cid.Undef, err
	}
	s.cache.Add(blk.Cid(), n)
	return blk.Cid(), nil
}

// PutBlocks 按顺序写入一批已经计算好的块
// 调用方保证子节点排在父节点之前
func (s *Service) PutBlocks(ctx context.Context, blks []core.Block) error {
	for _, blk := range blks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.store.Put(ctx, blk); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: put %s: %v", errs.ErrStore, blk.Cid(), err)
		}
	}
	if len(blks) > 1 {
		log.Debugw("wrote block batch", "count", len(blks), "root", blks[len(blks)-1].Cid())
	}
	return nil
}

// LinkSize 指向该块的链接应记录的累计大小
func LinkSize(n *core.Node, blk core.Block) uint64 {
	return n.CumulativeSize(len(blk.RawData()))
}

func classify(ctx context.Context, id cid.Cid, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: block %s", errs.ErrNotFound, id)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: get %s: %v", errs.ErrStore, id, err)
}
