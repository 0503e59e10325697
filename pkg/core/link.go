package core

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
)

// Link 代表 Merkle DAG 中的一条边
// Size 是目标子树的累计字节数
type Link struct {
	Name string
	Size uint64
	Cid  cid.Cid
}

// NewLink 辅助函数
func NewLink(name string, size uint64, target cid.Cid) Link {
	return Link{Name: name, Size: size, Cid: target}
}

const (
	linkTagNumber = 42
)

// cidRef 是 CID 在 DAG-CBOR 中的表示
// 规范：Tag 42(0x00 + CID bytes)
type cidRef struct {
	cid.Cid
}

// MarshalCBOR 实现自定义序列化逻辑
func (r cidRef) MarshalCBOR() ([]byte, error) {
	if !r.Defined() {
		return nil, fmt.Errorf("cannot encode undefined cid in link")
	}
	// Multibase Identity 前缀 (0x00)
	content := append([]byte{0x00}, r.Bytes()...)
	return em.Marshal(cbor.Tag{
		Number:  linkTagNumber,
		Content: content,
	})
}

// UnmarshalCBOR 实现自定义反序列化逻辑
func (r *cidRef) UnmarshalCBOR(data []byte) error {
	var tag cbor.Tag
	if err := dm.Unmarshal(data, &tag); err != nil {
		return err
	}

	if tag.Number != linkTagNumber {
		return fmt.Errorf("expected tag 42 for link, got %d", tag.Number)
	}

	raw, ok := tag.Content.([]byte)
	if !ok {
		return fmt.Errorf("link content must be byte string")
	}
	if len(raw) < 1 {
		return fmt.Errorf("invalid link: empty content")
	}
	if raw[0] != 0x00 {
		return fmt.Errorf("invalid link: missing 0x00 multibase prefix")
	}

	c, err := cid.Cast(raw[1:])
	if err != nil {
		return fmt.Errorf("invalid link: %w", err)
	}
	r.Cid = c
	return nil
}
