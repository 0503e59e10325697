package core

import (
	"fmt"

	"dagvault/pkg/errs"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// 定义符合 DAG-CBOR 规范的编码选项
var encOptions = cbor.EncOptions{
	// 强制 Map Key 排序 (Canonical)，保证相同的对象生成唯一的 Hash
	Sort: cbor.SortCanonical,

	ShortestFloat: cbor.ShortestFloatNone,
	Time:          cbor.TimeUnix,
	TimeTag:       cbor.EncTagNone,

	// IPLD 要求数组和 Map 必须在头部声明长度
	IndefLength: cbor.IndefLengthForbidden,

	BigIntConvert: cbor.BigIntConvertShortest,
}

var em, _ = encOptions.EncMode()

var decOptions = cbor.DecOptions{
	// 限制容器大小和嵌套深度，防止恶意构造的头部耗尽内存
	// 扁平目录的链接数受 shard 阈值约束，这里留足余量
	MaxArrayElements: 1 << 17,
	MaxMapPairs:      10000,
	MaxNestedLevels:  100,

	IndefLength: cbor.IndefLengthForbidden,
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
	BignumTag:   cbor.BignumTagForbidden,
	TimeTag:     cbor.DecTagIgnored,
}

var dm, _ = decOptions.DecMode()

// EncodeObject 使用规范化 CBOR 编码任意结构 (pin 记录、RPC 消息等)
func EncodeObject(v any) ([]byte, error) {
	data, err := em.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal object: %w", err)
	}
	return data, nil
}

// DecodeObject 通用的解码函数
func DecodeObject(data []byte, v any) error {
	return dm.Unmarshal(data, v)
}

// CidBuilder 描述如何从字节计算 CID
type CidBuilder struct {
	Version uint64
	Codec   uint64
	HashAlg string
}

// DefaultCidBuilder 与历史节点兼容：CIDv0 + dag-pb + sha2-256
var DefaultCidBuilder = CidBuilder{Version: 0, Codec: CodecDagPB, HashAlg: "sha2-256"}

// Prefix 校验参数组合并转换为 cid.Prefix
func (b CidBuilder) Prefix() (cid.Prefix, error) {
	code, ok := mh.Names[b.HashAlg]
	if !ok {
		return cid.Prefix{}, fmt.Errorf("%w: unsupported hash algorithm %q", errs.ErrValidation, b.HashAlg)
	}
	switch b.Version {
	case 0:
		// CIDv0 只能表达 dag-pb + sha2-256
		if b.Codec != CodecDagPB || code != mh.SHA2_256 {
			return cid.Prefix{}, fmt.Errorf("%w: cid version 0 requires dag-pb and sha2-256", errs.ErrValidation)
		}
	case 1:
	default:
		return cid.Prefix{}, fmt.Errorf("%w: unsupported cid version %d", errs.ErrValidation, b.Version)
	}
	return cid.Prefix{
		Version:  b.Version,
		Codec:    b.Codec,
		MhType:   code,
		MhLength: -1,
	}, nil
}

// Sum 计算数据的 CID
func (b CidBuilder) Sum(data []byte) (cid.Cid, error) {
	p, err := b.Prefix()
	if err != nil {
		return cid.Undef, err
	}
	return p.Sum(data)
}
