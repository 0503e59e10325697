package core

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// DataType 是 UnixFS 元数据中的节点类型
type DataType uint64

const (
	TRaw       DataType = 0
	TDirectory DataType = 1
	TFile      DataType = 2
	TMetadata  DataType = 3
	TSymlink   DataType = 4
	THAMTShard DataType = 5
)

func (t DataType) String() string {
	switch t {
	case TRaw:
		return "raw"
	case TDirectory:
		return "directory"
	case TFile:
		return "file"
	case TMetadata:
		return "metadata"
	case TSymlink:
		return "symlink"
	case THAMTShard:
		return "hamt-sharded-directory"
	default:
		return fmt.Sprintf("unknown(%d)", uint64(t))
	}
}

// UnixFS 是嵌入在 dag-pb Data 字段里的文件系统元数据
// 对分片目录：Data 是 bitfield，Fanout 是子节点数量，HashType 是放置用的哈希函数
type UnixFS struct {
	Type       DataType
	Data       []byte
	FileSize   uint64
	BlockSizes []uint64
	HashType   uint64
	Fanout     uint64
}

const (
	fsType       protowire.Number = 1
	fsData       protowire.Number = 2
	fsFileSize   protowire.Number = 3
	fsBlockSizes protowire.Number = 4
	fsHashType   protowire.Number = 5
	fsFanout     protowire.Number = 6
)

// Marshal 序列化为 protobuf (proto2，字段按编号顺序写出)
func (u *UnixFS) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fsType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(u.Type))
	if u.Data != nil {
		b = protowire.AppendTag(b, fsData, protowire.BytesType)
		b = protowire.AppendBytes(b, u.Data)
	}
	if u.Type == TFile || u.Type == TRaw {
		b = protowire.AppendTag(b, fsFileSize, protowire.VarintType)
		b = protowire.AppendVarint(b, u.FileSize)
	}
	for _, bs := range u.BlockSizes {
		b = protowire.AppendTag(b, fsBlockSizes, protowire.VarintType)
		b = protowire.AppendVarint(b, bs)
	}
	if u.Type == THAMTShard {
		b = protowire.AppendTag(b, fsHashType, protowire.VarintType)
		b = protowire.AppendVarint(b, u.HashType)
		b = protowire.AppendTag(b, fsFanout, protowire.VarintType)
		b = protowire.AppendVarint(b, u.Fanout)
	}
	return b
}

// UnmarshalUnixFS 解析节点 Data 中的 UnixFS 元数据
func UnmarshalUnixFS(b []byte) (*UnixFS, error) {
	u := &UnixFS{}
	seenType := false
	for len(b) > 0 {
		num, typ, m := protowire.ConsumeTag(b)
		if m < 0 {
			return nil, fmt.Errorf("invalid unixfs data: %w", protowire.ParseError(m))
		}
		b = b[m:]

		switch {
		case typ == protowire.VarintType && num != fsData:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, fmt.Errorf("invalid unixfs field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
			switch num {
			case fsType:
				u.Type = DataType(v)
				seenType = true
			case fsFileSize:
				u.FileSize = v
			case fsBlockSizes:
				u.BlockSizes = append(u.BlockSizes, v)
			case fsHashType:
				u.HashType = v
			case fsFanout:
				u.Fanout = v
			}
		case typ == protowire.BytesType && num == fsData:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("invalid unixfs data field: %w", protowire.ParseError(m))
			}
			u.Data = append([]byte{}, v...)
			b = b[m:]
		case typ == protowire.BytesType && num == fsBlockSizes:
			// packed repeated
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("invalid unixfs blocksizes: %w", protowire.ParseError(m))
			}
			for len(v) > 0 {
				bs, k := protowire.ConsumeVarint(v)
				if k < 0 {
					return nil, fmt.Errorf("invalid unixfs blocksizes: %w", protowire.ParseError(k))
				}
				u.BlockSizes = append(u.BlockSizes, bs)
				v = v[k:]
			}
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, fmt.Errorf("invalid unixfs field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	if !seenType {
		return nil, fmt.Errorf("invalid unixfs data: missing type")
	}
	return u, nil
}

// UnixFSOf 解析节点上的 UnixFS 元数据
func UnixFSOf(n *Node) (*UnixFS, error) {
	if n.data == nil {
		return nil, fmt.Errorf("node carries no unixfs metadata")
	}
	return UnmarshalUnixFS(n.data)
}
