package core

import "github.com/ipfs/go-cid"

// FileNodeBuilder 将散乱的 Chunk 组装成一个逻辑上的大文件 (UnixFS file 节点)
type FileNodeBuilder struct {
	links []Link
	sizes []uint64
	total uint64
}

func NewFileNodeBuilder() *FileNodeBuilder {
	return &FileNodeBuilder{}
}

// Add 追加一个已经写入存储的 chunk
func (b *FileNodeBuilder) Add(chunk cid.Cid, size uint64) {
	b.links = append(b.links, Link{Cid: chunk, Size: size})
	b.sizes = append(b.sizes, size)
	b.total += size
}

// TotalSize 文件总大小
func (b *FileNodeBuilder) TotalSize() uint64 { return b.total }

// Build 生成 file 节点，BlockSizes 记录每个 chunk 的大小 (用于计算 offset)
func (b *FileNodeBuilder) Build() *Node {
	fs := UnixFS{
		Type:       TFile,
		FileSize:   b.total,
		BlockSizes: b.sizes,
	}
	return NewNode(fs.Marshal(), b.links)
}

// NewChunk 把 FastCDC 切出来的数据块包装成 raw 叶子节点
func NewChunk(data []byte) *Node {
	return NewNode(data, nil)
}
