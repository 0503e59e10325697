package core

import (
	"bytes"
	"slices"

	"github.com/ipfs/go-cid"
)

// Block 是存储层看到的最小单元：CID + 序列化后的原始字节
type Block interface {
	Cid() cid.Cid
	RawData() []byte
}

type basicBlock struct {
	id   cid.Cid
	data []byte
}

// NewBlock 包装一个已经计算好 CID 的块
func NewBlock(id cid.Cid, data []byte) Block {
	return &basicBlock{id: id, data: data}
}

func (b *basicBlock) Cid() cid.Cid    { return b.id }
func (b *basicBlock) RawData() []byte { return b.data }

// Node 是 Merkle DAG 中的一个节点
// 它是不可变的：任何对 data 或 links 的修改都必须生成一个新的 Node (进而生成新的 CID)
// Node 没有“所有者”，所有指向同一 CID 的引用共享它，生命周期由 pin 决定
type Node struct {
	data  []byte
	links []Link
}

// NewNode 创建节点，入参会被拷贝，调用方之后修改切片不会影响节点
func NewNode(data []byte, links []Link) *Node {
	return &Node{
		data:  bytes.Clone(data),
		links: slices.Clone(links),
	}
}

func (n *Node) Data() []byte      { return bytes.Clone(n.data) }
func (n *Node) Links() []Link     { return slices.Clone(n.links) }
func (n *Node) NumLinks() int     { return len(n.links) }
func (n *Node) LinkAt(i int) Link { return n.links[i] }

// FindLink 按名字查找链接，返回链接和它的下标
func (n *Node) FindLink(name string) (Link, int, bool) {
	for i, l := range n.links {
		if l.Name == name {
			return l, i, true
		}
	}
	return Link{}, -1, false
}

// WithLinks 返回一个 data 相同、links 被替换的新节点
func (n *Node) WithLinks(links []Link) *Node {
	return NewNode(n.data, links)
}

// WithData 返回一个 links 相同、data 被替换的新节点
func (n *Node) WithData(data []byte) *Node {
	return NewNode(data, n.links)
}

// WithoutLink 删除所有同名链接
func (n *Node) WithoutLink(name string) *Node {
	links := slices.DeleteFunc(slices.Clone(n.links), func(l Link) bool {
		return l.Name == name
	})
	return &Node{data: bytes.Clone(n.data), links: links}
}

// CumulativeSize 子树的累计字节数 = 自身编码长度 + 所有子链接记录的累计大小
func (n *Node) CumulativeSize(encodedLen int) uint64 {
	total := uint64(encodedLen)
	for _, l := range n.links {
		total += l.Size
	}
	return total
}
