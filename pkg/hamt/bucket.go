package hamt

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"

	"dagvault/pkg/core"
	"dagvault/pkg/errs"
)

var (
	ErrCorruptShard = fmt.Errorf("%w: corrupt hamt shard", errs.ErrValidation)
	ErrMaxDepth     = errors.New("hamt max depth exceeded")
	ErrBadFanout    = fmt.Errorf("%w: fanout must be a power of two in [8, 256]", errs.ErrValidation)
)

const (
	MinFanout     = 8
	MaxFanout     = 256
	DefaultFanout = 256
)

// ValidateFanout 检查 fanout 是否受支持，返回每层消费的比特数
func ValidateFanout(fanout int) (int, error) {
	if fanout < MinFanout || fanout > MaxFanout || fanout&(fanout-1) != 0 {
		return 0, fmt.Errorf("%w: got %d", ErrBadFanout, fanout)
	}
	return bits.TrailingZeros(uint(fanout)), nil
}

// entry 是 bucket 中一个被占用的位置
// 叶子：name 为完整的条目名，link 指向条目内容
// 子分片：sub 为已加载的子 bucket；未加载时 sub 为 nil，link 指向子分片节点
type entry struct {
	name  string
	link  core.Link
	shard bool
	sub   *Bucket
}

// Bucket 是 HAMT 的一层在内存中的表示，只存在于一次遍历期间
// 父节点不保存在这里，由遍历时自顶向下构建的路径切片提供
type Bucket struct {
	fanout   int
	width    int
	depth    int
	pos      int
	children []*entry
	dirty    bool
}

func newBucket(fanout, width, depth, pos int) *Bucket {
	return &Bucket{
		fanout:   fanout,
		width:    width,
		depth:    depth,
		pos:      pos,
		children: make([]*entry, fanout),
	}
}

func (b *Bucket) Fanout() int      { return b.fanout }
func (b *Bucket) Depth() int       { return b.depth }
func (b *Bucket) PosAtParent() int { return b.pos }

// Prefix 位置在链接名里的 2 位大写十六进制表示
func Prefix(pos int) string {
	return fmt.Sprintf("%02X", pos)
}

// Rehydrate 从一个已持久化的分片节点重建 bucket
// 子分片只记录链接，按需加载
func Rehydrate(n *core.Node, depth, pos int) (*Bucket, error) {
	fs, err := core.UnixFSOf(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptShard, err)
	}
	if fs.Type != core.THAMTShard {
		return nil, fmt.Errorf("%w: node type is %s", ErrCorruptShard, fs.Type)
	}
	if fs.HashType != HashMurmur3 {
		return nil, fmt.Errorf("%w: unsupported hash type 0x%x", errs.ErrValidation, fs.HashType)
	}
	width, err := ValidateFanout(int(fs.Fanout))
	if err != nil {
		return nil, err
	}
	fanout := int(fs.Fanout)

	bf, err := parseBitfield(fs.Data, fanout)
	if err != nil {
		return nil, err
	}

	b := newBucket(fanout, width, depth, pos)
	for _, l := range n.Links() {
		if len(l.Name) < 2 {
			return nil, fmt.Errorf("%w: link name %q has no prefix", ErrCorruptShard, l.Name)
		}
		p, err := strconv.ParseUint(l.Name[:2], 16, 16)
		if err != nil || int(p) >= fanout {
			return nil, fmt.Errorf("%w: invalid prefix in link %q", ErrCorruptShard, l.Name)
		}
		i := int(p)
		if b.children[i] != nil {
			return nil, fmt.Errorf("%w: duplicate position %s", ErrCorruptShard, Prefix(i))
		}
		if !bf.Bit(i) {
			return nil, fmt.Errorf("%w: position %s not set in bitfield", ErrCorruptShard, Prefix(i))
		}

		if len(l.Name) == 2 {
			b.children[i] = &entry{link: l, shard: true}
		} else {
			name := l.Name[2:]
			b.children[i] = &entry{name: name, link: core.NewLink(name, l.Size, l.Cid)}
		}
	}
	if got := b.occupied(); got != bf.Ones() {
		return nil, fmt.Errorf("%w: bitfield has %d positions, links have %d", ErrCorruptShard, bf.Ones(), got)
	}
	return b, nil
}

func (b *Bucket) occupied() int {
	n := 0
	for _, e := range b.children {
		if e != nil {
			n++
		}
	}
	return n
}

// BitField 由已占用位置推导出的序列化位图，从第一个非零字节开始
func (b *Bucket) BitField() []byte {
	bf := newBitfield(b.fanout)
	for i, e := range b.children {
		if e != nil {
			bf.SetBit(i)
		}
	}
	return bf.Bytes()
}

// Links 按位置顺序生成本层的链接
// 子分片链接使用最近一次 flush (或加载时) 的 CID 和大小
func (b *Bucket) Links() []core.Link {
	links := make([]core.Link, 0, b.occupied())
	for i, e := range b.children {
		if e == nil {
			continue
		}
		if e.shard {
			links = append(links, core.NewLink(Prefix(i), e.link.Size, e.link.Cid))
		} else {
			links = append(links, core.NewLink(Prefix(i)+e.name, e.link.Size, e.link.Cid))
		}
	}
	return links
}

// Node 序列化为分片目录节点
func (b *Bucket) Node() *core.Node {
	fs := core.UnixFS{
		Type:     core.THAMTShard,
		Data:     b.BitField(),
		HashType: HashMurmur3,
		Fanout:   uint64(b.fanout),
	}
	return core.NewNode(fs.Marshal(), b.Links())
}
