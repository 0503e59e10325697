// Package hamt 实现分片目录：按条目名的 murmur3 哈希把链接分散到一棵 HAMT 中。
//
// 节点只在整条修改路径计算完成后才写入，Flush 只负责计算并返回待写入的块。
package hamt

import (
	"context"
	"fmt"

	"dagvault/pkg/core"
	"dagvault/pkg/dag"
	"dagvault/pkg/errs"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("dagvault/hamt")

// NodeStore 是分片需要的节点存储能力：读取子分片、计算 CID
type NodeStore interface {
	dag.Getter
	Sum(n *core.Node, opts dag.PutOptions) (core.Block, error)
}

// Shard 是一个分片目录的可变视图
type Shard struct {
	store NodeStore
	root  *Bucket
}

// NewShard 创建一个空的分片目录
func NewShard(store NodeStore, fanout int) (*Shard, error) {
	width, err := ValidateFanout(fanout)
	if err != nil {
		return nil, err
	}
	root := newBucket(fanout, width, 0, 0)
	root.dirty = true
	return &Shard{store: store, root: root}, nil
}

// LoadShard 从根节点重建分片，子分片按需加载
func LoadShard(store NodeStore, n *core.Node) (*Shard, error) {
	root, err := Rehydrate(n, 0, 0)
	if err != nil {
		return nil, err
	}
	return &Shard{store: store, root: root}, nil
}

// Build 用一组链接构建一个全新的分片目录 (扁平目录转换时使用)
// 同名链接后者覆盖前者
func Build(ctx context.Context, store NodeStore, fanout int, links []core.Link) (*Shard, error) {
	s, err := NewShard(store, fanout)
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		if err := s.Set(ctx, l.Name, l); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Shard) Root() *Bucket { return s.root }

// Set 插入或替换名为 name 的条目
func (s *Shard) Set(ctx context.Context, name string, link core.Link) error {
	if name == "" {
		return fmt.Errorf("%w: empty entry name", errs.ErrValidation)
	}
	link.Name = name
	return s.set(ctx, []*Bucket{s.root}, newHashBits(name), name, link)
}

// set 在 path 的最后一个 bucket 中放置条目
// path 是自顶向下的遍历路径，path[i-1] 是 path[i] 的父 bucket
func (s *Shard) set(ctx context.Context, path []*Bucket, hv *hashBits, name string, link core.Link) error {
	b := path[len(path)-1]
	pos, err := hv.next(b.width)
	if err != nil {
		return err
	}

	e := b.children[pos]
	switch {
	case e == nil:
		// 1. 空位置，直接放入叶子
		b.children[pos] = &entry{name: name, link: link}

	case !e.shard && e.name == name:
		// 2. 同名叶子，替换
		b.children[pos] = &entry{name: name, link: link}

	case !e.shard:
		// 3. 与另一个叶子冲突，创建下一层并放入这两个条目
		log.Debugw("splitting bucket", "prefix", Prefix(pos), "depth", b.depth, "existing", e.name, "new", name)
		sub := newBucket(b.fanout, b.width, b.depth+1, pos)
		subPath := append(path[:len(path):len(path)], sub)
		if err := s.set(ctx, subPath, hashAt(e.name, sub.depth, sub.width), e.name, e.link); err != nil {
			return err
		}
		if err := s.set(ctx, subPath, hv, name, link); err != nil {
			return err
		}
		b.children[pos] = &entry{shard: true, sub: sub}

	default:
		// 4. 子分片，加载后继续下降
		sub, err := s.child(ctx, b, pos)
		if err != nil {
			return err
		}
		if err := s.set(ctx, append(path[:len(path):len(path)], sub), hv, name, link); err != nil {
			return err
		}
	}

	markDirty(path)
	return nil
}

// markDirty 沿路径向上标记，祖先的 CID 依赖子节点
func markDirty(path []*Bucket) {
	for i := len(path) - 1; i >= 0; i-- {
		path[i].dirty = true
	}
}

// child 返回位置 pos 上的子 bucket，必要时从存储加载
func (s *Shard) child(ctx context.Context, b *Bucket, pos int) (*Bucket, error) {
	e := b.children[pos]
	if e.sub != nil {
		return e.sub, nil
	}

	n, err := s.store.Get(ctx, e.link.Cid)
	if err != nil {
		return nil, fmt.Errorf("load sub-shard %s at depth %d: %w", Prefix(pos), b.depth+1, err)
	}
	sub, err := Rehydrate(n, b.depth+1, pos)
	if err != nil {
		return nil, err
	}
	if sub.fanout != b.fanout {
		return nil, fmt.Errorf("%w: sub-shard fanout %d differs from parent %d", ErrCorruptShard, sub.fanout, b.fanout)
	}
	e.sub = sub
	return sub, nil
}

// Find 查找条目，不存在时返回 errs.ErrNotFound
func (s *Shard) Find(ctx context.Context, name string) (core.Link, error) {
	hv := newHashBits(name)
	b := s.root
	for {
		pos, err := hv.next(b.width)
		if err != nil {
			return core.Link{}, err
		}
		e := b.children[pos]
		switch {
		case e == nil:
			return core.Link{}, fmt.Errorf("%w: no entry named %q", errs.ErrNotFound, name)
		case !e.shard:
			if e.name != name {
				return core.Link{}, fmt.Errorf("%w: no entry named %q", errs.ErrNotFound, name)
			}
			return e.link, nil
		}
		if b, err = s.child(ctx, b, pos); err != nil {
			return core.Link{}, err
		}
	}
}

// ForEach 按位置顺序枚举所有叶子条目，包括各级子分片中的
func (s *Shard) ForEach(ctx context.Context, fn func(core.Link) error) error {
	return s.forEach(ctx, s.root, fn)
}

func (s *Shard) forEach(ctx context.Context, b *Bucket, fn func(core.Link) error) error {
	for pos, e := range b.children {
		if e == nil {
			continue
		}
		if !e.shard {
			if err := fn(e.link); err != nil {
				return err
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		sub, err := s.child(ctx, b, pos)
		if err != nil {
			return err
		}
		if err := s.forEach(ctx, sub, fn); err != nil {
			return err
		}
	}
	return nil
}

// FlushResult 是一次 Flush 的结果
// Blocks 按子节点在前、根节点在最后的顺序排列
type FlushResult struct {
	Root   cid.Cid
	Node   *core.Node
	Size   uint64
	Blocks []core.Block
}

// Flush 自底向上重新计算所有被修改的 bucket，不写入存储
func (s *Shard) Flush(opts dag.PutOptions) (*FlushResult, error) {
	res := &FlushResult{}
	blk, n, err := s.flush(s.root, opts, &res.Blocks)
	if err != nil {
		return nil, err
	}
	res.Root = blk.Cid()
	res.Node = n
	res.Size = dag.LinkSize(n, blk)
	log.Debugw("flushed shard", "root", res.Root, "blocks", len(res.Blocks))
	return res, nil
}

func (s *Shard) flush(b *Bucket, opts dag.PutOptions, batch *[]core.Block) (core.Block, *core.Node, error) {
	for _, e := range b.children {
		if e == nil || !e.shard || e.sub == nil || !e.sub.dirty {
			continue
		}
		blk, n, err := s.flush(e.sub, opts, batch)
		if err != nil {
			return nil, nil, err
		}
		e.link = core.NewLink("", dag.LinkSize(n, blk), blk.Cid())
	}

	n := b.Node()
	blk, err := s.store.Sum(n, opts)
	if err != nil {
		return nil, nil, err
	}
	*batch = append(*batch, blk)
	return blk, n, nil
}
