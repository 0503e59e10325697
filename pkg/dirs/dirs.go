// Package dirs 负责向目录中添加链接，并在目录变大时把扁平目录转换为分片目录。
package dirs

import (
	"context"
	"fmt"

	"dagvault/pkg/core"
	"dagvault/pkg/dag"
	"dagvault/pkg/errs"
	"dagvault/pkg/hamt"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("dagvault/dirs")

const DefaultShardSplitThreshold = 1000

// NodeStore 目录编辑需要的节点存储能力
type NodeStore interface {
	hamt.NodeStore
	PutBlocks(ctx context.Context, blks []core.Block) error
}

// Options 控制目录节点的生成方式
type Options struct {
	// ShardSplitThreshold 插入后的链接数达到该值时转换为分片目录
	ShardSplitThreshold int
	Fanout              int
	CidVersion          uint64
	HashAlg             string
	Codec               uint64
	// Flush 为 false 时只计算新的 CID，不写入任何节点
	Flush bool
}

func DefaultOptions() Options {
	return Options{
		ShardSplitThreshold: DefaultShardSplitThreshold,
		Fanout:              hamt.DefaultFanout,
		CidVersion:          core.DefaultCidBuilder.Version,
		HashAlg:             core.DefaultCidBuilder.HashAlg,
		Codec:               core.DefaultCidBuilder.Codec,
		Flush:               true,
	}
}

func (o Options) putOptions() dag.PutOptions {
	return dag.PutOptions{
		Codec:      o.Codec,
		HashAlg:    o.HashAlg,
		CidVersion: o.CidVersion,
		VerifyOnly: !o.Flush,
	}
}

// Validate 检查参数，不访问存储
func (o Options) Validate() error {
	if o.ShardSplitThreshold <= 0 {
		return fmt.Errorf("%w: shard split threshold must be positive", errs.ErrValidation)
	}
	if _, err := hamt.ValidateFanout(o.Fanout); err != nil {
		return err
	}
	if o.Codec == core.CodecRaw {
		return fmt.Errorf("%w: directories cannot use the raw codec", errs.ErrValidation)
	}
	return o.putOptions().Validate()
}

// Editor 在节点存储之上编辑目录
type Editor struct {
	store NodeStore
}

func NewEditor(store NodeStore) *Editor {
	return &Editor{store: store}
}

// AddLink 在 parent 目录中添加 (或替换) 名为 name 的链接，返回新目录的 CID
// 1. 分片目录：在 HAMT 中插入
// 2. 扁平目录插入后达到阈值：整体转换为分片目录
// 3. 其他：扁平插入，先删同名链接再追加
func (e *Editor) AddLink(ctx context.Context, parent cid.Cid, name string, size int64, target cid.Cid, opts Options) (cid.Cid, error) {
	// 0. 参数校验，在任何存储访问之前
	switch {
	case !parent.Defined():
		return cid.Undef, fmt.Errorf("%w: no parent cid", errs.ErrValidation)
	case name == "":
		return cid.Undef, fmt.Errorf("%w: no child name", errs.ErrValidation)
	case size < 0:
		return cid.Undef, fmt.Errorf("%w: negative child size %d", errs.ErrValidation, size)
	case !target.Defined():
		return cid.Undef, fmt.Errorf("%w: no child cid", errs.ErrValidation)
	}
	if err := opts.Validate(); err != nil {
		return cid.Undef, err
	}

	parentNode, err := e.store.Get(ctx, parent)
	if err != nil {
		return cid.Undef, err
	}
	kind, _, err := core.DirectoryKind(parentNode)
	if err != nil {
		return cid.Undef, err
	}

	link := core.NewLink(name, uint64(size), target)

	if kind == core.THAMTShard {
		log.Debugw("adding link to sharded directory", "parent", parent, "name", name)
		return e.addToShard(ctx, parentNode, link, opts)
	}

	count := parentNode.NumLinks()
	if _, _, exists := parentNode.FindLink(name); !exists {
		count++
	}
	if count >= opts.ShardSplitThreshold {
		log.Infow("converting directory to sharded directory", "parent", parent, "links", count, "fanout", opts.Fanout)
		return e.convert(ctx, parentNode, link, opts)
	}

	log.Debugw("adding link to flat directory", "parent", parent, "name", name)
	return e.addToFlat(ctx, parentNode, link, opts)
}

func (e *Editor) addToFlat(ctx context.Context, parent *core.Node, link core.Link, opts Options) (cid.Cid, error) {
	n := parent.WithoutLink(link.Name)
	n = n.WithLinks(append(n.Links(), link))

	blk, err := e.store.Sum(n, opts.putOptions())
	if err != nil {
		return cid.Undef, err
	}
	if err := e.write(ctx, []core.Block{blk}, opts); err != nil {
		return cid.Undef, err
	}
	return blk.Cid(), nil
}

func (e *Editor) addToShard(ctx context.Context, parent *core.Node, link core.Link, opts Options) (cid.Cid, error) {
	shard, err := hamt.LoadShard(e.store, parent)
	if err != nil {
		return cid.Undef, err
	}
	if err := shard.Set(ctx, link.Name, link); err != nil {
		return cid.Undef, err
	}
	return e.flushShard(ctx, shard, opts)
}

func (e *Editor) convert(ctx context.Context, parent *core.Node, link core.Link, opts Options) (cid.Cid, error) {
	shard, err := hamt.Build(ctx, e.store, opts.Fanout, append(parent.Links(), link))
	if err != nil {
		return cid.Undef, err
	}
	id, err := e.flushShard(ctx, shard, opts)
	if err != nil {
		return cid.Undef, err
	}
	log.Infow("converted directory to sharded directory", "cid", id)
	return id, nil
}

func (e *Editor) flushShard(ctx context.Context, shard *hamt.Shard, opts Options) (cid.Cid, error) {
	res, err := shard.Flush(opts.putOptions())
	if err != nil {
		return cid.Undef, err
	}
	if err := e.write(ctx, res.Blocks, opts); err != nil {
		return cid.Undef, err
	}
	return res.Root, nil
}

// write 整条路径都计算完成后才写入，子节点在前
func (e *Editor) write(ctx context.Context, blks []core.Block, opts Options) error {
	if !opts.Flush {
		return nil
	}
	return e.store.PutBlocks(ctx, blks)
}

// MakeEmpty 写入一个空的扁平目录
func (e *Editor) MakeEmpty(ctx context.Context, opts Options) (cid.Cid, error) {
	if err := opts.Validate(); err != nil {
		return cid.Undef, err
	}
	blk, err := e.store.Sum(core.EmptyDirectory(), opts.putOptions())
	if err != nil {
		return cid.Undef, err
	}
	if err := e.write(ctx, []core.Block{blk}, opts); err != nil {
		return cid.Undef, err
	}
	return blk.Cid(), nil
}

// List 枚举目录中的所有条目，扁平目录按链接顺序，分片目录按哈希位置顺序
func (e *Editor) List(ctx context.Context, dir cid.Cid) ([]core.Link, error) {
	n, err := e.store.Get(ctx, dir)
	if err != nil {
		return nil, err
	}
	kind, _, err := core.DirectoryKind(n)
	if err != nil {
		return nil, err
	}
	if kind == core.TDirectory {
		return n.Links(), nil
	}

	shard, err := hamt.LoadShard(e.store, n)
	if err != nil {
		return nil, err
	}
	var links []core.Link
	err = shard.ForEach(ctx, func(l core.Link) error {
		links = append(links, l)
		return nil
	})
	return links, err
}

// Lookup 在目录中按名字查找链接
func (e *Editor) Lookup(ctx context.Context, dir cid.Cid, name string) (core.Link, error) {
	n, err := e.store.Get(ctx, dir)
	if err != nil {
		return core.Link{}, err
	}
	return LookupNode(ctx, e.store, n, name)
}

// LookupNode 与 Lookup 相同，但直接接收已经读出的目录节点
func LookupNode(ctx context.Context, store hamt.NodeStore, n *core.Node, name string) (core.Link, error) {
	kind, _, err := core.DirectoryKind(n)
	if err != nil {
		return core.Link{}, err
	}
	if kind == core.THAMTShard {
		shard, err := hamt.LoadShard(store, n)
		if err != nil {
			return core.Link{}, err
		}
		return shard.Find(ctx, name)
	}
	l, _, ok := n.FindLink(name)
	if !ok {
		return core.Link{}, fmt.Errorf("%w: no link named %q", errs.ErrNotFound, name)
	}
	return l, nil
}

// CumulativeSize 指向 id 的链接应记录的累计大小 (节点编码长度 + 所有子链接大小)
func (e *Editor) CumulativeSize(ctx context.Context, id cid.Cid) (int64, error) {
	n, err := e.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	data, err := core.Encode(n, id.Prefix().Codec)
	if err != nil {
		return 0, err
	}
	return int64(n.CumulativeSize(len(data))), nil
}
