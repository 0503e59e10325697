// Package ingester 把本地文件导入为 UnixFS 文件 DAG：FastCDC 切分 -> 叶子块 -> file 节点。
package ingester

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"

	"dagvault/pkg/chunker"
	"dagvault/pkg/core"
	"dagvault/pkg/dag"
	"dagvault/pkg/meta"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"
)

var log = logging.Logger("dagvault/ingester")

// Options 控制叶子和 file 节点的编码
type Options struct {
	Chunker chunker.Config
	HashAlg string
	// CidVersion 只作用于 file 节点，raw 叶子总是 CIDv1
	CidVersion uint64
	RawLeaves  bool
	// Concurrency 同时写入的叶子块数量
	Concurrency int
}

func DefaultOptions() Options {
	return Options{
		Chunker:     chunker.DefaultConfig(),
		HashAlg:     core.DefaultCidBuilder.HashAlg,
		CidVersion:  core.DefaultCidBuilder.Version,
		RawLeaves:   true,
		Concurrency: 4,
	}
}

func (o Options) leafOptions() dag.PutOptions {
	if o.RawLeaves {
		return dag.PutOptions{Codec: core.CodecRaw, HashAlg: o.HashAlg, CidVersion: 1}
	}
	return o.fileOptions()
}

func (o Options) fileOptions() dag.PutOptions {
	return dag.PutOptions{Codec: core.CodecDagPB, HashAlg: o.HashAlg, CidVersion: o.CidVersion}
}

// FileIndex 按整文件 sha256 记录已导入的文件 (秒传)
type FileIndex interface {
	GetFileIndex(ctx context.Context, linearHash string) (*meta.FileIndex, error)
	SaveFileIndex(ctx context.Context, linearHash, rootCid string, size int64) error
}

// Result 一次导入的结果
type Result struct {
	Cid cid.Cid
	// Size 文件内容大小
	Size uint64
	// LinkSize 指向该文件的目录链接应记录的累计大小
	LinkSize uint64
	Chunks   int
	// Deduped 表示命中了文件索引，没有重新切分
	Deduped bool
}

type Ingester struct {
	dag     *dag.Service
	chunker *chunker.Chunker
	opts    Options
	index   FileIndex
}

func NewIngester(svc *dag.Service, opts Options) (*Ingester, error) {
	c, err := chunker.New(opts.Chunker)
	if err != nil {
		return nil, err
	}
	if err := opts.leafOptions().Validate(); err != nil {
		return nil, err
	}
	if err := opts.fileOptions().Validate(); err != nil {
		return nil, err
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Ingester{dag: svc, chunker: c, opts: opts}, nil
}

// SetIndex 启用文件索引
func (ing *Ingester) SetIndex(idx FileIndex) {
	ing.index = idx
}

type leaf struct {
	id   cid.Cid
	size uint64
}

// IngestFile 流式读取 reader，切分、存储，并返回 file 节点
func (ing *Ingester) IngestFile(ctx context.Context, reader io.Reader) (Result, error) {
	var (
		mu     sync.Mutex
		leaves []*leaf
	)
	leafOpts := ing.opts.leafOptions()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.opts.Concurrency)

	// 1. 切分，每个块在 worker 中编码和写入
	splitErr := ing.chunker.Split(gctx, reader, func(chunk []byte) error {
		data := make([]byte, len(chunk))
		copy(data, chunk)

		l := &leaf{size: uint64(len(data))}
		mu.Lock()
		leaves = append(leaves, l)
		mu.Unlock()

		g.Go(func() error {
			id, err := ing.dag.Put(gctx, ing.leafNode(data), leafOpts)
			if err != nil {
				return fmt.Errorf("failed to store chunk: %w", err)
			}
			l.id = id
			return nil
		})
		return nil
	})
	waitErr := g.Wait()
	if waitErr != nil {
		return Result{}, waitErr
	}
	if splitErr != nil {
		return Result{}, fmt.Errorf("failed to read file: %w", splitErr)
	}

	// 2. 组装 file 节点
	builder := core.NewFileNodeBuilder()
	for _, l := range leaves {
		builder.Add(l.id, l.size)
	}
	fileNode := builder.Build()

	blk, err := ing.dag.Sum(fileNode, ing.opts.fileOptions())
	if err != nil {
		return Result{}, err
	}
	if err := ing.dag.PutBlocks(ctx, []core.Block{blk}); err != nil {
		return Result{}, fmt.Errorf("failed to store file node: %w", err)
	}

	log.Debugw("file ingested", "cid", blk.Cid(), "size", builder.TotalSize(), "chunks", len(leaves))
	return Result{
		Cid:      blk.Cid(),
		Size:     builder.TotalSize(),
		LinkSize: dag.LinkSize(fileNode, blk),
		Chunks:   len(leaves),
	}, nil
}

func (ing *Ingester) leafNode(data []byte) *core.Node {
	if ing.opts.RawLeaves {
		return core.NewChunk(data)
	}
	fs := core.UnixFS{Type: core.TRaw, Data: data, FileSize: uint64(len(data))}
	return core.NewNode(fs.Marshal(), nil)
}

// IngestPath 导入本地文件；启用文件索引时先按 sha256 查找，命中且根节点仍存在时直接复用
func (ing *Ingester) IngestPath(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	if ing.index == nil {
		return ing.IngestFile(ctx, f)
	}

	// 1. 计算线性哈希
	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return Result{}, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	linear := hex.EncodeToString(h.Sum(nil))

	// 2. 查询索引
	if res, ok := ing.lookup(ctx, linear, size); ok {
		return res, nil
	}

	// 3. 未命中，重新读取并导入
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Result{}, err
	}
	res, err := ing.IngestFile(ctx, f)
	if err != nil {
		return Result{}, err
	}
	if err := ing.index.SaveFileIndex(ctx, linear, res.Cid.String(), size); err != nil {
		log.Warnw("failed to save file index", "path", path, "error", err)
	}
	return res, nil
}

// lookup 索引只是提示：任何不一致都回退到重新导入
func (ing *Ingester) lookup(ctx context.Context, linear string, size int64) (Result, bool) {
	idx, err := ing.index.GetFileIndex(ctx, linear)
	if err != nil {
		log.Warnw("file index lookup failed", "hash", linear, "error", err)
		return Result{}, false
	}
	if idx == nil {
		return Result{}, false
	}
	if idx.SizeBytes != size {
		log.Warnw("file index size mismatch", "hash", linear, "indexed", idx.SizeBytes, "actual", size)
		return Result{}, false
	}
	root, err := cid.Decode(idx.RootCid)
	if err != nil {
		return Result{}, false
	}

	// 索引存在但节点可能已被回收
	n, err := ing.dag.Get(ctx, root)
	if err != nil {
		log.Warnw("indexed file node is missing", "cid", root, "error", err)
		return Result{}, false
	}
	fs, err := core.UnixFSOf(n)
	if err != nil {
		return Result{}, false
	}
	data, err := core.Encode(n, root.Prefix().Codec)
	if err != nil {
		return Result{}, false
	}

	log.Infow("instant import", "hash", linear[:8], "cid", root)
	return Result{
		Cid:      root,
		Size:     fs.FileSize,
		LinkSize: n.CumulativeSize(len(data)),
		Chunks:   n.NumLinks(),
		Deduped:  true,
	}, true
}
