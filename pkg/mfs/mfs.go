// Package mfs 在不可变的目录 DAG 之上维护一个可变的根目录 (dv files)。
// 每次修改都沿路径自底向上重写祖先目录，全部写入成功后才 CAS 更新根指针。
package mfs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dagvault/pkg/core"
	"dagvault/pkg/dirs"
	"dagvault/pkg/errs"
	"dagvault/pkg/refs"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("dagvault/mfs")

// FS 是可变文件系统视图
type FS struct {
	store  dirs.NodeStore
	editor *dirs.Editor
	refs   *refs.Manager
	opts   dirs.Options
}

// New 创建 FS；opts.Flush 会被强制为 true，根指针不能指向未写入的节点
func New(store dirs.NodeStore, rm *refs.Manager, opts dirs.Options) *FS {
	opts.Flush = true
	return &FS{
		store:  store,
		editor: dirs.NewEditor(store),
		refs:   rm,
		opts:   opts,
	}
}

// Root 返回当前根目录，首次使用时写入一个空目录
func (f *FS) Root(ctx context.Context) (cid.Cid, int64, error) {
	root, version, err := f.refs.GetRoot(ctx)
	if err == nil {
		return root, version, nil
	}
	if !errors.Is(err, refs.ErrNoRoot) {
		return cid.Undef, 0, err
	}

	empty, err := f.editor.MakeEmpty(ctx, f.opts)
	if err != nil {
		return cid.Undef, 0, err
	}
	if err := f.refs.UpdateRoot(ctx, empty, 0); err != nil && !errors.Is(err, refs.ErrStaleRoot) {
		return cid.Undef, 0, err
	}
	// 可能有并发的初始化先完成，重新读取
	return f.refs.GetRoot(ctx)
}

// SplitPath 把 "/a/b/" 拆成 ["a", "b"]
func SplitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// Link 在 dirPath 目录下添加 name -> target，返回新的根
func (f *FS) Link(ctx context.Context, dirPath, name string, target cid.Cid, size int64) (cid.Cid, error) {
	if name == "" || strings.Contains(name, "/") {
		return cid.Undef, fmt.Errorf("%w: invalid entry name %q", errs.ErrValidation, name)
	}
	return f.update(ctx, SplitPath(dirPath), func(dir cid.Cid) (cid.Cid, error) {
		return f.editor.AddLink(ctx, dir, name, size, target, f.opts)
	})
}

// Mkdir 创建目录，parents 为 true 时同时创建缺失的上级目录
func (f *FS) Mkdir(ctx context.Context, dirPath string, parents bool) (cid.Cid, error) {
	segs := SplitPath(dirPath)
	if len(segs) == 0 {
		return cid.Undef, fmt.Errorf("%w: cannot create root directory", errs.ErrValidation)
	}

	root, version, err := f.Root(ctx)
	if err != nil {
		return cid.Undef, err
	}

	// 1. 找到已经存在的最长前缀
	chain := []cid.Cid{root}
	for _, seg := range segs {
		l, err := f.editor.Lookup(ctx, chain[len(chain)-1], seg)
		if errors.Is(err, errs.ErrNotFound) {
			break
		}
		if err != nil {
			return cid.Undef, err
		}
		chain = append(chain, l.Cid)
	}
	existing := len(chain) - 1
	if existing == len(segs) {
		return cid.Undef, fmt.Errorf("%w: %s already exists", errs.ErrConflict, dirPath)
	}
	if !parents && existing < len(segs)-1 {
		return cid.Undef, fmt.Errorf("%w: parent of %s does not exist", errs.ErrNotFound, dirPath)
	}

	// 2. 自底向上构造缺失的目录
	child, err := f.editor.MakeEmpty(ctx, f.opts)
	if err != nil {
		return cid.Undef, err
	}
	for i := len(segs) - 1; i > existing; i-- {
		dir, err := f.editor.MakeEmpty(ctx, f.opts)
		if err != nil {
			return cid.Undef, err
		}
		size, err := f.linkSize(ctx, child)
		if err != nil {
			return cid.Undef, err
		}
		child, err = f.editor.AddLink(ctx, dir, segs[i], size, child, f.opts)
		if err != nil {
			return cid.Undef, err
		}
	}

	// 3. 挂到已存在的部分，再一路重写到根
	size, err := f.linkSize(ctx, child)
	if err != nil {
		return cid.Undef, err
	}
	child, err = f.editor.AddLink(ctx, chain[existing], segs[existing], size, child, f.opts)
	if err != nil {
		return cid.Undef, err
	}
	newRoot, err := f.propagate(ctx, chain[:existing], segs[:existing], child)
	if err != nil {
		return cid.Undef, err
	}
	return newRoot, f.commit(ctx, newRoot, version)
}

// update 读出根到 segs 的路径，对最深的目录应用 fn，然后重写所有祖先
func (f *FS) update(ctx context.Context, segs []string, fn func(dir cid.Cid) (cid.Cid, error)) (cid.Cid, error) {
	root, version, err := f.Root(ctx)
	if err != nil {
		return cid.Undef, err
	}

	chain, err := f.walk(ctx, root, segs)
	if err != nil {
		return cid.Undef, err
	}

	child, err := fn(chain[len(chain)-1])
	if err != nil {
		return cid.Undef, err
	}
	newRoot, err := f.propagate(ctx, chain[:len(chain)-1], segs, child)
	if err != nil {
		return cid.Undef, err
	}
	return newRoot, f.commit(ctx, newRoot, version)
}

// walk 返回 [root, seg0, seg0/seg1, ...] 的 CID 链
func (f *FS) walk(ctx context.Context, root cid.Cid, segs []string) ([]cid.Cid, error) {
	chain := make([]cid.Cid, 0, len(segs)+1)
	chain = append(chain, root)
	for _, seg := range segs {
		l, err := f.editor.Lookup(ctx, chain[len(chain)-1], seg)
		if err != nil {
			return nil, fmt.Errorf("files: %s: %w", seg, err)
		}
		chain = append(chain, l.Cid)
	}
	return chain, nil
}

// propagate 把新的子目录依次链接回 ancestors (从根开始排列)
func (f *FS) propagate(ctx context.Context, ancestors []cid.Cid, segs []string, child cid.Cid) (cid.Cid, error) {
	for i := len(ancestors) - 1; i >= 0; i-- {
		size, err := f.linkSize(ctx, child)
		if err != nil {
			return cid.Undef, err
		}
		child, err = f.editor.AddLink(ctx, ancestors[i], segs[i], size, child, f.opts)
		if err != nil {
			return cid.Undef, err
		}
	}
	return child, nil
}

func (f *FS) commit(ctx context.Context, newRoot cid.Cid, version int64) error {
	if err := f.refs.UpdateRoot(ctx, newRoot, version); err != nil {
		return err
	}
	log.Infow("files root updated", "root", newRoot, "version", version+1)
	return nil
}

func (f *FS) linkSize(ctx context.Context, id cid.Cid) (int64, error) {
	return f.editor.CumulativeSize(ctx, id)
}

// Stat 描述路径上的对象
type Stat struct {
	Cid            cid.Cid
	Type           string
	Size           uint64
	CumulativeSize uint64
	Blocks         int
}

// Stat 返回路径对应对象的信息
func (f *FS) Stat(ctx context.Context, p string) (Stat, error) {
	root, _, err := f.Root(ctx)
	if err != nil {
		return Stat{}, err
	}
	chain, err := f.walk(ctx, root, SplitPath(p))
	if err != nil {
		return Stat{}, err
	}
	id := chain[len(chain)-1]
	n, err := f.store.Get(ctx, id)
	if err != nil {
		return Stat{}, err
	}
	data, err := core.Encode(n, id.Prefix().Codec)
	if err != nil {
		return Stat{}, err
	}

	st := Stat{
		Cid:            id,
		Type:           "raw",
		Size:           uint64(len(n.Data())),
		CumulativeSize: n.CumulativeSize(len(data)),
		Blocks:         n.NumLinks(),
	}
	if fs, err := core.UnixFSOf(n); err == nil {
		st.Type = fs.Type.String()
		switch fs.Type {
		case core.TFile, core.TRaw:
			st.Size = fs.FileSize
		default:
			st.Size = 0
		}
	}
	return st, nil
}

// Ls 列出路径下的目录项
func (f *FS) Ls(ctx context.Context, p string) ([]core.Link, error) {
	root, _, err := f.Root(ctx)
	if err != nil {
		return nil, err
	}
	chain, err := f.walk(ctx, root, SplitPath(p))
	if err != nil {
		return nil, err
	}
	return f.editor.List(ctx, chain[len(chain)-1])
}
