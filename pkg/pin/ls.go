package pin

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"dagvault/pkg/core"
	"dagvault/pkg/dag"
	"dagvault/pkg/errs"
	"dagvault/pkg/resolve"

	"github.com/ipfs/go-cid"
	"golang.org/x/sync/errgroup"
)

// LsConcurrency 按路径查询时同时进行的解析/分类数量上限
const LsConcurrency = 8

var errStop = errors.New("stop walk")

// Pinned 是 Ls 输出的一项
type Pinned struct {
	Cid  cid.Cid
	Mode Mode
	// Via 仅对 indirect 有效：保护它的递归根
	Via cid.Cid
	// Path 仅在按路径查询时设置
	Path string
}

// Type 返回展示用的类型，例如 "indirect through <cid>"
func (p Pinned) Type() string {
	if p.Mode == ModeIndirect && p.Via.Defined() {
		return fmt.Sprintf("%s through %s", ModeIndirect, p.Via)
	}
	return string(p.Mode)
}

func (p Pinned) String() string {
	return p.Cid.String() + " " + p.Type()
}

// Ls 列出 pin
// 不带路径时按类型列出全部：同时是 direct 和 indirect 的对象只报告一次 (indirect)
// 带路径时逐个分类，检查顺序为 recursive -> direct -> indirect，未 pin 的路径产生单项错误
func (m *Manager) Ls(ctx context.Context, opts ...Option) (iter.Seq2[Pinned, error], error) {
	o := collect(opts)
	mode, err := ParseMode(o.mode)
	if err != nil {
		return nil, err
	}

	if len(o.paths) > 0 {
		// 先做语法检查，格式错误的路径不触发任何存储访问
		for _, p := range o.paths {
			if _, err := resolve.Parse(p); err != nil {
				return nil, err
			}
		}
		return m.lsPaths(ctx, o.paths, mode), nil
	}
	return m.lsAll(ctx, mode), nil
}

type lsResult struct {
	pin Pinned
	err error
}

func (m *Manager) lsPaths(ctx context.Context, paths []string, mode Mode) iter.Seq2[Pinned, error] {
	return func(yield func(Pinned, error) bool) {
		results := make([]lsResult, len(paths))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(LsConcurrency)
		for i, path := range paths {
			g.Go(func() error {
				id, err := m.resolver.Resolve(gctx, path)
				if err != nil {
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					results[i] = lsResult{err: err}
					return nil
				}
				p, ok, err := m.isPinnedWithMode(gctx, id, mode)
				switch {
				case err != nil:
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					results[i] = lsResult{err: err}
				case !ok:
					results[i] = lsResult{err: fmt.Errorf("%w: path '%s' is not pinned", errs.ErrConflict, path)}
				default:
					p.Path = path
					results[i] = lsResult{pin: p}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			yield(Pinned{}, err)
			return
		}

		for _, r := range results {
			if !yield(r.pin, r.err) {
				return
			}
		}
	}
}

func (m *Manager) lsAll(ctx context.Context, mode Mode) iter.Seq2[Pinned, error] {
	return func(yield func(Pinned, error) bool) {
		direct, recursive := m.snapshot()

		switch mode {
		case ModeDirect:
			for _, id := range Sorted(direct) {
				if !yield(Pinned{Cid: id, Mode: ModeDirect}, nil) {
					return
				}
			}
			return

		case ModeRecursive:
			for _, id := range Sorted(recursive) {
				if !yield(Pinned{Cid: id, Mode: ModeRecursive}, nil) {
					return
				}
			}
			return

		case ModeIndirect:
			// 边遍历边输出
			err := m.walkIndirect(ctx, recursive, func(id, via cid.Cid) bool {
				return yield(Pinned{Cid: id, Mode: ModeIndirect, Via: via}, nil)
			})
			if err != nil && !errors.Is(err, errStop) {
				yield(Pinned{}, err)
			}
			return
		}

		// all: 需要完整的 indirect 集合才能对 direct 去重
		var indirect []Pinned
		seen := cid.NewSet()
		err := m.walkIndirect(ctx, recursive, func(id, via cid.Cid) bool {
			seen.Add(id)
			indirect = append(indirect, Pinned{Cid: id, Mode: ModeIndirect, Via: via})
			return true
		})
		if err != nil {
			yield(Pinned{}, err)
			return
		}

		for _, id := range Sorted(direct) {
			if seen.Has(id) {
				continue
			}
			if !yield(Pinned{Cid: id, Mode: ModeDirect}, nil) {
				return
			}
		}
		for _, id := range Sorted(recursive) {
			if !yield(Pinned{Cid: id, Mode: ModeRecursive}, nil) {
				return
			}
		}
		for _, p := range indirect {
			if !yield(p, nil) {
				return
			}
		}
	}
}

// walkIndirect 从全部递归根出发遍历，对每个不是递归根的可达对象调用 fn 一次
// fn 返回 false 时以 errStop 结束
func (m *Manager) walkIndirect(ctx context.Context, recursive *cid.Set, fn func(id, via cid.Cid) bool) error {
	seen := cid.NewSet()
	for _, root := range Sorted(recursive) {
		if !seen.Visit(root) {
			continue
		}
		n, err := m.dag.Get(ctx, root)
		if err != nil {
			return err
		}
		for _, l := range n.Links() {
			err := dag.Walk(ctx, m.dag, l.Cid, func(id cid.Cid, _ *core.Node) (bool, error) {
				if !seen.Visit(id) {
					return false, nil
				}
				if recursive.Has(id) {
					return true, nil
				}
				if !fn(id, root) {
					return false, errStop
				}
				return true, nil
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// isPinnedWithMode 按 recursive -> direct -> indirect 的顺序分类，mode 限定检查哪些类型
func (m *Manager) isPinnedWithMode(ctx context.Context, id cid.Cid, mode Mode) (Pinned, bool, error) {
	direct, recursive := m.snapshot()

	if mode == ModeRecursive || mode == ModeAll {
		if recursive.Has(id) {
			return Pinned{Cid: id, Mode: ModeRecursive}, true, nil
		}
		if mode == ModeRecursive {
			return Pinned{}, false, nil
		}
	}
	if mode == ModeDirect || mode == ModeAll {
		if direct.Has(id) {
			return Pinned{Cid: id, Mode: ModeDirect}, true, nil
		}
		if mode == ModeDirect {
			return Pinned{}, false, nil
		}
	}

	// indirect: 是否是某个递归根的后代
	for _, root := range Sorted(recursive) {
		found := false
		err := dag.Walk(ctx, m.dag, root, func(c cid.Cid, _ *core.Node) (bool, error) {
			if !c.Equals(root) && c.Equals(id) {
				found = true
				return false, errStop
			}
			return true, nil
		})
		if err != nil && !errors.Is(err, errStop) {
			return Pinned{}, false, err
		}
		if found {
			return Pinned{Cid: id, Mode: ModeIndirect, Via: root}, true, nil
		}
	}
	return Pinned{}, false, nil
}
