// Package resolve 把 "<cid>"、"/ipfs/<cid>/a/b" 形式的路径解析为 CID。
package resolve

import (
	"context"
	"fmt"
	"strings"

	"dagvault/pkg/dirs"
	"dagvault/pkg/errs"
	"dagvault/pkg/hamt"

	"github.com/ipfs/go-cid"
)

const ipfsPrefix = "/ipfs/"

// Path 是解析后的路径：根 CID + 逐级的名字
type Path struct {
	Root     cid.Cid
	Segments []string
}

func (p Path) String() string {
	if len(p.Segments) == 0 {
		return ipfsPrefix + p.Root.String()
	}
	return ipfsPrefix + p.Root.String() + "/" + strings.Join(p.Segments, "/")
}

// Parse 只做语法检查，不访问存储
func Parse(s string) (Path, error) {
	raw := strings.TrimSpace(s)
	switch {
	case raw == "":
		return Path{}, fmt.Errorf("%w: empty path", errs.ErrValidation)
	case strings.HasPrefix(raw, ipfsPrefix):
		raw = raw[len(ipfsPrefix):]
	case strings.HasPrefix(raw, "/"):
		return Path{}, fmt.Errorf("%w: unsupported path namespace in %q", errs.ErrValidation, s)
	}

	var parts []string
	for _, seg := range strings.Split(raw, "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	if len(parts) == 0 {
		return Path{}, fmt.Errorf("%w: no cid in %q", errs.ErrValidation, s)
	}

	root, err := cid.Decode(parts[0])
	if err != nil {
		return Path{}, fmt.Errorf("%w: invalid cid %q: %v", errs.ErrValidation, parts[0], err)
	}
	p := Path{Root: root}
	if len(parts) > 1 {
		p.Segments = parts[1:]
	}
	return p, nil
}

// Resolver 沿着目录 (扁平或分片) 逐级解析名字
type Resolver struct {
	store hamt.NodeStore
}

func New(store hamt.NodeStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve 解析单个路径
func (r *Resolver) Resolve(ctx context.Context, s string) (cid.Cid, error) {
	p, err := Parse(s)
	if err != nil {
		return cid.Undef, err
	}
	return r.resolvePath(ctx, p)
}

// ResolveAll 按输入顺序解析多个路径
// 先对全部输入做语法检查，任何一个格式错误都不会触发存储访问
func (r *Resolver) ResolveAll(ctx context.Context, paths []string) ([]cid.Cid, error) {
	parsed := make([]Path, 0, len(paths))
	for _, s := range paths {
		p, err := Parse(s)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, p)
	}

	out := make([]cid.Cid, 0, len(parsed))
	for _, p := range parsed {
		id, err := r.resolvePath(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (r *Resolver) resolvePath(ctx context.Context, p Path) (cid.Cid, error) {
	cur := p.Root
	for _, name := range p.Segments {
		n, err := r.store.Get(ctx, cur)
		if err != nil {
			return cid.Undef, err
		}
		l, err := dirs.LookupNode(ctx, r.store, n, name)
		if err != nil {
			return cid.Undef, fmt.Errorf("resolve %s: %w", p, err)
		}
		cur = l.Cid
	}
	return cur, nil
}
