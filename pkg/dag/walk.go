package dag

import (
	"context"

	"dagvault/pkg/core"

	"github.com/ipfs/go-cid"
)

// VisitFunc 遍历回调，返回 false 表示不再深入该节点的子节点
type VisitFunc func(id cid.Cid, n *core.Node) (descend bool, err error)

// Walk 从 root 开始深度优先遍历，每个 CID 只访问一次
// 任何一次 Get 失败 (包括 NotFound) 都会终止遍历
func Walk(ctx context.Context, g Getter, root cid.Cid, visit VisitFunc) error {
	return walk(ctx, g, root, cid.NewSet(), visit)
}

// WalkMany 多个根共享同一个 visited 集合
func WalkMany(ctx context.Context, g Getter, roots []cid.Cid, visit VisitFunc) error {
	seen := cid.NewSet()
	for _, r := range roots {
		if err := walk(ctx, g, r, seen, visit); err != nil {
			return err
		}
	}
	return nil
}

func walk(ctx context.Context, g Getter, id cid.Cid, seen *cid.Set, visit VisitFunc) error {
	if !seen.Visit(id) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := g.Get(ctx, id)
	if err != nil {
		return err
	}
	descend, err := visit(id, n)
	if err != nil || !descend {
		return err
	}
	for _, l := range n.Links() {
		if err := walk(ctx, g, l.Cid, seen, visit); err != nil {
			return err
		}
	}
	return nil
}

// FetchGraph 确认 root 可达的整棵子树都能从存储读出
func FetchGraph(ctx context.Context, g Getter, root cid.Cid) error {
	return Walk(ctx, g, root, func(cid.Cid, *core.Node) (bool, error) {
		return true, nil
	})
}
