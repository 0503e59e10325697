// Package treebuilder 把一组已导入的文件组装成目录 DAG。
// 目录通过 dirs.Editor 逐个添加链接，超过阈值的目录自动转换为分片目录。
package treebuilder

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"dagvault/pkg/dirs"
	"dagvault/pkg/index"

	"github.com/ipfs/go-cid"
)

// Builder 负责将导入记录转换为目录树
type Builder struct {
	editor *dirs.Editor
	opts   dirs.Options
}

func NewBuilder(store dirs.NodeStore, opts dirs.Options) *Builder {
	return &Builder{editor: dirs.NewEditor(store), opts: opts}
}

// Result 根目录的 CID 及其链接大小
type Result struct {
	Cid      cid.Cid
	LinkSize int64
	Dirs     int
}

// Build 执行构建过程，entries 的键是以 "/" 分隔的相对路径
func (b *Builder) Build(ctx context.Context, entries map[string]index.Entry) (Result, error) {
	if err := b.opts.Validate(); err != nil {
		return Result{}, err
	}

	// 1. 构建内存中的目录树结构
	root := newDirNode("")
	for path, entry := range entries {
		if err := root.addFile(index.CleanPath(path), entry); err != nil {
			return Result{}, err
		}
	}

	// 2. 自底向上写入
	var res Result
	id, size, err := b.writeNode(ctx, root, &res.Dirs)
	if err != nil {
		return Result{}, err
	}
	res.Cid, res.LinkSize = id, size
	return res, nil
}

// -----------------------------------------------------------------------------
// 内部辅助结构：内存树节点
// -----------------------------------------------------------------------------

type node struct {
	name     string
	isDir    bool
	children map[string]*node // 子节点 (仅目录有效)
	entry    index.Entry      // 文件元数据 (仅文件有效)
}

func newDirNode(name string) *node {
	return &node{
		name:     name,
		isDir:    true,
		children: make(map[string]*node),
	}
}

// addFile 将一个文件路径插入到内存树中
// 例如 path="a/b/c.txt" -> 递归创建 a, b, 然后在 b 下创建 c.txt
func (n *node) addFile(path string, entry index.Entry) error {
	parts := strings.Split(path, "/")
	current := n

	for _, part := range parts[:len(parts)-1] {
		child, exists := current.children[part]
		if !exists {
			child = newDirNode(part)
			current.children[part] = child
		}
		if !child.isDir {
			return fmt.Errorf("path conflict: %s is both a file and a directory", part)
		}
		current = child
	}

	fileName := parts[len(parts)-1]
	if existing, ok := current.children[fileName]; ok && existing.isDir {
		return fmt.Errorf("path conflict: %s is both a file and a directory", path)
	}
	current.children[fileName] = &node{name: fileName, entry: entry}
	return nil
}

// writeNode 递归写入目录，返回 (CID, 链接大小)
func (b *Builder) writeNode(ctx context.Context, n *node, dirCount *int) (cid.Cid, int64, error) {
	// 文件直接使用导入时的结果
	if !n.isDir {
		return n.entry.Cid, int64(n.entry.LinkSize), nil
	}

	dir, err := b.editor.MakeEmpty(ctx, b.opts)
	if err != nil {
		return cid.Undef, 0, err
	}

	// 按名字排序，保证同样的输入得到同样的 CID
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		childID, childSize, err := b.writeNode(ctx, n.children[name], dirCount)
		if err != nil {
			return cid.Undef, 0, err
		}
		dir, err = b.editor.AddLink(ctx, dir, name, childSize, childID, b.opts)
		if err != nil {
			return cid.Undef, 0, fmt.Errorf("failed to link %s: %w", name, err)
		}
	}
	*dirCount++

	size, err := b.editor.CumulativeSize(ctx, dir)
	if err != nil {
		return cid.Undef, 0, err
	}
	return dir, size, nil
}
