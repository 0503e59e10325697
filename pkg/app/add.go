package app

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"dagvault/pkg/ignore"
	"dagvault/pkg/index"
	"dagvault/pkg/pin"
	"dagvault/pkg/treebuilder"

	"github.com/ipfs/go-cid"
)

// AddOptions 控制 Add 的行为
type AddOptions struct {
	// Pin 导入完成后递归 pin 根节点
	Pin bool
	// OnFile 每个文件导入或复用后回调
	OnFile func(rel string, e index.Entry, reused bool)
}

// AddResult 一次导入的汇总
type AddResult struct {
	Cid    cid.Cid
	Size   uint64
	Files  int
	Reused int
	Dirs   int
}

// Add 导入本地文件或目录
// 整个过程持有 GC 共享锁，新写入的块在 pin 之前不会被回收
func (a *App) Add(ctx context.Context, root string, opts AddOptions) (AddResult, error) {
	unlock, err := a.GCLock.RLock(ctx)
	if err != nil {
		return AddResult{}, err
	}
	defer unlock()

	info, err := os.Stat(root)
	if err != nil {
		return AddResult{}, err
	}
	ignoreRoot := root
	if !info.IsDir() {
		ignoreRoot = filepath.Dir(root)
	}
	matcher, err := ignore.NewMatcher(ignoreRoot)
	if err != nil {
		return AddResult{}, fmt.Errorf("failed to load ignore rules: %w", err)
	}

	// 1. 逐个导入文件，未修改的文件直接复用索引记录
	var res AddResult
	entries := make(map[string]index.Entry)
	err = matcher.Walk(root, func(path, rel string, d fs.DirEntry) error {
		fi, err := d.Info()
		if err != nil {
			return err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}

		e, reused, err := a.addFile(ctx, abs, fi)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", rel, err)
		}
		entries[rel] = e
		res.Files++
		if reused {
			res.Reused++
		}
		if opts.OnFile != nil {
			opts.OnFile(rel, e, reused)
		}
		return nil
	})
	if err != nil {
		return AddResult{}, err
	}
	if err := a.Index.Save(); err != nil {
		logger.Warnw("failed to save index", "error", err)
	}

	// 2. 单个文件直接以 file 节点为根，否则构建目录树
	if !info.IsDir() {
		for _, e := range entries {
			res.Cid, res.Size = e.Cid, e.LinkSize
		}
	} else {
		tree, err := treebuilder.NewBuilder(a.DAG, a.DirOptions).Build(ctx, entries)
		if err != nil {
			return AddResult{}, err
		}
		res.Cid, res.Size, res.Dirs = tree.Cid, uint64(tree.LinkSize), tree.Dirs
	}

	// 3. 已持有共享锁，pin 不再重复获取
	if opts.Pin {
		if _, err := a.Pins.Add(ctx, []string{res.Cid.String()}, pin.Recursive(true), pin.LockHeld()); err != nil {
			return AddResult{}, err
		}
	}
	logger.Infow("added", "root", root, "cid", res.Cid, "files", res.Files, "reused", res.Reused)
	return res, nil
}

func (a *App) addFile(ctx context.Context, abs string, fi fs.FileInfo) (index.Entry, bool, error) {
	if e, ok := a.Index.Lookup(abs, fi.Size(), fi.ModTime()); ok {
		// 块可能已被回收
		if has, err := a.Store.Has(ctx, e.Cid); err == nil && has {
			return e, true, nil
		}
		a.Index.Remove(abs)
	}

	r, err := a.Ingester.IngestPath(ctx, abs)
	if err != nil {
		return index.Entry{}, false, err
	}
	e := index.Entry{
		Path:     abs,
		Cid:      r.Cid,
		Size:     r.Size,
		LinkSize: r.LinkSize,
		ModTime:  fi.ModTime(),
	}
	a.Index.Add(e)
	return e, r.Deduped, nil
}
