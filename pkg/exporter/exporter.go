// Package exporter 把 DAG 还原为文件内容、目录列表和可读的节点描述。
package exporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"dagvault/pkg/core"
	"dagvault/pkg/dag"
	"dagvault/pkg/dirs"
	"dagvault/pkg/errs"

	"github.com/ipfs/go-cid"
)

type Exporter struct {
	dag    *dag.Service
	editor *dirs.Editor
}

func NewExporter(svc *dag.Service) *Exporter {
	return &Exporter{dag: svc, editor: dirs.NewEditor(svc)}
}

// Cat 将文件内容按顺序写入 writer
// 支持 raw 叶子、UnixFS raw 节点以及多层的 UnixFS file 节点
func (e *Exporter) Cat(ctx context.Context, id cid.Cid, w io.Writer) error {
	n, err := e.dag.Get(ctx, id)
	if err != nil {
		return err
	}

	// 1. raw codec 叶子：数据就是内容
	if id.Prefix().Codec == core.CodecRaw {
		_, err := w.Write(n.Data())
		return err
	}

	fs, err := core.UnixFSOf(n)
	if err != nil {
		return fmt.Errorf("%w: %s is not a unixfs node: %v", errs.ErrValidation, id, err)
	}

	switch fs.Type {
	case core.TRaw:
		_, err := w.Write(fs.Data)
		return err
	case core.TFile:
		// 2. 内联数据在前，然后按顺序拼接子块
		if len(fs.Data) > 0 {
			if _, err := w.Write(fs.Data); err != nil {
				return err
			}
		}
		for i, l := range n.Links() {
			if err := e.Cat(ctx, l.Cid, w); err != nil {
				return fmt.Errorf("failed to export chunk %d: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %s is a %s, not a file", errs.ErrValidation, id, fs.Type)
	}
}

// ListDir 列出目录 (扁平或分片) 的条目
func (e *Exporter) ListDir(ctx context.Context, id cid.Cid) ([]core.Link, error) {
	return e.editor.List(ctx, id)
}

type RestoreCallback func(path string, id cid.Cid, size uint64)

// Restore 递归地将目录 DAG 还原到目标目录，id 也可以是单个文件
func (e *Exporter) Restore(ctx context.Context, id cid.Cid, target string, onRestore RestoreCallback) error {
	n, err := e.dag.Get(ctx, id)
	if err != nil {
		return err
	}

	isDir := false
	if id.Prefix().Codec != core.CodecRaw {
		if kind, _, err := core.DirectoryKind(n); err == nil {
			isDir = kind == core.TDirectory || kind == core.THAMTShard
		}
	}

	if !isDir {
		return e.restoreFile(ctx, id, target, onRestore)
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("failed to create dir %s: %w", target, err)
	}
	links, err := e.editor.List(ctx, id)
	if err != nil {
		return err
	}
	for _, l := range links {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !filepath.IsLocal(l.Name) {
			return fmt.Errorf("%w: unsafe entry name %q", errs.ErrValidation, l.Name)
		}
		if err := e.Restore(ctx, l.Cid, filepath.Join(target, l.Name), onRestore); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) restoreFile(ctx context.Context, id cid.Cid, path string, onRestore RestoreCallback) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	cw := &countingWriter{w: file}
	if err := e.Cat(ctx, id, cw); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	if onRestore != nil {
		onRestore(path, id, cw.n)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}
