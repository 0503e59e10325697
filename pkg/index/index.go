// Package index 记录 dv add 已经导入过的本地文件，未修改的文件不再重新切分。
package index

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ipfs/go-cid"
)

// Entry 代表一个已导入的文件
type Entry struct {
	Path string  `json:"path"` // 相对路径 (如 "data/model.bin")
	Cid  cid.Cid `json:"cid"`  // file 节点的 CID
	Size uint64  `json:"size"` // 文件内容大小
	// LinkSize 目录链接中记录的累计大小
	LinkSize uint64    `json:"link_size"`
	ModTime  time.Time `json:"mod_time"` // 导入时文件的修改时间
}

// Index 管理导入缓存
type Index struct {
	path    string           // 物理文件路径 (.dv/index.json)
	Entries map[string]Entry `json:"entries"`
	mu      sync.RWMutex
}

// NewIndex 加载或创建一个新的 Index
func NewIndex(indexPath string) (*Index, error) {
	idx := &Index{
		path:    indexPath,
		Entries: make(map[string]Entry),
	}

	data, err := os.ReadFile(indexPath)
	switch {
	case os.IsNotExist(err):
		return idx, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, fmt.Errorf("corrupted index file: %w", err)
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]Entry)
	}
	return idx, nil
}

// Add 更新一条记录
func (i *Index) Add(e Entry) {
	e.Path = CleanPath(e.Path)
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Entries[e.Path] = e
}

// Lookup 只有大小和修改时间都没变时才命中
func (i *Index) Lookup(path string, size int64, modTime time.Time) (Entry, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	e, ok := i.Entries[CleanPath(path)]
	if !ok || int64(e.Size) != size || !e.ModTime.Equal(modTime) {
		return Entry{}, false
	}
	return e, true
}

// Save 将索引持久化到磁盘 (先写临时文件再 rename)
func (i *Index) Save() error {
	i.mu.RLock()
	data, err := json.MarshalIndent(i, "", "  ")
	i.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(i.path), 0o755); err != nil {
		return err
	}
	tmp := i.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, i.path)
}

// Snapshot 返回当前 Entry 的副本，用于并发安全的读取
func (i *Index) Snapshot() map[string]Entry {
	i.mu.RLock()
	defer i.mu.RUnlock()

	snap := make(map[string]Entry, len(i.Entries))
	maps.Copy(snap, i.Entries)
	return snap
}

func (i *Index) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Entries = make(map[string]Entry)
}

// Len 记录数
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.Entries)
}

func CleanPath(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}

func (i *Index) Remove(path string) {
	key := CleanPath(path)
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.Entries, key)
}
