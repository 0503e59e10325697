package refs

import (
	"context"
	"errors"
	"fmt"

	"dagvault/pkg/datastore"

	"github.com/ipfs/go-cid"
)

// FilesRootKey 可变文件系统 (dv files) 根目录的键
const FilesRootKey = "/local/filesroot"

var (
	ErrNoRoot    = errors.New("root not found (empty repo)")
	ErrStaleRoot = fmt.Errorf("stale root version: %w", datastore.ErrConcurrentUpdate)
)

// Manager 负责管理具名的根指针
type Manager struct {
	ds datastore.Datastore
}

func NewManager(ds datastore.Datastore) *Manager {
	return &Manager{ds: ds}
}

// Get 读取指针当前的 CID 和版本号
// 如果从未写过，返回 ErrNoRoot
func (m *Manager) Get(ctx context.Context, name string) (cid.Cid, int64, error) {
	e, err := m.ds.Get(ctx, name)
	if errors.Is(err, datastore.ErrNotFound) {
		return cid.Undef, 0, ErrNoRoot
	}
	if err != nil {
		return cid.Undef, 0, fmt.Errorf("failed to read %s: %w", name, err)
	}

	id, err := cid.Cast(e.Value)
	if err != nil {
		return cid.Undef, 0, fmt.Errorf("corrupt root %s: %w", name, err)
	}
	return id, e.Version, nil
}

// Update 基于 oldVersion 原子更新指针，版本不匹配时返回 ErrStaleRoot
func (m *Manager) Update(ctx context.Context, name string, id cid.Cid, oldVersion int64) error {
	err := m.ds.CompareAndSwap(ctx, name, id.Bytes(), oldVersion)
	if errors.Is(err, datastore.ErrConcurrentUpdate) {
		return ErrStaleRoot
	}
	return err
}

// GetRoot 读取文件系统根
func (m *Manager) GetRoot(ctx context.Context) (cid.Cid, int64, error) {
	return m.Get(ctx, FilesRootKey)
}

// UpdateRoot 更新文件系统根
func (m *Manager) UpdateRoot(ctx context.Context, id cid.Cid, oldVersion int64) error {
	return m.Update(ctx, FilesRootKey, id, oldVersion)
}
