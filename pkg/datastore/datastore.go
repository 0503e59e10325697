// Package datastore 是 pin 集合与根指针使用的持久化键值存储。
package datastore

import (
	"context"
	"fmt"
	"sync"

	"dagvault/pkg/errs"
)

var (
	ErrNotFound         = errs.ErrNotFound
	ErrConcurrentUpdate = fmt.Errorf("%w: concurrent update detected (CAS failed)", errs.ErrConflict)
)

// Entry 是一条带版本号的记录
type Entry struct {
	Value   []byte
	Version int64
}

// Datastore 是最小的持久化键值接口
// 单次 Put 是原子的：读者要么看到旧值，要么看到完整的新值
type Datastore interface {
	Get(ctx context.Context, key string) (Entry, error)
	// Put 无条件覆盖，版本号自增
	Put(ctx context.Context, key string, value []byte) error
	// CompareAndSwap 仅当当前版本等于 oldVersion 时写入；oldVersion 为 0 表示记录必须不存在
	CompareAndSwap(ctx context.Context, key string, value []byte, oldVersion int64) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MapDatastore 进程内实现，用于测试和 datastore.type=memory
type MapDatastore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMapDatastore() *MapDatastore {
	return &MapDatastore{entries: make(map[string]Entry)}
}

func (m *MapDatastore) Get(ctx context.Context, key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, fmt.Errorf("%w: key %s", ErrNotFound, key)
	}
	return Entry{Value: append([]byte(nil), e.Value...), Version: e.Version}, nil
}

func (m *MapDatastore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = Entry{Value: append([]byte(nil), value...), Version: m.entries[key].Version + 1}
	return nil
}

func (m *MapDatastore) CompareAndSwap(ctx context.Context, key string, value []byte, oldVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[key].Version != oldVersion {
		return ErrConcurrentUpdate
	}
	m.entries[key] = Entry{Value: append([]byte(nil), value...), Version: oldVersion + 1}
	return nil
}

func (m *MapDatastore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MapDatastore) Close() error { return nil }
