// Package pin 管理 direct / recursive 两个 pin 集合，indirect 在读取时推导。
package pin

import (
	"context"
	"fmt"
	"sync"

	"dagvault/pkg/dag"
	"dagvault/pkg/datastore"
	"dagvault/pkg/errs"
	"dagvault/pkg/gclock"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("dagvault/pin")

// Resolver 把路径解析为 CID
type Resolver interface {
	Resolve(ctx context.Context, path string) (cid.Cid, error)
	ResolveAll(ctx context.Context, paths []string) ([]cid.Cid, error)
}

// Indexer 接收每次成功持久化后的 pin 集合 (例如写入 SQL 投影)
type Indexer interface {
	IndexPins(ctx context.Context, key string, direct, recursive []string) error
}

// Manager 是 pin 集合的唯一修改入口
// mu 串行化 "修改 + 持久化"，解析与遍历在锁外并发进行
type Manager struct {
	mu        sync.RWMutex
	direct    *cid.Set
	recursive *cid.Set

	ds       datastore.Datastore
	dag      dag.Getter
	resolver Resolver
	lock     gclock.Locker
	indexer  Indexer
}

// NewManager 从 datastore 加载已持久化的 pin 集合
func NewManager(ctx context.Context, ds datastore.Datastore, getter dag.Getter, resolver Resolver, lock gclock.Locker) (*Manager, error) {
	direct, recursive, err := loadRecord(ctx, ds)
	if err != nil {
		return nil, err
	}
	log.Debugw("pin set loaded", "direct", direct.Len(), "recursive", recursive.Len())
	return &Manager{
		direct:    direct,
		recursive: recursive,
		ds:        ds,
		dag:       getter,
		resolver:  resolver,
		lock:      lock,
	}, nil
}

// SetIndexer 设置持久化后的投影写入器
func (m *Manager) SetIndexer(idx Indexer) {
	m.indexer = idx
}

// acquire 除非调用方已经持有，否则获取 GC 共享锁
// 返回的释放函数总是可以安全调用
func (m *Manager) acquire(ctx context.Context, o options) (func(), error) {
	if o.lockHeld {
		return func() {}, nil
	}
	unlock, err := m.lock.RLock(ctx)
	if err != nil {
		return nil, err
	}
	return unlock, nil
}

// snapshot 返回两个集合的拷贝
func (m *Manager) snapshot() (*cid.Set, *cid.Set) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copySet(m.direct), copySet(m.recursive)
}

func (m *Manager) has(id cid.Cid) (direct, recursive bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.direct.Has(id), m.recursive.Has(id)
}

// commit 在 mu 内执行：先持久化新集合，成功后才替换内存状态
// 调用方必须持有 m.mu
func (m *Manager) commit(ctx context.Context, direct, recursive *cid.Set) error {
	data, err := encodeRecord(direct, recursive)
	if err != nil {
		return fmt.Errorf("%w: encode pins: %v", errs.ErrStore, err)
	}
	if err := m.ds.Put(ctx, PinSetKey, data); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: flush pins: %v", errs.ErrStore, err)
	}
	m.direct, m.recursive = direct, recursive
	log.Infow("pin set flushed", "direct", direct.Len(), "recursive", recursive.Len())

	if m.indexer != nil {
		if err := m.indexer.IndexPins(ctx, PinSetKey, toStrings(direct), toStrings(recursive)); err != nil {
			// 投影不是权威数据，失败只记录
			log.Warnw("failed to index pins", "error", err)
		}
	}
	return nil
}

func toStrings(s *cid.Set) []string {
	ids := Sorted(s)
	out := make([]string, len(ids))
	for i, c := range ids {
		out[i] = c.String()
	}
	return out
}

// Add pin 一组路径，返回解析出的 CID
// 递归 pin 之前会确认整棵子树都在存储中；任何缺失都使整个操作失败
func (m *Manager) Add(ctx context.Context, paths []string, opts ...Option) ([]cid.Cid, error) {
	o := collect(opts)

	unlock, err := m.acquire(ctx, o)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// 1. 解析
	ids, err := m.resolver.ResolveAll(ctx, paths)
	if err != nil {
		return nil, err
	}

	// 2. 校验每个 CID 都可以被 pin
	for _, id := range ids {
		isDirect, isRecursive := m.has(id)
		if o.recursive {
			if isRecursive {
				continue
			}
			// 整棵子树都必须可读
			if err := dag.FetchGraph(ctx, m.dag, id); err != nil {
				return nil, fmt.Errorf("pin %s: %w", id, err)
			}
			continue
		}

		if isRecursive {
			return nil, fmt.Errorf("%w: %s already pinned recursively", errs.ErrConflict, id)
		}
		if !isDirect {
			if _, err := m.dag.Get(ctx, id); err != nil {
				return nil, fmt.Errorf("pin %s: %w", id, err)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. 在锁内重新检查并提交
	m.mu.Lock()
	defer m.mu.Unlock()

	direct, recursive := copySet(m.direct), copySet(m.recursive)
	changed := false
	for _, id := range ids {
		if o.recursive {
			if !recursive.Has(id) {
				recursive.Add(id)
				changed = true
			}
			// recursive 取代 direct
			if direct.Has(id) {
				direct.Remove(id)
				changed = true
			}
			continue
		}
		if recursive.Has(id) {
			return nil, fmt.Errorf("%w: %s already pinned recursively", errs.ErrConflict, id)
		}
		if !direct.Has(id) {
			direct.Add(id)
			changed = true
		}
	}
	if !changed {
		return ids, nil
	}
	if err := m.commit(ctx, direct, recursive); err != nil {
		return nil, err
	}
	return ids, nil
}

// Rm 取消 pin；递归 pin 只有在 Recursive(true) 时才能被移除
func (m *Manager) Rm(ctx context.Context, paths []string, opts ...Option) ([]cid.Cid, error) {
	o := collect(opts)

	unlock, err := m.acquire(ctx, o)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ids, err := m.resolver.ResolveAll(ctx, paths)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	direct, recursive := copySet(m.direct), copySet(m.recursive)
	removed := make([]cid.Cid, 0, len(ids))
	seen := cid.NewSet()
	for _, id := range ids {
		// 同一个 CID 出现多次只移除一次
		if !seen.Visit(id) {
			continue
		}
		removed = append(removed, id)
		switch {
		case recursive.Has(id):
			if !o.recursive {
				return nil, fmt.Errorf("%w: %s is pinned recursively", errs.ErrConflict, id)
			}
			recursive.Remove(id)
		case direct.Has(id):
			direct.Remove(id)
		default:
			return nil, fmt.Errorf("%w: %s is not pinned", errs.ErrConflict, id)
		}
	}
	if err := m.commit(ctx, direct, recursive); err != nil {
		return nil, err
	}
	return removed, nil
}

// IsPinned 按 recursive -> direct -> indirect 的顺序判断
func (m *Manager) IsPinned(ctx context.Context, id cid.Cid) (Pinned, bool, error) {
	return m.isPinnedWithMode(ctx, id, ModeAll)
}

// BadPin 是一个子树不完整的递归 pin
type BadPin struct {
	Cid cid.Cid
	Err error
}

// Verify 检查每个递归 pin 的子树是否完整
func (m *Manager) Verify(ctx context.Context) ([]BadPin, error) {
	unlock, err := m.lock.RLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	_, recursive := m.snapshot()
	var bad []BadPin
	for _, root := range Sorted(recursive) {
		if err := dag.FetchGraph(ctx, m.dag, root); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			bad = append(bad, BadPin{Cid: root, Err: err})
		}
	}
	return bad, nil
}

// Counts 当前 (direct, recursive) 数量
func (m *Manager) Counts() (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.direct.Len(), m.recursive.Len()
}
