package pin

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"dagvault/pkg/core"
	"dagvault/pkg/dag"
	"dagvault/pkg/datastore"
	"dagvault/pkg/gclock"
	"dagvault/pkg/resolve"
	"dagvault/pkg/storage/memory"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

// flakyDatastore 可以让 Put 失败
type flakyDatastore struct {
	*datastore.MapDatastore
	failPut atomic.Bool
	puts    atomic.Int32
}

func (f *flakyDatastore) Put(ctx context.Context, key string, value []byte) error {
	f.puts.Add(1)
	if f.failPut.Load() {
		return errInjected
	}
	return f.MapDatastore.Put(ctx, key, value)
}

// spyLock 记录共享锁的获取/释放次数
type spyLock struct {
	inner    *gclock.GCLock
	acquired atomic.Int32
	released atomic.Int32
}

func (s *spyLock) RLock(ctx context.Context) (gclock.Unlocker, error) {
	unlock, err := s.inner.RLock(ctx)
	if err != nil {
		return nil, err
	}
	s.acquired.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			s.released.Add(1)
			unlock()
		})
	}, nil
}

func (s *spyLock) Lock(ctx context.Context) (gclock.Unlocker, error) {
	return s.inner.Lock(ctx)
}

// cancelGetter 在第 after 次 Get 时取消上下文，模拟遍历途中的取消
type cancelGetter struct {
	inner  dag.Getter
	after  int32
	cancel context.CancelFunc
	gets   atomic.Int32
}

func (g *cancelGetter) Get(ctx context.Context, id cid.Cid) (*core.Node, error) {
	if g.gets.Add(1) == g.after {
		g.cancel()
	}
	return g.inner.Get(ctx, id)
}

type fixture struct {
	svc  *dag.Service
	ds   *flakyDatastore
	lock *spyLock
	mgr  *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	svc, err := dag.NewService(memory.NewAdapter(), 256)
	require.NoError(t, err)
	ds := &flakyDatastore{MapDatastore: datastore.NewMapDatastore()}
	lock := &spyLock{inner: gclock.New()}
	mgr, err := NewManager(context.Background(), ds, svc, resolve.New(svc), lock)
	require.NoError(t, err)
	return &fixture{svc: svc, ds: ds, lock: lock, mgr: mgr}
}

func (f *fixture) put(t *testing.T, n *core.Node) cid.Cid {
	t.Helper()
	id, err := f.svc.Put(context.Background(), n, dag.DefaultPutOptions())
	require.NoError(t, err)
	return id
}

func (f *fixture) leaf(t *testing.T, data string) cid.Cid {
	t.Helper()
	return f.put(t, core.NewChunk([]byte(data)))
}

// tree 写入 root -> (a, b) 的三节点图
func (f *fixture) tree(t *testing.T, prefix string) (root, a, b cid.Cid) {
	t.Helper()
	a = f.leaf(t, prefix+"-a")
	b = f.leaf(t, prefix+"-b")
	root = f.put(t, core.NewNode(core.EmptyDirectory().Data(), []core.Link{
		core.NewLink("a", 1, a),
		core.NewLink("b", 1, b),
	}))
	return root, a, b
}

func mockCid(t *testing.T, input string) cid.Cid {
	t.Helper()
	id, err := core.CidBuilder{Version: 1, Codec: core.CodecRaw, HashAlg: "sha2-256"}.Sum([]byte(input))
	require.NoError(t, err)
	return id
}

func collectLs(t *testing.T, m *Manager, opts ...Option) ([]Pinned, []error) {
	t.Helper()
	seq, err := m.Ls(context.Background(), opts...)
	require.NoError(t, err)
	var pins []Pinned
	var errList []error
	for p, err := range seq {
		if err != nil {
			errList = append(errList, err)
			continue
		}
		pins = append(pins, p)
	}
	return pins, errList
}

func byCid(pins []Pinned) map[string]Pinned {
	out := make(map[string]Pinned, len(pins))
	for _, p := range pins {
		out[p.Cid.String()] = p
	}
	return out
}
