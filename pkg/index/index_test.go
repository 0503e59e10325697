package index

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockCid(t *testing.T, s string) cid.Cid {
	t.Helper()
	mh, err := multihash.Sum([]byte(s), multihash.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.Raw, mh)
}

func TestIndex_Persistence_RoundTrip(t *testing.T) {
	// 1. Setup
	indexPath := filepath.Join(t.TempDir(), "nested", "index.json")
	mtime := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	// 2. 创建并写入数据
	idx1, err := NewIndex(indexPath)
	require.NoError(t, err)
	idx1.Add(Entry{Path: "data/model.bin", Cid: mockCid(t, "model"), Size: 1024, LinkSize: 1100, ModTime: mtime})
	idx1.Add(Entry{Path: "./readme.md", Cid: mockCid(t, "readme"), Size: 500, ModTime: mtime})
	require.NoError(t, idx1.Save())

	// 3. 重新加载 (模拟第二次运行程序)
	idx2, err := NewIndex(indexPath)
	require.NoError(t, err)

	// 4. 验证数据一致性
	assert.Equal(t, 2, idx2.Len())
	entry, ok := idx2.Lookup("data/model.bin", 1024, mtime)
	require.True(t, ok)
	assert.Equal(t, mockCid(t, "model"), entry.Cid)
	assert.Equal(t, uint64(1100), entry.LinkSize)

	// 路径被清洗
	_, ok = idx2.Lookup("readme.md", 500, mtime)
	assert.True(t, ok)
}

func TestIndex_LookupDetectsChanges(t *testing.T) {
	idx, err := NewIndex(filepath.Join(t.TempDir(), "index.json"))
	require.NoError(t, err)
	mtime := time.Now()
	idx.Add(Entry{Path: "a.bin", Cid: mockCid(t, "a"), Size: 10, ModTime: mtime})

	_, ok := idx.Lookup("a.bin", 11, mtime)
	assert.False(t, ok, "大小变化")
	_, ok = idx.Lookup("a.bin", 10, mtime.Add(time.Second))
	assert.False(t, ok, "修改时间变化")
	_, ok = idx.Lookup("b.bin", 10, mtime)
	assert.False(t, ok)

	idx.Remove("a.bin")
	assert.Zero(t, idx.Len())
}

func TestIndex_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := NewIndex(path)
	assert.Error(t, err)
}

func TestIndex_Concurrency(t *testing.T) {
	idx, err := NewIndex(filepath.Join(t.TempDir(), "index.json"))
	require.NoError(t, err)

	// 10 个 goroutine 同时写同一个 key
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			idx.Add(Entry{Path: "file", Cid: mockCid(t, "f"), Size: 1})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, idx.Len())
	snap := idx.Snapshot()
	idx.Reset()
	assert.Len(t, snap, 1, "快照不受 Reset 影响")
	assert.Zero(t, idx.Len())
}
