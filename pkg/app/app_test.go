package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"dagvault/pkg/dirs"
	"dagvault/pkg/index"
	"dagvault/pkg/ingester"
	"dagvault/pkg/pin"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitStore_Disk(t *testing.T) {
	// 1. Mock 配置
	dir := t.TempDir()
	viper.Reset()
	viper.Set("storage.type", "disk")
	viper.Set("storage.path", filepath.Join(dir, "blocks"))

	// 2. 调用私有函数 (因为我们在同一个包)
	store, err := initStore(context.Background(), dir)

	// 3. 验证
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestInitStore_Memory(t *testing.T) {
	viper.Reset()
	viper.Set("storage.type", "memory")

	store, err := initStore(context.Background(), ".")
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestInitStore_S3_MissingBucket(t *testing.T) {
	viper.Reset()
	viper.Set("storage.type", "s3")
	// 故意不设置 bucket

	store, err := initStore(context.Background(), ".")
	assert.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "bucket is required")
}

func TestInitStore_UnknownType(t *testing.T) {
	viper.Reset()
	viper.Set("storage.type", "ftp") // 不支持的类型

	store, err := initStore(context.Background(), ".")
	assert.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "unsupported storage type")
}

func TestInitDatastore(t *testing.T) {
	ctx := context.Background()

	t.Run("Bolt", func(t *testing.T) {
		viper.Reset()
		viper.Set("datastore.type", "bolt")
		dir := t.TempDir()

		ds, repo, err := initDatastore(ctx, dir)
		require.NoError(t, err)
		defer ds.Close()
		assert.Nil(t, repo)
		assert.FileExists(t, filepath.Join(dir, "datastore.db"))
	})

	t.Run("SQLite", func(t *testing.T) {
		viper.Reset()
		viper.Set("datastore.type", "sqlite")

		ds, repo, err := initDatastore(ctx, t.TempDir())
		require.NoError(t, err)
		defer ds.Close()
		assert.NotNil(t, repo, "SQL backends expose the repository")
	})

	t.Run("Unknown", func(t *testing.T) {
		viper.Reset()
		viper.Set("datastore.type", "etcd")

		_, _, err := initDatastore(ctx, t.TempDir())
		assert.ErrorContains(t, err, "unsupported datastore type")
	})
}

func TestDirOptions(t *testing.T) {
	viper.Reset()
	viper.Set("dir.shard_split_threshold", 100)
	viper.Set("dir.fanout", 64)
	viper.Set("dir.cid_version", 1)
	viper.Set("dir.hash_alg", "sha2-256")
	viper.Set("dir.codec", "dag-pb")

	opts, err := DirOptions()
	require.NoError(t, err)
	assert.Equal(t, 100, opts.ShardSplitThreshold)
	assert.Equal(t, 64, opts.Fanout)
	assert.EqualValues(t, 1, opts.CidVersion)
	assert.True(t, opts.Flush)

	viper.Set("dir.fanout", 100)
	_, err = DirOptions()
	assert.Error(t, err, "fanout must be a power of two")

	viper.Set("dir.fanout", 64)
	viper.Set("dir.codec", "raw")
	_, err = DirOptions()
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	assert.NoError(t, SetupLogging("debug"))
	assert.NoError(t, SetupLogging(""))
	assert.Error(t, SetupLogging("loud"))
}

func TestNewApp_DiskAndBolt(t *testing.T) {
	dir := t.TempDir()
	viper.Reset()
	viper.Set("storage.type", "disk")
	viper.Set("storage.path", filepath.Join(dir, ".dv", "blocks"))
	viper.Set("datastore.type", "bolt")
	viper.Set("dir.shard_split_threshold", 1000)
	viper.Set("dir.fanout", 256)
	viper.Set("dir.hash_alg", "sha2-256")
	viper.Set("dir.codec", "dag-pb")
	viper.Set("import.raw_leaves", true)

	a, err := NewApp(context.Background())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, filepath.Join(dir, ".dv"), a.RepoPath)
	assert.Nil(t, a.Repository)
	assert.NotNil(t, a.Pins)
	assert.NotNil(t, a.Files)
}

func newTestApp(t *testing.T, dirOpts dirs.Options) *App {
	t.Helper()
	a, err := NewMemoryApp(context.Background(), t.TempDir(), dirOpts, ingester.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func TestAdd_Directory(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, dirs.DefaultOptions())
	root := writeTree(t, map[string]string{
		"a.txt":     "alpha",
		"sub/b.txt": "bravo",
		".env":      "SECRET=1", // 默认忽略
	})

	var seen []string
	res, err := a.Add(ctx, root, AddOptions{
		Pin: true,
		OnFile: func(rel string, _ index.Entry, _ bool) {
			seen = append(seen, rel)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	assert.Zero(t, res.Reused)
	assert.ElementsMatch(t, []string{"a.txt", "sub/b.txt"}, seen)

	// 1. 根节点被递归 pin
	p, ok, err := a.Pins.IsPinned(ctx, res.Cid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pin.ModeRecursive, p.Mode)

	// 2. 可以按路径解析
	id, err := a.Resolver.Resolve(ctx, "/ipfs/"+res.Cid.String()+"/sub/b.txt")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, a.Exporter.Cat(ctx, id, &buf))
	assert.Equal(t, "bravo", buf.String())

	// 3. 未修改的文件复用索引，结果不变
	again, err := a.Add(ctx, root, AddOptions{})
	require.NoError(t, err)
	assert.Equal(t, res.Cid, again.Cid)
	assert.Equal(t, 2, again.Reused)
}

func TestAdd_SingleFile(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, dirs.DefaultOptions())
	root := writeTree(t, map[string]string{"model.bin": "weights"})

	res, err := a.Add(ctx, filepath.Join(root, "model.bin"), AddOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	assert.Zero(t, res.Dirs)

	var buf bytes.Buffer
	require.NoError(t, a.Exporter.Cat(ctx, res.Cid, &buf))
	assert.Equal(t, "weights", buf.String())

	// 没有要求 pin
	_, ok, err := a.Pins.IsPinned(ctx, res.Cid)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdd_Sharded(t *testing.T) {
	opts := dirs.DefaultOptions()
	opts.ShardSplitThreshold = 8
	opts.Fanout = 16
	a := newTestApp(t, opts)

	files := make(map[string]string)
	for i := range 20 {
		files[filepath.ToSlash(filepath.Join("d", string(rune('a'+i))+".txt"))] = string(rune('a' + i))
	}
	root := writeTree(t, files)

	res, err := a.Add(context.Background(), root, AddOptions{Pin: true})
	require.NoError(t, err)
	assert.Equal(t, 20, res.Files)

	id, err := a.Resolver.Resolve(context.Background(), res.Cid.String()+"/d/q.txt")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, a.Exporter.Cat(context.Background(), id, &buf))
	assert.Equal(t, "q", buf.String())
}

func TestAdd_Cancelled(t *testing.T) {
	a := newTestApp(t, dirs.DefaultOptions())
	root := writeTree(t, map[string]string{"a.txt": "alpha"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Add(ctx, root, AddOptions{Pin: true})
	assert.ErrorIs(t, err, context.Canceled)
}
