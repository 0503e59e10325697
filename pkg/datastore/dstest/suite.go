// Package dstest 是所有 datastore 后端共用的行为测试。
package dstest

import (
	"context"
	"testing"

	"dagvault/pkg/datastore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSuite 对一个后端执行全部检查
func RunSuite(t *testing.T, ds datastore.Datastore) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, ds) })
	t.Run("PutOverwrite", func(t *testing.T) { testPutOverwrite(t, ds) })
	t.Run("CompareAndSwap", func(t *testing.T) { testCompareAndSwap(t, ds) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, ds) })
}

func testGetMissing(t *testing.T, ds datastore.Datastore) {
	_, err := ds.Get(context.Background(), "/missing")
	assert.ErrorIs(t, err, datastore.ErrNotFound)
}

func testPutOverwrite(t *testing.T, ds datastore.Datastore) {
	ctx := context.Background()
	require.NoError(t, ds.Put(ctx, "/local/pins", []byte("v1")))
	require.NoError(t, ds.Put(ctx, "/local/pins", []byte("v2")))

	e, err := ds.Get(ctx, "/local/pins")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), e.Value)
	assert.Equal(t, int64(2), e.Version)
}

func testCompareAndSwap(t *testing.T, ds datastore.Datastore) {
	ctx := context.Background()
	key := "/local/filesroot"

	require.NoError(t, ds.CompareAndSwap(ctx, key, []byte("a"), 0))
	err := ds.CompareAndSwap(ctx, key, []byte("b"), 0)
	assert.ErrorIs(t, err, datastore.ErrConcurrentUpdate, "重复创建必须失败")

	require.NoError(t, ds.CompareAndSwap(ctx, key, []byte("b"), 1))
	err = ds.CompareAndSwap(ctx, key, []byte("c"), 1)
	assert.ErrorIs(t, err, datastore.ErrConcurrentUpdate, "过期版本必须失败")

	e, err := ds.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), e.Value)
	assert.Equal(t, int64(2), e.Version)
}

func testDelete(t *testing.T, ds datastore.Datastore) {
	ctx := context.Background()
	require.NoError(t, ds.Put(ctx, "/tmp", []byte("x")))
	require.NoError(t, ds.Delete(ctx, "/tmp"))
	require.NoError(t, ds.Delete(ctx, "/tmp"))

	_, err := ds.Get(ctx, "/tmp")
	assert.ErrorIs(t, err, datastore.ErrNotFound)
}
