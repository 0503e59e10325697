package memory

import (
	"context"
	"io"
	"testing"

	"dagvault/pkg/core"
	"dagvault/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAdapter(t *testing.T) {
	ctx := context.Background()
	store := NewAdapter()

	data := []byte("hello world")
	id, err := core.DefaultCidBuilder.Sum(data)
	require.NoError(t, err)

	// 1. Put 幂等
	require.NoError(t, store.Put(ctx, core.NewBlock(id, data)))
	require.NoError(t, store.Put(ctx, core.NewBlock(id, data)))
	assert.Equal(t, 1, store.Len())

	// 2. Has / Get
	ok, err := store.Has(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := store.Get(ctx, id)
	require.NoError(t, err)
	got, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, data, got)

	// 3. Delete 后读不到
	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
