package client

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"dagvault/pkg/app"
	"dagvault/pkg/dirs"
	"dagvault/pkg/ingester"
	"dagvault/pkg/meta"
	"dagvault/pkg/server"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

func newTestClient(t *testing.T) (*DVClient, *app.App) {
	t.Helper()
	a, err := app.NewMemoryApp(context.Background(), t.TempDir(), dirs.DefaultOptions(), ingester.DefaultOptions())
	require.NoError(t, err)
	db, err := meta.NewSQLiteDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	a.Repository = meta.NewRepository(db)

	lis := bufconn.Listen(1 << 20)
	srv := server.New(a)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := NewDVClient("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, a
}

func TestUploadFile_ThenInstant(t *testing.T) {
	c, a := newTestClient(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "model.bin")
	data := bytes.Repeat([]byte{1, 2, 3, 4}, UploadChunkSize/2) // 2MB，多帧
	require.NoError(t, os.WriteFile(path, data, 0o644))

	// 1. 首次上传
	first, instant, err := c.UploadFile(ctx, path, false)
	require.NoError(t, err)
	assert.False(t, instant)

	// 2. 再次上传命中秒传，并补 pin
	second, instant, err := c.UploadFile(ctx, path, true)
	require.NoError(t, err)
	assert.True(t, instant)
	assert.Equal(t, first, second)

	id, err := cid.Decode(second)
	require.NoError(t, err)
	_, pinned, err := a.Pins.IsPinned(ctx, id)
	require.NoError(t, err)
	assert.True(t, pinned)

	// 3. 读回
	var out bytes.Buffer
	require.NoError(t, c.Cat(ctx, second, &out))
	assert.Equal(t, data, out.Bytes())
}

func TestUploadFile_Missing(t *testing.T) {
	c, _ := newTestClient(t)
	_, _, err := c.UploadFile(context.Background(), filepath.Join(t.TempDir(), "nope"), false)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
