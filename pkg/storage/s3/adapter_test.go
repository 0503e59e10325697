package s3

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"dagvault/pkg/core"
	"dagvault/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 检查本地 MinIO 端口是否开放 (9000)
// 如果没开，跳过测试，避免报错干扰
func isMinIOAvailable(t *testing.T, host string) bool {
	conn, err := net.DialTimeout("tcp", host, 1*time.Second)
	if err != nil {
		t.Logf("⚠️ MinIO not reachable at %s. Skipping integration tests.", host)
		return false
	}
	conn.Close()
	return true
}

func TestS3Adapter_Integration(t *testing.T) {
	// A. 环境检查
	if !isMinIOAvailable(t, "localhost:9000") {
		t.Skip("Skipping S3 integration tests (MinIO down)")
	}

	// B. 初始化 Adapter
	cfg := Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		Bucket:          "dagvault-test-bucket",
		AccessKeyID:     "admin",
		SecretAccessKey: "password",
	}

	ctx := context.Background()
	store, err := NewAdapter(ctx, cfg)
	require.NoError(t, err, "Failed to connect to MinIO")

	// C. 准备测试数据
	data := []byte("Hello S3 World from dagvault " + time.Now().String())
	id, err := core.CidBuilder{Version: 1, Codec: core.CodecRaw, HashAlg: "sha2-256"}.Sum(data)
	require.NoError(t, err)
	missing, err := core.DefaultCidBuilder.Sum([]byte("never written"))
	require.NoError(t, err)

	t.Run("Put", func(t *testing.T) {
		assert.NoError(t, store.Put(ctx, core.NewBlock(id, data)))
	})

	t.Run("Has", func(t *testing.T) {
		exists, err := store.Has(ctx, id)
		assert.NoError(t, err)
		assert.True(t, exists, "Block should exist in S3")

		exists, _ = store.Has(ctx, missing)
		assert.False(t, exists, "Non-existent block should return false")
	})

	t.Run("Get", func(t *testing.T) {
		reader, err := store.Get(ctx, id)
		require.NoError(t, err)
		defer reader.Close()

		content, err := io.ReadAll(reader)
		assert.NoError(t, err)
		assert.Equal(t, data, content, "Content read from S3 should match")

		_, err = store.Get(ctx, missing)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, id))
		exists, err := store.Has(ctx, id)
		assert.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestTransformKey(t *testing.T) {
	s := &Adapter{}
	id, err := core.DefaultCidBuilder.Sum([]byte("x"))
	require.NoError(t, err)

	key := storage.Key(id)
	assert.Equal(t, "blocks/"+key[len(key)-3:len(key)-1]+"/"+key, s.transformKey(id))
}
