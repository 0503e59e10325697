package meta

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 通用辅助函数 (Helpers)
// -----------------------------------------------------------------------------

// mustCAS 强制 CAS 更新，失败则终止
// 适用于 Happy Path (预期成功的场景)
func mustCAS(t *testing.T, repo *Repository, key string, value []byte, oldVersion int64, msgAndArgs ...any) {
	t.Helper()
	err := repo.CompareAndSwapKV(context.Background(), key, value, oldVersion)
	require.NoError(t, err, msgAndArgs...)
}

// mustGetKV 读取记录，失败则终止
func mustGetKV(t *testing.T, repo *Repository, key string) *KVRecord {
	t.Helper()
	rec, err := repo.GetKV(context.Background(), key)
	require.NoError(t, err)
	return rec
}
