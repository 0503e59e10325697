package core

import (
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 辅助工具
// -----------------------------------------------------------------------------

// mockCid 生成一个合法的 CIDv1 raw，用于构造链接目标
func mockCid(t *testing.T, input string) cid.Cid {
	t.Helper()
	b := CidBuilder{Version: 1, Codec: CodecRaw, HashAlg: "sha2-256"}
	id, err := b.Sum([]byte(input))
	require.NoError(t, err)
	return id
}

// mustEncode 编码失败直接终止测试
func mustEncode(t *testing.T, n *Node, codec uint64, msgAndArgs ...any) []byte {
	t.Helper()
	data, err := Encode(n, codec)
	require.NoError(t, err, msgAndArgs...)
	return data
}
