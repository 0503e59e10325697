package storage

import (
	"context"
	"encoding/hex"
	"io"

	"dagvault/pkg/core"
	"dagvault/pkg/errs"

	"github.com/ipfs/go-cid"
)

var (
	// ErrNotFound 与全局分类一致，调用方可以直接 errors.Is(err, errs.ErrNotFound)
	ErrNotFound = errs.ErrNotFound
)

// Store defines the interface for a block storage backend.
// Implementations can be local disk, cloud storage, or in-memory storage.
type Store interface {
	// Put 将一个块持久化，重复写入同一个 CID 是幂等的
	Put(ctx context.Context, blk core.Block) error

	// Get 根据 CID 读取原始数据
	// 注意：这里返回的是 io.ReadCloser 而不是 []byte
	// 原因：为了支持大文件的流式读取 (Stream)，避免一次性把整个块读进内存
	Get(ctx context.Context, id cid.Cid) (io.ReadCloser, error)

	// Has 检查块是否存在 (用于去重逻辑)
	Has(ctx context.Context, id cid.Cid) (bool, error)

	// Delete 删除块，块不存在时不报错
	Delete(ctx context.Context, id cid.Cid) error
}

// Key 返回块在后端中的键
// 以 multihash 为键：内容相同但 CID 版本/编码不同的块共享一份数据
func Key(id cid.Cid) string {
	return hex.EncodeToString(id.Hash())
}
