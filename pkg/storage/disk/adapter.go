package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"dagvault/pkg/core"
	"dagvault/pkg/storage"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("dagvault/storage/disk")

// Adapter 实现了 storage.Store 接口
type Adapter struct {
	rootPath string // 比如: /home/user/.dv/blocks
}

// NewAdapter 创建一个新的磁盘存储适配器
func NewAdapter(root string) (*Adapter, error) {
	// 确保根目录存在
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}
	return &Adapter{rootPath: root}, nil
}

// layout 返回块对应的物理路径
// 策略：取倒数第 3、2 个字符作为子目录 (next-to-last/2 sharding)
// multihash 的开头是固定的算法前缀，用尾部字符分布才均匀
// Example: key "1220...abcd" -> root/bc/1220...abcd
func (s *Adapter) layout(key string) string {
	if len(key) < 3 {
		return filepath.Join(s.rootPath, key)
	}
	return filepath.Join(s.rootPath, key[len(key)-3:len(key)-1], key)
}

func (s *Adapter) Put(ctx context.Context, blk core.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	targetPath := s.layout(storage.Key(blk.Cid()))

	// 1. 检查是否存在 (幂等性)
	if _, err := os.Stat(targetPath); err == nil {
		return nil
	}

	// 2. 准备目录
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// 3. 原子写入 (Atomic Write)
	// 先写到一个临时文件，然后 Rename，要么文件不存在，要么文件是完整的
	tempFile, err := os.CreateTemp(dir, "temp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(blk.RawData()); err != nil {
		tempFile.Close()
		return err
	}
	tempFile.Close() // 必须先关闭才能 Rename

	// 4. 移动到最终位置
	if err := os.Rename(tempFile.Name(), targetPath); err != nil {
		return err
	}
	log.Debugw("block written", "cid", blk.Cid(), "size", len(blk.RawData()))
	return nil
}

func (s *Adapter) Get(ctx context.Context, id cid.Cid) (io.ReadCloser, error) {
	f, err := os.Open(s.layout(storage.Key(id)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Adapter) Has(ctx context.Context, id cid.Cid) (bool, error) {
	_, err := os.Stat(s.layout(storage.Key(id)))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *Adapter) Delete(ctx context.Context, id cid.Cid) error {
	err := os.Remove(s.layout(storage.Key(id)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
