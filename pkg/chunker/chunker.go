// Package chunker 实现 FastCDC 内容定义切分。
package chunker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
)

// 默认切分参数 (单位: 字节)
const (
	MinSize   = 64 * 1024
	AvgSize   = 256 * 1024
	MaxSize   = 1024 * 1024
	NormLevel = 2
)

// Config 切分参数，AvgSize 必须是 2 的幂
type Config struct {
	MinSize int
	AvgSize int
	MaxSize int
}

func DefaultConfig() Config {
	return Config{MinSize: MinSize, AvgSize: AvgSize, MaxSize: MaxSize}
}

func (c Config) Validate() error {
	switch {
	case c.MinSize <= 0 || c.AvgSize <= c.MinSize || c.MaxSize <= c.AvgSize:
		return fmt.Errorf("chunker: need 0 < min < avg < max, got %d/%d/%d", c.MinSize, c.AvgSize, c.MaxSize)
	case bits.OnesCount(uint(c.AvgSize)) != 1:
		return fmt.Errorf("chunker: avg size %d is not a power of two", c.AvgSize)
	case bits.Len(uint(c.AvgSize))-1 <= NormLevel:
		return fmt.Errorf("chunker: avg size %d too small", c.AvgSize)
	}
	return nil
}

// Chunker 是一个无状态的切分工具
type Chunker struct {
	cfg   Config
	maskS uint64
	maskL uint64
}

// NewChunker 使用默认参数
func NewChunker() *Chunker {
	c, _ := New(DefaultConfig())
	return c
}

func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := int(math.Round(math.Log2(float64(cfg.AvgSize))))
	return &Chunker{
		cfg:   cfg,
		maskS: uint64(1<<(b+NormLevel)) - 1,
		maskL: uint64(1<<(b-NormLevel)) - 1,
	}, nil
}

func (c *Chunker) Config() Config { return c.cfg }

// next 返回 data 开头第一个块的长度
// 结果只依赖 data 的前 MaxSize 字节
func (c *Chunker) next(data []byte) int {
	n := len(data)
	// 1. 剩余不足最小块，整体作为最后一块
	if n <= c.cfg.MinSize {
		return n
	}

	fp := uint64(0)
	idx := c.cfg.MinSize
	normLimit := min(c.cfg.AvgSize, n)
	maxLimit := min(c.cfg.MaxSize, n)

	scan := func(limit int, mask uint64) bool {
		for ; idx < limit; idx++ {
			fp = (fp << 1) + gearTable[data[idx]]
			if (fp & mask) == 0 {
				idx++
				return true
			}
		}
		return false
	}

	// A. 归一化区域 (严掩码)
	if scan(normLimit, c.maskS) {
		return idx
	}
	// B. 普通区域 (宽掩码)
	if scan(maxLimit, c.maskL) {
		return idx
	}
	// C. 强制切分
	return maxLimit
}

// Cut 返回所有块的结束 offset，最后一个总是 len(data)
func (c *Chunker) Cut(data []byte) []int {
	var cutPoints []int
	offset := 0
	for offset < len(data) {
		offset += c.next(data[offset:])
		cutPoints = append(cutPoints, offset)
	}
	return cutPoints
}

// Split 流式切分 r，对每个块调用 fn
// fn 收到的切片在下一次调用后失效
func (c *Chunker) Split(ctx context.Context, r io.Reader, fn func(chunk []byte) error) error {
	buf := make([]byte, 0, 2*c.cfg.MaxSize)
	eof := false

	for {
		// 1. 补满缓冲区，至少保证 MaxSize 字节可见
		for !eof && len(buf) < c.cfg.MaxSize {
			n, err := r.Read(buf[len(buf):cap(buf)])
			buf = buf[:len(buf)+n]
			if errors.Is(err, io.EOF) {
				eof = true
				break
			}
			if err != nil {
				return fmt.Errorf("chunker: read: %w", err)
			}
		}
		if len(buf) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// 2. 切出一块
		size := c.next(buf)
		if err := fn(buf[:size]); err != nil {
			return err
		}

		// 3. 把剩余部分移到开头
		rest := copy(buf, buf[size:])
		buf = buf[:rest]
	}
}
