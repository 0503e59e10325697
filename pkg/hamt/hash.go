package hamt

import (
	"encoding/binary"
	"fmt"

	"github.com/spaolacci/murmur3"
)

// HashMurmur3 是 murmur3-x64-64 的 multicodec 编号，写入 UnixFS 的 hashType
const HashMurmur3 uint64 = 0x22

// hashBits 按 MSB-first 的顺序逐层消费名字哈希的比特
type hashBits struct {
	v        uint64
	consumed int
}

func newHashBits(name string) *hashBits {
	h := murmur3.New64()
	h.Write([]byte(name))
	return &hashBits{v: binary.BigEndian.Uint64(h.Sum(nil))}
}

// hashAt 返回一个已经跳过 depth 层的游标
func hashAt(name string, depth, width int) *hashBits {
	hb := newHashBits(name)
	hb.consumed = depth * width
	return hb
}

// next 取出下一层的位置
func (hb *hashBits) next(width int) (int, error) {
	if hb.consumed+width > 64 {
		return 0, fmt.Errorf("%w: %d bits consumed", ErrMaxDepth, hb.consumed)
	}
	pos := (hb.v << hb.consumed) >> (64 - width)
	hb.consumed += width
	return int(pos), nil
}
