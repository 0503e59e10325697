package hamt

import (
	"fmt"

	bitfield "github.com/ipfs/go-bitfield"
)

// newBitfield 分配 fanout 位的位图，位置 i 在 bytes[len-1-i/8] 的第 i%8 位
// 序列化用 Bytes()：去掉高位的零字节，空位图序列化为 nil
func newBitfield(fanout int) bitfield.Bitfield {
	bf, err := bitfield.NewBitfield(fanout)
	if err != nil {
		// fanout 已经由 ValidateFanout 检查过
		panic(err)
	}
	return bf
}

// parseBitfield 接受比固定宽度短的输入 (高位的零字节被省略)，在左侧补齐
func parseBitfield(data []byte, fanout int) (bitfield.Bitfield, error) {
	bf, err := bitfield.FromBytes(fanout, data)
	if err != nil {
		return nil, fmt.Errorf("%w: bitfield of %d bytes exceeds fanout %d", ErrCorruptShard, len(data), fanout)
	}
	return bf, nil
}
