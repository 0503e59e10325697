package hamt

import (
	"context"
	"fmt"
	"testing"

	"dagvault/pkg/core"
	"dagvault/pkg/dag"
	"dagvault/pkg/errs"
	"dagvault/pkg/storage/memory"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 辅助工具
// -----------------------------------------------------------------------------

func newTestStore(t *testing.T) (*dag.Service, *memory.Adapter) {
	t.Helper()
	mem := memory.NewAdapter()
	svc, err := dag.NewService(mem, 64)
	require.NoError(t, err)
	return svc, mem
}

func mockCid(t *testing.T, input string) cid.Cid {
	t.Helper()
	id, err := core.CidBuilder{Version: 1, Codec: core.CodecRaw, HashAlg: "sha2-256"}.Sum([]byte(input))
	require.NoError(t, err)
	return id
}

func sameAt(t *testing.T, a, b string, depth, width int) bool {
	t.Helper()
	pa, err := hashAt(a, depth, width).next(width)
	require.NoError(t, err)
	pb, err := hashAt(b, depth, width).next(width)
	require.NoError(t, err)
	return pa == pb
}

// collidingNames 找到两个在第 0 层落在同一位置、第 1 层分开的名字
func collidingNames(t *testing.T, width int) (string, string, int) {
	t.Helper()
	seen := map[int]string{}
	for i := 0; i < 100000; i++ {
		name := fmt.Sprintf("file-%d", i)
		pos, err := hashAt(name, 0, width).next(width)
		require.NoError(t, err)
		if other, ok := seen[pos]; ok && !sameAt(t, other, name, 1, width) {
			return other, name, pos
		}
		seen[pos] = name
	}
	t.Fatal("no collision found")
	return "", "", 0
}

func mustFlushAndWrite(t *testing.T, svc *dag.Service, s *Shard) *FlushResult {
	t.Helper()
	res, err := s.Flush(dag.DefaultPutOptions())
	require.NoError(t, err)
	require.NoError(t, svc.PutBlocks(context.Background(), res.Blocks))
	return res
}

// -----------------------------------------------------------------------------
// 1. 哈希与位图
// -----------------------------------------------------------------------------

func TestBitfield_ReversedByteOrder(t *testing.T) {
	bf := newBitfield(16)
	bf.SetBit(0)
	assert.Equal(t, []byte{0x00, 0x01}, []byte(bf))
	// 序列化时去掉高位的零字节
	assert.Equal(t, []byte{0x01}, bf.Bytes())

	bf.SetBit(9)
	assert.Equal(t, []byte{0x02, 0x01}, bf.Bytes())
	assert.True(t, bf.Bit(9))
	assert.False(t, bf.Bit(8))
	assert.Equal(t, 2, bf.Ones())

	assert.Nil(t, newBitfield(256).Bytes(), "空位图序列化为空")
}

func TestBitfield_ParseShort(t *testing.T) {
	bf, err := parseBitfield([]byte{0x01}, 32)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0x01}, []byte(bf))
	assert.True(t, bf.Bit(0))
	assert.Equal(t, []byte{0x01}, bf.Bytes())

	// 补齐到固定宽度的旧格式也能读
	bf, err = parseBitfield([]byte{0, 0, 0, 0x01}, 32)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, bf.Bytes())

	empty, err := parseBitfield(nil, 32)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Ones())

	_, err = parseBitfield(make([]byte, 5), 32)
	assert.ErrorIs(t, err, ErrCorruptShard)
}

// 与 go-ipfs / js-ipfs 生成的分片目录逐字节一致:
// 名字 file-<i>，目标为 raw CIDv1("content-<i>")，大小 i+1，fanout 256，CIDv0
func TestShard_KnownVectors(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		entries int
		root    string
		depth   int
	}{
		{0, "Qma5kEnM5fEKTXrFC5zXYRy5QG3hcMWopoFS7ijhxx19qc", 0},
		{1, "QmYWjjERSev11aFEsLZqHzBvZ44ACpfjFR6UMJkA2LmDhj", 0},
		{3, "QmWPcdLGMVweGBaZYkdg3EcDUPm2u18U6mSPNL8Hq49xsK", 0},
		{50, "QmXwASJx7F1iKWAY6S1Zs8mkJtyRAtWfFUL5r9qKEXyf7Y", 1},
		{300, "QmUDnDwesPt5DTsbwc5nDcjjJ9adCEYDmXdhVMP2FHeCw2", 2},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("n=%d", tc.entries), func(t *testing.T) {
			svc, _ := newTestStore(t)
			s, err := NewShard(svc, 256)
			require.NoError(t, err)
			for i := 0; i < tc.entries; i++ {
				name := fmt.Sprintf("file-%d", i)
				target := mockCid(t, fmt.Sprintf("content-%d", i))
				require.NoError(t, s.Set(ctx, name, core.NewLink(name, uint64(i+1), target)))
			}
			res := mustFlushAndWrite(t, svc, s)
			assert.Equal(t, tc.root, res.Root.String())
			assert.Len(t, res.Blocks, countShards(t, svc, res.Root), "每个分片节点恰好一个块")
			assert.Equal(t, tc.depth, maxShardDepth(t, svc, res.Root, 0))
		})
	}
}

func TestShard_SingleEntryBitfieldTrimmed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestStore(t)
	s, err := NewShard(svc, 256)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "file-0", core.NewLink("file-0", 1, mockCid(t, "content-0"))))

	res := mustFlushAndWrite(t, svc, s)
	fs, err := core.UnmarshalUnixFS(res.Node.Data())
	require.NoError(t, err)
	// file-0 落在位置 0x9E (158)，只需要 20 个字节
	assert.Len(t, fs.Data, 20)
	assert.Equal(t, byte(0x40), fs.Data[0])
	assert.Equal(t, "9Efile-0", res.Node.Links()[0].Name)
}

func countShards(t *testing.T, svc *dag.Service, id cid.Cid) int {
	t.Helper()
	n, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	total := 1
	for _, l := range n.Links() {
		if len(l.Name) == 2 {
			total += countShards(t, svc, l.Cid)
		}
	}
	return total
}

func maxShardDepth(t *testing.T, svc *dag.Service, id cid.Cid, depth int) int {
	t.Helper()
	n, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	deepest := depth
	for _, l := range n.Links() {
		if len(l.Name) == 2 {
			deepest = max(deepest, maxShardDepth(t, svc, l.Cid, depth+1))
		}
	}
	return deepest
}

func TestHashBits_MaxDepth(t *testing.T) {
	hb := newHashBits("anything")
	for i := 0; i < 8; i++ {
		_, err := hb.next(8)
		require.NoError(t, err)
	}
	_, err := hb.next(8)
	assert.ErrorIs(t, err, ErrMaxDepth)
}

func TestHashBits_MSBFirst(t *testing.T) {
	hb := newHashBits("x")
	hi, err := hb.next(4)
	require.NoError(t, err)
	lo, err := hb.next(4)
	require.NoError(t, err)

	whole, err := newHashBits("x").next(8)
	require.NoError(t, err)
	assert.Equal(t, whole, hi<<4|lo)
}

func TestValidateFanout(t *testing.T) {
	for _, f := range []int{8, 16, 32, 64, 128, 256} {
		_, err := ValidateFanout(f)
		assert.NoError(t, err, "fanout %d", f)
	}
	for _, f := range []int{0, 4, 12, 512} {
		_, err := ValidateFanout(f)
		assert.ErrorIs(t, err, errs.ErrValidation, "fanout %d", f)
	}
}

// -----------------------------------------------------------------------------
// 2. 插入与查找
// -----------------------------------------------------------------------------

func TestShard_SetFind(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestStore(t)

	s, err := NewShard(svc, 256)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		name := fmt.Sprintf("entry-%d", i)
		require.NoError(t, s.Set(ctx, name, core.NewLink(name, uint64(i), mockCid(t, name))))
	}

	l, err := s.Find(ctx, "entry-7")
	require.NoError(t, err)
	assert.Equal(t, "entry-7", l.Name)
	assert.Equal(t, mockCid(t, "entry-7"), l.Cid)

	_, err = s.Find(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	// 替换而不是新增
	require.NoError(t, s.Set(ctx, "entry-7", core.NewLink("entry-7", 99, mockCid(t, "v2"))))
	count := 0
	require.NoError(t, s.ForEach(ctx, func(core.Link) error { count++; return nil }))
	assert.Equal(t, 50, count)

	l, err = s.Find(ctx, "entry-7")
	require.NoError(t, err)
	assert.Equal(t, uint64(99), l.Size)
}

func TestShard_CollisionCreatesSubShard(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestStore(t)

	a, b, pos := collidingNames(t, 8)
	s, err := NewShard(svc, 256)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, a, core.NewLink(a, 1, mockCid(t, a))))
	require.NoError(t, s.Set(ctx, b, core.NewLink(b, 2, mockCid(t, b))))

	res := mustFlushAndWrite(t, svc, s)

	// 根节点：冲突位置只剩一个纯前缀链接，指向子分片
	rootLinks := res.Node.Links()
	require.Len(t, rootLinks, 1)
	assert.Equal(t, Prefix(pos), rootLinks[0].Name)

	fs, err := core.UnixFSOf(res.Node)
	require.NoError(t, err)
	assert.Equal(t, core.THAMTShard, fs.Type)
	assert.Equal(t, uint64(256), fs.Fanout)
	assert.Equal(t, HashMurmur3, fs.HashType)

	// 子分片：恰好包含这两个叶子
	subNode, err := svc.Get(ctx, rootLinks[0].Cid)
	require.NoError(t, err)
	sub, err := Rehydrate(subNode, 1, pos)
	require.NoError(t, err)

	var names []string
	for _, l := range sub.Links() {
		require.Greater(t, len(l.Name), 2, "子分片中应该只有叶子")
		names = append(names, l.Name[2:])
	}
	assert.ElementsMatch(t, []string{a, b}, names)
	assert.Len(t, res.Blocks, 2, "子分片在前，根在后")
	assert.Equal(t, res.Root, res.Blocks[1].Cid())
}

// -----------------------------------------------------------------------------
// 3. 序列化往返
// -----------------------------------------------------------------------------

func TestShard_RehydrateRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestStore(t)

	// fanout 16 + 500 个条目，保证出现多层
	s, err := NewShard(svc, 16)
	require.NoError(t, err)
	for i := 0; i < 500; i++ {
		name := fmt.Sprintf("f%03d", i)
		require.NoError(t, s.Set(ctx, name, core.NewLink(name, 10, mockCid(t, name))))
	}
	res := mustFlushAndWrite(t, svc, s)
	require.Greater(t, len(res.Blocks), 1)

	for _, blk := range res.Blocks {
		n, err := svc.Get(ctx, blk.Cid())
		require.NoError(t, err)

		b, err := Rehydrate(n, 0, 0)
		require.NoError(t, err)

		// 不做修改重新序列化，链接和位图必须逐字节一致
		again, err := core.Encode(b.Node(), core.CodecDagPB)
		require.NoError(t, err)
		assert.Equal(t, blk.RawData(), again)
	}

	// 重新加载后能找回所有条目
	loaded, err := LoadShard(svc, res.Node)
	require.NoError(t, err)
	count := 0
	require.NoError(t, loaded.ForEach(ctx, func(core.Link) error { count++; return nil }))
	assert.Equal(t, 500, count)

	// 没有修改时 flush 得到相同的根
	again, err := loaded.Flush(dag.DefaultPutOptions())
	require.NoError(t, err)
	assert.Equal(t, res.Root, again.Root)
}

func TestRehydrate_BitfieldMismatch(t *testing.T) {
	fs := core.UnixFS{Type: core.THAMTShard, Data: []byte{0x00, 0x01}, HashType: HashMurmur3, Fanout: 16}
	// 位图只有位置 0，链接却在位置 1
	n := core.NewNode(fs.Marshal(), []core.Link{core.NewLink("01name", 1, mockCid(t, "x"))})
	_, err := Rehydrate(n, 0, 0)
	assert.ErrorIs(t, err, ErrCorruptShard)

	// 位图多出一个位置
	fs.Data = []byte{0x00, 0x03}
	n = core.NewNode(fs.Marshal(), []core.Link{core.NewLink("00name", 1, mockCid(t, "x"))})
	_, err = Rehydrate(n, 0, 0)
	assert.ErrorIs(t, err, ErrCorruptShard)

	// 不支持的哈希
	fs.HashType = 0x12
	_, err = Rehydrate(core.NewNode(fs.Marshal(), nil), 0, 0)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

// -----------------------------------------------------------------------------
// 4. 失败语义
// -----------------------------------------------------------------------------

func TestShard_FlushDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestStore(t)

	s, err := Build(ctx, svc, 256, []core.Link{
		core.NewLink("a", 1, mockCid(t, "a")),
		core.NewLink("b", 1, mockCid(t, "b")),
	})
	require.NoError(t, err)

	_, err = s.Flush(dag.DefaultPutOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, mem.Len())
}

func TestShard_MissingSubShardAbortsInsert(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestStore(t)

	a, b, _ := collidingNames(t, 8)
	s, err := Build(ctx, svc, 256, []core.Link{
		core.NewLink(a, 1, mockCid(t, a)),
		core.NewLink(b, 1, mockCid(t, b)),
	})
	require.NoError(t, err)
	res := mustFlushAndWrite(t, svc, s)

	// 删除子分片，并用新的 Service 避开缓存
	require.NoError(t, mem.Delete(ctx, res.Blocks[0].Cid()))
	fresh, err := dag.NewService(mem, 64)
	require.NoError(t, err)

	loaded, err := LoadShard(fresh, res.Node)
	require.NoError(t, err)

	// 任何落在该位置的名字都需要下降到子分片
	err = loaded.Set(ctx, a, core.NewLink(a, 5, mockCid(t, "new")))
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.False(t, loaded.Root().dirty, "失败的插入不能修改根")
}

func TestShard_MaxDepth(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestStore(t)

	s, err := NewShard(svc, 256)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "same", core.NewLink("same", 1, mockCid(t, "1"))))

	// 构造一个哈希完全相同的叶子：直接放进对应位置模拟 64 位全冲突
	hv := newHashBits("same")
	b := s.root
	for d := 0; d < 7; d++ {
		pos, err := hv.next(8)
		require.NoError(t, err)
		sub := newBucket(256, 8, d+1, pos)
		b.children[pos] = &entry{shard: true, sub: sub}
		b = sub
	}
	pos, err := hv.next(8)
	require.NoError(t, err)
	b.children[pos] = &entry{name: "twin", link: core.NewLink("twin", 1, mockCid(t, "twin"))}

	// "same" 在第 8 层与 "twin" 冲突，已经没有剩余比特可用
	err = s.Set(ctx, "same", core.NewLink("same", 2, mockCid(t, "2")))
	assert.ErrorIs(t, err, ErrMaxDepth)
}
