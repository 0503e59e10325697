package chunker

// gearTable 是 FastCDC 的 256 项随机表，由固定种子的 splitmix64 生成
// 修改种子会改变所有切分点，也就改变所有已导入文件的 CID
var gearTable [256]uint64

const gearSeed uint64 = 0x6461677661756c74

func init() {
	x := gearSeed
	for i := range gearTable {
		x += 0x9e3779b97f4a7c15
		z := x
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		gearTable[i] = z ^ (z >> 31)
	}
}
