package rmq

import "slices"

// BlockTable 对单个规范化块（每个元素减去块内最小值）暴力预计算所有子区间的最小值位置。
// 构建 O(L²)，查询 O(1)。形状相同的块共享同一张表。
type BlockTable struct {
	shape  []int
	argmin []uint8 // argmin[i*size+j]，仅 i <= j 有意义。
	size   int
}

// NewBlockTable 在规范化块 shape 上建表。块长度不超过 255。
func NewBlockTable(shape []int) *BlockTable {
	size := len(shape)
	t := &BlockTable{
		shape:  slices.Clone(shape),
		argmin: make([]uint8, size*size),
		size:   size,
	}
	for i := range size {
		best := i
		t.argmin[i*size+i] = uint8(i) //nolint:gosec // 块长度远小于 256。
		for j := i + 1; j < size; j++ {
			if shape[j] < shape[best] {
				best = j
			}
			t.argmin[i*size+j] = uint8(best) //nolint:gosec // 同上。
		}
	}
	return t
}

// Query 返回块内闭区间 [relI, relJ] 的最小相对值及其块内下标（取最左）。
// 区间非法时返回单位元。
func (t *BlockTable) Query(relI, relJ int) Candidate[int] {
	if relI < 0 || relI > relJ || relJ >= t.size {
		return None[int]()
	}
	k := int(t.argmin[relI*t.size+relJ])
	return Candidate[int]{Value: t.shape[k], Index: k}
}

// Size 返回块长度。
func (t *BlockTable) Size() int { return t.size }

// shapeKey 标识一个 ±1 块的规范形状：长度加上逐步升降的位图。
// 对 ±1 序列，步长模式唯一决定规范形状。
type shapeKey struct {
	size  int
	steps uint64
}

func canonicalKey(block []int) shapeKey {
	var steps uint64
	for k := 1; k < len(block); k++ {
		if block[k] > block[k-1] {
			steps |= 1 << (k - 1)
		}
	}
	return shapeKey{size: len(block), steps: steps}
}
