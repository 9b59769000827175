package rmq

import (
	"log/slog"
	"math/bits"
)

// Stats 描述一个已构建索引的规模。
type Stats struct {
	Elements        int `json:"elements"`         // 原始序列长度。
	TourLength      int `json:"tour_length"`      // 受限 RMQ 覆盖的序列长度。
	BlockSize       int `json:"block_size"`       // 块长 L。
	Blocks          int `json:"blocks"`           // 块数。
	CanonicalTables int `json:"canonical_tables"` // 去重后的块表数。
	SparseLevels    int `json:"sparse_levels"`    // 块最小值倍增表的层数。
}

// RestrictedRMQ 是相邻元素恰好相差 ±1 的序列上的区间最小值结构。
// 序列被切成长度 L = ⌈½·log₂N⌉ 的块：块最小值上建倍增表，块内使用按形状共享的 BlockTable。
// 预处理 O(N)，查询 O(1)。
type RestrictedRMQ struct {
	blocks    []blockRef
	sparse    *SparseTable[int]
	n         int
	blockSize int
	tables    int
}

type blockRef struct {
	table *BlockTable
	min   int
}

// BlockSize 返回长度为 n 的序列使用的块长，至少为 1。
func BlockSize(n int) int {
	return max((bits.Len(uint(n))+1)/2, 1)
}

// NewRestrictedRMQ 在 ±1 序列上构建受限 RMQ。
func NewRestrictedRMQ(values []int) (*RestrictedRMQ, error) {
	if len(values) == 0 {
		slog.Error("RestrictedRMQ initialization failed: values is empty")
		return nil, ErrEmptyInput
	}
	if !IsUnitStep(values) {
		slog.Error("RestrictedRMQ initialization failed: neighbours must differ by exactly 1", "length", len(values))
		return nil, ErrNotUnitStep
	}
	return newRestrictedRMQ(values), nil
}

// newRestrictedRMQ 假定 values 非空且满足 ±1 性质。
func newRestrictedRMQ(values []int) *RestrictedRMQ {
	n := len(values)
	size := BlockSize(n)
	numBlocks := (n + size - 1) / size

	r := &RestrictedRMQ{
		blocks:    make([]blockRef, numBlocks),
		n:         n,
		blockSize: size,
	}

	tables := make(map[shapeKey]*BlockTable)
	mins := make([]Candidate[int], numBlocks)
	shape := make([]int, 0, size)

	for b := range numBlocks {
		start := b * size
		block := values[start:min(start+size, n)]

		m := Candidate[int]{Value: block[0], Index: start}
		for k := 1; k < len(block); k++ {
			if block[k] < m.Value {
				m = Candidate[int]{Value: block[k], Index: start + k}
			}
		}
		mins[b] = m

		key := canonicalKey(block)
		table, ok := tables[key]
		if !ok {
			shape = shape[:0]
			for _, v := range block {
				shape = append(shape, v-m.Value)
			}
			table = NewBlockTable(shape)
			tables[key] = table
		}
		r.blocks[b] = blockRef{table: table, min: m.Value}
	}

	r.sparse = newSparseTable(mins)
	r.tables = len(tables)
	return r
}

// Query 返回闭区间 [i, j] 的最小值及其下标，值相同时取最小下标。
func (r *RestrictedRMQ) Query(i, j int) (Candidate[int], error) {
	if i < 0 || i > j || j >= r.n {
		return None[int](), ErrOutOfRange
	}
	return r.query(i, j), nil
}

func (r *RestrictedRMQ) query(i, j int) Candidate[int] {
	size := r.blockSize
	bi, bj := i/size, j/size
	if bi == bj {
		return r.inBlock(bi, i-bi*size, j-bi*size)
	}

	// 左侧块后缀 + 中间整块 + 右侧块前缀。
	res := r.inBlock(bi, i-bi*size, size-1)
	if bi+1 <= bj-1 {
		res = minCandidate(res, r.sparse.query(bi+1, bj-1))
	}
	return minCandidate(res, r.inBlock(bj, 0, j-bj*size))
}

// inBlock 把块表的相对结果换算回原序列的值与下标。
func (r *RestrictedRMQ) inBlock(b, relI, relJ int) Candidate[int] {
	ref := r.blocks[b]
	c := ref.table.Query(relI, relJ)
	if !c.Valid() {
		return c
	}
	return Candidate[int]{Value: c.Value + ref.min, Index: b*r.blockSize + c.Index}
}

// Len 返回序列长度。
func (r *RestrictedRMQ) Len() int { return r.n }

// Stats 返回结构规模。
func (r *RestrictedRMQ) Stats() Stats {
	return Stats{
		Elements:        r.n,
		TourLength:      r.n,
		BlockSize:       r.blockSize,
		Blocks:          len(r.blocks),
		CanonicalTables: r.tables,
		SparseLevels:    r.sparse.Levels(),
	}
}
