package rmq

import (
	"cmp"
	"log/slog"
	"math/bits"
)

// SparseTable 是静态倍增表。
// rows[p][i] 保存区间 [i, i+2^p-1] 的最小值及其下标，越界的格子为单位元。
// 预处理 O(N log N)，查询 O(1)。
type SparseTable[T cmp.Ordered] struct {
	rows [][]Candidate[T]
	n    int
}

// NewSparseTable 在 values 上构建倍增表。
func NewSparseTable[T cmp.Ordered](values []T) (*SparseTable[T], error) {
	if len(values) == 0 {
		slog.Error("SparseTable initialization failed: values is empty")
		return nil, ErrEmptyInput
	}

	base := make([]Candidate[T], len(values))
	for i, v := range values {
		base[i] = Candidate[T]{Value: v, Index: i}
	}
	return newSparseTable(base), nil
}

// newSparseTable 直接在候选上建表，保留候选自带的下标。
func newSparseTable[T cmp.Ordered](base []Candidate[T]) *SparseTable[T] {
	n := len(base)
	levels := bits.Len(uint(n)) // floor(log2(n)) + 1
	rows := make([][]Candidate[T], levels)
	rows[0] = base

	for p := 1; p < levels; p++ {
		width := 1 << p
		half := width >> 1
		prev := rows[p-1]
		row := make([]Candidate[T], n)
		for i := range n {
			if i+width > n {
				row[i] = None[T]()
				continue
			}
			row[i] = minCandidate(prev[i], prev[i+half])
		}
		rows[p] = row
	}

	return &SparseTable[T]{rows: rows, n: n}
}

// Query 返回闭区间 [i, j] 的最小值及其下标。
func (st *SparseTable[T]) Query(i, j int) (Candidate[T], error) {
	if i < 0 || i > j || j >= st.n {
		return None[T](), ErrOutOfRange
	}
	return st.query(i, j), nil
}

// query 两段长度为 2^p 的区间可以重叠，取最小值是幂等的。
func (st *SparseTable[T]) query(i, j int) Candidate[T] {
	p := bits.Len(uint(j-i+1)) - 1
	return minCandidate(st.rows[p][i], st.rows[p][j-(1<<p)+1])
}

// Len 返回序列长度。
func (st *SparseTable[T]) Len() int { return st.n }

// Levels 返回倍增层数。
func (st *SparseTable[T]) Levels() int { return len(st.rows) }
