package rmq

import (
	"cmp"
	"log/slog"
)

// RangeMin 是任意有序序列上的区间最小值索引：
// 序列 → 笛卡尔树 → 欧拉序 → 受限 RMQ。
// 区间 [i, j] 的最小值就是节点 i 与 j 的 LCA 上的值（堆序），
// 重复值时返回最小下标。
type RangeMin[T cmp.Ordered] struct {
	tree *CartesianTree[T]
	lca  *LCA[T]
}

// NewRangeMin 在 values 上构建索引。values 在构建后不再被引用。
func NewRangeMin[T cmp.Ordered](values []T) (*RangeMin[T], error) {
	if len(values) == 0 {
		slog.Error("RangeMin initialization failed: values is empty")
		return nil, ErrEmptyInput
	}

	tree := NewCartesianTree[T](len(values))
	tree.InsertAll(values)

	lca, err := NewLCA(tree)
	if err != nil {
		return nil, err
	}
	return &RangeMin[T]{tree: tree, lca: lca}, nil
}

// Query 返回闭区间 [i, j] 的最小值及其下标，要求 0 <= i <= j < Len()。
func (r *RangeMin[T]) Query(i, j int) (T, int, error) {
	if i < 0 || i > j || j >= r.tree.Len() {
		var zero T
		return zero, -1, ErrOutOfRange
	}
	// 节点句柄即其在序列中的位置。
	id := r.lca.query(NodeID(i), NodeID(j))
	return r.tree.nodes[id].Value, int(id), nil
}

// At 返回下标 i 处的原始值。
func (r *RangeMin[T]) At(i int) (T, error) {
	if i < 0 || i >= r.tree.Len() {
		var zero T
		return zero, ErrOutOfRange
	}
	return r.tree.nodes[i].Value, nil
}

// Len 返回序列长度。
func (r *RangeMin[T]) Len() int { return r.tree.Len() }

// Tree 返回底层笛卡尔树。
func (r *RangeMin[T]) Tree() *CartesianTree[T] { return r.tree }

// LCA 返回底层 LCA 索引。
func (r *RangeMin[T]) LCA() *LCA[T] { return r.lca }

// Stats 返回索引规模。
func (r *RangeMin[T]) Stats() Stats { return r.lca.Stats() }
