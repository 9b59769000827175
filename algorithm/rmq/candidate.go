// Package rmq 提供静态区间最小值（RMQ）与最近公共祖先（LCA）索引。
// 基于 RMQ ≡ LCA ≡ 笛卡尔树 的等价关系，预处理 O(N)，单次查询 O(1)。
// 所有结构一次构建、只读查询，构建完成后可被多个 goroutine 并发查询。
package rmq

import "cmp"

// Candidate 是带原始下标的区间最小值候选。
// Index < 0 表示单位元（无结果），任何有效候选都优于它。
type Candidate[T cmp.Ordered] struct {
	Value T
	Index int
}

// None 返回单位元候选。
func None[T cmp.Ordered]() Candidate[T] {
	return Candidate[T]{Index: -1}
}

// Valid 报告候选是否为有效结果。
func (c Candidate[T]) Valid() bool {
	return c.Index >= 0
}

// minCandidate 返回两者中较小的候选，值相同时取较小下标。
func minCandidate[T cmp.Ordered](a, b Candidate[T]) Candidate[T] {
	if !a.Valid() {
		return b
	}
	if !b.Valid() {
		return a
	}
	c := cmp.Compare(a.Value, b.Value)
	if c < 0 || (c == 0 && a.Index <= b.Index) {
		return a
	}
	return b
}
