// Package segtree 提供支持任意结合律运算的动态线段树。
package segtree

import (
	"log/slog"
	"sync"

	"github.com/wyfcoding/rmqindex/xerrors"
)

// SegmentTree (线段树) 在一个可增长的序列上维护结合律运算 op 的区间聚合值。
// 单点更新与区间查询均为 O(log N)；Append 通过容量翻倍扩容，扩容成本摊还 O(1)。
// op 只需满足结合律，不要求交换律：查询结果按从左到右的顺序聚合。
type SegmentTree[T any] struct {
	tree     []T // 隐式完全二叉树，tree[1] 为根，叶子位于 [capacity, 2*capacity)。
	size     int // 序列的逻辑长度。
	capacity int // 叶子层容量，始终为 2 的幂。
	op       func(a, b T) T
	identity T // op 的单位元，用于填充空叶子。
	mu       sync.RWMutex
}

// New 以 data 为初始序列创建线段树。
// op: 结合律运算；identity: op 的单位元，例如求和时为 0，求最小值时为类型最大值。
func New[T any](data []T, op func(a, b T) T, identity T) (*SegmentTree[T], error) {
	if op == nil {
		slog.Error("SegmentTree initialization failed: op is nil")
		return nil, xerrors.ErrInvalidInput.With("reason", "op is nil")
	}

	capacity := 1
	for capacity < len(data) {
		capacity <<= 1
	}

	st := &SegmentTree[T]{
		size:     len(data),
		capacity: capacity,
		op:       op,
		identity: identity,
	}
	st.tree = st.build(data, capacity)
	return st, nil
}

// build 分配 2*capacity 的节点数组，填充叶子后自底向上计算内部节点。
func (st *SegmentTree[T]) build(leaves []T, capacity int) []T {
	tree := make([]T, 2*capacity)
	for i := range capacity {
		if i < len(leaves) {
			tree[capacity+i] = leaves[i]
		} else {
			tree[capacity+i] = st.identity
		}
	}
	for i := capacity - 1; i >= 1; i-- {
		tree[i] = st.op(tree[2*i], tree[2*i+1])
	}
	return tree
}

// Len 返回序列长度。
func (st *SegmentTree[T]) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.size
}

// Get 返回位置 i 的元素。
func (st *SegmentTree[T]) Get(i int) (T, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if i < 0 || i >= st.size {
		var zero T
		return zero, xerrors.ErrOutOfRange.With("index", i).With("length", st.size)
	}
	return st.tree[st.capacity+i], nil
}

// Set 单点更新位置 i 的元素，并沿路径刷新祖先节点。
func (st *SegmentTree[T]) Set(i int, v T) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if i < 0 || i >= st.size {
		return xerrors.ErrOutOfRange.With("index", i).With("length", st.size)
	}
	st.set(i, v)
	return nil
}

func (st *SegmentTree[T]) set(i int, v T) {
	node := st.capacity + i
	st.tree[node] = v
	for node >>= 1; node >= 1; node >>= 1 {
		st.tree[node] = st.op(st.tree[2*node], st.tree[2*node+1])
	}
}

// Query 返回闭区间 [i, j] 上的聚合值，要求 0 <= i <= j < Len()。
func (st *SegmentTree[T]) Query(i, j int) (T, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if i < 0 || j >= st.size || i > j {
		var zero T
		return zero, xerrors.ErrOutOfRange.With("i", i).With("j", j).With("length", st.size)
	}

	// 左右两端分别向上收缩，resL 收集左侧片段，resR 收集右侧片段，保持从左到右的顺序。
	resL, resR := st.identity, st.identity
	l, r := i+st.capacity, j+st.capacity+1
	for l < r {
		if l&1 == 1 {
			resL = st.op(resL, st.tree[l])
			l++
		}
		if r&1 == 1 {
			r--
			resR = st.op(st.tree[r], resR)
		}
		l >>= 1
		r >>= 1
	}
	return st.op(resL, resR), nil
}

// Append 在序列末尾追加一个元素。叶子层已满时容量翻倍。
func (st *SegmentTree[T]) Append(v T) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.size == st.capacity {
		next := st.capacity * 2
		st.tree = st.build(st.tree[st.capacity:st.capacity+st.size], next)
		st.capacity = next
	}
	st.size++
	st.set(st.size-1, v)
}

// Pop 移除并返回最后一个元素。容量不回收。
func (st *SegmentTree[T]) Pop() (T, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.size == 0 {
		var zero T
		return zero, xerrors.ErrEmptyInput.With("reason", "pop from empty tree")
	}
	last := st.size - 1
	v := st.tree[st.capacity+last]
	st.set(last, st.identity)
	st.size--
	return v, nil
}

// Values 返回当前序列的副本。
func (st *SegmentTree[T]) Values() []T {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]T, st.size)
	copy(out, st.tree[st.capacity:st.capacity+st.size])
	return out
}
