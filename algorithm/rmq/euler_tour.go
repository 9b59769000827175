package rmq

import (
	"cmp"
	"log/slog"
	"slices"
)

// EulerTour 是笛卡尔树的欧拉序及其深度序列，构建后只读。
// 欧拉序中相邻两项在树上相邻，levels[k] 为 tour[k] 的深度，相邻深度恰好相差 1。
// first[id] 为节点 id 在欧拉序中第一次出现的位置。
type EulerTour[T cmp.Ordered] struct {
	tree   *CartesianTree[T]
	tour   []NodeID
	levels []int
	first  []int
	depth  []int
}

// tourFrame 是迭代遍历时的栈帧。
// stage 0: 首次访问；1: 左子树返回；2: 右子树返回。
type tourFrame struct {
	id    NodeID
	stage uint8
}

// NewEulerTour 遍历整棵树生成欧拉序、深度序列与首次出现位置。
// 叶子只出现一次；内部节点在每个子树之前出现一次，并在最后一个子树之后再出现一次。
func NewEulerTour[T cmp.Ordered](tree *CartesianTree[T]) (*EulerTour[T], error) {
	if tree == nil || tree.Len() == 0 {
		slog.Error("EulerTour initialization failed: tree is empty")
		return nil, ErrEmptyInput
	}

	n := tree.Len()
	et := &EulerTour[T]{
		tree:   tree,
		tour:   make([]NodeID, 0, 2*n-1),
		levels: make([]int, 0, 2*n-1),
		first:  make([]int, n),
		depth:  make([]int, n),
	}
	for i := range et.first {
		et.first[i] = -1
	}

	et.computeDepths()
	et.walk()
	return et, nil
}

// computeDepths 先序遍历，根深度为 0。
func (et *EulerTour[T]) computeDepths() {
	nodes := et.tree.nodes
	stack := []NodeID{et.tree.root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		d := et.depth[id] + 1
		if l := nodes[id].Left; l != NoNode {
			et.depth[l] = d
			stack = append(stack, l)
		}
		if r := nodes[id].Right; r != NoNode {
			et.depth[r] = d
			stack = append(stack, r)
		}
	}
}

func (et *EulerTour[T]) walk() {
	nodes := et.tree.nodes
	stack := []tourFrame{{id: et.tree.root}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		et.emit(f.id)

		node := nodes[f.id]
		switch f.stage {
		case 0:
			if node.Left != NoNode {
				stack = append(stack, tourFrame{id: f.id, stage: 1}, tourFrame{id: node.Left})
			} else if node.Right != NoNode {
				stack = append(stack, tourFrame{id: f.id, stage: 2}, tourFrame{id: node.Right})
			}
		case 1:
			if node.Right != NoNode {
				stack = append(stack, tourFrame{id: f.id, stage: 2}, tourFrame{id: node.Right})
			}
		}
	}
}

func (et *EulerTour[T]) emit(id NodeID) {
	if et.first[id] < 0 {
		et.first[id] = len(et.tour)
	}
	et.tour = append(et.tour, id)
	et.levels = append(et.levels, et.depth[id])
}

// Len 返回欧拉序长度，为 2n-1。
func (et *EulerTour[T]) Len() int { return len(et.tour) }

// Tour 返回欧拉序的副本。
func (et *EulerTour[T]) Tour() []NodeID { return slices.Clone(et.tour) }

// Levels 返回深度序列的副本。
func (et *EulerTour[T]) Levels() []int { return slices.Clone(et.levels) }

// First 返回节点 id 第一次出现的位置，id 不在树中时返回 -1。
func (et *EulerTour[T]) First(id NodeID) int {
	if id < 0 || int(id) >= len(et.first) {
		return -1
	}
	return et.first[id]
}

// Depth 返回节点深度。
func (et *EulerTour[T]) Depth(id NodeID) int { return et.depth[id] }

// Tree 返回被遍历的树。
func (et *EulerTour[T]) Tree() *CartesianTree[T] { return et.tree }

// IsUnitStep 报告序列中相邻元素是否都恰好相差 1。
func IsUnitStep(values []int) bool {
	for k := 1; k < len(values); k++ {
		if d := values[k] - values[k-1]; d != 1 && d != -1 {
			return false
		}
	}
	return true
}
