package rmq

import (
	"cmp"
	"iter"
)

// NodeID 是笛卡尔树节点在树内部节点池中的句柄，等于该节点值在原序列中的位置。
type NodeID int

// NoNode 表示不存在的节点（空子树、根的父节点）。
const NoNode NodeID = -1

// Node 是笛卡尔树的节点。
// Parent 仅用于沿右链向上回溯，不承担所有权。
type Node[T cmp.Ordered] struct {
	Value  T
	Left   NodeID
	Right  NodeID
	Parent NodeID
}

// CartesianTree 实现了在线构建的笛卡尔树（小根堆序）。
// 中序遍历等于插入序列，且每个节点的值不大于其子节点的值。
// 节点存放在连续的节点池中，树独占所有节点。
type CartesianTree[T cmp.Ordered] struct {
	nodes []Node[T]
	root  NodeID
	last  NodeID // 最近插入的节点，即右链的末端。
}

// NewCartesianTree 创建一棵空树，capacity 为预估的元素个数。
func NewCartesianTree[T cmp.Ordered](capacity int) *CartesianTree[T] {
	return &CartesianTree[T]{
		nodes: make([]Node[T], 0, max(capacity, 0)),
		root:  NoNode,
		last:  NoNode,
	}
}

// Insert 在序列末尾追加一个值，返回新节点的句柄。
// 右链充当隐式单调栈，均摊 O(1)。相等的值不会弹出右链，重复值保持稳定。
func (t *CartesianTree[T]) Insert(value T) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node[T]{Value: value, Left: NoNode, Right: NoNode, Parent: NoNode})

	if t.root == NoNode {
		t.root = id
		t.last = id
		return id
	}

	cur := t.last
	for t.nodes[cur].Parent != NoNode && cmp.Compare(t.nodes[cur].Value, value) > 0 {
		cur = t.nodes[cur].Parent
	}

	if t.nodes[cur].Parent == NoNode && cmp.Compare(t.nodes[cur].Value, value) > 0 {
		// 新值小于整条右链，成为新的根。
		t.setLeft(id, cur)
		t.root = id
	} else {
		t.setLeft(id, t.nodes[cur].Right)
		t.setRight(cur, id)
	}

	t.last = id
	return id
}

// InsertAll 依次插入 values，按序列顺序返回各节点句柄。
func (t *CartesianTree[T]) InsertAll(values []T) []NodeID {
	ids := make([]NodeID, 0, len(values))
	for _, v := range values {
		ids = append(ids, t.Insert(v))
	}
	return ids
}

func (t *CartesianTree[T]) setLeft(parent, child NodeID) {
	t.nodes[parent].Left = child
	if child != NoNode {
		t.nodes[child].Parent = parent
	}
}

func (t *CartesianTree[T]) setRight(parent, child NodeID) {
	t.nodes[parent].Right = child
	if child != NoNode {
		t.nodes[child].Parent = parent
	}
}

// Values 返回按中序遍历产出节点值的惰性序列，可重复遍历。
func (t *CartesianTree[T]) Values() iter.Seq[T] {
	return func(yield func(T) bool) {
		stack := make([]NodeID, 0, 32)
		cur := t.root
		for cur != NoNode || len(stack) > 0 {
			for cur != NoNode {
				stack = append(stack, cur)
				cur = t.nodes[cur].Left
			}
			cur = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(t.nodes[cur].Value) {
				return
			}
			cur = t.nodes[cur].Right
		}
	}
}

// Root 返回根节点句柄，空树返回 NoNode。
func (t *CartesianTree[T]) Root() NodeID { return t.root }

// Len 返回节点个数。
func (t *CartesianTree[T]) Len() int { return len(t.nodes) }

// Contains 报告 id 是否为本树的节点。
func (t *CartesianTree[T]) Contains(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// Node 返回节点的副本。调用方需保证 id 有效。
func (t *CartesianTree[T]) Node(id NodeID) Node[T] { return t.nodes[id] }

// Value 返回节点的值。
func (t *CartesianTree[T]) Value(id NodeID) T { return t.nodes[id].Value }

// Left 返回左子节点。
func (t *CartesianTree[T]) Left(id NodeID) NodeID { return t.nodes[id].Left }

// Right 返回右子节点。
func (t *CartesianTree[T]) Right(id NodeID) NodeID { return t.nodes[id].Right }

// Parent 返回父节点。
func (t *CartesianTree[T]) Parent(id NodeID) NodeID { return t.nodes[id].Parent }

// IsLeaf 报告节点是否没有子节点。
func (t *CartesianTree[T]) IsLeaf(id NodeID) bool {
	n := t.nodes[id]
	return n.Left == NoNode && n.Right == NoNode
}

// Position 返回节点值在原序列中的下标。
func (t *CartesianTree[T]) Position(id NodeID) int { return int(id) }
