// Package graph 提供有根树上的最近公共祖先查询。
package graph

import (
	"log/slog"

	"github.com/wyfcoding/rmqindex/algorithm/rmq"
	"github.com/wyfcoding/rmqindex/xerrors"
)

// TreeLCA 基于欧拉序 + 受限 RMQ 实现最近公共祖先查询。
// 预处理 O(N)，单次查询 O(1)。
type TreeLCA struct {
	tour  []int // 欧拉序中的节点编号。
	first []int // 节点在欧拉序中的首次出现位置，不可达节点为 -1。
	depth []int // 节点深度，不可达节点为 -1。
	rmq   *rmq.RestrictedRMQ
}

// NewTreeLCA 以 root 为根构建 LCA 查询实例。
// adj 可以是孩子列表，也可以是无向邻接表：指回父节点的边会被忽略。
// 从 root 出发若遇到环或越界的邻居，返回 ErrInvalidInput。
func NewTreeLCA(root int, adj [][]int) (*TreeLCA, error) {
	n := len(adj)
	if n == 0 {
		slog.Error("TreeLCA initialization failed: adjacency is empty")
		return nil, xerrors.ErrEmptyInput
	}
	if root < 0 || root >= n {
		slog.Error("TreeLCA initialization failed: root out of range", "root", root, "nodes", n)
		return nil, xerrors.ErrInvalidNode.With("root", root)
	}

	lca := &TreeLCA{
		tour:  make([]int, 0, 2*n-1),
		first: make([]int, n),
		depth: make([]int, n),
	}
	for i := range n {
		lca.first[i] = -1
		lca.depth[i] = -1
	}

	levels, err := lca.iterativeDFS(root, adj)
	if err != nil {
		slog.Error("TreeLCA initialization failed", "error", err)
		return nil, err
	}

	r, err := rmq.NewRestrictedRMQ(levels)
	if err != nil {
		return nil, err
	}
	lca.rmq = r
	return lca, nil
}

type stackItem struct {
	v, p int
	next int // 下一个待访问的邻居下标。
}

// iterativeDFS 显式栈深度优先遍历，生成欧拉序及对应深度序列。
func (lca *TreeLCA) iterativeDFS(root int, adj [][]int) ([]int, error) {
	levels := make([]int, 0, 2*len(adj)-1)
	visit := func(v, d int) {
		lca.first[v] = len(lca.tour)
		lca.depth[v] = d
		lca.tour = append(lca.tour, v)
		levels = append(levels, d)
	}

	visit(root, 0)
	stack := []stackItem{{v: root, p: -1}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(adj[top.v]) {
			u := adj[top.v][top.next]
			top.next++
			if u == top.p {
				continue
			}
			if u < 0 || u >= len(adj) {
				return nil, xerrors.ErrInvalidInput.With("node", top.v).With("neighbour", u)
			}
			if lca.depth[u] != -1 {
				return nil, xerrors.ErrInvalidInput.With("reason", "cycle").With("node", u)
			}
			visit(u, lca.depth[top.v]+1)
			stack = append(stack, stackItem{v: u, p: top.v})
			continue
		}

		stack = stack[:len(stack)-1]
		if len(stack) > 0 {
			parent := stack[len(stack)-1].v
			lca.tour = append(lca.tour, parent)
			levels = append(levels, lca.depth[parent])
		}
	}
	return levels, nil
}

func (lca *TreeLCA) reachable(v int) bool {
	return v >= 0 && v < len(lca.first) && lca.first[v] >= 0
}

// GetLCA 查询两个节点的最近公共祖先。
// 节点越界或不可从根到达时返回 ErrInvalidNode。
func (lca *TreeLCA) GetLCA(u, v int) (int, error) {
	if !lca.reachable(u) || !lca.reachable(v) {
		return -1, xerrors.ErrInvalidNode.With("u", u).With("v", v)
	}

	i, j := lca.first[u], lca.first[v]
	if i > j {
		i, j = j, i
	}
	c, err := lca.rmq.Query(i, j)
	if err != nil {
		return -1, err
	}
	return lca.tour[c.Index], nil
}

// GetDistance 计算两个节点之间的距离（边数）。
func (lca *TreeLCA) GetDistance(u, v int) (int, error) {
	w, err := lca.GetLCA(u, v)
	if err != nil {
		return 0, err
	}
	return lca.depth[u] + lca.depth[v] - 2*lca.depth[w], nil
}

// Depth 返回节点深度，不可达节点返回 -1。
func (lca *TreeLCA) Depth(v int) int {
	if v < 0 || v >= len(lca.depth) {
		return -1
	}
	return lca.depth[v]
}
