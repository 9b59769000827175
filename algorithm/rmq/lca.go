package rmq

import "cmp"

// LCA 基于欧拉序与受限 RMQ 在 O(1) 时间内回答笛卡尔树上的最近公共祖先查询。
// 两个节点首次出现位置之间深度最小的位置即为它们的 LCA：
// 任何进入更深节点的路径都必须经由 LCA 返回。
type LCA[T cmp.Ordered] struct {
	tour *EulerTour[T]
	rmq  *RestrictedRMQ
}

// NewLCA 在树上构建 LCA 索引。树构建完成后不得再插入节点。
func NewLCA[T cmp.Ordered](tree *CartesianTree[T]) (*LCA[T], error) {
	tour, err := NewEulerTour(tree)
	if err != nil {
		return nil, err
	}
	return &LCA[T]{
		tour: tour,
		rmq:  newRestrictedRMQ(tour.levels),
	}, nil
}

// Query 返回节点 u 与 v 的最近公共祖先。
// 节点不属于被索引的树时返回 ErrInvalidNode。NodeID 即元素位置，不携带所属树的信息，
// 因此只按范围 [0, n) 判断归属：另一棵不小于本树的树上的句柄会被当作本树同位置的节点。
func (l *LCA[T]) Query(u, v NodeID) (NodeID, error) {
	if !l.contains(u) || !l.contains(v) {
		return NoNode, ErrInvalidNode
	}
	return l.query(u, v), nil
}

func (l *LCA[T]) contains(id NodeID) bool {
	return id >= 0 && int(id) < len(l.tour.first)
}

func (l *LCA[T]) query(u, v NodeID) NodeID {
	i, j := l.tour.first[u], l.tour.first[v]
	if i > j {
		i, j = j, i
	}
	return l.tour.tour[l.rmq.query(i, j).Index]
}

// Tour 返回底层欧拉序，其访问器只返回副本。
func (l *LCA[T]) Tour() *EulerTour[T] { return l.tour }

// Stats 返回底层受限 RMQ 的规模。
func (l *LCA[T]) Stats() Stats {
	s := l.rmq.Stats()
	s.Elements = len(l.tour.first)
	return s
}
