package rmq

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(values []int) *CartesianTree[int] {
	tree := NewCartesianTree[int](len(values))
	tree.InsertAll(values)
	return tree
}

// ancestors 返回从 id 到根的路径（含自身）。
func ancestors(tree *CartesianTree[int], id NodeID) []NodeID {
	var path []NodeID
	for ; id != NoNode; id = tree.Parent(id) {
		path = append(path, id)
	}
	return path
}

func TestEulerTour_Example(t *testing.T) {
	tree := buildTree([]int{4, 1, 6, 2, 8, 0})
	et, err := NewEulerTour(tree)
	require.NoError(t, err)

	assert.Equal(t, []NodeID{5, 1, 0, 1, 3, 2, 3, 4, 3, 1, 5}, et.Tour())
	assert.Equal(t, []int{0, 1, 2, 1, 2, 3, 2, 3, 2, 1, 0}, et.Levels())
	for id, want := range []int{2, 1, 5, 4, 7, 0} {
		assert.Equal(t, want, et.First(NodeID(id)))
	}
	assert.Equal(t, -1, et.First(6))
	assert.Equal(t, -1, et.First(NoNode))
	assert.Equal(t, 11, et.Len())
	assert.Equal(t, 3, et.Depth(2))
}

func TestEulerTour_Properties(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for _, n := range []int{1, 2, 5, 33, 400} {
		tree := buildTree(randomInts(r, n, 50))
		et, err := NewEulerTour(tree)
		require.NoError(t, err)

		tour := et.Tour()
		assert.Len(t, tour, 2*n-1)
		assert.True(t, IsUnitStep(et.Levels()), "levels must step by exactly one")
		for k := 1; k < len(tour); k++ {
			a, b := tour[k-1], tour[k]
			assert.True(t, tree.Parent(a) == b || tree.Parent(b) == a, "tour entries %d and %d are not adjacent", a, b)
		}
		for id := range NodeID(n) {
			pos := et.First(id)
			assert.Equal(t, id, tour[pos])
			for k := 0; k < pos; k++ {
				assert.NotEqual(t, id, tour[k])
			}
		}
	}
}

func TestEulerTour_Empty(t *testing.T) {
	_, err := NewEulerTour(NewCartesianTree[int](0))
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestLCA_Example(t *testing.T) {
	tree := buildTree([]int{4, 1, 6, 2, 8, 0})
	lca, err := NewLCA(tree)
	require.NoError(t, err)

	cases := []struct {
		u, v NodeID
		want int
	}{
		{u: 4, v: 3, want: 2}, // 8 与 2
		{u: 2, v: 3, want: 2}, // 6 是 2 的左孩子
		{u: 0, v: 2, want: 1}, // 4 与 6
		{u: 0, v: 4, want: 1},
		{u: 2, v: 5, want: 0},
		{u: 1, v: 1, want: 1},
	}
	for _, tc := range cases {
		got, err := lca.Query(tc.u, tc.v)
		require.NoError(t, err)
		assert.Equal(t, tc.want, tree.Value(got), "LCA(%d, %d)", tc.u, tc.v)

		rev, err := lca.Query(tc.v, tc.u)
		require.NoError(t, err)
		assert.Equal(t, got, rev, "LCA should be symmetric")
	}
}

func TestLCA_AgainstAncestorPaths(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	for _, n := range []int{1, 2, 9, 60, 150} {
		tree := buildTree(randomInts(r, n, 20))
		lca, err := NewLCA(tree)
		require.NoError(t, err)

		for u := range NodeID(n) {
			up := ancestors(tree, u)
			for v := range NodeID(n) {
				got, err := lca.Query(u, v)
				require.NoError(t, err)

				vp := ancestors(tree, v)
				assert.Contains(t, up, got)
				assert.Contains(t, vp, got)
				// 最小性：got 的孩子都不是公共祖先。
				for _, c := range []NodeID{tree.Left(got), tree.Right(got)} {
					if c == NoNode {
						continue
					}
					common := slices.Contains(up, c) && slices.Contains(vp, c)
					assert.False(t, common, "child %d of LCA(%d, %d) is also a common ancestor", c, u, v)
				}
			}
		}
	}
}

func TestLCA_TourAccessorsReturnCopies(t *testing.T) {
	tree := buildTree([]int{4, 1, 6, 2, 8, 0})
	lca, err := NewLCA(tree)
	require.NoError(t, err)

	tour := lca.Tour().Tour()
	levels := lca.Tour().Levels()
	for k := range tour {
		tour[k] = 99
		levels[k] = -7
	}

	assert.Equal(t, []NodeID{5, 1, 0, 1, 3, 2, 3, 4, 3, 1, 5}, lca.Tour().Tour())
	got, err := lca.Query(0, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, tree.Value(got))
	got, err = lca.Query(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, tree.Value(got))
}

// 句柄只按范围校验：同位置、来自更大树的句柄被视为本树节点，越界句柄被拒绝。
func TestLCA_ForeignHandles(t *testing.T) {
	small, err := NewLCA(buildTree([]int{1, 2, 3}))
	require.NoError(t, err)
	big := buildTree([]int{5, 4, 3, 2, 1})

	got, err := small.Query(0, 2)
	require.NoError(t, err)
	assert.Equal(t, NodeID(0), got)

	_, err = small.Query(0, big.Root())
	assert.ErrorIs(t, err, ErrInvalidNode)
}

func TestLCA_InvalidNode(t *testing.T) {
	lca, err := NewLCA(buildTree([]int{1, 2, 3}))
	require.NoError(t, err)

	for _, bad := range [][2]NodeID{{-1, 0}, {0, 3}, {NoNode, NoNode}, {7, 1}} {
		got, err := lca.Query(bad[0], bad[1])
		assert.ErrorIs(t, err, ErrInvalidNode)
		assert.Equal(t, NoNode, got)
	}
}

func TestLCA_DeepChain(t *testing.T) {
	const n = 200_000
	values := make([]int, n)
	for i := range values {
		values[i] = i
	}
	lca, err := NewLCA(buildTree(values))
	require.NoError(t, err)

	got, err := lca.Query(n-1, n/2)
	require.NoError(t, err)
	assert.Equal(t, NodeID(n/2), got)
}
