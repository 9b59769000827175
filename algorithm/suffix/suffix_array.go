// Package suffix 实现后缀数组，并基于区间最小值索引提供 O(1) 的任意两后缀最长公共前缀查询。
package suffix

import (
	"log/slog"

	"github.com/wyfcoding/rmqindex/algorithm/rmq"
	"github.com/wyfcoding/rmqindex/xerrors"
)

// SuffixArray 结构体实现了后缀数组。
// 后缀数组是一个字符串所有后缀的排序数组，在字符串匹配、模式查找等领域有广泛应用。
// 构建后只读，可并发查询。
type SuffixArray struct {
	text   string
	sa     []int // sa[r] 为排名 r 的后缀起点。
	rank   []int // rank[i] 为起点 i 的后缀排名，sa 的逆。
	height []int // height[r] 为 sa[r] 与 sa[r-1] 两个后缀的最长公共前缀，height[0] = 0。
	lcp    *rmq.RangeMin[int]
}

// New 为 text 构建后缀数组、LCP 数组与其上的区间最小值索引。
func New(text string) (*SuffixArray, error) {
	n := len(text)
	if n == 0 {
		slog.Error("SuffixArray initialization failed: text is empty")
		return nil, xerrors.ErrEmptyInput
	}

	sa := &SuffixArray{
		text:   text,
		sa:     make([]int, n),
		rank:   make([]int, n),
		height: make([]int, n),
	}
	sa.build()
	sa.computeHeight()

	lcp, err := rmq.NewRangeMin(sa.height)
	if err != nil {
		return nil, err
	}
	sa.lcp = lcp
	return sa, nil
}

// build 使用倍增 + 基数排序在 O(N log N) 时间内构造 sa。
func (sa *SuffixArray) build() {
	n := len(sa.text)
	m := max(n, 256) // 初始字符集大小。

	x := make([]int, n)
	y := make([]int, n)
	c := make([]int, m)

	for i := range n {
		x[i] = int(sa.text[i])
		c[x[i]]++
	}
	for i := 1; i < m; i++ {
		c[i] += c[i-1]
	}
	for i := n - 1; i >= 0; i-- {
		c[x[i]]--
		sa.sa[c[x[i]]] = i
	}

	for k := 1; k < n; k <<= 1 {
		// 第二关键字：越界的后缀排在最前。
		p := 0
		for i := n - k; i < n; i++ {
			y[p] = i
			p++
		}
		for _, s := range sa.sa {
			if s >= k {
				y[p] = s - k
				p++
			}
		}

		// 第一关键字基数排序。
		clear(c[:m])
		for i := range n {
			c[x[y[i]]]++
		}
		for i := 1; i < m; i++ {
			c[i] += c[i-1]
		}
		for i := n - 1; i >= 0; i-- {
			c[x[y[i]]]--
			sa.sa[c[x[y[i]]]] = y[i]
		}

		x, y = y, x
		p = 1
		x[sa.sa[0]] = 0
		for i := 1; i < n; i++ {
			if !sameKey(y, sa.sa[i-1], sa.sa[i], k) {
				p++
			}
			x[sa.sa[i]] = p - 1
		}
		if p >= n {
			break
		}
		m = p
	}

	for r, s := range sa.sa {
		sa.rank[s] = r
	}
}

// sameKey 判断起点 i、j 的 (rank[i], rank[i+k]) 二元组是否相同。
func sameKey(rank []int, i, j, k int) bool {
	n := len(rank)
	if rank[i] != rank[j] {
		return false
	}
	ri, rj := -1, -1
	if i+k < n {
		ri = rank[i+k]
	}
	if j+k < n {
		rj = rank[j+k]
	}
	return ri == rj
}

// computeHeight 使用 Kasai 算法在 O(N) 时间内计算 height 数组。
func (sa *SuffixArray) computeHeight() {
	n := len(sa.text)
	k := 0
	for i := range n {
		r := sa.rank[i]
		if r == 0 {
			k = 0
			continue
		}
		if k > 0 {
			k--
		}
		j := sa.sa[r-1]
		for i+k < n && j+k < n && sa.text[i+k] == sa.text[j+k] {
			k++
		}
		sa.height[r] = k
	}
}

// Len 返回文本长度。
func (sa *SuffixArray) Len() int { return len(sa.text) }

// SA 返回后缀数组的副本。
func (sa *SuffixArray) SA() []int { return append([]int(nil), sa.sa...) }

// Rank 返回排名数组的副本。
func (sa *SuffixArray) Rank() []int { return append([]int(nil), sa.rank...) }

// Height 返回 LCP 数组的副本。
func (sa *SuffixArray) Height() []int { return append([]int(nil), sa.height...) }

// LCP 返回分别从 a、b 开始的两个后缀的最长公共前缀长度。
// 两者排名之间 height 的最小值即为答案，由区间最小值索引 O(1) 给出。
func (sa *SuffixArray) LCP(a, b int) (int, error) {
	n := len(sa.text)
	if a < 0 || a >= n || b < 0 || b >= n {
		return 0, xerrors.ErrOutOfRange.With("a", a).With("b", b).With("length", n)
	}
	if a == b {
		return n - a, nil
	}

	ra, rb := sa.rank[a], sa.rank[b]
	if ra > rb {
		ra, rb = rb, ra
	}
	v, _, err := sa.lcp.Query(ra+1, rb)
	return v, err
}

// LongestRepeatedSubstring 返回最长的出现至少两次的子串，没有时返回空串。
func (sa *SuffixArray) LongestRepeatedSubstring() string {
	best, idx := 0, -1
	for r, h := range sa.height {
		if h > best {
			best, idx = h, r
		}
	}
	if idx == -1 {
		return ""
	}
	return sa.text[sa.sa[idx] : sa.sa[idx]+best]
}

// DistinctSubstrings 返回不同非空子串的个数。
func (sa *SuffixArray) DistinctSubstrings() int {
	n := len(sa.text)
	total := n * (n + 1) / 2
	for _, h := range sa.height {
		total -= h
	}
	return total
}

// Search 返回 pattern 在文本中所有出现位置（按后缀排名顺序）。
func (sa *SuffixArray) Search(pattern string) []int {
	n := len(sa.text)
	if len(pattern) == 0 {
		return nil
	}

	// 左边界。
	l, r := 0, n-1
	first := -1
	for l <= r {
		mid := l + (r-l)/2
		c := sa.compare(sa.sa[mid], pattern)
		if c >= 0 {
			if c == 0 {
				first = mid
			}
			r = mid - 1
		} else {
			l = mid + 1
		}
	}
	if first == -1 {
		return nil
	}

	// 右边界。
	l, r = first, n-1
	last := first
	for l <= r {
		mid := l + (r-l)/2
		switch c := sa.compare(sa.sa[mid], pattern); {
		case c == 0:
			last = mid
			l = mid + 1
		case c > 0:
			r = mid - 1
		default:
			l = mid + 1
		}
	}

	return append([]int(nil), sa.sa[first:last+1]...)
}

// compare 比较起点为 start 的后缀与模式串，只看前 len(pattern) 个字节。
func (sa *SuffixArray) compare(start int, pattern string) int {
	n := len(sa.text)
	for i := range len(pattern) {
		if start+i >= n {
			return -1
		}
		if sa.text[start+i] < pattern[i] {
			return -1
		}
		if sa.text[start+i] > pattern[i] {
			return 1
		}
	}
	return 0
}

// Count 统计模式串出现的次数。
func (sa *SuffixArray) Count(pattern string) int {
	return len(sa.Search(pattern))
}
