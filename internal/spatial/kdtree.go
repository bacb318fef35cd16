// Package spatial provides a static k-d tree over 3D points for nearest
// neighbour, radius and hybrid (radius + count) queries.
//
// The tree is built once from a point slice and never mutated afterwards, so
// any number of goroutines may query it concurrently. Rebuild the tree when
// the point set changes.
package spatial

import (
	"container/heap"
	"fmt"
	"iter"
	"math"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// Neighbor is one query result: the index of a point in the slice the tree
// was built from and its squared distance to the query position.
type Neighbor struct {
	Index int
	Dist2 float64
}

// Dist returns the Euclidean distance.
func (n Neighbor) Dist() float64 {
	return math.Sqrt(n.Dist2)
}

// less orders neighbours by distance, then by index.
func (n Neighbor) less(o Neighbor) bool {
	if n.Dist2 != o.Dist2 {
		return n.Dist2 < o.Dist2
	}
	return n.Index < o.Index
}

// KDTree is an implicit, array-backed k-d tree. Node i of the subtree spanning
// perm[lo:hi] sits at the middle position and splits on axis[mid].
type KDTree struct {
	points []geometry.Vec
	perm   []int
	axis   []uint8
}

// Build constructs a k-d tree over points in O(n log n) by splitting each
// subtree at the median of its widest axis. The points are copied.
func Build(points []geometry.Vec) (*KDTree, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("build k-d tree: %w", geometry.ErrEmptyInput)
	}
	t := &KDTree{
		points: make([]geometry.Vec, len(points)),
		perm:   make([]int, len(points)),
		axis:   make([]uint8, len(points)),
	}
	for i, p := range points {
		if !geometry.IsFinite(p) {
			return nil, fmt.Errorf("build k-d tree: point %d is not finite: %w", i, geometry.ErrDegenerateInput)
		}
		t.points[i] = p
		t.perm[i] = i
	}
	t.build(0, len(points))
	return t, nil
}

// Len returns the number of indexed points.
func (t *KDTree) Len() int {
	return len(t.points)
}

// Point returns the indexed point i.
func (t *KDTree) Point(i int) geometry.Vec {
	return t.points[i]
}

func (t *KDTree) build(lo, hi int) {
	for hi-lo > 1 {
		ax := t.widestAxis(lo, hi)
		mid := lo + (hi-lo)/2
		t.selectNth(lo, hi, mid, ax)
		t.axis[mid] = uint8(ax)
		// Recurse on the smaller half and loop on the larger to bound stack depth.
		if mid-lo < hi-mid-1 {
			t.build(lo, mid)
			lo = mid + 1
		} else {
			t.build(mid+1, hi)
			hi = mid
		}
	}
}

func (t *KDTree) widestAxis(lo, hi int) int {
	first := t.points[t.perm[lo]]
	minV, maxV := first, first
	for _, idx := range t.perm[lo+1 : hi] {
		p := t.points[idx]
		minV = geometry.Vec{X: math.Min(minV.X, p.X), Y: math.Min(minV.Y, p.Y), Z: math.Min(minV.Z, p.Z)}
		maxV = geometry.Vec{X: math.Max(maxV.X, p.X), Y: math.Max(maxV.Y, p.Y), Z: math.Max(maxV.Z, p.Z)}
	}
	s := r3.Sub(maxV, minV)
	switch {
	case s.X >= s.Y && s.X >= s.Z:
		return 0
	case s.Y >= s.Z:
		return 1
	default:
		return 2
	}
}

func coord(p geometry.Vec, axis int) float64 {
	switch axis {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

// keyLess orders points along an axis with the original index as tie-breaker,
// which keeps the partition deterministic for duplicated coordinates.
func (t *KDTree) keyLess(a, b, axis int) bool {
	ca, cb := coord(t.points[a], axis), coord(t.points[b], axis)
	if ca != cb {
		return ca < cb
	}
	return a < b
}

// selectNth partially orders perm[lo:hi] so perm[n] holds the element that
// would be there if the range were sorted along axis (quickselect).
func (t *KDTree) selectNth(lo, hi, n, axis int) {
	p := t.perm
	hi--
	for lo < hi {
		// Median-of-three pivot moved to hi.
		m := lo + (hi-lo)/2
		if t.keyLess(p[m], p[lo], axis) {
			p[m], p[lo] = p[lo], p[m]
		}
		if t.keyLess(p[hi], p[lo], axis) {
			p[hi], p[lo] = p[lo], p[hi]
		}
		if t.keyLess(p[m], p[hi], axis) {
			p[m], p[hi] = p[hi], p[m]
		}
		pivot := p[hi]
		store := lo
		for i := lo; i < hi; i++ {
			if t.keyLess(p[i], pivot, axis) {
				p[i], p[store] = p[store], p[i]
				store++
			}
		}
		p[store], p[hi] = p[hi], p[store]
		switch {
		case store == n:
			return
		case store < n:
			lo = store + 1
		default:
			hi = store - 1
		}
	}
}

// RadiusSearch returns a lazy sequence of every point within r of q
// (boundary included). Results arrive in traversal order, not sorted; the
// traversal stops as soon as the consumer stops ranging.
func (t *KDTree) RadiusSearch(q geometry.Vec, r float64) iter.Seq[Neighbor] {
	r2 := r * r
	return func(yield func(Neighbor) bool) {
		if r < 0 || math.IsNaN(r) {
			return
		}
		t.radius(0, len(t.perm), q, r2, yield)
	}
}

func (t *KDTree) radius(lo, hi int, q geometry.Vec, r2 float64, yield func(Neighbor) bool) bool {
	if lo >= hi {
		return true
	}
	mid := lo + (hi-lo)/2
	idx := t.perm[mid]
	p := t.points[idx]
	if d2 := r3.Norm2(r3.Sub(q, p)); d2 <= r2 {
		if !yield(Neighbor{Index: idx, Dist2: d2}) {
			return false
		}
	}
	if hi-lo == 1 {
		return true
	}
	ax := int(t.axis[mid])
	diff := coord(q, ax) - coord(p, ax)
	if diff <= 0 || diff*diff <= r2 {
		if !t.radius(lo, mid, q, r2, yield) {
			return false
		}
	}
	if diff >= 0 || diff*diff <= r2 {
		if !t.radius(mid+1, hi, q, r2, yield) {
			return false
		}
	}
	return true
}

// Any reports whether at least one point lies within r of q.
func (t *KDTree) Any(q geometry.Vec, r float64) bool {
	for range t.RadiusSearch(q, r) {
		return true
	}
	return false
}

// KNearest returns the k points closest to q in ascending order of distance,
// ties broken by index. Fewer than k are returned only when the tree holds
// fewer points.
func (t *KDTree) KNearest(q geometry.Vec, k int) []Neighbor {
	return t.nearest(q, k, math.Inf(1))
}

// HybridSearch returns at most k points within r of q, nearest first. This
// is the neighbourhood used for local plane fitting.
func (t *KDTree) HybridSearch(q geometry.Vec, r float64, k int) []Neighbor {
	if r < 0 || math.IsNaN(r) {
		return nil
	}
	return t.nearest(q, k, r*r)
}

// Nearest returns the closest point to q. The tree is never empty, so the
// result is always valid.
func (t *KDTree) Nearest(q geometry.Vec) Neighbor {
	return t.nearest(q, 1, math.Inf(1))[0]
}

func (t *KDTree) nearest(q geometry.Vec, k int, max2 float64) []Neighbor {
	if k <= 0 {
		return nil
	}
	h := &worstFirst{}
	t.knn(0, len(t.perm), q, k, max2, h)
	out := make([]Neighbor, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Neighbor)
	}
	return out
}

func (t *KDTree) knn(lo, hi int, q geometry.Vec, k int, max2 float64, h *worstFirst) {
	if lo >= hi {
		return
	}
	mid := lo + (hi-lo)/2
	idx := t.perm[mid]
	p := t.points[idx]
	if d2 := r3.Norm2(r3.Sub(q, p)); d2 <= max2 {
		cand := Neighbor{Index: idx, Dist2: d2}
		if h.Len() < k {
			heap.Push(h, cand)
		} else if cand.less((*h)[0]) {
			(*h)[0] = cand
			heap.Fix(h, 0)
		}
	}
	if hi-lo == 1 {
		return
	}
	ax := int(t.axis[mid])
	diff := coord(q, ax) - coord(p, ax)
	nearLo, nearHi, farLo, farHi := lo, mid, mid+1, hi
	if diff > 0 {
		nearLo, nearHi, farLo, farHi = mid+1, hi, lo, mid
	}
	t.knn(nearLo, nearHi, q, k, max2, h)
	bound := max2
	if h.Len() == k {
		bound = math.Min(bound, (*h)[0].Dist2)
	}
	if diff*diff <= bound {
		t.knn(farLo, farHi, q, k, max2, h)
	}
}

// worstFirst is a max-heap of neighbours; the root is the current worst.
type worstFirst []Neighbor

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return h[j].less(h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(Neighbor)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}
