package poisson

import (
	"math"
	"sort"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// cellKey packs integer grid coordinates (each below 2^21) into one map key.
// Keys sort in (i, j, k) lexicographic order.
type cellKey uint64

func packKey(i, j, k int) cellKey {
	return cellKey(uint64(i)<<42 | uint64(j)<<21 | uint64(k))
}

func (c cellKey) unpack() (int, int, int) {
	const mask = 1<<21 - 1
	return int(c >> 42), int(c >> 21 & mask), int(c & mask)
}

// Level is one resolution of the octree. Cells and nodes are addressed by
// integer grid coordinates; a level at depth d has 2^d cells per axis and
// 2^d+1 nodes per axis.
type Level struct {
	Depth int
	Res   int
	H     float64
	// Full reports that every cell in the domain is active.
	Full bool

	cells  map[cellKey]struct{}
	nodes  map[cellKey]int
	keys   []cellKey
	values []float64
}

// Active reports whether cell (i, j, k) belongs to the level.
func (l *Level) Active(i, j, k int) bool {
	if i < 0 || j < 0 || k < 0 || i >= l.Res || j >= l.Res || k >= l.Res {
		return false
	}
	if l.Full {
		return true
	}
	_, ok := l.cells[packKey(i, j, k)]
	return ok
}

// CellCount returns the number of active cells.
func (l *Level) CellCount() int {
	if l.Full {
		return l.Res * l.Res * l.Res
	}
	return len(l.cells)
}

// NodeCount returns the number of nodes of active cells.
func (l *Level) NodeCount() int {
	return len(l.keys)
}

func (l *Level) value(i, j, k int) float64 {
	return l.values[l.nodes[packKey(i, j, k)]]
}

// interior reports whether all 8 cells incident to node (i, j, k) are active.
func (l *Level) interior(i, j, k int) bool {
	for dx := -1; dx <= 0; dx++ {
		for dy := -1; dy <= 0; dy++ {
			for dz := -1; dz <= 0; dz++ {
				if !l.Active(i+dx, j+dy, k+dz) {
					return false
				}
			}
		}
	}
	return true
}

// indexNodes collects the corners of every active cell, sorted by key.
func (l *Level) indexNodes() {
	set := make(map[cellKey]struct{})
	l.forEachCell(func(i, j, k int) {
		for c := 0; c < 8; c++ {
			set[packKey(i+c&1, j+c>>1&1, k+c>>2&1)] = struct{}{}
		}
	})
	l.keys = make([]cellKey, 0, len(set))
	for key := range set {
		l.keys = append(l.keys, key)
	}
	sort.Slice(l.keys, func(a, b int) bool { return l.keys[a] < l.keys[b] })
	l.nodes = make(map[cellKey]int, len(l.keys))
	for idx, key := range l.keys {
		l.nodes[key] = idx
	}
	l.values = make([]float64, len(l.keys))
}

// forEachCell visits active cells in key order.
func (l *Level) forEachCell(fn func(i, j, k int)) {
	if l.Full {
		for i := 0; i < l.Res; i++ {
			for j := 0; j < l.Res; j++ {
				for k := 0; k < l.Res; k++ {
					fn(i, j, k)
				}
			}
		}
		return
	}
	keys := make([]cellKey, 0, len(l.cells))
	for key := range l.cells {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })
	for _, key := range keys {
		fn(key.unpack())
	}
}

// Octree is the adaptive grid hierarchy: a full grid at the base level and,
// on every finer level, the cells near the samples whose parents are active.
type Octree struct {
	Origin geometry.Vec
	Side   float64
	Levels []*Level
}

// Base returns the full-grid level.
func (o *Octree) Base() *Level {
	return o.Levels[0]
}

// Finest returns the deepest level.
func (o *Octree) Finest() *Level {
	return o.Levels[len(o.Levels)-1]
}

// level returns the level at absolute depth d.
func (o *Octree) level(d int) *Level {
	return o.Levels[d-o.Levels[0].Depth]
}

// locate returns the cell of level l holding p and the local coordinates of p
// inside it. Points outside the domain are clamped to the border cells.
func (o *Octree) locate(l *Level, p geometry.Vec) (ci [3]int, t [3]float64) {
	rel := r3.Scale(1/l.H, r3.Sub(p, o.Origin))
	for a, v := range [3]float64{rel.X, rel.Y, rel.Z} {
		c := int(math.Floor(v))
		c = max(0, min(l.Res-1, c))
		ci[a] = c
		t[a] = math.Max(0, math.Min(1, v-float64(c)))
	}
	return ci, t
}

// newOctree sizes the domain cube around points and builds every level.
func newOctree(points []geometry.Vec, p Params) *Octree {
	box := geometry.BoundsOf(points)
	side := box.MaxExtent() * p.Scale
	half := side / 2
	c := box.Center()
	o := &Octree{
		Origin: r3.Sub(c, geometry.Vec{X: half, Y: half, Z: half}),
		Side:   side,
	}

	base := p.baseDepth()
	o.Levels = append(o.Levels, &Level{Depth: base, Res: 1 << base, H: side / float64(int(1)<<base), Full: true})
	for d := base + 1; d <= p.Depth; d++ {
		parent := o.Levels[len(o.Levels)-1]
		lvl := &Level{Depth: d, Res: 1 << d, H: side / float64(int(1)<<d), cells: make(map[cellKey]struct{})}

		seeds := make(map[cellKey]struct{})
		for _, pt := range points {
			ci, _ := o.locate(lvl, pt)
			seeds[packKey(ci[0], ci[1], ci[2])] = struct{}{}
		}
		w := p.BandWidth
		for key := range seeds {
			i, j, k := key.unpack()
			for dx := -w; dx <= w; dx++ {
				for dy := -w; dy <= w; dy++ {
					for dz := -w; dz <= w; dz++ {
						x, y, z := i+dx, j+dy, k+dz
						if x < 0 || y < 0 || z < 0 || x >= lvl.Res || y >= lvl.Res || z >= lvl.Res {
							continue
						}
						if !parent.Active(x/2, y/2, z/2) {
							continue
						}
						lvl.cells[packKey(x, y, z)] = struct{}{}
					}
				}
			}
		}
		o.Levels = append(o.Levels, lvl)
	}
	for _, l := range o.Levels {
		l.indexNodes()
	}
	return o
}

// Eval returns the implicit function at p, interpolated on the finest level
// whose cell holding p is active.
func (o *Octree) Eval(p geometry.Vec) float64 {
	for d := len(o.Levels) - 1; d >= 0; d-- {
		l := o.Levels[d]
		ci, t := o.locate(l, p)
		if l.Active(ci[0], ci[1], ci[2]) {
			return trilinear(l, ci, t)
		}
	}
	return 0
}

func trilinear(l *Level, ci [3]int, t [3]float64) float64 {
	var f float64
	for c := 0; c < 8; c++ {
		w := 1.0
		for a := 0; a < 3; a++ {
			if c>>a&1 == 1 {
				w *= t[a]
			} else {
				w *= 1 - t[a]
			}
		}
		if w == 0 {
			continue
		}
		f += w * l.value(ci[0]+c&1, ci[1]+c>>1&1, ci[2]+c>>2&1)
	}
	return f
}

// coarseValue interpolates the parent level at node (i, j, k) of a finer
// level in exact integer arithmetic: an even index coincides with a parent
// node, an odd one lies halfway between two.
func coarseValue(parent *Level, i, j, k int) float64 {
	axes := [3]int{i, j, k}
	var lo, hi [3]int
	var n [3]int
	for a, g := range axes {
		if g%2 == 0 {
			lo[a], hi[a], n[a] = g/2, g/2, 1
		} else {
			lo[a], hi[a], n[a] = (g-1)/2, (g+1)/2, 2
		}
	}
	var f float64
	for x := 0; x < n[0]; x++ {
		for y := 0; y < n[1]; y++ {
			for z := 0; z < n[2]; z++ {
				idx := [3]int{lo[0], lo[1], lo[2]}
				if x == 1 {
					idx[0] = hi[0]
				}
				if y == 1 {
					idx[1] = hi[1]
				}
				if z == 1 {
					idx[2] = hi[2]
				}
				f += parent.value(idx[0], idx[1], idx[2])
			}
		}
	}
	return f / float64(n[0]*n[1]*n[2])
}
