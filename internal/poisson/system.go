package poisson

import (
	"fmt"
	"math"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// splat distributes every sample normal over the 8 nodes of the level cell
// holding it with trilinear weights, scaled to a density by 1/h³.
func (o *Octree) splat(l *Level, samples []geometry.OrientedPoint) map[cellKey]geometry.Vec {
	field := make(map[cellKey]geometry.Vec)
	inv := 1 / (l.H * l.H * l.H)
	for _, s := range samples {
		ci, t := o.locate(l, s.Position)
		for c := 0; c < 8; c++ {
			w := inv
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
			key := packKey(ci[0]+c&1, ci[1]+c>>1&1, ci[2]+c>>2&1)
			field[key] = r3.Add(field[key], r3.Scale(w, s.Normal))
		}
	}
	return field
}

// divergence returns the central-difference divergence of field at node
// (i, j, k). Nodes absent from field carry a zero vector.
func divergence(field map[cellKey]geometry.Vec, i, j, k int, h float64) float64 {
	dx := field[packKey(i+1, j, k)].X - field[packKey(i-1, j, k)].X
	dy := field[packKey(i, j+1, k)].Y - field[packKey(i, j-1, k)].Y
	dz := field[packKey(i, j, k+1)].Z - field[packKey(i, j, k-1)].Z
	return (dx + dy + dz) / (2 * h)
}

var stencil = [6][3]int{{-1, 0, 0}, {1, 0, 0}, {0, -1, 0}, {0, 1, 0}, {0, 0, -1}, {0, 0, 1}}

// levelSystem is the assembled linear system of one level.
type levelSystem struct {
	a        *SparseMatrix
	b        []float64
	unknowns []int // node index per unknown
}

// assemble builds the 7-point Laplacian system -Δf = -∇·V of level idx.
// Nodes whose 8 incident cells are all active are unknowns; every other
// node is fixed: zero on the base level, the parent level's interpolated
// value on finer levels. Fixed values are written into l.values.
func (o *Octree) assemble(idx int, samples []geometry.OrientedPoint) *levelSystem {
	l := o.Levels[idx]
	var parent *Level
	if idx > 0 {
		parent = o.Levels[idx-1]
	}

	unknownOf := make([]int, len(l.keys))
	var unknowns []int
	for n, key := range l.keys {
		i, j, k := key.unpack()
		if l.interior(i, j, k) {
			unknownOf[n] = len(unknowns)
			unknowns = append(unknowns, n)
			continue
		}
		unknownOf[n] = -1
		if parent != nil {
			l.values[n] = coarseValue(parent, i, j, k)
		} else {
			l.values[n] = 0
		}
	}

	field := o.splat(l, samples)
	sys := &levelSystem{
		a:        NewSparseMatrix(len(unknowns)),
		b:        make([]float64, len(unknowns)),
		unknowns: unknowns,
	}
	h2 := l.H * l.H
	cols := make([]int, 0, 7)
	vals := make([]float64, 0, 7)
	for u, n := range unknowns {
		i, j, k := l.keys[n].unpack()
		cols = append(cols[:0], u)
		vals = append(vals[:0], 6)
		rhs := -h2 * divergence(field, i, j, k, l.H)
		for _, d := range stencil {
			m := l.nodes[packKey(i+d[0], j+d[1], k+d[2])]
			if v := unknownOf[m]; v >= 0 {
				cols = append(cols, v)
				vals = append(vals, -1)
			} else {
				rhs += l.values[m]
			}
		}
		sys.a.AppendRow(cols, vals)
		sys.b[u] = rhs
	}
	return sys
}

// solveLevels assembles and solves every level from coarse to fine.
func (o *Octree) solveLevels(samples []geometry.OrientedPoint, solver Solver) ([]int, error) {
	counts := make([]int, len(o.Levels))
	for idx, l := range o.Levels {
		sys := o.assemble(idx, samples)
		counts[idx] = len(sys.unknowns)
		x, err := solver.Solve(sys.a, sys.b)
		if err != nil {
			return nil, fmt.Errorf("solve level %d: %w", l.Depth, err)
		}
		for u, n := range sys.unknowns {
			if math.IsNaN(x[u]) || math.IsInf(x[u], 0) {
				return nil, fmt.Errorf("solve level %d: non-finite solution: %w", l.Depth, geometry.ErrDegenerateInput)
			}
			l.values[n] = x[u]
		}
	}
	return counts, nil
}
