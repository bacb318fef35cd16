// Package normals estimates and consistently orients per-point surface
// normals for an unstructured point cloud.
//
// Each normal is the smallest-eigenvalue eigenvector of the covariance of
// the point's hybrid neighbourhood (at most MaxNeighbors points within
// Radius). Orientation then propagates along a minimum spanning tree of the
// neighbour graph so that neighbouring normals agree in sign.
package normals

import (
	"fmt"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"github.com/banshee-data/pointmesh/internal/monitoring"
	"github.com/banshee-data/pointmesh/internal/spatial"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// planarityRatio is the largest middle/largest eigenvalue ratio treated as a
// collinear or coincident neighbourhood.
const planarityRatio = 1e-12

// fit is the per-point result of local plane fitting.
type fit struct {
	normal    geometry.Vec
	ok        bool
	neighbors []int
}

// Estimate returns one oriented point per input point, in input order. Under
// PolicyDrop points with degenerate neighbourhoods are omitted and the output
// is shorter than the input. Every returned normal has unit length.
func Estimate(cloud *geometry.PointCloud, params Params) ([]geometry.OrientedPoint, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if cloud.Len() == 0 {
		return nil, fmt.Errorf("estimate normals: %w", geometry.ErrEmptyInput)
	}
	points := cloud.Points
	tree, err := spatial.Build(points)
	if err != nil {
		return nil, fmt.Errorf("estimate normals: %w", err)
	}

	fits, err := fitAll(tree, points, params)
	if err != nil {
		return nil, err
	}

	valid := 0
	for _, f := range fits {
		if f.ok {
			valid++
		}
	}
	if valid == 0 {
		return nil, fmt.Errorf("estimate normals: no point has enough neighbours within radius %v: %w",
			params.Radius, geometry.ErrInsufficientNeighbors)
	}
	degenerate := len(points) - valid

	keep := make([]int, 0, len(points))
	switch params.Policy {
	case PolicyFail:
		for i, f := range fits {
			if !f.ok {
				return nil, fmt.Errorf("estimate normals: point %d has a degenerate neighbourhood: %w",
					i, geometry.ErrInsufficientNeighbors)
			}
		}
		for i := range fits {
			keep = append(keep, i)
		}
	case PolicyDrop:
		for i, f := range fits {
			if f.ok {
				keep = append(keep, i)
			}
		}
	default:
		if err := copyNearest(points, fits); err != nil {
			return nil, err
		}
		for i := range fits {
			keep = append(keep, i)
		}
	}

	normals, adjacency := compactGraph(fits, keep)
	positions := make([]geometry.Vec, len(keep))
	for j, i := range keep {
		positions[j] = points[i]
	}
	flips := orient(positions, normals, adjacency, params.AmbiguityCosine)

	out := make([]geometry.OrientedPoint, len(keep))
	for j := range keep {
		out[j] = geometry.OrientedPoint{Position: positions[j], Normal: normals[j]}
	}
	monitoring.Logf("[Normals] estimated points=%d degenerate=%d policy=%s flipped=%d",
		len(out), degenerate, params.Policy, flips)
	return out, nil
}

// fitAll runs plane fitting for every point, in parallel over contiguous
// index chunks. Each goroutine writes only its own slots.
func fitAll(tree *spatial.KDTree, points []geometry.Vec, params Params) ([]fit, error) {
	fits := make([]fit, len(points))
	workers := params.workers()
	chunk := (len(points) + workers*4 - 1) / (workers * 4)
	if chunk < 64 {
		chunk = 64
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < len(points); start += chunk {
		end := min(start+chunk, len(points))
		g.Go(func() error {
			for i := start; i < end; i++ {
				nbrs := tree.HybridSearch(points[i], params.Radius, params.MaxNeighbors)
				idx := make([]int, len(nbrs))
				for k, n := range nbrs {
					idx[k] = n.Index
				}
				normal, ok := fitPlane(points, idx)
				fits[i] = fit{normal: normal, ok: ok, neighbors: idx}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("estimate normals: %w", err)
	}
	return fits, nil
}

// fitPlane returns the unit normal of the least-squares plane through the
// given points, or ok=false when the neighbourhood cannot define a plane.
func fitPlane(points []geometry.Vec, idx []int) (geometry.Vec, bool) {
	if len(idx) < 3 {
		return geometry.Vec{}, false
	}
	var c geometry.Vec
	for _, i := range idx {
		c = r3.Add(c, points[i])
	}
	c = r3.Scale(1/float64(len(idx)), c)

	var xx, xy, xz, yy, yz, zz float64
	for _, i := range idx {
		d := r3.Sub(points[i], c)
		xx += d.X * d.X
		xy += d.X * d.Y
		xz += d.X * d.Z
		yy += d.Y * d.Y
		yz += d.Y * d.Z
		zz += d.Z * d.Z
	}
	cov := mat.NewSymDense(3, []float64{
		xx, xy, xz,
		xy, yy, yz,
		xz, yz, zz,
	})

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return geometry.Vec{}, false
	}
	// Eigenvalues are ascending.
	vals := eig.Values(nil)
	if vals[2] <= 0 || vals[1] <= planarityRatio*vals[2] {
		return geometry.Vec{}, false
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	n := geometry.Vec{X: vecs.At(0, 0), Y: vecs.At(1, 0), Z: vecs.At(2, 0)}
	l := r3.Norm(n)
	if l == 0 || !geometry.IsFinite(n) {
		return geometry.Vec{}, false
	}
	return r3.Scale(1/l, n), true
}

// copyNearest gives every degenerate point the normal of its nearest valid
// neighbour.
func copyNearest(points []geometry.Vec, fits []fit) error {
	var validIdx []int
	var validPos []geometry.Vec
	for i, f := range fits {
		if f.ok {
			validIdx = append(validIdx, i)
			validPos = append(validPos, points[i])
		}
	}
	if len(validIdx) == len(fits) {
		return nil
	}
	tree, err := spatial.Build(validPos)
	if err != nil {
		return fmt.Errorf("estimate normals: %w", err)
	}
	for i := range fits {
		if fits[i].ok {
			continue
		}
		src := validIdx[tree.Nearest(points[i]).Index]
		fits[i].normal = fits[src].normal
	}
	return nil
}

// compactGraph returns the normals of the kept points and a symmetric
// neighbour graph re-indexed to positions in keep.
func compactGraph(fits []fit, keep []int) ([]geometry.Vec, [][]int) {
	pos := make(map[int]int, len(keep))
	for j, i := range keep {
		pos[i] = j
	}
	normals := make([]geometry.Vec, len(keep))
	seen := make([]map[int]bool, len(keep))
	adjacency := make([][]int, len(keep))
	link := func(a, b int) {
		if a == b || seen[a][b] {
			return
		}
		if seen[a] == nil {
			seen[a] = map[int]bool{}
		}
		seen[a][b] = true
		adjacency[a] = append(adjacency[a], b)
	}
	for j, i := range keep {
		normals[j] = fits[i].normal
		for _, n := range fits[i].neighbors {
			if k, ok := pos[n]; ok {
				link(j, k)
				link(k, j)
			}
		}
	}
	return normals, adjacency
}
