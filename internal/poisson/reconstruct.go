// Package poisson reconstructs a watertight triangle mesh from oriented
// points by solving a Poisson problem on an adaptive octree.
//
// The normals are splatted into a vector field V, the implicit function f
// solves Δf = ∇·V level by level (a full grid at the base, narrow bands
// around the samples on finer levels), and the surface is the f = iso level
// set, iso being the mean of f over the samples. The level set is extracted
// with marching tetrahedra on the finest grid.
package poisson

import (
	"fmt"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"github.com/banshee-data/pointmesh/internal/monitoring"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// coplanarRatio is the smallest/largest covariance eigenvalue ratio at or
// below which the whole input is treated as flat.
const coplanarRatio = 1e-10

// Reconstruct returns the iso surface of the Poisson indicator function of
// points. Triangles are wound with normals pointing out of the enclosed
// volume. The result is deterministic for fixed input and parameters.
func Reconstruct(points []geometry.OrientedPoint, params Params) (*geometry.Mesh, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	params = params.withDefaults()
	if len(points) == 0 {
		return nil, fmt.Errorf("reconstruct: %w", geometry.ErrEmptyInput)
	}
	if len(points) < params.MinPoints {
		return nil, fmt.Errorf("reconstruct: %d points, need at least %d: %w",
			len(points), params.MinPoints, geometry.ErrDegenerateInput)
	}
	for i, p := range points {
		if !geometry.IsFinite(p.Position) || !geometry.IsFinite(p.Normal) || r3.Norm2(p.Normal) == 0 {
			return nil, fmt.Errorf("reconstruct: point %d has a non-finite position or normal: %w", i, geometry.ErrDegenerateInput)
		}
	}
	positions := geometry.Positions(points)
	if err := checkSpread(positions); err != nil {
		return nil, fmt.Errorf("reconstruct: %w", err)
	}

	tree := newOctree(positions, params)
	unknowns, err := tree.solveLevels(points, params.Solver)
	if err != nil {
		return nil, fmt.Errorf("reconstruct: %w", err)
	}

	var iso float64
	for _, p := range positions {
		iso += tree.Eval(p)
	}
	iso /= float64(len(positions))

	mesh := tree.extract(iso, params.LinearFit)
	monitoring.Logf("[Poisson] depth=%d base=%d unknowns=%v iso=%.6g vertices=%d triangles=%d",
		params.Depth, tree.Base().Depth, unknowns, iso, mesh.VertexCount(), mesh.TriangleCount())
	if mesh.IsEmpty() {
		return nil, fmt.Errorf("reconstruct: iso surface is empty: %w", geometry.ErrDegenerateInput)
	}
	return mesh, nil
}

// checkSpread rejects point sets that do not span three dimensions.
func checkSpread(points []geometry.Vec) error {
	var c geometry.Vec
	for _, p := range points {
		c = r3.Add(c, p)
	}
	c = r3.Scale(1/float64(len(points)), c)
	var xx, xy, xz, yy, yz, zz float64
	for _, p := range points {
		d := r3.Sub(p, c)
		xx += d.X * d.X
		xy += d.X * d.Y
		xz += d.X * d.Z
		yy += d.Y * d.Y
		yz += d.Y * d.Z
		zz += d.Z * d.Z
	}
	var eig mat.EigenSym
	if !eig.Factorize(mat.NewSymDense(3, []float64{xx, xy, xz, xy, yy, yz, xz, yz, zz}), false) {
		return fmt.Errorf("covariance eigen-decomposition failed: %w", geometry.ErrDegenerateInput)
	}
	vals := eig.Values(nil)
	if vals[2] <= 0 || vals[0] <= coplanarRatio*vals[2] {
		return fmt.Errorf("points are coplanar or collinear: %w", geometry.ErrDegenerateInput)
	}
	return nil
}
