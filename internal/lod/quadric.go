package lod

import (
	"math"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// Quadric is a symmetric 4×4 error matrix stored as its 10 upper-triangle
// coefficients. For a plane n·x + d = 0 with unit n it measures the squared
// distance of a point to the plane.
type Quadric struct {
	A2, AB, AC, AD float64
	B2, BC, BD     float64
	C2, CD         float64
	D2             float64
}

// PlaneQuadric returns w times the quadric of the plane through p with unit
// normal n.
func PlaneQuadric(n, p geometry.Vec, w float64) Quadric {
	a, b, c := n.X, n.Y, n.Z
	d := -r3.Dot(n, p)
	return Quadric{
		A2: w * a * a, AB: w * a * b, AC: w * a * c, AD: w * a * d,
		B2: w * b * b, BC: w * b * c, BD: w * b * d,
		C2: w * c * c, CD: w * c * d,
		D2: w * d * d,
	}
}

// Add returns q + o.
func (q Quadric) Add(o Quadric) Quadric {
	return Quadric{
		A2: q.A2 + o.A2, AB: q.AB + o.AB, AC: q.AC + o.AC, AD: q.AD + o.AD,
		B2: q.B2 + o.B2, BC: q.BC + o.BC, BD: q.BD + o.BD,
		C2: q.C2 + o.C2, CD: q.CD + o.CD,
		D2: q.D2 + o.D2,
	}
}

// Error evaluates vᵀQv for v = (x, y, z, 1).
func (q Quadric) Error(v geometry.Vec) float64 {
	x, y, z := v.X, v.Y, v.Z
	e := q.A2*x*x + 2*q.AB*x*y + 2*q.AC*x*z + 2*q.AD*x +
		q.B2*y*y + 2*q.BC*y*z + 2*q.BD*y +
		q.C2*z*z + 2*q.CD*z +
		q.D2
	// Rounding can push an exact zero slightly negative.
	return math.Max(e, 0)
}

// singularRatio is the relative determinant below which the 3×3 system is
// treated as singular.
const singularRatio = 1e-10

// Minimizer returns the position minimising the quadric error, or ok=false
// when the 3×3 system is singular relative to its scale.
func (q Quadric) Minimizer() (geometry.Vec, bool) {
	// Cofactors of the symmetric matrix [A2 AB AC; AB B2 BC; AC BC C2].
	c00 := q.B2*q.C2 - q.BC*q.BC
	c01 := q.AC*q.BC - q.AB*q.C2
	c02 := q.AB*q.BC - q.AC*q.B2
	c11 := q.A2*q.C2 - q.AC*q.AC
	c12 := q.AB*q.AC - q.A2*q.BC
	c22 := q.A2*q.B2 - q.AB*q.AB
	det := q.A2*c00 + q.AB*c01 + q.AC*c02

	tr := q.A2 + q.B2 + q.C2
	if tr <= 0 || math.Abs(det) <= singularRatio*tr*tr*tr {
		return geometry.Vec{}, false
	}
	// x = -M⁻¹·(AD, BD, CD), M⁻¹ = adj(M)/det.
	inv := -1 / det
	v := geometry.Vec{
		X: inv * (c00*q.AD + c01*q.BD + c02*q.CD),
		Y: inv * (c01*q.AD + c11*q.BD + c12*q.CD),
		Z: inv * (c02*q.AD + c12*q.BD + c22*q.CD),
	}
	if !geometry.IsFinite(v) {
		return geometry.Vec{}, false
	}
	return v, true
}
