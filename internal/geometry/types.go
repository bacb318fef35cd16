package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec is a 3D position or direction.
type Vec = r3.Vec

// Point is a sample position in a point cloud.
type Point = Vec

// OrientedPoint is a sample position with a unit surface normal.
type OrientedPoint struct {
	Position Vec
	Normal   Vec
}

// PointCloud is an ordered, index-addressable set of sample positions.
// Duplicates are allowed.
type PointCloud struct {
	Points []Vec
}

// NewPointCloud wraps points in a PointCloud. The slice is not copied.
func NewPointCloud(points []Vec) *PointCloud {
	return &PointCloud{Points: points}
}

// Len returns the number of points.
func (pc *PointCloud) Len() int {
	if pc == nil {
		return 0
	}
	return len(pc.Points)
}

// Bounds returns the axis-aligned bounding box of the cloud.
func (pc *PointCloud) Bounds() BoundingBox {
	return BoundsOf(pc.Points)
}

// Positions extracts the positions of oriented points in order.
func Positions(points []OrientedPoint) []Vec {
	out := make([]Vec, len(points))
	for i, p := range points {
		out[i] = p.Position
	}
	return out
}

// Triangle holds three indices into a mesh's vertex array. Winding is
// counter-clockwise when seen from the outside.
type Triangle [3]int

// HasRepeatedIndex reports whether two corners reference the same vertex.
func (t Triangle) HasRepeatedIndex() bool {
	return t[0] == t[1] || t[1] == t[2] || t[0] == t[2]
}

// Key returns the corner indices sorted ascending, identifying the triangle
// independently of winding and rotation.
func (t Triangle) Key() [3]int {
	a, b, c := t[0], t[1], t[2]
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		a, b = b, a
	}
	return [3]int{a, b, c}
}

// Edges returns the three directed edges in winding order.
func (t Triangle) Edges() [3][2]int {
	return [3][2]int{{t[0], t[1]}, {t[1], t[2]}, {t[2], t[0]}}
}

// Edge is an undirected mesh edge with A < B.
type Edge struct {
	A, B int
}

// NewEdge returns the canonical edge between a and b.
func NewEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

// IsUnit reports whether v has unit length within tol.
func IsUnit(v Vec, tol float64) bool {
	return math.Abs(r3.Norm(v)-1) <= tol
}

// IsFinite reports whether every component of v is a finite number.
func IsFinite(v Vec) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}
