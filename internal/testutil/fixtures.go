package testutil

import (
	"math"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// CubeCorners returns the 8 corners of the unit cube [0,1]^3.
func CubeCorners() []geometry.Vec {
	pts := make([]geometry.Vec, 0, 8)
	for _, x := range []float64{0, 1} {
		for _, y := range []float64{0, 1} {
			for _, z := range []float64{0, 1} {
				pts = append(pts, geometry.Vec{X: x, Y: y, Z: z})
			}
		}
	}
	return pts
}

// CoplanarPoints returns n points on the plane z = 0.5 arranged on a
// sunflower spiral, so no three consecutive points are collinear.
func CoplanarPoints(n int) []geometry.Vec {
	pts := make([]geometry.Vec, n)
	golden := math.Pi * (3 - math.Sqrt(5))
	for i := range pts {
		r := math.Sqrt(float64(i) + 0.5)
		a := golden * float64(i)
		pts[i] = geometry.Vec{X: r * math.Cos(a), Y: r * math.Sin(a), Z: 0.5}
	}
	return pts
}

// FibonacciSphere returns n points spread evenly over a sphere.
func FibonacciSphere(n int, center geometry.Vec, radius float64) []geometry.Vec {
	pts := make([]geometry.Vec, n)
	golden := math.Pi * (3 - math.Sqrt(5))
	for i := range pts {
		y := 1 - 2*(float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - y*y)
		a := golden * float64(i)
		dir := geometry.Vec{X: r * math.Cos(a), Y: y, Z: r * math.Sin(a)}
		pts[i] = r3.Add(center, r3.Scale(radius, dir))
	}
	return pts
}

// OrientedSphere returns FibonacciSphere samples with exact outward normals.
func OrientedSphere(n int, center geometry.Vec, radius float64) []geometry.OrientedPoint {
	pts := FibonacciSphere(n, center, radius)
	out := make([]geometry.OrientedPoint, n)
	for i, p := range pts {
		out[i] = geometry.OrientedPoint{Position: p, Normal: r3.Unit(r3.Sub(p, center))}
	}
	return out
}

// Tetrahedron returns a closed tetrahedron with outward winding.
func Tetrahedron() *geometry.Mesh {
	return geometry.NewMesh(
		[]geometry.Vec{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 0, Y: 0, Z: 1}},
		[]geometry.Triangle{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}},
	)
}

// Icosphere returns a closed unit sphere built by subdividing an
// icosahedron level times. It has 20*4^level triangles.
func Icosphere(level int) *geometry.Mesh {
	t := (1 + math.Sqrt(5)) / 2
	verts := []geometry.Vec{
		{X: -1, Y: t}, {X: 1, Y: t}, {X: -1, Y: -t}, {X: 1, Y: -t},
		{Y: -1, Z: t}, {Y: 1, Z: t}, {Y: -1, Z: -t}, {Y: 1, Z: -t},
		{X: t, Z: -1}, {X: t, Z: 1}, {X: -t, Z: -1}, {X: -t, Z: 1},
	}
	for i := range verts {
		verts[i] = r3.Unit(verts[i])
	}
	tris := []geometry.Triangle{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}
	for l := 0; l < level; l++ {
		mid := make(map[geometry.Edge]int)
		midpoint := func(a, b int) int {
			key := geometry.NewEdge(a, b)
			if idx, ok := mid[key]; ok {
				return idx
			}
			verts = append(verts, r3.Unit(r3.Add(verts[a], verts[b])))
			mid[key] = len(verts) - 1
			return len(verts) - 1
		}
		next := make([]geometry.Triangle, 0, len(tris)*4)
		for _, tri := range tris {
			a := midpoint(tri[0], tri[1])
			b := midpoint(tri[1], tri[2])
			c := midpoint(tri[2], tri[0])
			next = append(next,
				geometry.Triangle{tri[0], a, c},
				geometry.Triangle{tri[1], b, a},
				geometry.Triangle{tri[2], c, b},
				geometry.Triangle{a, b, c},
			)
		}
		tris = next
	}
	return geometry.NewMesh(verts, tris)
}

// Torus returns a closed torus with nu segments around the main ring and nv
// around the tube, giving 2*nu*nv triangles with outward winding.
func Torus(nu, nv int, major, minor float64) *geometry.Mesh {
	verts := make([]geometry.Vec, 0, nu*nv)
	for i := 0; i < nu; i++ {
		u := 2 * math.Pi * float64(i) / float64(nu)
		for j := 0; j < nv; j++ {
			v := 2 * math.Pi * float64(j) / float64(nv)
			ring := major + minor*math.Cos(v)
			verts = append(verts, geometry.Vec{
				X: ring * math.Cos(u),
				Y: ring * math.Sin(u),
				Z: minor * math.Sin(v),
			})
		}
	}
	idx := func(i, j int) int { return (i%nu)*nv + j%nv }
	tris := make([]geometry.Triangle, 0, 2*nu*nv)
	for i := 0; i < nu; i++ {
		for j := 0; j < nv; j++ {
			a, b, c, d := idx(i, j), idx(i+1, j), idx(i+1, j+1), idx(i, j+1)
			tris = append(tris, geometry.Triangle{a, b, c}, geometry.Triangle{a, c, d})
		}
	}
	return geometry.NewMesh(verts, tris)
}

// PlaneGrid returns an n×n grid of quads (2*n*n triangles) lying in the
// plane through origin spanned by the orthonormal directions u and v, wound
// so every triangle normal equals u×v.
func PlaneGrid(n int, origin, u, v geometry.Vec, spacing float64) *geometry.Mesh {
	verts := make([]geometry.Vec, 0, (n+1)*(n+1))
	for j := 0; j <= n; j++ {
		for i := 0; i <= n; i++ {
			p := r3.Add(origin, r3.Add(r3.Scale(float64(i)*spacing, u), r3.Scale(float64(j)*spacing, v)))
			verts = append(verts, p)
		}
	}
	idx := func(i, j int) int { return j*(n+1) + i }
	tris := make([]geometry.Triangle, 0, 2*n*n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			a, b, c, d := idx(i, j), idx(i+1, j), idx(i+1, j+1), idx(i, j+1)
			tris = append(tris, geometry.Triangle{a, b, c}, geometry.Triangle{a, c, d})
		}
	}
	return geometry.NewMesh(verts, tris)
}
