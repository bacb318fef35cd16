package geometry

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is an indexed triangle mesh. Each Mesh value owns its arrays; stages
// always return fresh meshes rather than editing their input.
type Mesh struct {
	Vertices  []Vec
	Triangles []Triangle
}

// NewMesh wraps vertex and triangle arrays in a Mesh without copying.
func NewMesh(vertices []Vec, triangles []Triangle) *Mesh {
	return &Mesh{Vertices: vertices, Triangles: triangles}
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Triangles)
}

// IsEmpty returns true if the mesh has no triangles.
func (m *Mesh) IsEmpty() bool {
	return m == nil || len(m.Triangles) == 0
}

// Clone returns a deep copy sharing no storage with m.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Vertices:  make([]Vec, len(m.Vertices)),
		Triangles: make([]Triangle, len(m.Triangles)),
	}
	copy(out.Vertices, m.Vertices)
	copy(out.Triangles, m.Triangles)
	return out
}

// Bounds returns the bounding box of the vertex array.
func (m *Mesh) Bounds() BoundingBox {
	return BoundsOf(m.Vertices)
}

// TriangleCross returns the un-normalised face normal of triangle i, whose
// length is twice the triangle area.
func (m *Mesh) TriangleCross(i int) Vec {
	t := m.Triangles[i]
	a, b, c := m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]
	return r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
}

// TriangleNormal returns the unit face normal of triangle i, or the zero
// vector for a zero-area triangle.
func (m *Mesh) TriangleNormal(i int) Vec {
	n := m.TriangleCross(i)
	l := r3.Norm(n)
	if l == 0 {
		return Vec{}
	}
	return r3.Scale(1/l, n)
}

// TriangleArea returns the area of triangle i.
func (m *Mesh) TriangleArea(i int) float64 {
	return 0.5 * r3.Norm(m.TriangleCross(i))
}

// SurfaceArea returns the total triangle area.
func (m *Mesh) SurfaceArea() float64 {
	var sum float64
	for i := range m.Triangles {
		sum += m.TriangleArea(i)
	}
	return sum
}

// Edges maps every undirected edge to the indices of its incident
// triangles, in triangle order.
func (m *Mesh) Edges() map[Edge][]int {
	edges := make(map[Edge][]int, len(m.Triangles)*3/2)
	for ti, t := range m.Triangles {
		for _, e := range t.Edges() {
			key := NewEdge(e[0], e[1])
			edges[key] = append(edges[key], ti)
		}
	}
	return edges
}

// SortedEdges returns the keys of Edges sorted by (A, B) so callers can
// visit edges deterministically.
func SortedEdges(edges map[Edge][]int) []Edge {
	keys := make([]Edge, 0, len(edges))
	for e := range edges {
		keys = append(keys, e)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].A != keys[j].A {
			return keys[i].A < keys[j].A
		}
		return keys[i].B < keys[j].B
	})
	return keys
}

// MaxEdgeValence returns the largest number of triangles sharing one edge.
func (m *Mesh) MaxEdgeValence() int {
	maxCount := 0
	for _, tris := range m.Edges() {
		if len(tris) > maxCount {
			maxCount = len(tris)
		}
	}
	return maxCount
}

// IsManifold reports whether no edge is shared by more than two triangles.
func (m *Mesh) IsManifold() bool {
	return m.MaxEdgeValence() <= 2
}

// IsClosed reports whether every edge is shared by exactly two triangles
// with opposite directions, i.e. the mesh is watertight and consistently
// wound.
func (m *Mesh) IsClosed() bool {
	if len(m.Triangles) == 0 {
		return false
	}
	directed := make(map[[2]int]int, len(m.Triangles)*3)
	for _, t := range m.Triangles {
		for _, e := range t.Edges() {
			directed[e]++
		}
	}
	for e, n := range directed {
		if n != 1 || directed[[2]int{e[1], e[0]}] != 1 {
			return false
		}
	}
	return true
}

// ReferencedVertices returns, per vertex, whether any triangle uses it.
func (m *Mesh) ReferencedVertices() []bool {
	used := make([]bool, len(m.Vertices))
	for _, t := range m.Triangles {
		used[t[0]] = true
		used[t[1]] = true
		used[t[2]] = true
	}
	return used
}

// Compact returns a copy of m without unreferenced vertices. Vertex order is
// preserved and triangle indices are remapped; the result never shares
// storage with m.
func (m *Mesh) Compact() *Mesh {
	used := m.ReferencedVertices()
	remap := make([]int, len(m.Vertices))
	vertices := make([]Vec, 0, len(m.Vertices))
	for i, ok := range used {
		if !ok {
			remap[i] = -1
			continue
		}
		remap[i] = len(vertices)
		vertices = append(vertices, m.Vertices[i])
	}
	triangles := make([]Triangle, len(m.Triangles))
	for i, t := range m.Triangles {
		triangles[i] = Triangle{remap[t[0]], remap[t[1]], remap[t[2]]}
	}
	return &Mesh{Vertices: vertices, Triangles: triangles}
}

// SubsetTriangles returns a compacted copy of m keeping only the triangles
// for which keep returns true.
func (m *Mesh) SubsetTriangles(keep func(i int, t Triangle) bool) *Mesh {
	kept := make([]Triangle, 0, len(m.Triangles))
	for i, t := range m.Triangles {
		if keep(i, t) {
			kept = append(kept, t)
		}
	}
	return (&Mesh{Vertices: m.Vertices, Triangles: kept}).Compact()
}

// SignedVolume returns the enclosed volume of a closed mesh. It is positive
// when triangles are wound with outward-facing normals.
func (m *Mesh) SignedVolume() float64 {
	var sum float64
	for _, t := range m.Triangles {
		a, b, c := m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]
		sum += r3.Dot(a, r3.Cross(b, c))
	}
	return sum / 6
}
