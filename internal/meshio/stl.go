package meshio

import (
	"fmt"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"github.com/banshee-data/pointmesh/internal/monitoring"
)

// ToTriangles expands an indexed mesh into sdfx triangle soup.
func ToTriangles(m *geometry.Mesh) []*sdf.Triangle3 {
	out := make([]*sdf.Triangle3, len(m.Triangles))
	for i, t := range m.Triangles {
		var tri sdf.Triangle3
		for j := 0; j < 3; j++ {
			p := m.Vertices[t[j]]
			tri[j] = v3.Vec{X: p.X, Y: p.Y, Z: p.Z}
		}
		out[i] = &tri
	}
	return out
}

// FromTriangles welds triangle soup into an indexed mesh. Corners with
// bit-identical coordinates share a vertex; vertices are numbered in order
// of first appearance.
func FromTriangles(tris []*sdf.Triangle3) *geometry.Mesh {
	index := make(map[geometry.Vec]int, len(tris))
	vertices := make([]geometry.Vec, 0, len(tris)/2+3)
	triangles := make([]geometry.Triangle, 0, len(tris))
	for _, tri := range tris {
		var t geometry.Triangle
		for j := 0; j < 3; j++ {
			p := geometry.Vec{X: tri[j].X, Y: tri[j].Y, Z: tri[j].Z}
			id, ok := index[p]
			if !ok {
				id = len(vertices)
				index[p] = id
				vertices = append(vertices, p)
			}
			t[j] = id
		}
		triangles = append(triangles, t)
	}
	return geometry.NewMesh(vertices, triangles)
}

// SaveSTL writes m to path as binary STL. STL stores float32 coordinates, so
// the file is lossy; PLY remains the reference output.
func SaveSTL(path string, m *geometry.Mesh) error {
	if err := render.SaveSTL(path, ToTriangles(m)); err != nil {
		return fmt.Errorf("save stl %s: %w", path, err)
	}
	monitoring.Logf("[MeshIO] wrote %s triangles=%d", path, m.TriangleCount())
	return nil
}

// LoadSTL reads an ASCII or binary STL file and welds it into an indexed
// mesh.
func LoadSTL(path string) (*geometry.Mesh, error) {
	tris, err := render.LoadSTL(path)
	if err != nil {
		return nil, fmt.Errorf("load stl %s: %w", path, err)
	}
	m := FromTriangles(tris)
	monitoring.Logf("[MeshIO] read mesh %s vertices=%d triangles=%d", path, m.VertexCount(), m.TriangleCount())
	return m, nil
}
