// Package cleanup repairs triangle meshes: it removes degenerate and
// duplicated triangles, merges coincident vertices, resolves non-manifold
// edges, drops unreferenced vertices and crops meshes to a box.
//
// Every pass returns a new mesh and never edits or aliases its input.
package cleanup

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"github.com/banshee-data/pointmesh/internal/spatial"
)

// RemoveDegenerateTriangles drops triangles that repeat a vertex or whose
// area is at most areaEps. Vertices are kept as they are.
func RemoveDegenerateTriangles(m *geometry.Mesh, areaEps float64) (*geometry.Mesh, int) {
	out := m.Clone()
	out.Triangles = out.Triangles[:0]
	for i, t := range m.Triangles {
		if t.HasRepeatedIndex() || m.TriangleArea(i) <= areaEps {
			continue
		}
		out.Triangles = append(out.Triangles, t)
	}
	return out, len(m.Triangles) - len(out.Triangles)
}

// RemoveDuplicatedTriangles drops every triangle whose unordered vertex set
// matches an earlier triangle, regardless of winding.
func RemoveDuplicatedTriangles(m *geometry.Mesh) (*geometry.Mesh, int) {
	out := m.Clone()
	out.Triangles = out.Triangles[:0]
	seen := make(map[[3]int]struct{}, len(m.Triangles))
	for _, t := range m.Triangles {
		key := t.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out.Triangles = append(out.Triangles, t)
	}
	return out, len(m.Triangles) - len(out.Triangles)
}

// RemoveDuplicatedVertices merges vertices lying within eps of each other.
// Vertices are visited in index order; each unmerged vertex absorbs every
// unmerged vertex within eps and keeps its own position. Triangles are
// remapped, triangles that collapse are dropped and unreferenced vertices
// are pruned. It returns the number of vertices removed.
func RemoveDuplicatedVertices(m *geometry.Mesh, eps float64) (*geometry.Mesh, int, error) {
	if eps < 0 || math.IsNaN(eps) {
		return nil, 0, fmt.Errorf("merge epsilon must not be negative, got %v: %w", eps, geometry.ErrInvalidConfiguration)
	}
	if len(m.Vertices) == 0 {
		return m.Clone(), 0, nil
	}
	tree, err := spatial.Build(m.Vertices)
	if err != nil {
		return nil, 0, fmt.Errorf("merge vertices: %w", err)
	}
	rep := make([]int, len(m.Vertices))
	for i := range rep {
		rep[i] = -1
	}
	for i, v := range m.Vertices {
		if rep[i] >= 0 {
			continue
		}
		rep[i] = i
		for n := range tree.RadiusSearch(v, eps) {
			if rep[n.Index] < 0 {
				rep[n.Index] = i
			}
		}
	}

	out := &geometry.Mesh{
		Vertices:  append([]geometry.Vec(nil), m.Vertices...),
		Triangles: make([]geometry.Triangle, 0, len(m.Triangles)),
	}
	for _, t := range m.Triangles {
		r := geometry.Triangle{rep[t[0]], rep[t[1]], rep[t[2]]}
		if r.HasRepeatedIndex() {
			continue
		}
		out.Triangles = append(out.Triangles, r)
	}
	out = out.Compact()
	return out, len(m.Vertices) - len(out.Vertices), nil
}

// RemoveNonManifoldEdges makes every edge shared by at most two triangles.
// Edges are visited in ascending (A, B) order; on an edge with more than two
// live triangles the two largest by area survive, ties going to the lower
// triangle index, and the others are removed.
func RemoveNonManifoldEdges(m *geometry.Mesh) (*geometry.Mesh, int) {
	edges := m.Edges()
	removed := make([]bool, len(m.Triangles))
	count := 0
	for _, e := range geometry.SortedEdges(edges) {
		var live []int
		for _, ti := range edges[e] {
			if !removed[ti] {
				live = append(live, ti)
			}
		}
		if len(live) <= 2 {
			continue
		}
		sort.SliceStable(live, func(a, b int) bool {
			aa, ab := m.TriangleArea(live[a]), m.TriangleArea(live[b])
			if aa != ab {
				return aa > ab
			}
			return live[a] < live[b]
		})
		for _, ti := range live[2:] {
			removed[ti] = true
			count++
		}
	}
	out := m.Clone()
	out.Triangles = out.Triangles[:0]
	for i, t := range m.Triangles {
		if !removed[i] {
			out.Triangles = append(out.Triangles, t)
		}
	}
	return out, count
}

// RemoveUnreferencedVertices drops vertices no triangle uses.
func RemoveUnreferencedVertices(m *geometry.Mesh) (*geometry.Mesh, int) {
	out := m.Compact()
	return out, len(m.Vertices) - len(out.Vertices)
}

// Crop keeps the triangles whose three vertices all lie inside box,
// boundary included. Triangles straddling the box are dropped, not clipped.
// The result is compacted.
func Crop(m *geometry.Mesh, box geometry.BoundingBox) (*geometry.Mesh, error) {
	if box.Empty() {
		return nil, fmt.Errorf("crop box is empty: %w", geometry.ErrInvalidConfiguration)
	}
	inside := make([]bool, len(m.Vertices))
	for i, v := range m.Vertices {
		inside[i] = box.Contains(v)
	}
	return m.SubsetTriangles(func(_ int, t geometry.Triangle) bool {
		return inside[t[0]] && inside[t[1]] && inside[t[2]]
	}), nil
}
