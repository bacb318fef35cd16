package geometry

import (
	"math"
	"testing"
)

// square returns two triangles sharing the diagonal 0-2, plus an unused vertex.
func square() *Mesh {
	return NewMesh(
		[]Vec{{X: 0}, {X: 1}, {X: 1, Y: 1}, {Y: 1}, {X: 5, Y: 5, Z: 5}},
		[]Triangle{{0, 1, 2}, {0, 2, 3}},
	)
}

func tetra() *Mesh {
	return NewMesh(
		[]Vec{{}, {X: 1}, {Y: 1}, {Z: 1}},
		[]Triangle{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}},
	)
}

func TestTriangleKey(t *testing.T) {
	tests := []struct {
		in   Triangle
		want [3]int
	}{
		{Triangle{0, 1, 2}, [3]int{0, 1, 2}},
		{Triangle{2, 0, 1}, [3]int{0, 1, 2}},
		{Triangle{2, 1, 0}, [3]int{0, 1, 2}},
		{Triangle{7, 3, 5}, [3]int{3, 5, 7}},
	}
	for _, tt := range tests {
		if got := tt.in.Key(); got != tt.want {
			t.Errorf("%v.Key() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTriangleHasRepeatedIndex(t *testing.T) {
	if (Triangle{0, 1, 2}).HasRepeatedIndex() {
		t.Error("distinct corners reported as repeated")
	}
	for _, tri := range []Triangle{{0, 0, 1}, {0, 1, 1}, {1, 0, 1}} {
		if !tri.HasRepeatedIndex() {
			t.Errorf("%v: repeated corner not detected", tri)
		}
	}
}

func TestNewEdgeCanonical(t *testing.T) {
	if NewEdge(4, 2) != NewEdge(2, 4) {
		t.Error("NewEdge should not depend on argument order")
	}
	if e := NewEdge(9, 1); e.A != 1 || e.B != 9 {
		t.Errorf("NewEdge(9, 1) = %+v", e)
	}
}

func TestMeshAreaAndNormal(t *testing.T) {
	m := square()
	if got := m.TriangleArea(0); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("TriangleArea(0) = %v, want 0.5", got)
	}
	if got := m.SurfaceArea(); math.Abs(got-1) > 1e-12 {
		t.Errorf("SurfaceArea() = %v, want 1", got)
	}
	if n := m.TriangleNormal(1); n != (Vec{Z: 1}) {
		t.Errorf("TriangleNormal(1) = %v, want +Z", n)
	}

	flat := NewMesh([]Vec{{}, {X: 1}, {X: 2}}, []Triangle{{0, 1, 2}})
	if n := flat.TriangleNormal(0); n != (Vec{}) {
		t.Errorf("zero-area normal = %v, want zero vector", n)
	}
}

func TestMeshEdges(t *testing.T) {
	edges := square().Edges()
	if len(edges) != 5 {
		t.Fatalf("len(Edges()) = %d, want 5", len(edges))
	}
	if got := edges[NewEdge(0, 2)]; len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("diagonal incident triangles = %v, want [0 1]", got)
	}

	keys := SortedEdges(edges)
	for i := 1; i < len(keys); i++ {
		prev, cur := keys[i-1], keys[i]
		if prev.A > cur.A || (prev.A == cur.A && prev.B >= cur.B) {
			t.Fatalf("SortedEdges not ascending at %d: %v, %v", i, prev, cur)
		}
	}
}

func TestMeshManifoldAndClosed(t *testing.T) {
	if !tetra().IsClosed() {
		t.Error("tetrahedron should be closed")
	}
	if square().IsClosed() {
		t.Error("open square reported closed")
	}
	if !square().IsManifold() {
		t.Error("square should be manifold")
	}

	// Flip one face: still manifold, no longer consistently wound.
	m := tetra()
	m.Triangles[3] = Triangle{1, 3, 2}
	if m.IsClosed() {
		t.Error("inconsistently wound mesh reported closed")
	}

	fan := NewMesh(
		[]Vec{{}, {X: 1}, {Y: 1}, {Y: -1}, {Z: 1}},
		[]Triangle{{0, 1, 2}, {1, 0, 3}, {0, 1, 4}},
	)
	if fan.IsManifold() {
		t.Error("three triangles on one edge reported manifold")
	}
	if got := fan.MaxEdgeValence(); got != 3 {
		t.Errorf("MaxEdgeValence() = %d, want 3", got)
	}
}

func TestMeshCloneDoesNotAlias(t *testing.T) {
	m := square()
	c := m.Clone()
	c.Vertices[0].X = 42
	c.Triangles[0][0] = 3
	if m.Vertices[0].X == 42 || m.Triangles[0][0] == 3 {
		t.Error("Clone shares storage with the original")
	}
}

func TestMeshCompact(t *testing.T) {
	m := square()
	c := m.Compact()
	if c.VertexCount() != 4 {
		t.Fatalf("VertexCount() = %d, want 4", c.VertexCount())
	}
	if c.TriangleCount() != 2 {
		t.Fatalf("TriangleCount() = %d, want 2", c.TriangleCount())
	}
	for i, used := range c.ReferencedVertices() {
		if !used {
			t.Errorf("vertex %d unreferenced after Compact", i)
		}
	}
	c.Vertices[0].X = 42
	if m.Vertices[0].X == 42 {
		t.Error("Compact shares storage with the original")
	}
}

func TestMeshSubsetTriangles(t *testing.T) {
	m := square()
	sub := m.SubsetTriangles(func(i int, _ Triangle) bool { return i == 1 })
	if sub.TriangleCount() != 1 || sub.VertexCount() != 3 {
		t.Fatalf("subset = %d triangles, %d vertices; want 1, 3", sub.TriangleCount(), sub.VertexCount())
	}
	if got := sub.Vertices[sub.Triangles[0][2]]; got != (Vec{Y: 1}) {
		t.Errorf("remapped corner = %v, want (0,1,0)", got)
	}
}

func TestMeshSignedVolume(t *testing.T) {
	if got := tetra().SignedVolume(); math.Abs(got-1.0/6) > 1e-12 {
		t.Errorf("SignedVolume() = %v, want 1/6", got)
	}
}

func TestMeshIsEmpty(t *testing.T) {
	var m *Mesh
	if !m.IsEmpty() {
		t.Error("nil mesh should be empty")
	}
	if !NewMesh([]Vec{{}}, nil).IsEmpty() {
		t.Error("mesh without triangles should be empty")
	}
	if tetra().IsEmpty() {
		t.Error("tetrahedron should not be empty")
	}
}
