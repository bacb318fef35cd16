package testutil

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	// Verify nil error doesn't cause issues
	AssertNoError(t, nil)
}

// recordingTB captures failures instead of reporting them, so the failure
// paths of the helpers can be checked without failing this test.
type recordingTB struct {
	testing.TB
	errors []string
	fatal  bool
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Errorf(format string, args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *recordingTB) Fatalf(format string, args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
	r.fatal = true
}

func (r *recordingTB) Fatal(args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprint(args...))
	r.fatal = true
}

func TestAssertNoErrorFailure(t *testing.T) {
	t.Parallel()

	rec := &recordingTB{TB: t}
	AssertNoError(rec, errors.New("boom"))
	if !rec.fatal || len(rec.errors) != 1 || !strings.Contains(rec.errors[0], "boom") {
		t.Fatalf("recorded %v (fatal=%v), want one fatal mentioning boom", rec.errors, rec.fatal)
	}
}

func TestAssertError(t *testing.T) {
	t.Parallel()
	AssertError(t, errors.New("boom"))
}

func TestAssertErrorFailure(t *testing.T) {
	t.Parallel()

	rec := &recordingTB{TB: t}
	AssertError(rec, nil)
	if !rec.fatal || len(rec.errors) != 1 || rec.errors[0] != "expected error, got nil" {
		t.Fatalf("recorded %v (fatal=%v), want one fatal for the missing error", rec.errors, rec.fatal)
	}
}

func TestAssertManifoldFailure(t *testing.T) {
	t.Parallel()

	// Three triangles on one edge, a repeated index and an unused vertex.
	m := geometry.NewMesh(
		[]geometry.Vec{{}, {X: 1}, {Y: 1}, {Y: -1}, {Z: 1}, {X: 5}},
		[]geometry.Triangle{{0, 1, 2}, {1, 0, 3}, {0, 1, 4}, {2, 2, 3}},
	)
	rec := &recordingTB{TB: t}
	AssertManifold(rec, m)

	want := []string{
		"mesh has an edge shared by 3 triangles",
		"triangle 3 repeats a vertex: [2 2 3]",
		"vertex 5 is unreferenced",
	}
	if rec.fatal {
		t.Error("AssertManifold should report with Errorf, not stop the test")
	}
	if len(rec.errors) != len(want) {
		t.Fatalf("recorded %q, want %q", rec.errors, want)
	}
	for i := range want {
		if rec.errors[i] != want[i] {
			t.Errorf("error %d = %q, want %q", i, rec.errors[i], want[i])
		}
	}
}

func TestAssertManifoldPasses(t *testing.T) {
	t.Parallel()

	rec := &recordingTB{TB: t}
	AssertManifold(rec, Tetrahedron())
	if len(rec.errors) != 0 {
		t.Fatalf("closed tetrahedron reported %q", rec.errors)
	}
}

func TestClosedFixtures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		mesh      *geometry.Mesh
		triangles int
	}{
		{"tetrahedron", Tetrahedron(), 4},
		{"icosahedron", Icosphere(0), 20},
		{"icosphere level 2", Icosphere(2), 320},
		{"torus", Torus(50, 50, 1, 0.4), 5000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.mesh.TriangleCount(); got != tc.triangles {
				t.Errorf("TriangleCount() = %d, want %d", got, tc.triangles)
			}
			if !tc.mesh.IsClosed() {
				t.Error("expected a closed, consistently wound mesh")
			}
			if v := tc.mesh.SignedVolume(); v <= 0 {
				t.Errorf("SignedVolume() = %v, want positive (outward winding)", v)
			}
			AssertManifold(t, tc.mesh)
		})
	}
}

func TestIcosphereOnUnitSphere(t *testing.T) {
	t.Parallel()

	for i, v := range Icosphere(3).Vertices {
		if math.Abs(r3.Norm(v)-1) > 1e-12 {
			t.Fatalf("vertex %d at radius %v", i, r3.Norm(v))
		}
	}
}

func TestPlaneGridNormals(t *testing.T) {
	t.Parallel()

	u := geometry.Vec{X: 1}
	v := geometry.Vec{Y: 1}
	m := PlaneGrid(4, geometry.Vec{Z: 2}, u, v, 0.5)
	if got := m.TriangleCount(); got != 32 {
		t.Fatalf("TriangleCount() = %d, want 32", got)
	}
	for i := range m.Triangles {
		n := m.TriangleNormal(i)
		if math.Abs(n.Z-1) > 1e-12 {
			t.Errorf("triangle %d normal = %v, want +Z", i, n)
		}
	}
}

func TestFibonacciSphereRadius(t *testing.T) {
	t.Parallel()

	c := geometry.Vec{X: 1, Y: -2, Z: 3}
	for _, p := range OrientedSphere(200, c, 2.5) {
		if d := r3.Norm(r3.Sub(p.Position, c)); math.Abs(d-2.5) > 1e-9 {
			t.Fatalf("point at distance %v, want 2.5", d)
		}
		if !geometry.IsUnit(p.Normal, 1e-12) {
			t.Fatalf("normal %v not unit length", p.Normal)
		}
	}
}

func TestCoplanarPoints(t *testing.T) {
	t.Parallel()

	for _, p := range CoplanarPoints(10) {
		if p.Z != 0.5 {
			t.Fatalf("point %v off the z=0.5 plane", p)
		}
	}
}
