package meshio

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/pointmesh/internal/fsutil"
	"github.com/banshee-data/pointmesh/internal/geometry"
	"github.com/banshee-data/pointmesh/internal/monitoring"
	"github.com/banshee-data/pointmesh/internal/testutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func TestReadXYZ(t *testing.T) {
	input := `# comment
0 0 0
1.5,2.5,3.5
  4 5 6 255 0 0

nan 1 1
7	8	9
`
	cloud, skipped, err := ReadXYZ(strings.NewReader(input))
	testutil.AssertNoError(t, err)
	want := []geometry.Vec{{}, {X: 1.5, Y: 2.5, Z: 3.5}, {X: 4, Y: 5, Z: 6}, {X: 7, Y: 8, Z: 9}}
	if diff := cmp.Diff(want, cloud.Points); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
}

func TestReadXYZErrors(t *testing.T) {
	tests := map[string]string{
		"two columns":  "1 2\n",
		"not a number": "1 two 3\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := ReadXYZ(strings.NewReader(input))
			if err == nil || !strings.Contains(err.Error(), "line 1") {
				t.Errorf("expected line 1 error, got %v", err)
			}
		})
	}
}

func TestPCDRoundTrip(t *testing.T) {
	cloud := geometry.NewPointCloud(testutil.FibonacciSphere(50, geometry.Vec{X: 1}, 0.3))
	var buf bytes.Buffer
	testutil.AssertNoError(t, WritePCD(&buf, cloud))

	got, skipped, err := ReadPCD(&buf)
	testutil.AssertNoError(t, err)
	if skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}
	if diff := cmp.Diff(cloud.Points, got.Points); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReadPCDFieldLayout(t *testing.T) {
	input := `# .PCD v0.7
VERSION 0.7
FIELDS rgb normal x y z
SIZE 4 4 4 4 4
TYPE F F F F F
COUNT 1 3 1 1 1
WIDTH 3
HEIGHT 1
VIEWPOINT 0 0 0 1 0 0 0
POINTS 3
DATA ascii
0 0 0 1 1 2 3
0 0 0 1 nan nan nan
0 0 0 1 4 5 6
`
	cloud, skipped, err := ReadPCD(strings.NewReader(input))
	testutil.AssertNoError(t, err)
	want := []geometry.Vec{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}}
	if diff := cmp.Diff(want, cloud.Points); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
}

func TestReadPCDErrors(t *testing.T) {
	header := "VERSION 0.7\nFIELDS x y z\nCOUNT 1 1 1\nPOINTS 2\n"
	tests := []struct {
		name  string
		input string
		is    error
	}{
		{"binary data", header + "DATA binary\n", ErrUnsupportedFormat},
		{"short body", header + "DATA ascii\n1 2 3\n", io.ErrUnexpectedEOF},
		{"missing data", header, nil},
		{"no xyz", "FIELDS a b c\nPOINTS 0\nDATA ascii\n", nil},
		{"unknown header", "BOGUS 1\n", nil},
		{"short row", header + "DATA ascii\n1 2\n3 4 5\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadPCD(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("expected %v, got %v", tt.is, err)
			}
		})
	}
}

func TestPLYMeshRoundTrip(t *testing.T) {
	m := testutil.Icosphere(1)
	var buf bytes.Buffer
	testutil.AssertNoError(t, WritePLY(&buf, m))

	got, err := ReadMeshPLY(bytes.NewReader(buf.Bytes()))
	testutil.AssertNoError(t, err)
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	cloud, _, err := ReadPLYPoints(bytes.NewReader(buf.Bytes()))
	testutil.AssertNoError(t, err)
	if diff := cmp.Diff(m.Vertices, cloud.Points); diff != "" {
		t.Errorf("vertex points mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMeshPLYFanAndExtraProperties(t *testing.T) {
	input := `ply
format ascii 1.0
comment written elsewhere
element camera 1
property float view
element vertex 4
property float x
property float y
property float z
property uchar red
element face 1
property uchar flags
property list uchar int vertex_index
end_header
9
0 0 0 255
1 0 0 255
1 1 0 255
0 1 0 255
7 4 0 1 2 3
`
	m, err := ReadMeshPLY(strings.NewReader(input))
	testutil.AssertNoError(t, err)
	want := []geometry.Triangle{{0, 1, 2}, {0, 2, 3}}
	if diff := cmp.Diff(want, m.Triangles); diff != "" {
		t.Errorf("triangles mismatch (-want +got):\n%s", diff)
	}
	if m.VertexCount() != 4 {
		t.Errorf("VertexCount = %d, want 4", m.VertexCount())
	}
}

func TestReadMeshPLYErrors(t *testing.T) {
	head := "ply\nformat ascii 1.0\nelement vertex 3\nproperty float x\nproperty float y\nproperty float z\n"
	verts := "0 0 0\n1 0 0\n0 1 0\n"
	faces := "element face 1\nproperty list uchar int vertex_indices\nend_header\n"
	tests := []struct {
		name  string
		input string
		is    error
	}{
		{"binary", "ply\nformat binary_little_endian 1.0\nend_header\n", ErrUnsupportedFormat},
		{"bad magic", "plx\n", nil},
		{"index out of range", head + faces + verts + "3 0 1 3\n", nil},
		{"two corners", head + faces + verts + "2 0 1\n", nil},
		{"truncated", head + faces + verts, io.ErrUnexpectedEOF},
		{"nan vertex", head + faces + "0 0 0\nnan 0 0\n0 1 0\n3 0 1 2\n", geometry.ErrDegenerateInput},
		{"no end_header", head, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadMeshPLY(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("expected %v, got %v", tt.is, err)
			}
		})
	}
}

func TestReadPointCloudFSDispatch(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	mfs.WriteFile("cloud.xyz", []byte("0 0 0\n1 1 1\n"))
	mfs.WriteFile("cloud.PCD", []byte("FIELDS x y z\nPOINTS 1\nDATA ascii\n2 2 2\n"))
	mfs.WriteFile("cloud.las", []byte{})

	got, err := ReadPointCloudFS(mfs, "cloud.xyz")
	testutil.AssertNoError(t, err)
	if got.Len() != 2 {
		t.Errorf("xyz Len = %d, want 2", got.Len())
	}

	got, err = ReadPointCloudFS(mfs, "cloud.PCD")
	testutil.AssertNoError(t, err)
	if got.Len() != 1 {
		t.Errorf("pcd Len = %d, want 1", got.Len())
	}

	_, err = ReadPointCloudFS(mfs, "cloud.las")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	_, err = ReadPointCloudFS(mfs, "missing.xyz")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestWriteMeshFileThenReadMesh(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	testutil.AssertNoError(t, mfs.MkdirAll("out", 0755))
	m := testutil.Tetrahedron()

	testutil.AssertNoError(t, WriteMeshFile(mfs, "out/base.ply", m))
	got, err := ReadMeshFS(mfs, "out/base.ply")
	testutil.AssertNoError(t, err)
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("mesh mismatch (-want +got):\n%s", diff)
	}

	if _, err := ReadMeshFS(mfs, "out/base.stl"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("stl on memory filesystem: expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := ReadMeshFS(mfs, "out/base.obj"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("obj: expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestWriteMeshFileMissingDir(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	if err := WriteMeshFile(mfs, "nowhere/base.ply", testutil.Tetrahedron()); err == nil {
		t.Error("expected error writing into a missing directory")
	}
}

// assertSameSurface checks that got lists the same triangles as want corner
// by corner, allowing vertices to be renumbered.
func assertSameSurface(t *testing.T, want, got *geometry.Mesh) {
	t.Helper()
	if got.VertexCount() != want.VertexCount() || got.TriangleCount() != want.TriangleCount() {
		t.Fatalf("got %d vertices / %d triangles, want %d / %d",
			got.VertexCount(), got.TriangleCount(), want.VertexCount(), want.TriangleCount())
	}
	for i := range want.Triangles {
		for j := 0; j < 3; j++ {
			w := want.Vertices[want.Triangles[i][j]]
			g := got.Vertices[got.Triangles[i][j]]
			if w != g {
				t.Fatalf("triangle %d corner %d: got %v, want %v", i, j, g, w)
			}
		}
	}
}

func TestTrianglesWeld(t *testing.T) {
	m := testutil.Icosphere(1)
	soup := ToTriangles(m)
	if len(soup) != m.TriangleCount() {
		t.Fatalf("soup has %d triangles, want %d", len(soup), m.TriangleCount())
	}
	assertSameSurface(t, m, FromTriangles(soup))
}

func TestSTLRoundTrip(t *testing.T) {
	// Coordinates exactly representable in float32.
	m := geometry.NewMesh(
		[]geometry.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}},
		[]geometry.Triangle{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}},
	)
	path := filepath.Join(t.TempDir(), "tetra.stl")
	testutil.AssertNoError(t, SaveSTL(path, m))

	got, err := ReadMesh(path)
	testutil.AssertNoError(t, err)
	assertSameSurface(t, m, got)
	if math.Abs(got.SignedVolume()-1.0/6) > 1e-9 {
		t.Errorf("SignedVolume = %v, want 1/6", got.SignedVolume())
	}
}
