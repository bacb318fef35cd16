package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"github.com/banshee-data/pointmesh/internal/meshio"
	"github.com/banshee-data/pointmesh/internal/monitoring"
	"github.com/banshee-data/pointmesh/internal/testutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--quiet"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path string, write func(*bytes.Buffer) error) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, write(&buf))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "pointmesh dev")
}

func TestInfoMeshAndCloud(t *testing.T) {
	dir := t.TempDir()
	meshPath := filepath.Join(dir, "tetra.ply")
	writeFile(t, meshPath, func(b *bytes.Buffer) error { return meshio.WritePLY(b, testutil.Tetrahedron()) })

	out, err := execute(t, "info", meshPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Triangles: 4")
	assert.Contains(t, out, "Edges: 6")
	assert.Contains(t, out, "Closed: true")

	cloudPath := filepath.Join(dir, "sphere.xyz")
	cloud := geometry.NewPointCloud(testutil.FibonacciSphere(50, geometry.Vec{}, 1))
	writeFile(t, cloudPath, func(b *bytes.Buffer) error { return meshio.WriteXYZ(b, cloud) })

	out, err = execute(t, "info", cloudPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Point Cloud")
	assert.Contains(t, out, "Points: 50")

	_, err = execute(t, "info", filepath.Join(dir, "model.obj"))
	assert.ErrorIs(t, err, meshio.ErrUnsupportedFormat)
}

var runIDPattern = regexp.MustCompile(`Run: ([0-9a-f-]{36})`)

func TestRunRecordsAndLists(t *testing.T) {
	dir := t.TempDir()
	cloudPath := filepath.Join(dir, "sphere.xyz")
	cloud := geometry.NewPointCloud(testutil.FibonacciSphere(2000, geometry.Vec{}, 1))
	writeFile(t, cloudPath, func(b *bytes.Buffer) error { return meshio.WriteXYZ(b, cloud) })

	cfgPath := filepath.Join(dir, "pipeline.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{
		"normal_radius": 0.3,
		"reconstruction_depth": 5,
		"full_depth": 4,
		"linear_fit": true,
		"crop_margin": 0.2,
		"lod_targets": [1000, 100]
	}`), 0o644))
	dbPath := filepath.Join(dir, "runs.db")
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, "run", cloudPath, "--config", cfgPath, "--db", dbPath, "--out", outDir, "--targets", "500")
	require.NoError(t, err)
	m := runIDPattern.FindStringSubmatch(out)
	require.Len(t, m, 2, "output:\n%s", out)
	runID := m[1]
	assert.Contains(t, out, "LoD 500:")
	assert.NotContains(t, out, "LoD 1000:", "--targets overrides the config")
	assert.FileExists(t, filepath.Join(outDir, "sphere", "base.ply"))
	assert.FileExists(t, filepath.Join(outDir, "sphere", "lod_500.ply"))
	assert.FileExists(t, filepath.Join(outDir, "sphere", "lod_report.html"))

	out, err = execute(t, "runs", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, runID)
	assert.Contains(t, out, "succeeded")

	out, err = execute(t, "runs", runID, "--db", dbPath, "--json")
	require.NoError(t, err)
	var shown struct {
		RunID  string `json:"run_id"`
		Status string `json:"status"`
		Lods   []struct {
			Target int    `json:"target"`
			Path   string `json:"path"`
		} `json:"lods"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, runID, shown.RunID)
	assert.Equal(t, "succeeded", shown.Status)
	require.Len(t, shown.Lods, 1)
	assert.Equal(t, 500, shown.Lods[0].Target)

	out, err = execute(t, "migrate", "version", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "version 3 (latest 3, dirty false)")
}

func TestRunFailureIsRecorded(t *testing.T) {
	dir := t.TempDir()
	cloudPath := filepath.Join(dir, "plane.xyz")
	writeFile(t, cloudPath, func(b *bytes.Buffer) error {
		return meshio.WriteXYZ(b, geometry.NewPointCloud(testutil.CoplanarPoints(10)))
	})
	cfgPath := filepath.Join(dir, "pipeline.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"normal_radius": 10, "reconstruction_depth": 3}`), 0o644))
	dbPath := filepath.Join(dir, "runs.db")

	_, err := execute(t, "run", cloudPath, "--config", cfgPath, "--db", dbPath, "--out", filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.ErrorIs(t, err, geometry.ErrDegenerateInput)

	out, err := execute(t, "runs", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "failed (reconstruct)")
}

func TestLodCommand(t *testing.T) {
	dir := t.TempDir()
	meshPath := filepath.Join(dir, "torus.ply")
	writeFile(t, meshPath, func(b *bytes.Buffer) error { return meshio.WritePLY(b, testutil.Torus(30, 30, 1, 0.4)) })
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, "lod", meshPath, "--out", outDir, "--targets", "400,40", "--stl", "--no-report")
	require.NoError(t, err)
	assert.Contains(t, out, "Base mesh: 900 vertices, 1800 triangles")
	assert.FileExists(t, filepath.Join(outDir, "torus_lod", "lod_400.ply"))
	assert.FileExists(t, filepath.Join(outDir, "torus_lod", "lod_40.stl"))
	assert.NoFileExists(t, filepath.Join(outDir, "torus_lod", "lod_report.png"))
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"run without input", []string{"run"}},
		{"runs without db", []string{"runs"}},
		{"migrate without db", []string{"migrate", "version"}},
		{"missing config", []string{"run", "x.xyz", "--config", filepath.Join(dir, "missing.json")}},
		{"bad target", []string{"lod", "x.ply", "--targets", "0"}},
		{"force not a number", []string{"migrate", "force", "abc", "--db", filepath.Join(dir, "runs.db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
