// Package meshio reads point clouds and triangle meshes from disk and writes
// reconstruction results. Text formats (XYZ, PCD, PLY) are parsed from any
// io.Reader; STL export goes through sdfx.
package meshio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/pointmesh/internal/fsutil"
	"github.com/banshee-data/pointmesh/internal/geometry"
	"github.com/banshee-data/pointmesh/internal/monitoring"
)

// ErrUnsupportedFormat reports a file extension or encoding the readers do
// not handle.
var ErrUnsupportedFormat = errors.New("unsupported format")

// maxLineBytes bounds a single text line; wide PCD rows can exceed the
// bufio default.
const maxLineBytes = 1 << 20

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return sc
}

// ReadPointCloud reads a point cloud from path on the local filesystem. The
// format is chosen by extension: .xyz, .pcd or .ply.
func ReadPointCloud(path string) (*geometry.PointCloud, error) {
	return ReadPointCloudFS(fsutil.OSFileSystem{}, path)
}

// ReadPointCloudFS is ReadPointCloud over an arbitrary FileSystem.
func ReadPointCloudFS(fsys fsutil.FileSystem, path string) (*geometry.PointCloud, error) {
	var parse func(io.Reader) (*geometry.PointCloud, int, error)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xyz", ".txt":
		parse = ReadXYZ
	case ".pcd":
		parse = ReadPCD
	case ".ply":
		parse = ReadPLYPoints
	default:
		return nil, fmt.Errorf("point cloud %q: extension %q: %w", path, ext, ErrUnsupportedFormat)
	}

	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open point cloud: %w", err)
	}
	defer f.Close()

	cloud, skipped, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("read point cloud %q: %w", path, err)
	}
	if skipped > 0 {
		monitoring.Logf("[MeshIO] skipped %d non-finite points in %s", skipped, path)
	}
	monitoring.Logf("[MeshIO] read %d points from %s", cloud.Len(), path)
	return cloud, nil
}

// ReadMesh reads a triangle mesh from path on the local filesystem. PLY is
// read through FileSystem; STL is loaded with sdfx and its vertices welded.
func ReadMesh(path string) (*geometry.Mesh, error) {
	return ReadMeshFS(fsutil.OSFileSystem{}, path)
}

// ReadMeshFS is ReadMesh over an arbitrary FileSystem. STL input is only
// supported on the local filesystem.
func ReadMeshFS(fsys fsutil.FileSystem, path string) (*geometry.Mesh, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ply":
		f, err := fsys.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open mesh: %w", err)
		}
		defer f.Close()
		m, err := ReadMeshPLY(f)
		if err != nil {
			return nil, fmt.Errorf("read mesh %q: %w", path, err)
		}
		monitoring.Logf("[MeshIO] read mesh %s vertices=%d triangles=%d", path, m.VertexCount(), m.TriangleCount())
		return m, nil
	case ".stl":
		if _, ok := fsys.(fsutil.OSFileSystem); !ok {
			return nil, fmt.Errorf("mesh %q: stl needs the local filesystem: %w", path, ErrUnsupportedFormat)
		}
		return LoadSTL(path)
	default:
		return nil, fmt.Errorf("mesh %q: extension %q: %w", path, ext, ErrUnsupportedFormat)
	}
}

// WriteMeshFile writes m as ASCII PLY to path.
func WriteMeshFile(fsys fsutil.FileSystem, path string, m *geometry.Mesh) error {
	w, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	bw := bufio.NewWriter(w)
	if err := WritePLY(bw, m); err != nil {
		fsutil.Discard(w)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		fsutil.Discard(w)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
