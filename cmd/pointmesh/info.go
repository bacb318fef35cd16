package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"github.com/banshee-data/pointmesh/internal/meshio"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Display statistics for a point cloud or mesh file",
		Long: `Show the point or triangle count, bounding box and, for meshes, surface
area, enclosed volume and whether the surface is manifold and closed.
PLY files without faces are reported as point clouds.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			w := cmd.OutOrStdout()
			switch strings.ToLower(filepath.Ext(path)) {
			case ".stl":
				return infoMesh(w, path)
			case ".ply":
				if err := infoMesh(w, path); err == nil {
					return nil
				}
			}
			cloud, err := meshio.ReadPointCloud(path)
			if err != nil {
				return err
			}
			printCloudInfo(w, path, cloud)
			return nil
		},
	}
}

func infoMesh(w io.Writer, path string) error {
	m, err := meshio.ReadMesh(path)
	if err != nil {
		return err
	}
	if m.IsEmpty() {
		return fmt.Errorf("%s: %w", path, geometry.ErrEmptyInput)
	}
	printMeshInfo(w, path, m)
	return nil
}

func printBounds(w io.Writer, b geometry.BoundingBox) {
	fmt.Fprintln(w, "Bounding Box:")
	fmt.Fprintf(w, "  Min: %s\n", formatVec(b.Min))
	fmt.Fprintf(w, "  Max: %s\n", formatVec(b.Max))
	fmt.Fprintf(w, "  Center: %s\n", formatVec(b.Center()))
	fmt.Fprintf(w, "  Diagonal: %.6f\n", b.Diagonal())
}

func formatVec(v geometry.Vec) string {
	return fmt.Sprintf("(%.6f, %.6f, %.6f)", v.X, v.Y, v.Z)
}

func printCloudInfo(w io.Writer, path string, cloud *geometry.PointCloud) {
	fmt.Fprintln(w, "Point Cloud")
	fmt.Fprintf(w, "File: %s\n", path)
	fmt.Fprintf(w, "  Points: %d\n\n", cloud.Len())
	if cloud.Len() > 0 {
		printBounds(w, cloud.Bounds())
	}
}

func printMeshInfo(w io.Writer, path string, m *geometry.Mesh) {
	fmt.Fprintln(w, "Mesh")
	fmt.Fprintf(w, "File: %s\n", path)
	fmt.Fprintf(w, "  Vertices: %d\n", m.VertexCount())
	fmt.Fprintf(w, "  Triangles: %d\n", m.TriangleCount())
	fmt.Fprintf(w, "  Edges: %d\n", len(m.Edges()))
	fmt.Fprintf(w, "  Surface Area: %.6f\n", m.SurfaceArea())
	fmt.Fprintf(w, "  Manifold: %v\n", m.IsManifold())
	closed := m.IsClosed()
	fmt.Fprintf(w, "  Closed: %v\n", closed)
	if closed {
		fmt.Fprintf(w, "  Volume: %.6f\n", m.SignedVolume())
	}
	fmt.Fprintln(w)
	printBounds(w, m.Bounds())
}
