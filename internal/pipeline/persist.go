package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/pointmesh/internal/fsutil"
	"github.com/banshee-data/pointmesh/internal/geometry"
	"github.com/banshee-data/pointmesh/internal/meshio"
	"github.com/banshee-data/pointmesh/internal/monitoring"
	"github.com/banshee-data/pointmesh/internal/report"
)

// BaseName is the file name of the base mesh inside an output directory.
const BaseName = "base.ply"

// LodName returns the file name of the LoD mesh for target.
func LodName(target int) string {
	return fmt.Sprintf("lod_%d.ply", target)
}

// PersistOptions selects the optional outputs.
type PersistOptions struct {
	// WriteSTL adds a binary STL twin of every PLY. STL output needs a real
	// file system and is skipped on any other.
	WriteSTL bool
	// Report renders the LoD PNG and HTML summaries.
	Report bool
	Title  string
}

// Artifacts lists the files Persist wrote.
type Artifacts struct {
	Dir      string
	BasePath string
	LodPaths map[int]string
	STLPaths []string
	Reports  []string
}

// Persist writes the base mesh and every LoD as ASCII PLY into dir,
// creating it if needed. Each file is published atomically.
func Persist(fsys fsutil.FileSystem, dir string, res *Result, opts PersistOptions) (*Artifacts, error) {
	if res == nil || res.Base == nil {
		return nil, stageErr(StagePersist, fmt.Errorf("nothing to persist: %w", geometry.ErrEmptyInput))
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, stageErr(StagePersist, fmt.Errorf("create %s: %w", dir, err))
	}
	_, onDisk := fsys.(fsutil.OSFileSystem)
	if opts.WriteSTL && !onDisk {
		monitoring.Logf("[Pipeline] stl output skipped, not writing to the os file system")
	}

	art := &Artifacts{Dir: dir, LodPaths: make(map[int]string, len(res.LoDs))}
	write := func(name string, m *geometry.Mesh) (string, error) {
		path := filepath.Join(dir, name)
		if err := meshio.WriteMeshFile(fsys, path, m); err != nil {
			return "", err
		}
		if opts.WriteSTL && onDisk {
			stl := strings.TrimSuffix(path, filepath.Ext(path)) + ".stl"
			if err := meshio.SaveSTL(stl, m); err != nil {
				return "", err
			}
			art.STLPaths = append(art.STLPaths, stl)
		}
		return path, nil
	}

	var err error
	if art.BasePath, err = write(BaseName, res.Base); err != nil {
		return nil, stageErr(StagePersist, err)
	}
	for _, target := range res.Targets() {
		path, err := write(LodName(target), res.LoDs[target])
		if err != nil {
			return nil, stageErr(StagePersist, err)
		}
		art.LodPaths[target] = path
	}

	if opts.Report && len(res.LoDs) > 0 {
		if err := report.Write(fsys, dir, Summarize(res, opts.Title)); err != nil {
			return nil, stageErr(StagePersist, err)
		}
		art.Reports = []string{filepath.Join(dir, report.PNGName), filepath.Join(dir, report.HTMLName)}
	}
	monitoring.Logf("[Pipeline] persisted %s", monitoring.KV("dir", dir, "lods", len(art.LodPaths), "stl", len(art.STLPaths)))
	return art, nil
}

// Summarize converts a result into the report summary.
func Summarize(res *Result, title string) report.Summary {
	s := report.Summary{Title: title, BaseTriangles: res.Base.TriangleCount()}
	for _, target := range res.Targets() {
		st := res.LoDStats[target]
		s.Levels = append(s.Levels, report.Level{
			Target:    target,
			Triangles: st.Triangles,
			Vertices:  res.LoDs[target].VertexCount(),
			Collapses: st.Collapses,
			MaxError:  st.MaxError,
			Reached:   st.Reached,
		})
	}
	return s
}
