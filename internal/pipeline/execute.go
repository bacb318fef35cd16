package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/pointmesh/internal/db"
	"github.com/banshee-data/pointmesh/internal/fsutil"
	"github.com/banshee-data/pointmesh/internal/meshio"
	"github.com/banshee-data/pointmesh/internal/monitoring"
	"github.com/banshee-data/pointmesh/internal/security"
	"github.com/banshee-data/pointmesh/internal/timeutil"
)

// RunRecorder stores the lifecycle of a run. *db.RunStore implements it.
type RunRecorder interface {
	Start(inputPath string, configJSON json.RawMessage) (*db.Run, error)
	Complete(run *db.Run, lods []db.LodLevel) error
	Fail(runID, stage string, cause error) error
}

var _ RunRecorder = (*db.RunStore)(nil)

// Request describes one end-to-end run from an input file to persisted
// meshes.
type Request struct {
	Input string
	// FS is used for reading the input and writing outputs; nil means the
	// OS file system.
	FS fsutil.FileSystem
	// OutDir is the parent of the run's output directory.
	OutDir string
	// Name names the output directory; empty uses the input's base name.
	Name    string
	Options Options
	Persist PersistOptions
	// Store records the run when set.
	Store      RunRecorder
	ConfigJSON json.RawMessage
}

// Outcome is what Execute produced.
type Outcome struct {
	Run       *db.Run
	Result    *Result
	Artifacts *Artifacts
}

// Execute reads the input, runs every stage, writes the outputs and, when a
// store is configured, records the run as succeeded or failed with the
// stage that broke.
func Execute(ctx context.Context, req Request) (*Outcome, error) {
	fsys := req.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	out := &Outcome{}
	if req.Store != nil {
		run, err := req.Store.Start(req.Input, req.ConfigJSON)
		if err != nil {
			return nil, fmt.Errorf("record run start: %w", err)
		}
		out.Run = run
	}
	fail := func(err error) (*Outcome, error) {
		if out.Run != nil {
			if ferr := req.Store.Fail(out.Run.RunID, string(FailedStage(err)), err); ferr != nil {
				monitoring.Logf("[Pipeline] failed to record failure of run %s: %v", out.Run.RunID, ferr)
			}
		}
		return out, err
	}

	sw := timeutil.StartStopwatch(req.Options.Clock)
	cloud, err := meshio.ReadPointCloudFS(fsys, req.Input)
	if err != nil {
		return fail(stageErr(StageRead, err))
	}
	readTook := sw.Lap(string(StageRead))
	logStage(StageRead, readTook, "input", req.Input, "points", cloud.Len())

	res, err := Run(ctx, cloud, req.Options)
	if err != nil {
		return fail(err)
	}
	out.Result = res
	sw = timeutil.StartStopwatch(req.Options.Clock)

	dir, err := OutputDir(fsys, req.OutDir, req.Name, req.Input)
	if err != nil {
		return fail(stageErr(StagePersist, err))
	}
	title := req.Persist.Title
	if title == "" {
		title = filepath.Base(req.Input)
	}
	persistOpts := req.Persist
	persistOpts.Title = title
	art, err := Persist(fsys, dir, res, persistOpts)
	if err != nil {
		return fail(err)
	}
	out.Artifacts = art
	persistTook := sw.Lap(string(StagePersist))

	timings := []timeutil.Lap{{Name: string(StageRead), Duration: readTook}}
	timings = append(timings, res.StageTimings...)
	timings = append(timings, timeutil.Lap{Name: string(StagePersist), Duration: persistTook})
	res.StageTimings = timings

	if out.Run != nil {
		run := out.Run
		run.PointCount = res.InputPoints
		run.OrientedCount = res.Oriented
		run.BaseVertices = res.Base.VertexCount()
		run.BaseTriangles = res.Base.TriangleCount()
		run.StageTimings = timings
		if err := req.Store.Complete(run, LodLevels(res, art)); err != nil {
			return out, fmt.Errorf("record run completion: %w", err)
		}
	}
	return out, nil
}

// LodLevels converts a result into storable LoD rows, largest target first.
// art may be nil, leaving paths empty.
func LodLevels(res *Result, art *Artifacts) []db.LodLevel {
	levels := make([]db.LodLevel, 0, len(res.LoDs))
	for _, target := range res.Targets() {
		st := res.LoDStats[target]
		level := db.LodLevel{
			Target:    target,
			Triangles: st.Triangles,
			Vertices:  res.LoDs[target].VertexCount(),
			Collapses: st.Collapses,
			Rejected:  st.Rejected,
			MaxError:  st.MaxError,
			Reached:   st.Reached,
		}
		if art != nil {
			level.Path = art.LodPaths[target]
		}
		levels = append(levels, level)
	}
	return levels
}

// OutputDir returns parent/<name>, with name sanitized into a single path
// element and defaulting to the input's base name without extension. On the
// OS file system parent is created and the result is checked to stay inside
// it.
func OutputDir(fsys fsutil.FileSystem, parent, name, input string) (string, error) {
	if name == "" {
		base := filepath.Base(input)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	dir := filepath.Join(parent, security.SanitizeFilename(name))
	if _, onDisk := fsys.(fsutil.OSFileSystem); !onDisk {
		return dir, nil
	}
	if parent == "" {
		parent = "."
	}
	if err := fsys.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", parent, err)
	}
	if err := security.ValidatePathWithinDirectory(dir, parent); err != nil {
		return "", err
	}
	return dir, nil
}
