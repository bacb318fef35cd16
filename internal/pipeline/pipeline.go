package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/banshee-data/pointmesh/internal/cleanup"
	"github.com/banshee-data/pointmesh/internal/geometry"
	"github.com/banshee-data/pointmesh/internal/lod"
	"github.com/banshee-data/pointmesh/internal/monitoring"
	"github.com/banshee-data/pointmesh/internal/normals"
	"github.com/banshee-data/pointmesh/internal/poisson"
	"github.com/banshee-data/pointmesh/internal/timeutil"
)

// Stage names a pipeline step. They appear in errors, logs, stage timings
// and the failed_stage column of stored runs.
type Stage string

const (
	StageConfig      Stage = "config"
	StageRead        Stage = "read"
	StageNormals     Stage = "normals"
	StageReconstruct Stage = "reconstruct"
	StageCleanup     Stage = "cleanup"
	StageCrop        Stage = "crop"
	StageLoD         Stage = "lod"
	StagePersist     Stage = "persist"
)

// StageError records which stage failed. The cause stays reachable through
// errors.Is and errors.As.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// FailedStage returns the stage recorded in err, or "" when err did not
// come from a stage.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Result holds everything a successful run produced.
type Result struct {
	InputPoints int
	// Oriented is the number of points that survived normal estimation.
	Oriented int
	// RawTriangles is the triangle count straight out of reconstruction.
	RawTriangles int
	// Base is the cleaned and cropped mesh every LoD is derived from.
	Base         *geometry.Mesh
	Cleanup      cleanup.Stats
	CropRemoved  int
	LoDs         map[int]*geometry.Mesh
	LoDStats     map[int]lod.Stats
	StageTimings []timeutil.Lap
}

// Targets returns the LoD targets present in r, largest first.
func (r *Result) Targets() []int {
	targets := make([]int, 0, len(r.LoDs))
	for t := range r.LoDs {
		targets = append(targets, t)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(targets)))
	return targets
}

// Run reconstructs a surface from cloud and derives its levels of detail.
// Each stage works on a fresh value produced by the stage before it; the
// input cloud is never modified. Cancellation is checked between stages and
// inside LoD generation.
func Run(ctx context.Context, cloud *geometry.PointCloud, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, stageErr(StageConfig, err)
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	sw := timeutil.StartStopwatch(opts.Clock)
	res := &Result{InputPoints: cloud.Len()}

	if err := ctx.Err(); err != nil {
		return nil, stageErr(StageNormals, err)
	}
	oriented, err := normals.Estimate(cloud, opts.Normals)
	if err != nil {
		return nil, stageErr(StageNormals, err)
	}
	res.Oriented = len(oriented)
	logStage(StageNormals, sw.Lap(string(StageNormals)), "points", res.InputPoints, "oriented", res.Oriented)

	if err := ctx.Err(); err != nil {
		return nil, stageErr(StageReconstruct, err)
	}
	raw, err := poisson.Reconstruct(oriented, opts.Poisson)
	if err != nil {
		return nil, stageErr(StageReconstruct, err)
	}
	res.RawTriangles = raw.TriangleCount()
	logStage(StageReconstruct, sw.Lap(string(StageReconstruct)),
		"vertices", raw.VertexCount(), "triangles", res.RawTriangles)

	if err := ctx.Err(); err != nil {
		return nil, stageErr(StageCleanup, err)
	}
	cleaned, stats, err := cleanup.Clean(raw, opts.Cleanup)
	if err != nil {
		return nil, stageErr(StageCleanup, err)
	}
	res.Cleanup = stats
	logStage(StageCleanup, sw.Lap(string(StageCleanup)), "triangles", cleaned.TriangleCount(), "stats", stats)

	box := cloud.Bounds().Expand(opts.CropMargin)
	cropped, err := cleanup.Crop(cleaned, box)
	if err != nil {
		return nil, stageErr(StageCrop, err)
	}
	if cropped.IsEmpty() {
		return nil, stageErr(StageCrop, fmt.Errorf("no triangles inside %v..%v: %w", box.Min, box.Max, geometry.ErrEmptyInput))
	}
	res.CropRemoved = cleaned.TriangleCount() - cropped.TriangleCount()
	res.Base = cropped
	logStage(StageCrop, sw.Lap(string(StageCrop)),
		"vertices", cropped.VertexCount(), "triangles", cropped.TriangleCount(), "removed", res.CropRemoved)

	if len(opts.Targets) > 0 {
		res.LoDs, res.LoDStats, err = lod.Generate(ctx, cropped, opts.Targets, opts.LoD)
		if err != nil {
			return nil, stageErr(StageLoD, err)
		}
		logStage(StageLoD, sw.Lap(string(StageLoD)), "levels", len(res.LoDs))
	} else {
		monitoring.Logf("[Pipeline] stage=%s skipped, no targets", StageLoD)
	}

	res.StageTimings = sw.Laps()
	monitoring.Logf("[Pipeline] done %s", monitoring.KV("total", sw.Total(), "base_triangles", cropped.TriangleCount()))
	return res, nil
}

// RunLoD simplifies an existing mesh to the requested targets without
// reconstructing it. The base is cleaned first so it satisfies the
// simplifier's manifold precondition.
func RunLoD(ctx context.Context, mesh *geometry.Mesh, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, stageErr(StageConfig, err)
	}
	if len(opts.Targets) == 0 {
		return nil, stageErr(StageConfig, fmt.Errorf("no lod targets: %w", geometry.ErrInvalidConfiguration))
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	sw := timeutil.StartStopwatch(opts.Clock)

	base, stats, err := cleanup.Clean(mesh, opts.Cleanup)
	if err != nil {
		return nil, stageErr(StageCleanup, err)
	}
	if base.IsEmpty() {
		return nil, stageErr(StageCleanup, fmt.Errorf("mesh has no usable triangles: %w", geometry.ErrEmptyInput))
	}
	logStage(StageCleanup, sw.Lap(string(StageCleanup)), "triangles", base.TriangleCount(), "stats", stats)

	lods, lodStats, err := lod.Generate(ctx, base, opts.Targets, opts.LoD)
	if err != nil {
		return nil, stageErr(StageLoD, err)
	}
	logStage(StageLoD, sw.Lap(string(StageLoD)), "levels", len(lods))

	return &Result{
		RawTriangles: mesh.TriangleCount(),
		Base:         base,
		Cleanup:      stats,
		LoDs:         lods,
		LoDStats:     lodStats,
		StageTimings: sw.Laps(),
	}, nil
}

func logStage(stage Stage, took time.Duration, pairs ...interface{}) {
	monitoring.Logf("[Pipeline] stage=%s %s", stage, monitoring.KV(append([]interface{}{"took", took}, pairs...)...))
}
