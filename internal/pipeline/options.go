package pipeline

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/pointmesh/internal/cleanup"
	"github.com/banshee-data/pointmesh/internal/config"
	"github.com/banshee-data/pointmesh/internal/geometry"
	"github.com/banshee-data/pointmesh/internal/lod"
	"github.com/banshee-data/pointmesh/internal/normals"
	"github.com/banshee-data/pointmesh/internal/poisson"
	"github.com/banshee-data/pointmesh/internal/timeutil"
)

// Options configures every stage of a run.
type Options struct {
	Normals normals.Params
	Poisson poisson.Params
	Cleanup cleanup.Options
	// CropMargin grows (or, when negative, shrinks) the input bounding box
	// used to crop the reconstructed surface.
	CropMargin float64
	// Targets lists the LoD triangle budgets; empty skips the LoD stage.
	Targets []int
	LoD     lod.Options
	// Timeout bounds the whole run; zero means no limit.
	Timeout time.Duration
	// Clock times the stages; nil uses the real clock.
	Clock timeutil.Clock
}

// DefaultOptions returns the stage defaults with the default LoD targets.
func DefaultOptions() Options {
	return Options{
		Normals: normals.DefaultParams(),
		Poisson: poisson.DefaultParams(),
		Cleanup: cleanup.DefaultOptions(),
		Targets: append([]int(nil), config.DefaultLodTargets...),
		LoD:     lod.DefaultOptions(),
	}
}

// OptionsFromConfig maps a validated PipelineConfig onto stage options.
func OptionsFromConfig(cfg *config.PipelineConfig) (Options, error) {
	if err := cfg.Validate(); err != nil {
		return Options{}, fmt.Errorf("%w: %w", geometry.ErrInvalidConfiguration, err)
	}
	policy, err := normals.ParsePolicy(cfg.GetNormalPolicy())
	if err != nil {
		return Options{}, err
	}
	workers := cfg.GetWorkers()

	opts := Options{
		Normals: normals.Params{
			Radius:          cfg.GetNormalRadius(),
			MaxNeighbors:    cfg.GetNormalMaxNeighbors(),
			Policy:          policy,
			AmbiguityCosine: cfg.GetOrientationAmbiguityCos(),
			Workers:         workers,
		},
		Poisson: poisson.Params{
			Depth:     cfg.GetReconstructionDepth(),
			Scale:     cfg.GetReconstructionScale(),
			LinearFit: cfg.GetLinearFit(),
			FullDepth: cfg.GetFullDepth(),
			BandWidth: cfg.GetBandWidth(),
			MinPoints: cfg.GetMinPoints(),
			Solver: &poisson.ConjugateGradient{
				Tolerance:     cfg.GetCGTolerance(),
				MaxIterations: cfg.GetCGMaxIterations(),
				Workers:       workers,
			},
		},
		Cleanup: cleanup.Options{
			AreaEpsilon:   cfg.GetAreaEpsilon(),
			MergeEpsilon:  cfg.GetMergeEpsilon(),
			MaxIterations: cleanup.DefaultMaxIterations,
		},
		CropMargin: cfg.GetCropMargin(),
		Targets:    cfg.GetLodTargets(),
		LoD: lod.Options{
			BoundaryWeight: cfg.GetBoundaryWeight(),
			Workers:        workers,
		},
		Timeout: cfg.GetTimeout(),
	}
	return opts, opts.Validate()
}

// Validate checks every stage's options up front so a bad value fails
// before any expensive work.
func (o Options) Validate() error {
	if err := o.Normals.Validate(); err != nil {
		return err
	}
	if err := o.Poisson.Validate(); err != nil {
		return err
	}
	if o.Cleanup.AreaEpsilon < 0 || o.Cleanup.MergeEpsilon < 0 {
		return fmt.Errorf("cleanup epsilons must not be negative: %w", geometry.ErrInvalidConfiguration)
	}
	if math.IsNaN(o.CropMargin) || math.IsInf(o.CropMargin, 0) {
		return fmt.Errorf("crop margin must be finite, got %v: %w", o.CropMargin, geometry.ErrInvalidConfiguration)
	}
	for _, t := range o.Targets {
		if t <= 0 {
			return fmt.Errorf("lod target must be positive, got %d: %w", t, geometry.ErrInvalidConfiguration)
		}
	}
	if o.LoD.BoundaryWeight < 0 {
		return fmt.Errorf("boundary weight must not be negative: %w", geometry.ErrInvalidConfiguration)
	}
	if o.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %w", geometry.ErrInvalidConfiguration)
	}
	return nil
}
