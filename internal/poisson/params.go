package poisson

import (
	"fmt"
	"math"

	"github.com/banshee-data/pointmesh/internal/geometry"
)

// Default reconstruction parameters.
const (
	DefaultDepth     = 8
	DefaultScale     = 1.1
	DefaultFullDepth = 5
	DefaultBandWidth = 2
	DefaultMinPoints = 4

	// MaxDepth bounds the finest octree level; 2^12 cells per axis.
	MaxDepth = 12
)

// Params configures Reconstruct.
type Params struct {
	// Depth is the finest octree level; the finest cell side is
	// (domain side) / 2^Depth.
	Depth int
	// Scale is the ratio between the reconstruction cube and the largest
	// extent of the input bounding box.
	Scale float64
	// LinearFit places surface vertices by linear interpolation along grid
	// edges instead of at the edge midpoint.
	LinearFit bool
	// FullDepth is the level up to which the grid covers the whole domain.
	FullDepth int
	// BandWidth is the number of cells by which sample cells are dilated on
	// each adaptive level.
	BandWidth int
	// MinPoints is the smallest accepted input size.
	MinPoints int
	// Solver solves each level's linear system; nil selects a default
	// ConjugateGradient.
	Solver Solver
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Depth:     DefaultDepth,
		Scale:     DefaultScale,
		FullDepth: DefaultFullDepth,
		BandWidth: DefaultBandWidth,
		MinPoints: DefaultMinPoints,
	}
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	if p.Depth < 1 || p.Depth > MaxDepth {
		return fmt.Errorf("reconstruction depth must be in [1, %d], got %d: %w", MaxDepth, p.Depth, geometry.ErrInvalidConfiguration)
	}
	// At scale 1 the extreme samples sit on the fixed zero boundary and the
	// indicator function has no level set to extract.
	if !(p.Scale > 1) || math.IsInf(p.Scale, 1) {
		return fmt.Errorf("reconstruction scale must be > 1, got %v: %w", p.Scale, geometry.ErrInvalidConfiguration)
	}
	if p.FullDepth < 0 {
		return fmt.Errorf("full depth must not be negative, got %d: %w", p.FullDepth, geometry.ErrInvalidConfiguration)
	}
	if p.BandWidth < 0 {
		return fmt.Errorf("band width must not be negative, got %d: %w", p.BandWidth, geometry.ErrInvalidConfiguration)
	}
	if p.MinPoints < 0 {
		return fmt.Errorf("min points must not be negative, got %d: %w", p.MinPoints, geometry.ErrInvalidConfiguration)
	}
	return nil
}

// withDefaults fills zero values that have no meaningful zero setting.
func (p Params) withDefaults() Params {
	if p.FullDepth == 0 {
		p.FullDepth = DefaultFullDepth
	}
	if p.MinPoints == 0 {
		p.MinPoints = DefaultMinPoints
	}
	if p.Solver == nil {
		p.Solver = &ConjugateGradient{}
	}
	return p
}

func (p Params) baseDepth() int {
	return min(p.Depth, p.FullDepth)
}
