package normals

import (
	"fmt"
	"math"
	"runtime"

	"github.com/banshee-data/pointmesh/internal/geometry"
)

// DegeneratePolicy selects what happens to a point whose neighbourhood is too
// small or too thin (collinear, coincident) to fit a tangent plane.
type DegeneratePolicy int

const (
	// PolicyCopyNearest copies the normal of the nearest point that has a
	// valid one.
	PolicyCopyNearest DegeneratePolicy = iota
	// PolicyDrop removes the point from the output.
	PolicyDrop
	// PolicyFail aborts estimation with ErrInsufficientNeighbors.
	PolicyFail
)

var policyNames = map[DegeneratePolicy]string{
	PolicyCopyNearest: "copy_nearest",
	PolicyDrop:        "drop",
	PolicyFail:        "fail",
}

func (p DegeneratePolicy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("DegeneratePolicy(%d)", int(p))
}

// ParsePolicy maps a configuration string to a DegeneratePolicy. The empty
// string selects the default.
func ParsePolicy(s string) (DegeneratePolicy, error) {
	if s == "" {
		return PolicyCopyNearest, nil
	}
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown normal policy %q: %w", s, geometry.ErrInvalidConfiguration)
}

// Default estimation parameters.
const (
	DefaultRadius          = 0.1
	DefaultMaxNeighbors    = 30
	DefaultAmbiguityCosine = 0.5
)

// Params configures normal estimation.
type Params struct {
	// Radius bounds the neighbourhood used for plane fitting.
	Radius float64
	// MaxNeighbors caps the neighbourhood size; the query point counts.
	MaxNeighbors int
	Policy       DegeneratePolicy
	// AmbiguityCosine is the |cos| between neighbouring normals below which
	// orientation falls back to "away from the component centroid" instead
	// of following the spanning-tree parent.
	AmbiguityCosine float64
	// Workers bounds the number of goroutines; <= 0 uses GOMAXPROCS.
	Workers int
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Radius:          DefaultRadius,
		MaxNeighbors:    DefaultMaxNeighbors,
		Policy:          PolicyCopyNearest,
		AmbiguityCosine: DefaultAmbiguityCosine,
	}
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	if !(p.Radius > 0) || math.IsInf(p.Radius, 1) {
		return fmt.Errorf("normal radius must be positive and finite, got %v: %w", p.Radius, geometry.ErrInvalidConfiguration)
	}
	if p.MaxNeighbors < 3 {
		return fmt.Errorf("normal max neighbors must be at least 3, got %d: %w", p.MaxNeighbors, geometry.ErrInvalidConfiguration)
	}
	if _, ok := policyNames[p.Policy]; !ok {
		return fmt.Errorf("unknown normal policy %v: %w", p.Policy, geometry.ErrInvalidConfiguration)
	}
	if p.AmbiguityCosine < 0 || p.AmbiguityCosine > 1 {
		return fmt.Errorf("orientation ambiguity cosine must be in [0, 1], got %v: %w", p.AmbiguityCosine, geometry.ErrInvalidConfiguration)
	}
	return nil
}

func (p Params) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.GOMAXPROCS(0)
}
