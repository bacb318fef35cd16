package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// PipelineConfig is the JSON configuration for a reconstruction run. Every
// field is optional; the Get* accessors supply the default for omitted keys,
// so partial files are safe.
type PipelineConfig struct {
	// Normal estimation
	NormalRadius            *float64 `json:"normal_radius,omitempty"`
	NormalMaxNeighbors      *int     `json:"normal_max_neighbors,omitempty"`
	NormalPolicy            *string  `json:"normal_policy,omitempty"` // copy_nearest, drop or fail
	OrientationAmbiguityCos *float64 `json:"orientation_ambiguity_cos,omitempty"`

	// Reconstruction
	ReconstructionDepth *int     `json:"reconstruction_depth,omitempty"`
	ReconstructionScale *float64 `json:"reconstruction_scale,omitempty"`
	LinearFit           *bool    `json:"linear_fit,omitempty"`
	FullDepth           *int     `json:"full_depth,omitempty"`
	BandWidth           *int     `json:"band_width,omitempty"`
	MinPoints           *int     `json:"min_points,omitempty"`
	CGTolerance         *float64 `json:"cg_tolerance,omitempty"`
	CGMaxIterations     *int     `json:"cg_max_iterations,omitempty"`

	// Cleanup and crop
	AreaEpsilon  *float64 `json:"area_epsilon,omitempty"`
	MergeEpsilon *float64 `json:"merge_epsilon,omitempty"`
	CropMargin   *float64 `json:"crop_margin,omitempty"`

	// Level of detail
	LodTargets     []int    `json:"lod_targets,omitempty"`
	BoundaryWeight *float64 `json:"boundary_weight,omitempty"`

	Workers *int    `json:"workers,omitempty"`
	Timeout *string `json:"timeout,omitempty"` // duration string like "10m"; empty means none
}

// Defaults used when a key is omitted.
var (
	DefaultLodTargets = []int{100000, 50000, 10000, 1000, 100}

	normalPolicies = []string{"copy_nearest", "drop", "fail"}
)

// EmptyPipelineConfig returns a PipelineConfig with every field unset.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// LoadPipelineConfig loads and validates a PipelineConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigFileSize)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	cfg := EmptyPipelineConfig()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upwards from the
// current directory. It panics on failure and is intended for test setup.
func MustLoadDefaultConfig() *PipelineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/pointmesh/
	}
	for _, path := range candidates {
		if cfg, err := LoadPipelineConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// Validate checks that every set value is in range.
func (c *PipelineConfig) Validate() error {
	if c.NormalRadius != nil && !positiveFinite(*c.NormalRadius) {
		return fmt.Errorf("normal_radius must be positive, got %v", *c.NormalRadius)
	}
	if c.NormalMaxNeighbors != nil && *c.NormalMaxNeighbors < 3 {
		return fmt.Errorf("normal_max_neighbors must be at least 3, got %d", *c.NormalMaxNeighbors)
	}
	if c.NormalPolicy != nil && *c.NormalPolicy != "" && !slices.Contains(normalPolicies, *c.NormalPolicy) {
		return fmt.Errorf("normal_policy must be one of %v, got %q", normalPolicies, *c.NormalPolicy)
	}
	if c.OrientationAmbiguityCos != nil {
		if v := *c.OrientationAmbiguityCos; v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("orientation_ambiguity_cos must be between 0 and 1, got %v", v)
		}
	}

	if c.ReconstructionDepth != nil && (*c.ReconstructionDepth < 1 || *c.ReconstructionDepth > 12) {
		return fmt.Errorf("reconstruction_depth must be between 1 and 12, got %d", *c.ReconstructionDepth)
	}
	if c.ReconstructionScale != nil && !(*c.ReconstructionScale > 1 && !math.IsInf(*c.ReconstructionScale, 1)) {
		return fmt.Errorf("reconstruction_scale must be greater than 1, got %v", *c.ReconstructionScale)
	}
	if c.FullDepth != nil && *c.FullDepth < 0 {
		return fmt.Errorf("full_depth must be non-negative, got %d", *c.FullDepth)
	}
	if c.BandWidth != nil && *c.BandWidth < 0 {
		return fmt.Errorf("band_width must be non-negative, got %d", *c.BandWidth)
	}
	if c.MinPoints != nil && *c.MinPoints < 0 {
		return fmt.Errorf("min_points must be non-negative, got %d", *c.MinPoints)
	}
	if c.CGTolerance != nil && !positiveFinite(*c.CGTolerance) {
		return fmt.Errorf("cg_tolerance must be positive, got %v", *c.CGTolerance)
	}
	if c.CGMaxIterations != nil && *c.CGMaxIterations < 1 {
		return fmt.Errorf("cg_max_iterations must be at least 1, got %d", *c.CGMaxIterations)
	}

	if c.AreaEpsilon != nil && !(*c.AreaEpsilon >= 0) {
		return fmt.Errorf("area_epsilon must be non-negative, got %v", *c.AreaEpsilon)
	}
	if c.MergeEpsilon != nil && !(*c.MergeEpsilon >= 0) {
		return fmt.Errorf("merge_epsilon must be non-negative, got %v", *c.MergeEpsilon)
	}
	if c.CropMargin != nil && (math.IsNaN(*c.CropMargin) || math.IsInf(*c.CropMargin, 0)) {
		return fmt.Errorf("crop_margin must be finite, got %v", *c.CropMargin)
	}

	for _, t := range c.LodTargets {
		if t <= 0 {
			return fmt.Errorf("lod_targets must be positive, got %d", t)
		}
	}
	if c.BoundaryWeight != nil && !(*c.BoundaryWeight >= 0) {
		return fmt.Errorf("boundary_weight must be non-negative, got %v", *c.BoundaryWeight)
	}

	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.Timeout != nil && *c.Timeout != "" {
		d, err := time.ParseDuration(*c.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout '%s': %w", *c.Timeout, err)
		}
		if d < 0 {
			return fmt.Errorf("timeout must be non-negative, got %s", d)
		}
	}
	return nil
}

// GetNormalRadius returns the normal_radius value or the default.
func (c *PipelineConfig) GetNormalRadius() float64 {
	if c.NormalRadius == nil {
		return 0.1
	}
	return *c.NormalRadius
}

// GetNormalMaxNeighbors returns the normal_max_neighbors value or the default.
func (c *PipelineConfig) GetNormalMaxNeighbors() int {
	if c.NormalMaxNeighbors == nil {
		return 30
	}
	return *c.NormalMaxNeighbors
}

// GetNormalPolicy returns the normal_policy value or the default.
func (c *PipelineConfig) GetNormalPolicy() string {
	if c.NormalPolicy == nil || *c.NormalPolicy == "" {
		return "copy_nearest"
	}
	return *c.NormalPolicy
}

// GetOrientationAmbiguityCos returns the orientation_ambiguity_cos value or the default.
func (c *PipelineConfig) GetOrientationAmbiguityCos() float64 {
	if c.OrientationAmbiguityCos == nil {
		return 0.5
	}
	return *c.OrientationAmbiguityCos
}

// GetReconstructionDepth returns the reconstruction_depth value or the default.
func (c *PipelineConfig) GetReconstructionDepth() int {
	if c.ReconstructionDepth == nil {
		return 8
	}
	return *c.ReconstructionDepth
}

// GetReconstructionScale returns the reconstruction_scale value or the default.
func (c *PipelineConfig) GetReconstructionScale() float64 {
	if c.ReconstructionScale == nil {
		return 1.1
	}
	return *c.ReconstructionScale
}

// GetLinearFit returns the linear_fit value or the default.
func (c *PipelineConfig) GetLinearFit() bool {
	if c.LinearFit == nil {
		return false
	}
	return *c.LinearFit
}

// GetFullDepth returns the full_depth value or the default.
func (c *PipelineConfig) GetFullDepth() int {
	if c.FullDepth == nil {
		return 5
	}
	return *c.FullDepth
}

// GetBandWidth returns the band_width value or the default.
func (c *PipelineConfig) GetBandWidth() int {
	if c.BandWidth == nil {
		return 2
	}
	return *c.BandWidth
}

// GetMinPoints returns the min_points value or the default.
func (c *PipelineConfig) GetMinPoints() int {
	if c.MinPoints == nil {
		return 4
	}
	return *c.MinPoints
}

// GetCGTolerance returns the cg_tolerance value or the default.
func (c *PipelineConfig) GetCGTolerance() float64 {
	if c.CGTolerance == nil {
		return 1e-7
	}
	return *c.CGTolerance
}

// GetCGMaxIterations returns the cg_max_iterations value or the default.
func (c *PipelineConfig) GetCGMaxIterations() int {
	if c.CGMaxIterations == nil {
		return 2000
	}
	return *c.CGMaxIterations
}

// GetAreaEpsilon returns the area_epsilon value or the default.
func (c *PipelineConfig) GetAreaEpsilon() float64 {
	if c.AreaEpsilon == nil {
		return 0
	}
	return *c.AreaEpsilon
}

// GetMergeEpsilon returns the merge_epsilon value or the default (exact
// duplicates only).
func (c *PipelineConfig) GetMergeEpsilon() float64 {
	if c.MergeEpsilon == nil {
		return 0
	}
	return *c.MergeEpsilon
}

// GetCropMargin returns the crop_margin value or the default. A positive
// margin grows the crop box on every side.
func (c *PipelineConfig) GetCropMargin() float64 {
	if c.CropMargin == nil {
		return 0
	}
	return *c.CropMargin
}

// GetLodTargets returns a copy of lod_targets or the default list.
func (c *PipelineConfig) GetLodTargets() []int {
	if len(c.LodTargets) == 0 {
		return slices.Clone(DefaultLodTargets)
	}
	return slices.Clone(c.LodTargets)
}

// GetBoundaryWeight returns the boundary_weight value or the default.
func (c *PipelineConfig) GetBoundaryWeight() float64 {
	if c.BoundaryWeight == nil {
		return 1.0
	}
	return *c.BoundaryWeight
}

// GetWorkers returns the workers value; 0 means one per CPU.
func (c *PipelineConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetTimeout parses and returns the Timeout. Zero means no timeout.
func (c *PipelineConfig) GetTimeout() time.Duration {
	if c.Timeout == nil || *c.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.Timeout)
	if err != nil {
		return 0
	}
	return d
}
