package geometry

import "errors"

// Error kinds shared by all pipeline stages. Stages wrap these with context
// using fmt.Errorf("...: %w", Err...) so callers can match with errors.Is.
var (
	// ErrEmptyInput reports zero points or triangles where at least one is required.
	ErrEmptyInput = errors.New("empty input")

	// ErrInsufficientNeighbors reports a local neighbourhood too degenerate
	// to fit a tangent plane.
	ErrInsufficientNeighbors = errors.New("insufficient neighbors")

	// ErrDegenerateInput reports a singular or ill-conditioned reconstruction
	// system, e.g. coplanar or too sparse input.
	ErrDegenerateInput = errors.New("degenerate input")

	// ErrInvalidConfiguration reports a parameter outside its valid range.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
