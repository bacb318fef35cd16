package cleanup

import (
	"fmt"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"github.com/banshee-data/pointmesh/internal/monitoring"
)

// DefaultMaxIterations bounds the number of rounds Clean runs.
const DefaultMaxIterations = 10

// Options configures Clean.
type Options struct {
	// AreaEpsilon is the largest triangle area treated as degenerate.
	AreaEpsilon float64
	// MergeEpsilon is the distance within which vertices are merged; zero
	// merges exact duplicates only.
	MergeEpsilon float64
	// MaxIterations bounds the rounds of passes; <= 0 uses
	// DefaultMaxIterations.
	MaxIterations int
}

// DefaultOptions returns exact-duplicate cleaning.
func DefaultOptions() Options {
	return Options{MaxIterations: DefaultMaxIterations}
}

// Stats counts what Clean removed over all rounds.
type Stats struct {
	Iterations          int
	DegenerateTriangles int
	DuplicateTriangles  int
	// MergedVertices counts vertices removed by the merge pass, including
	// the ones it pruned as unreferenced.
	MergedVertices       int
	NonManifoldTriangles int
	UnreferencedVertices int
	// Converged reports that the last round changed nothing.
	Converged bool
}

func (s Stats) String() string {
	return fmt.Sprintf("iterations=%d degenerate=%d duplicate=%d merged=%d nonmanifold=%d unreferenced=%d converged=%v",
		s.Iterations, s.DegenerateTriangles, s.DuplicateTriangles, s.MergedVertices,
		s.NonManifoldTriangles, s.UnreferencedVertices, s.Converged)
}

// Clean runs the passes in order (degenerate triangles, duplicated
// triangles, duplicated vertices, non-manifold edges, unreferenced vertices)
// until a round removes nothing. Cleaning a converged result is a no-op.
func Clean(m *geometry.Mesh, opts Options) (*geometry.Mesh, Stats, error) {
	if opts.AreaEpsilon < 0 {
		return nil, Stats{}, fmt.Errorf("area epsilon must not be negative, got %v: %w", opts.AreaEpsilon, geometry.ErrInvalidConfiguration)
	}
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	var st Stats
	out := m.Clone()
	for st.Iterations < maxIter {
		st.Iterations++
		var degenerate, duplicate, merged, nonManifold, unreferenced int
		var err error
		out, degenerate = RemoveDegenerateTriangles(out, opts.AreaEpsilon)
		out, duplicate = RemoveDuplicatedTriangles(out)
		out, merged, err = RemoveDuplicatedVertices(out, opts.MergeEpsilon)
		if err != nil {
			return nil, st, err
		}
		out, nonManifold = RemoveNonManifoldEdges(out)
		out, unreferenced = RemoveUnreferencedVertices(out)

		st.DegenerateTriangles += degenerate
		st.DuplicateTriangles += duplicate
		st.MergedVertices += merged
		st.NonManifoldTriangles += nonManifold
		st.UnreferencedVertices += unreferenced
		if degenerate+duplicate+merged+nonManifold+unreferenced == 0 {
			st.Converged = true
			break
		}
	}
	if !st.Converged {
		monitoring.Logf("[Cleanup] no fixed point after %d rounds", st.Iterations)
	}
	monitoring.Logf("[Cleanup] %s vertices=%d triangles=%d", st, out.VertexCount(), out.TriangleCount())
	return out, st, nil
}
