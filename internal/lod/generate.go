package lod

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"golang.org/x/sync/errgroup"
)

// Generate simplifies an independent copy of base for every target in
// parallel and returns the results keyed by target. Repeated targets are
// computed once. The first failure cancels the remaining runs and no
// partial result is returned.
func Generate(ctx context.Context, base *geometry.Mesh, targets []int, opts Options) (map[int]*geometry.Mesh, map[int]Stats, error) {
	if len(targets) == 0 {
		return nil, nil, fmt.Errorf("generate lods: no targets: %w", geometry.ErrInvalidConfiguration)
	}
	for _, t := range targets {
		if t <= 0 {
			return nil, nil, fmt.Errorf("generate lods: target must be positive, got %d: %w", t, geometry.ErrInvalidConfiguration)
		}
	}
	if base.IsEmpty() {
		return nil, nil, fmt.Errorf("generate lods: %w", geometry.ErrEmptyInput)
	}

	unique := uniqueTargets(targets)
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var mu sync.Mutex
	meshes := make(map[int]*geometry.Mesh, len(unique))
	stats := make(map[int]Stats, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, target := range unique {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, st, err := SimplifyContext(gctx, base, target, opts)
			if err != nil {
				return err
			}
			logStats(st)
			mu.Lock()
			meshes[target] = out
			stats[target] = st
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("generate lods: %w", err)
	}
	return meshes, stats, nil
}

// uniqueTargets returns the distinct targets, largest first.
func uniqueTargets(targets []int) []int {
	seen := make(map[int]struct{}, len(targets))
	out := make([]int, 0, len(targets))
	for _, t := range targets {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}
