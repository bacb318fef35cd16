package lod

import (
	"math"
	"testing"

	"github.com/banshee-data/pointmesh/internal/geometry"
)

func TestPlaneQuadricDistance(t *testing.T) {
	q := PlaneQuadric(geometry.Vec{Z: 1}, geometry.Vec{Z: 2}, 1)
	tests := []struct {
		p    geometry.Vec
		want float64
	}{
		{geometry.Vec{Z: 2}, 0},
		{geometry.Vec{X: 5, Y: -3, Z: 2}, 0},
		{geometry.Vec{Z: 5}, 9},
		{geometry.Vec{X: 1, Z: 0}, 4},
	}
	for _, tt := range tests {
		if got := q.Error(tt.p); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Error(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := PlaneQuadric(geometry.Vec{Z: 1}, geometry.Vec{}, 3).Error(geometry.Vec{Z: 1}); got != 3 {
		t.Errorf("weighted error = %v, want 3", got)
	}
}

func TestQuadricMinimizerCorner(t *testing.T) {
	// Three orthogonal planes meet at a single point.
	corner := geometry.Vec{X: 1, Y: -2, Z: 3}
	q := PlaneQuadric(geometry.Vec{X: 1}, corner, 1).
		Add(PlaneQuadric(geometry.Vec{Y: 1}, corner, 1)).
		Add(PlaneQuadric(geometry.Vec{Z: 1}, corner, 1))
	got, ok := q.Minimizer()
	if !ok {
		t.Fatal("expected a unique minimiser")
	}
	if d := math.Abs(got.X-corner.X) + math.Abs(got.Y-corner.Y) + math.Abs(got.Z-corner.Z); d > 1e-9 {
		t.Errorf("Minimizer() = %v, want %v", got, corner)
	}
	if e := q.Error(got); e > 1e-12 {
		t.Errorf("error at minimiser = %v", e)
	}
}

func TestQuadricMinimizerSingular(t *testing.T) {
	// Two parallel planes leave a whole plane of minimisers.
	q := PlaneQuadric(geometry.Vec{Z: 1}, geometry.Vec{}, 1).
		Add(PlaneQuadric(geometry.Vec{Z: 1}, geometry.Vec{X: 4}, 2))
	if _, ok := q.Minimizer(); ok {
		t.Error("expected a singular system")
	}
	if _, ok := (Quadric{}).Minimizer(); ok {
		t.Error("zero quadric should be singular")
	}
}
