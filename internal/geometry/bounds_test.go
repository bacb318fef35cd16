package geometry

import (
	"math"
	"testing"
)

func TestBoundsOf(t *testing.T) {
	b := BoundsOf([]Vec{{X: 1, Y: -2, Z: 3}, {X: -1, Y: 4, Z: 0}, {X: 0, Y: 0, Z: 9}})
	want := BoundingBox{Min: Vec{X: -1, Y: -2, Z: 0}, Max: Vec{X: 1, Y: 4, Z: 9}}
	if b != want {
		t.Fatalf("BoundsOf = %+v, want %+v", b, want)
	}
	if b.Empty() {
		t.Error("non-empty box reported Empty")
	}
	if got := b.MaxExtent(); got != 9 {
		t.Errorf("MaxExtent() = %v, want 9", got)
	}
	if got := b.Center(); got != (Vec{X: 0, Y: 1, Z: 4.5}) {
		t.Errorf("Center() = %v", got)
	}
	if got := b.Diagonal(); math.Abs(got-math.Sqrt(4+36+81)) > 1e-12 {
		t.Errorf("Diagonal() = %v", got)
	}
}

func TestBoundsOfEmpty(t *testing.T) {
	b := BoundsOf(nil)
	if !b.Empty() {
		t.Fatal("BoundsOf(nil) should be Empty")
	}
	if b.Contains(Vec{}) {
		t.Error("empty box should contain nothing")
	}
	if b.Diagonal() != 0 {
		t.Errorf("Diagonal() = %v, want 0", b.Diagonal())
	}
}

func TestBoundingBoxContainsInclusive(t *testing.T) {
	b := BoundingBox{Max: Vec{X: 1, Y: 1, Z: 1}}
	tests := []struct {
		p    Vec
		want bool
	}{
		{Vec{}, true},
		{Vec{X: 1, Y: 1, Z: 1}, true},
		{Vec{X: 0.5, Y: 0.5, Z: 0.5}, true},
		{Vec{X: 1.0000001, Y: 0.5, Z: 0.5}, false},
		{Vec{X: 0.5, Y: -1e-9, Z: 0.5}, false},
	}
	for _, tt := range tests {
		if got := b.Contains(tt.p); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestBoundingBoxExpand(t *testing.T) {
	b := BoundingBox{Max: Vec{X: 1, Y: 2, Z: 3}}.Expand(0.5)
	if b.Min != (Vec{X: -0.5, Y: -0.5, Z: -0.5}) || b.Max != (Vec{X: 1.5, Y: 2.5, Z: 3.5}) {
		t.Errorf("Expand(0.5) = %+v", b)
	}
	if got := b.Size(); got != (Vec{X: 2, Y: 3, Z: 4}) {
		t.Errorf("Size() = %v", got)
	}
}

func TestPointCloud(t *testing.T) {
	var nilCloud *PointCloud
	if nilCloud.Len() != 0 {
		t.Error("nil cloud should have length 0")
	}
	pc := NewPointCloud([]Vec{{X: 1}, {X: 1}, {Z: 2}})
	if pc.Len() != 3 {
		t.Errorf("Len() = %d, want 3 (duplicates kept)", pc.Len())
	}
	if got := pc.Bounds().Max; got != (Vec{X: 1, Z: 2}) {
		t.Errorf("Bounds().Max = %v", got)
	}
}

func TestVecPredicates(t *testing.T) {
	if !IsUnit(Vec{X: 0.6, Y: 0.8}, 1e-12) {
		t.Error("(0.6, 0.8, 0) should be unit")
	}
	if IsUnit(Vec{X: 1, Y: 1}, 1e-9) {
		t.Error("(1, 1, 0) should not be unit")
	}
	if !IsFinite(Vec{X: 1, Y: -2, Z: 3}) {
		t.Error("finite vector reported non-finite")
	}
	if IsFinite(Vec{X: math.NaN()}) || IsFinite(Vec{Z: math.Inf(-1)}) {
		t.Error("non-finite vector reported finite")
	}
}
