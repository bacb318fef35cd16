package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// BoundingBox is an axis-aligned box given by its minimum and maximum
// corners. The zero value of an empty input is Min > Max (see Empty).
type BoundingBox struct {
	Min, Max Vec
}

// BoundsOf returns the tightest box around points. An empty slice yields a
// box for which Empty reports true.
func BoundsOf(points []Vec) BoundingBox {
	b := BoundingBox{
		Min: Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		Max: Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
	}
	for _, p := range points {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Min.Z = math.Min(b.Min.Z, p.Z)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
		b.Max.Z = math.Max(b.Max.Z, p.Z)
	}
	return b
}

// Empty reports whether the box contains no points.
func (b BoundingBox) Empty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Contains reports whether p lies inside the box, boundary included.
func (b BoundingBox) Contains(p Vec) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Expand grows the box by margin on every side.
func (b BoundingBox) Expand(margin float64) BoundingBox {
	m := Vec{X: margin, Y: margin, Z: margin}
	return BoundingBox{Min: r3.Sub(b.Min, m), Max: r3.Add(b.Max, m)}
}

// Size returns the box extent along each axis.
func (b BoundingBox) Size() Vec {
	return r3.Sub(b.Max, b.Min)
}

// Center returns the box centre.
func (b BoundingBox) Center() Vec {
	return r3.Scale(0.5, r3.Add(b.Min, b.Max))
}

// Diagonal returns the length of the box diagonal.
func (b BoundingBox) Diagonal() float64 {
	if b.Empty() {
		return 0
	}
	return r3.Norm(b.Size())
}

// MaxExtent returns the largest side length.
func (b BoundingBox) MaxExtent() float64 {
	s := b.Size()
	return math.Max(s.X, math.Max(s.Y, s.Z))
}
