package poisson

import (
	"math"
	"testing"

	"github.com/banshee-data/pointmesh/internal/geometry"
	"github.com/banshee-data/pointmesh/internal/testutil"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestPackKeyRoundTrip(t *testing.T) {
	for _, c := range [][3]int{{0, 0, 0}, {1, 2, 3}, {4096, 0, 17}, {1<<21 - 1, 5, 1<<21 - 1}} {
		i, j, k := packKey(c[0], c[1], c[2]).unpack()
		if i != c[0] || j != c[1] || k != c[2] {
			t.Errorf("unpack(pack(%v)) = (%d, %d, %d)", c, i, j, k)
		}
	}
	if !(packKey(0, 5, 5) < packKey(1, 0, 0) && packKey(1, 0, 5) < packKey(1, 1, 0)) {
		t.Error("keys do not sort lexicographically")
	}
}

func TestOctreeBandStructure(t *testing.T) {
	pts := testutil.FibonacciSphere(500, geometry.Vec{}, 1)
	params := DefaultParams()
	params.Depth = 6
	params.FullDepth = 3
	tree := newOctree(pts, params)

	if got := len(tree.Levels); got != 4 {
		t.Fatalf("len(Levels) = %d, want 4", got)
	}
	base := tree.Base()
	if !base.Full || base.Depth != 3 || base.CellCount() != 512 {
		t.Fatalf("base level = depth %d, full %v, %d cells", base.Depth, base.Full, base.CellCount())
	}
	if base.NodeCount() != 9*9*9 {
		t.Errorf("base NodeCount() = %d, want 729", base.NodeCount())
	}
	if want := geometry.BoundsOf(pts).MaxExtent() * 1.1; math.Abs(tree.Side-want) > 1e-12 {
		t.Errorf("Side = %v, want %v", tree.Side, want)
	}

	for idx := 1; idx < len(tree.Levels); idx++ {
		l, parent := tree.Levels[idx], tree.Levels[idx-1]
		if l.Full {
			t.Fatalf("level %d should be a band", l.Depth)
		}
		if l.CellCount() >= l.Res*l.Res*l.Res {
			t.Errorf("level %d is not sparse: %d cells", l.Depth, l.CellCount())
		}
		for key := range l.cells {
			i, j, k := key.unpack()
			if !parent.Active(i/2, j/2, k/2) {
				t.Fatalf("level %d cell (%d,%d,%d) has an inactive parent", l.Depth, i, j, k)
			}
		}
		for _, p := range pts {
			ci, _ := tree.locate(l, p)
			if !l.Active(ci[0], ci[1], ci[2]) {
				t.Fatalf("level %d: sample cell %v inactive", l.Depth, ci)
			}
		}
	}
}

func TestCoarseValueReproducesLinear(t *testing.T) {
	parent := &Level{Depth: 1, Res: 2, Full: true}
	parent.indexNodes()
	linear := func(x, y, z float64) float64 { return 2*x - 3*y + 0.5*z + 1 }
	for n, key := range parent.keys {
		i, j, k := key.unpack()
		parent.values[n] = linear(float64(i), float64(j), float64(k))
	}
	for i := 0; i <= 4; i++ {
		for j := 0; j <= 4; j++ {
			for k := 0; k <= 4; k++ {
				got := coarseValue(parent, i, j, k)
				want := linear(float64(i)/2, float64(j)/2, float64(k)/2)
				if math.Abs(got-want) > 1e-12 {
					t.Fatalf("coarseValue(%d,%d,%d) = %v, want %v", i, j, k, got, want)
				}
			}
		}
	}
}

// sphereDistance fills every level with the signed distance to a sphere.
func sphereDistance(tree *Octree, center geometry.Vec, radius float64) {
	for _, l := range tree.Levels {
		for n, key := range l.keys {
			i, j, k := key.unpack()
			p := r3.Add(tree.Origin, geometry.Vec{X: float64(i) * l.H, Y: float64(j) * l.H, Z: float64(k) * l.H})
			l.values[n] = r3.Norm(r3.Sub(p, center)) - radius
		}
	}
}

func TestExtractAdaptiveIsClosed(t *testing.T) {
	center := geometry.Vec{X: 0.2, Y: -0.1, Z: 0.3}
	pts := testutil.FibonacciSphere(800, center, 1)
	params := DefaultParams()
	params.Depth = 5
	params.FullDepth = 3
	tree := newOctree(pts, params)
	sphereDistance(tree, center, 1)

	for _, linear := range []bool{false, true} {
		m := tree.extract(0, linear)
		if m.IsEmpty() {
			t.Fatalf("linear=%v: empty mesh", linear)
		}
		if !m.IsClosed() {
			t.Errorf("linear=%v: extracted surface is not closed", linear)
		}
		if v := m.SignedVolume(); v <= 0 {
			t.Errorf("linear=%v: SignedVolume() = %v, want positive", linear, v)
		}
		h := tree.Finest().H
		for i, p := range m.Vertices {
			if d := math.Abs(r3.Norm(r3.Sub(p, center)) - 1); d > h {
				t.Fatalf("linear=%v: vertex %d is %v from the sphere, cell size %v", linear, i, d, h)
			}
		}
	}
}

func TestEvalUsesFinestActiveLevel(t *testing.T) {
	pts := testutil.FibonacciSphere(200, geometry.Vec{}, 1)
	params := DefaultParams()
	params.Depth = 4
	params.FullDepth = 2
	params.BandWidth = 0
	tree := newOctree(pts, params)
	for idx, l := range tree.Levels {
		for n := range l.values {
			l.values[n] = float64(idx)
		}
	}
	if got := tree.Eval(pts[0]); got != 2 {
		t.Errorf("Eval(sample) = %v, want finest level value 2", got)
	}
	if got := tree.Eval(geometry.Vec{}); got != 0 {
		t.Errorf("Eval(centre) = %v, want base level value 0", got)
	}
}
