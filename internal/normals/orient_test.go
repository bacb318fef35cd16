package normals

import (
	"testing"

	"github.com/banshee-data/pointmesh/internal/geometry"
)

func TestOrientFollowsParent(t *testing.T) {
	// A chain of nearly parallel normals with alternating signs.
	positions := []geometry.Vec{{X: 0}, {X: 1}, {X: 2}, {X: 3}}
	normals := []geometry.Vec{{Z: 1}, {Z: -1}, {Z: 1}, {Z: -1}}
	adjacency := [][]int{{1}, {0, 2}, {1, 3}, {2}}

	orient(positions, normals, adjacency, 0.5)

	for i := 1; i < len(normals); i++ {
		if normals[i] != normals[0] {
			t.Fatalf("normal %d = %v, want %v", i, normals[i], normals[0])
		}
	}
}

func TestOrientComponentsIndependently(t *testing.T) {
	// Two unconnected pairs, each seeded away from its own centroid. Within a
	// pair both points are equally far from the centroid, so the lower index
	// seeds.
	positions := []geometry.Vec{{X: -1}, {X: -3}, {X: 5}, {X: 7}}
	normals := []geometry.Vec{{X: -1}, {X: 1}, {X: -1}, {X: 1}}
	adjacency := [][]int{{1}, {0}, {3}, {2}}

	flips := orient(positions, normals, adjacency, 0.5)

	want := []geometry.Vec{{X: 1}, {X: 1}, {X: -1}, {X: -1}}
	for i := range want {
		if normals[i] != want[i] {
			t.Errorf("normal %d = %v, want %v", i, normals[i], want[i])
		}
	}
	if flips != 2 {
		t.Errorf("flips = %d, want 2", flips)
	}
}

func TestOrientAmbiguousChildUsesCentroid(t *testing.T) {
	// Perpendicular normals: the child ignores the parent and points away
	// from the centroid.
	positions := []geometry.Vec{{X: 1}, {Y: 1}, {}}
	normals := []geometry.Vec{{X: 1}, {Y: -1}, {Z: 1}}
	adjacency := [][]int{{1}, {0}, nil}

	orient(positions, normals, adjacency, 0.5)

	if normals[1] != (geometry.Vec{Y: 1}) {
		t.Errorf("normal 1 = %v, want +Y", normals[1])
	}
}
