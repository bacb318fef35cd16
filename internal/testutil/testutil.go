// Package testutil provides shared test utilities and geometry fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"testing"

	"github.com/banshee-data/pointmesh/internal/geometry"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertManifold fails the test if any edge of m is shared by more than two
// triangles, any triangle repeats a vertex, or any vertex is unreferenced.
func AssertManifold(t testing.TB, m *geometry.Mesh) {
	t.Helper()
	if v := m.MaxEdgeValence(); v > 2 {
		t.Errorf("mesh has an edge shared by %d triangles", v)
	}
	for i, tri := range m.Triangles {
		if tri.HasRepeatedIndex() {
			t.Errorf("triangle %d repeats a vertex: %v", i, tri)
		}
	}
	for i, used := range m.ReferencedVertices() {
		if !used {
			t.Errorf("vertex %d is unreferenced", i)
		}
	}
}
