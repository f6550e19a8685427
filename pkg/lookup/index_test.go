package lookup

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"volstraighten/internal/models"
)

func testMap() *models.CoordinateMap {
	m := models.NewCoordinateMap(10, 10, 10)
	m.Record(m.Index(2, 2, 2), r3.Vec{X: 1, Y: 1, Z: 1})
	m.Record(m.Index(7, 7, 7), r3.Vec{X: 5, Y: 5, Z: 5})
	m.Record(m.Index(7, 7, 7), r3.Vec{X: 7, Y: 7, Z: 7})
	m.Record(m.Index(3, 2, 2), r3.Vec{X: 2, Y: 1, Z: 1})
	return m
}

// TestNearest checks radius filtering and averaged targets
func TestNearest(t *testing.T) {
	idx := NewIndex(testMap())
	if idx.Len() != 3 {
		t.Fatalf("Expected 3 indexed cells, got %d", idx.Len())
	}

	m, ok := idx.Nearest(r3.Vec{X: 7, Y: 8, Z: 7}, 2)
	if !ok {
		t.Fatal("Expected a match within radius 2")
	}
	if m.Target != (r3.Vec{X: 6, Y: 6, Z: 6}) {
		t.Errorf("Expected averaged target (6,6,6), got %v", m.Target)
	}
	if math.Abs(m.Distance-1) > 1e-12 {
		t.Errorf("Expected distance 1, got %f", m.Distance)
	}

	if _, ok := idx.Nearest(r3.Vec{X: 5, Y: 5, Z: 5}, 1); ok {
		t.Error("Expected no match within radius 1")
	}
}

// TestWithin returns every cell inside the radius, nearest first
func TestWithin(t *testing.T) {
	idx := NewIndex(testMap())

	got := idx.Within(r3.Vec{X: 2, Y: 2, Z: 2}, 1.5)
	if len(got) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(got))
	}
	if got[0].Voxel != (r3.Vec{X: 2, Y: 2, Z: 2}) || got[1].Voxel != (r3.Vec{X: 3, Y: 2, Z: 2}) {
		t.Errorf("Unexpected match order: %v, %v", got[0].Voxel, got[1].Voxel)
	}
}

// TestEmptyIndex never matches
func TestEmptyIndex(t *testing.T) {
	idx := NewIndex(models.NewCoordinateMap(4, 4, 4))
	if _, ok := idx.Nearest(r3.Vec{}, 100); ok {
		t.Error("Expected no match in an empty index")
	}
	if got := idx.Within(r3.Vec{}, 100); len(got) != 0 {
		t.Errorf("Expected no matches, got %d", len(got))
	}
}
