package models

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestCoordinateMapAveraging(t *testing.T) {
	m := NewCoordinateMap(4, 3, 2)
	idx := m.Index(2, 1, 1)
	m.Record(idx, r3.Vec{X: 1, Y: 2, Z: 3})
	m.Record(idx, r3.Vec{X: 3, Y: 4, Z: 5})

	p, ok := m.Lookup(2, 1, 1)
	if !ok || p != (r3.Vec{X: 2, Y: 3, Z: 4}) {
		t.Errorf("Expected averaged (2,3,4), got %v (valid=%v)", p, ok)
	}
	if m.Samples(idx) != 2 {
		t.Errorf("Expected 2 samples, got %d", m.Samples(idx))
	}
	if _, ok := m.Lookup(5, 0, 0); ok {
		t.Error("Expected out of bounds lookups to be invalid")
	}
	if m.ValidCount() != 1 {
		t.Errorf("Expected 1 valid cell, got %d", m.ValidCount())
	}
}

func TestCoordinateMapAsVolume(t *testing.T) {
	m := NewCoordinateMap(3, 2, 2)
	m.Record(m.Index(1, 0, 1), r3.Vec{X: 7, Y: 8, Z: 9})
	m.Record(m.Index(0, 1, 0), r3.Vec{X: 2, Y: 0, Z: 4})
	m.Record(m.Index(0, 1, 0), r3.Vec{X: 4, Y: 2, Z: 6})

	v := m.AsVolume()
	if v.Width != 3 || v.Height != 2 || v.Depth != 2 || v.Channels != 4 {
		t.Fatalf("Unexpected volume shape %dx%dx%d/%d", v.Width, v.Height, v.Depth, v.Channels)
	}
	if !v.Valid() {
		t.Fatal("Expected one sample per voxel and channel")
	}

	tests := []struct {
		x, y, z int
		want    [4]float64
	}{
		{1, 0, 1, [4]float64{1, 7, 8, 9}},
		{0, 1, 0, [4]float64{1, 3, 1, 5}},
	}
	for _, tt := range tests {
		for c := 0; c < 4; c++ {
			if got := v.At(tt.x, tt.y, tt.z, c); got != tt.want[c] {
				t.Errorf("Channel %d at (%d,%d,%d): expected %f, got %f", c, tt.x, tt.y, tt.z, tt.want[c], got)
			}
		}
	}

	// Invalid cells are zero in every channel
	for idx := 0; idx < v.Len(); idx++ {
		if m.Samples(idx) > 0 {
			continue
		}
		for c := 0; c < 4; c++ {
			if v.Data[idx*4+c] != 0 {
				t.Errorf("Expected invalid cell %d to be zero, channel %d is %f", idx, c, v.Data[idx*4+c])
			}
		}
	}
}

func TestVolumeValid(t *testing.T) {
	v := NewVolume(2, 2, 2, 3)
	if !v.Valid() {
		t.Error("Expected a freshly allocated volume to be valid")
	}
	v.Data = v.Data[:5]
	if v.Valid() {
		t.Error("Expected a truncated volume to be invalid")
	}

	labels := NewIntVolume(2, 2, 2)
	labels.Data = nil
	if labels.Valid() {
		t.Error("Expected labels without data to be invalid")
	}

	mask := NewMask(2, 2, 2)
	if !mask.Valid() {
		t.Error("Expected a freshly allocated mask to be valid")
	}
}
