package models

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// CoordinateMap maps every voxel of one grid to a coordinate in another space.
// A cell is valid once at least one sample was recorded for it; cells written by
// more than one super-sample report the average of their samples.
type CoordinateMap struct {
	Width  int
	Height int
	Depth  int

	sums   []r3.Vec
	counts []int32
}

// NewCoordinateMap allocates an empty map over a width x height x depth grid
func NewCoordinateMap(width, height, depth int) *CoordinateMap {
	n := width * height * depth
	return &CoordinateMap{
		Width:  width,
		Height: height,
		Depth:  depth,
		sums:   make([]r3.Vec, n),
		counts: make([]int32, n),
	}
}

// Len returns the number of cells
func (m *CoordinateMap) Len() int {
	return len(m.counts)
}

// Index returns the flat index of (x, y, z)
func (m *CoordinateMap) Index(x, y, z int) int {
	return z*m.Width*m.Height + y*m.Width + x
}

// Record adds one sample for cell idx
func (m *CoordinateMap) Record(idx int, target r3.Vec) {
	m.sums[idx] = r3.Add(m.sums[idx], target)
	m.counts[idx]++
}

// LookupIndex returns the averaged coordinate of cell idx and whether it is valid
func (m *CoordinateMap) LookupIndex(idx int) (r3.Vec, bool) {
	if idx < 0 || idx >= len(m.counts) || m.counts[idx] == 0 {
		return r3.Vec{}, false
	}
	return r3.Scale(1/float64(m.counts[idx]), m.sums[idx]), true
}

// Lookup returns the averaged coordinate at (x, y, z) and whether it is valid
func (m *CoordinateMap) Lookup(x, y, z int) (r3.Vec, bool) {
	if x < 0 || y < 0 || z < 0 || x >= m.Width || y >= m.Height || z >= m.Depth {
		return r3.Vec{}, false
	}
	return m.LookupIndex(m.Index(x, y, z))
}

// Samples returns how many samples were recorded for cell idx
func (m *CoordinateMap) Samples(idx int) int {
	return int(m.counts[idx])
}

// ValidCount returns the number of valid cells
func (m *CoordinateMap) ValidCount() int {
	n := 0
	for _, c := range m.counts {
		if c > 0 {
			n++
		}
	}
	return n
}

// AsVolume renders the map as a 4 channel volume (validFlag, x, y, z)
func (m *CoordinateMap) AsVolume() *Volume {
	v := NewVolume(m.Width, m.Height, m.Depth, 4)
	for idx := range m.counts {
		p, ok := m.LookupIndex(idx)
		if !ok {
			continue
		}
		base := idx * 4
		v.Data[base] = 1
		v.Data[base+1] = p.X
		v.Data[base+2] = p.Y
		v.Data[base+3] = p.Z
	}
	return v
}
