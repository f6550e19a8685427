package models

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Volume represents a 3D image volume, scalar or multi-channel color
type Volume struct {
	// Data is the 3D volume data as a 1D array in row-major order,
	// channels interleaved: ((z*Height+y)*Width+x)*Channels + c
	Data []float64

	// Width is the width of the volume in voxels
	Width int

	// Height is the height of the volume in voxels
	Height int

	// Depth is the depth of the volume in voxels
	Depth int

	// Channels is 1 for scalar data, 3 or 4 for color data
	Channels int

	// VoxelSize is the physical size of each voxel in mm
	VoxelSize struct {
		X, Y, Z float64
	}
}

// NewVolume allocates a zeroed volume with unit voxel size
func NewVolume(width, height, depth, channels int) *Volume {
	if channels < 1 {
		channels = 1
	}
	v := &Volume{
		Data:     make([]float64, width*height*depth*channels),
		Width:    width,
		Height:   height,
		Depth:    depth,
		Channels: channels,
	}
	v.VoxelSize.X, v.VoxelSize.Y, v.VoxelSize.Z = 1, 1, 1
	return v
}

// Valid reports whether Data holds exactly one sample per voxel and channel
func (v *Volume) Valid() bool {
	return v.Width > 0 && v.Height > 0 && v.Depth > 0 && v.Channels > 0 &&
		len(v.Data) == v.Width*v.Height*v.Depth*v.Channels
}

// Len returns the number of voxels (not samples) in the volume
func (v *Volume) Len() int {
	return v.Width * v.Height * v.Depth
}

// Index returns the voxel index of (x, y, z); multiply by Channels for the sample offset
func (v *Volume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// Coords is the inverse of Index
func (v *Volume) Coords(idx int) (x, y, z int) {
	plane := v.Width * v.Height
	z = idx / plane
	rem := idx - z*plane
	y = rem / v.Width
	x = rem - y*v.Width
	return x, y, z
}

// InBounds reports whether (x, y, z) lies inside the volume
func (v *Volume) InBounds(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < v.Width && y < v.Height && z < v.Depth
}

// At returns channel c of voxel (x, y, z). Out of bounds reads return 0.
func (v *Volume) At(x, y, z, c int) float64 {
	if !v.InBounds(x, y, z) {
		return 0
	}
	return v.Data[v.Index(x, y, z)*v.Channels+c]
}

// Set writes channel c of voxel (x, y, z). Out of bounds writes are dropped.
func (v *Volume) Set(x, y, z, c int, value float64) {
	if !v.InBounds(x, y, z) {
		return
	}
	v.Data[v.Index(x, y, z)*v.Channels+c] = value
}

// SameShape reports whether two grids have identical spatial extents
func (v *Volume) SameShape(w, h, d int) bool {
	return v.Width == w && v.Height == h && v.Depth == d
}

// MinMax returns the smallest and largest sample in the volume
func (v *Volume) MinMax() (min, max float64) {
	if len(v.Data) == 0 {
		return 0, 0
	}
	min, max = math.Inf(1), math.Inf(-1)
	for _, s := range v.Data {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return min, max
}

// IntVolume is an integer volume used for frame ownership labels and marker ids.
// 0 always means "none".
type IntVolume struct {
	Data   []int32
	Width  int
	Height int
	Depth  int
}

// NewIntVolume allocates a zeroed integer volume
func NewIntVolume(width, height, depth int) *IntVolume {
	return &IntVolume{
		Data:   make([]int32, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
	}
}

// Valid reports whether Data holds exactly one value per voxel
func (v *IntVolume) Valid() bool {
	return len(v.Data) == v.Width*v.Height*v.Depth
}

// Index returns the flat index of (x, y, z)
func (v *IntVolume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// InBounds reports whether (x, y, z) lies inside the volume
func (v *IntVolume) InBounds(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < v.Width && y < v.Height && z < v.Depth
}

// At returns the value at (x, y, z), or 0 outside the volume
func (v *IntVolume) At(x, y, z int) int32 {
	if !v.InBounds(x, y, z) {
		return 0
	}
	return v.Data[v.Index(x, y, z)]
}

// Set writes the value at (x, y, z); out of bounds writes are dropped
func (v *IntVolume) Set(x, y, z int, value int32) {
	if !v.InBounds(x, y, z) {
		return
	}
	v.Data[v.Index(x, y, z)] = value
}

// CountNonZero returns the number of voxels with a non-zero value
func (v *IntVolume) CountNonZero() int {
	n := 0
	for _, l := range v.Data {
		if l != 0 {
			n++
		}
	}
	return n
}

// Mask is a boolean per-voxel exclusion mask
type Mask struct {
	Data   []bool
	Width  int
	Height int
	Depth  int
}

// NewMask allocates an empty mask
func NewMask(width, height, depth int) *Mask {
	return &Mask{
		Data:   make([]bool, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
	}
}

// Valid reports whether Data holds exactly one flag per voxel
func (m *Mask) Valid() bool {
	return len(m.Data) == m.Width*m.Height*m.Depth
}

// At reports whether (x, y, z) is masked. Voxels outside the mask are not masked.
func (m *Mask) At(x, y, z int) bool {
	if x < 0 || y < 0 || z < 0 || x >= m.Width || y >= m.Height || z >= m.Depth {
		return false
	}
	return m.Data[z*m.Width*m.Height+y*m.Width+x]
}

// Set marks or clears (x, y, z)
func (m *Mask) Set(x, y, z int, masked bool) {
	if x < 0 || y < 0 || z < 0 || x >= m.Width || y >= m.Height || z >= m.Depth {
		return
	}
	m.Data[z*m.Width*m.Height+y*m.Width+x] = masked
}

// Annotation is a named point in source voxel coordinates
type Annotation struct {
	Name     string
	Position r3.Vec
}
