package model

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"volstraighten/pkg/frames"
)

// minContourVertices keeps tiny cross-sections closed
const minContourVertices = 8

// Contour is a closed 2D cross-section boundary in a frame's (right, up) plane,
// stored as radii at evenly spaced angles around the frame center.
type Contour struct {
	Radii []float64
}

// NewEllipseContour returns the boundary of an ellipse with semi-axes a (right) and b (up)
func NewEllipseContour(a, b float64) *Contour {
	n := vertexCount(math.Max(a, b))
	c := &Contour{Radii: make([]float64, n)}
	for k := range c.Radii {
		theta := 2 * math.Pi * float64(k) / float64(n)
		if a <= 0 || b <= 0 {
			continue
		}
		ca := math.Cos(theta) / a
		sb := math.Sin(theta) / b
		c.Radii[k] = 1 / math.Sqrt(ca*ca+sb*sb)
	}
	return c
}

// vertexCount returns how many evenly spaced vertices keep consecutive points at most
// one voxel apart on a circle of the given radius
func vertexCount(radius float64) int {
	n := int(math.Ceil(2 * math.Pi * radius))
	if n < minContourVertices {
		n = minContourVertices
	}
	return n
}

// Len returns the number of vertices
func (c *Contour) Len() int {
	return len(c.Radii)
}

// Angle returns the polar angle of vertex k
func (c *Contour) Angle(k int) float64 {
	return 2 * math.Pi * float64(k) / float64(len(c.Radii))
}

// Direction returns the unit radial direction of vertex k in the frame
func (c *Contour) Direction(f frames.Frame, k int) r3.Vec {
	sin, cos := math.Sincos(c.Angle(k))
	return r3.Add(r3.Scale(cos, f.Right), r3.Scale(sin, f.Up))
}

// Point returns vertex k at radius r in volume coordinates
func (c *Contour) Point(f frames.Frame, k int, r float64) r3.Vec {
	return r3.Add(f.Position, r3.Scale(r, c.Direction(f, k)))
}

// MaxRadius returns the largest vertex radius
func (c *Contour) MaxRadius() float64 {
	if len(c.Radii) == 0 {
		return 0
	}
	return floats.Max(c.Radii)
}

// Densify resamples the contour so that consecutive vertices stay at most one voxel
// apart. Radii are interpolated linearly in angle; vertex 0 stays at angle 0.
func (c *Contour) Densify() {
	n := vertexCount(c.MaxRadius())
	old := len(c.Radii)
	if n <= old {
		return
	}
	radii := make([]float64, n)
	for k := range radii {
		pos := float64(k) * float64(old) / float64(n)
		i := int(math.Floor(pos))
		f := pos - float64(i)
		radii[k] = (1-f)*c.Radii[i%old] + f*c.Radii[(i+1)%old]
	}
	c.Radii = radii
}
