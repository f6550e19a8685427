package model

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"volstraighten/pkg/frames"
)

// Ellipsoid is a thin oblate disk approximating one local cross-section.
// Axes are (right, up, tangent) with radii (halfWidth, halfWidth*upRatio, thickness).
type Ellipsoid struct {
	Center r3.Vec
	Radii  r3.Vec

	// axes holds right, up and tangent as rows, so axes·(p-center) gives local coordinates
	axes *r3.Mat
}

// NewEllipsoid builds the ellipsoid of a frame
func NewEllipsoid(f frames.Frame, upRatio, thickness float64) Ellipsoid {
	return Ellipsoid{
		Center: f.Position,
		Radii:  r3.Vec{X: f.HalfWidth, Y: f.HalfWidth * upRatio, Z: thickness},
		axes: r3.NewMat([]float64{
			f.Right.X, f.Right.Y, f.Right.Z,
			f.Up.X, f.Up.Y, f.Up.Z,
			f.Tangent.X, f.Tangent.Y, f.Tangent.Z,
		}),
	}
}

// Local returns p in the ellipsoid's (right, up, tangent) coordinates
func (e Ellipsoid) Local(p r3.Vec) r3.Vec {
	return e.axes.MulVec(r3.Sub(p, e.Center))
}

// Contains reports whether p lies inside or on the ellipsoid
func (e Ellipsoid) Contains(p r3.Vec) bool {
	if e.Radii.X <= 0 || e.Radii.Y <= 0 || e.Radii.Z <= 0 {
		return false
	}
	l := e.Local(p)
	x := l.X / e.Radii.X
	y := l.Y / e.Radii.Y
	z := l.Z / e.Radii.Z
	return x*x+y*y+z*z <= 1
}

// Bounds returns the axis-aligned bounding box of the ellipsoid
func (e Ellipsoid) Bounds() r3.Box {
	var half r3.Vec
	for axis := 0; axis < 3; axis++ {
		sum := 0.0
		for k, r := range []float64{e.Radii.X, e.Radii.Y, e.Radii.Z} {
			a := e.axes.At(k, axis) * r
			sum += a * a
		}
		switch axis {
		case 0:
			half.X = math.Sqrt(sum)
		case 1:
			half.Y = math.Sqrt(sum)
		case 2:
			half.Z = math.Sqrt(sum)
		}
	}
	return r3.Box{Min: r3.Sub(e.Center, half), Max: r3.Add(e.Center, half)}
}

// Voxels returns the flat indices of every voxel of a width x height x depth grid
// whose center lies inside the ellipsoid
func (e Ellipsoid) Voxels(width, height, depth int) []int {
	b := e.Bounds()
	x0 := clampInt(int(math.Floor(b.Min.X)), 0, width-1)
	y0 := clampInt(int(math.Floor(b.Min.Y)), 0, height-1)
	z0 := clampInt(int(math.Floor(b.Min.Z)), 0, depth-1)
	x1 := clampInt(int(math.Ceil(b.Max.X)), 0, width-1)
	y1 := clampInt(int(math.Ceil(b.Max.Y)), 0, height-1)
	z1 := clampInt(int(math.Ceil(b.Max.Z)), 0, depth-1)

	var out []int
	for z := z0; z <= z1; z++ {
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				if e.Contains(r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)}) {
					out = append(out, z*width*height+y*width+x)
				}
			}
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
