package frames

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Quad is a sampling rectangle with corners ordered
// (-right,-up), (+right,-up), (+right,+up), (-right,+up)
type Quad [4]r3.Vec

// NewQuad builds the sampling quad of a frame: position ± extent·right ± extent·up
func NewQuad(f Frame, extent float64) Quad {
	r := r3.Scale(extent, f.Right)
	u := r3.Scale(extent, f.Up)
	return Quad{
		r3.Sub(r3.Sub(f.Position, r), u),
		r3.Sub(r3.Add(f.Position, r), u),
		r3.Add(r3.Add(f.Position, r), u),
		r3.Add(r3.Sub(f.Position, r), u),
	}
}

// At returns the bilinear point at normalized coordinates (a, b) in [0,1]²,
// a running along the right axis and b along the up axis.
func (q Quad) At(a, b float64) r3.Vec {
	p := r3.Scale((1-a)*(1-b), q[0])
	p = r3.Add(p, r3.Scale(a*(1-b), q[1]))
	p = r3.Add(p, r3.Scale(a*b, q[2]))
	return r3.Add(p, r3.Scale((1-a)*b, q[3]))
}

// Center returns the average of the four corners
func (q Quad) Center() r3.Vec {
	return r3.Scale(0.25, r3.Add(r3.Add(q[0], q[1]), r3.Add(q[2], q[3])))
}

// Lerp interpolates corner-wise between q and o
func (q Quad) Lerp(o Quad, f float64) Quad {
	var out Quad
	for c := range q {
		out[c] = r3.Add(r3.Scale(1-f, q[c]), r3.Scale(f, o[c]))
	}
	return out
}

// MaxCornerDistance returns the largest distance between corresponding corners
func (q Quad) MaxCornerDistance(o Quad) float64 {
	d := 0.0
	for c := range q {
		d = math.Max(d, r3.Norm(r3.Sub(q[c], o[c])))
	}
	return d
}
