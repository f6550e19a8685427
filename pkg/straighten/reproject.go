package straighten

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"volstraighten/internal/models"
	"volstraighten/pkg/frames"
	"volstraighten/pkg/lookup"
)

// Resolution records how a point was transferred between coordinate systems
type Resolution int

const (
	// Unresolved means no mapping was found
	Unresolved Resolution = iota

	// Direct means the point's own voxel was mapped
	Direct

	// Nearest means the nearest mapped voxel within the search radius was used
	Nearest

	// Analytic means the point was projected into its lattice frame
	Analytic
)

func (r Resolution) String() string {
	switch r {
	case Direct:
		return "direct"
	case Nearest:
		return "nearest"
	case Analytic:
		return "analytic"
	default:
		return "unresolved"
	}
}

// ProjectedPoint is a point carried from source to output coordinates
type ProjectedPoint struct {
	Name       string
	Source     r3.Vec
	Target     r3.Vec
	Resolution Resolution
}

// ProjectedPair is one lattice pair in output coordinates
type ProjectedPair struct {
	Index int
	Left  ProjectedPoint
	Right ProjectedPoint
}

// ToStraight maps a source position to output (u, v, slice)
func (r *Result) ToStraight(p r3.Vec) (r3.Vec, Resolution) {
	return transfer(r.OriginToStraight, r.forward, p, r.searchRadius)
}

// ToOrigin maps an output (u, v, slice) position back to source coordinates
func (r *Result) ToOrigin(q r3.Vec) (r3.Vec, Resolution) {
	return transfer(r.StraightToOrigin, r.inverse, q, r.searchRadius)
}

func transfer(m *models.CoordinateMap, index *lookup.Index, p r3.Vec, radius float64) (r3.Vec, Resolution) {
	x, y, z := int(math.Round(p.X)), int(math.Round(p.Y)), int(math.Round(p.Z))
	if target, ok := m.Lookup(x, y, z); ok {
		return target, Direct
	}
	if index == nil || radius <= 0 {
		return r3.Vec{}, Unresolved
	}
	if match, ok := index.Nearest(p, radius); ok {
		return match.Target, Nearest
	}
	return r3.Vec{}, Unresolved
}

// ReprojectLattice maps every lattice point into output coordinates. Points that
// the maps cannot resolve are projected into the frame of their lattice index.
func (r *Result) ReprojectLattice() []ProjectedPair {
	log := Logger()
	out := make([]ProjectedPair, r.Lattice.Len())
	for i := range out {
		out[i] = ProjectedPair{
			Index: i,
			Left:  r.reprojectLatticePoint(i, r.Lattice.Left[i]),
			Right: r.reprojectLatticePoint(i, r.Lattice.Right[i]),
		}
		if out[i].Left.Resolution != Direct || out[i].Right.Resolution != Direct {
			log.Warn("lattice pair re-projected through fallback", "index", i,
				"left", out[i].Left.Resolution.String(), "right", out[i].Right.Resolution.String())
		}
	}
	return out
}

func (r *Result) reprojectLatticePoint(i int, p r3.Vec) ProjectedPoint {
	pp := ProjectedPoint{Source: p}
	pp.Target, pp.Resolution = r.ToStraight(p)
	if pp.Resolution == Unresolved && i < len(r.Frames.LatticeFrames) {
		j := r.Frames.LatticeFrames[i]
		pp.Target = ProjectIntoFrame(r.Frames.Frames[j], r.Frames.Extent, p)
		pp.Resolution = Analytic
	}
	return pp
}

// ReprojectAnnotations maps named points into output coordinates
func (r *Result) ReprojectAnnotations(annotations []models.Annotation) []ProjectedPoint {
	out := make([]ProjectedPoint, len(annotations))
	for k, a := range annotations {
		out[k] = ProjectedPoint{Name: a.Name, Source: a.Position}
		out[k].Target, out[k].Resolution = r.ToStraight(a.Position)
		if out[k].Resolution == Unresolved {
			Logger().Warn("annotation could not be re-projected", "annotation", a.Name)
		}
	}
	return out
}

// ProjectIntoFrame returns the output coordinate of p projected onto frame f's plane
func ProjectIntoFrame(f frames.Frame, extent int, p r3.Vec) r3.Vec {
	d := r3.Sub(p, f.Position)
	e := float64(extent)
	return r3.Vec{
		X: e + r3.Dot(d, f.Right),
		Y: e + r3.Dot(d, f.Up),
		Z: float64(f.Index),
	}
}
