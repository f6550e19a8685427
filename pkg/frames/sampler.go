// Package frames walks the fitted center curve at uniform arc-length steps and
// builds, for every step, an orthonormal local frame, an interpolated half-width
// and the sampling quad used to resample one output slice.
package frames

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"volstraighten/pkg/lattice"
)

var (
	// ErrSelfIntersecting is returned when two consecutive lattice pairs do not map to
	// strictly increasing frame indices.
	ErrSelfIntersecting = errors.New("frames: lattice is self-intersecting")

	// ErrExcessiveBend is returned when consecutive up vectors turn by more than the bend limit.
	ErrExcessiveBend = errors.New("frames: curve bends too sharply to sample")
)

// Frame is the local coordinate system at one output slice
type Frame struct {
	// Index is the output slice index j
	Index int

	// Time is the center-curve time of this frame
	Time float64

	// ArcLength is the distance along the center curve from its start
	ArcLength float64

	Position r3.Vec
	Tangent  r3.Vec
	Right    r3.Vec
	Up       r3.Vec

	// HalfWidth is linearly interpolated between the bounding lattice pairs
	HalfWidth float64

	// SourceLatticeIndex is the nearest original lattice index
	SourceLatticeIndex int

	// Segment is the lower lattice index of the pair interval containing this frame;
	// the frame lies between lattice pairs Segment and Segment+1.
	Segment int
}

// Params controls frame sampling
type Params struct {
	// Step is the arc length between consecutive frames, in voxels
	Step float64

	// Margin is added to the rounded-up maximum half-width to size every sampling quad
	Margin int

	// MaxBendDegrees rejects curves whose up vectors turn more than this between frames
	MaxBendDegrees float64
}

// DefaultParams returns the standard sampling parameters
func DefaultParams() Params {
	return Params{
		Step:           1.0,
		Margin:         30,
		MaxBendDegrees: 90,
	}
}

// Result holds the sampled frames and quads
type Result struct {
	Frames []Frame
	Quads  []Quad

	// Extent is ceil(MaxHalfWidth) + Margin; output slices are 2*Extent square
	Extent int

	MaxHalfWidth float64

	// LatticeFrames maps each lattice index to its nearest frame index
	LatticeFrames []int
}

// Len returns the number of frames
func (r *Result) Len() int {
	return len(r.Frames)
}

// Sample walks the center curve and builds the frame sequence
func Sample(curves *lattice.Curves, params Params) (*Result, error) {
	if params.Step <= 0 {
		return nil, errors.Errorf("frames: step must be positive, got %f", params.Step)
	}
	if params.Margin < 0 {
		return nil, errors.Errorf("frames: margin must be non-negative, got %d", params.Margin)
	}
	center := curves.Center
	total := center.Length()

	// Step 1: uniform arc-length samples
	n := int(math.Ceil(total/params.Step - 1e-9))
	if n < 1 {
		n = 1
	}
	frames := make([]Frame, n+1)
	allTimes := make([]float64, n+1)
	for j := 0; j <= n; j++ {
		s := math.Min(float64(j)*params.Step, total)
		t := center.TimeAtLength(s)
		allTimes[j] = t
		frames[j] = Frame{
			Index:     j,
			Time:      t,
			ArcLength: s,
			Position:  center.Position(t),
			Tangent:   center.Tangent(t),
		}
	}

	// Step 2: map lattice pairs onto frames
	latticeFrames, err := MapLatticeToFrames(allTimes, curves.Times)
	if err != nil {
		return nil, err
	}

	// Step 3: interpolate half-width and right vector between mapped lattice pairs
	for i := 0; i+1 < len(latticeFrames); i++ {
		j0, j1 := latticeFrames[i], latticeFrames[i+1]
		for j := j0; j <= j1; j++ {
			f := float64(j-j0) / float64(j1-j0)
			fr := &frames[j]
			fr.HalfWidth = (1-f)*curves.HalfWidths[i] + f*curves.HalfWidths[i+1]
			fr.Right = InterpolateRight(curves.RightVectors[i], curves.RightVectors[i+1], fr.Tangent, f)
			fr.Segment = i
			if j-j0 <= j1-j {
				fr.SourceLatticeIndex = i
			} else {
				fr.SourceLatticeIndex = i + 1
			}
		}
	}
	// The last frame belongs to the final interval
	frames[n].Segment = len(latticeFrames) - 2

	// Step 4: orthonormal frames and the bend guard
	maxBend := params.MaxBendDegrees * math.Pi / 180
	for j := range frames {
		fr := &frames[j]
		right := r3.Sub(fr.Right, r3.Scale(r3.Dot(fr.Right, fr.Tangent), fr.Tangent))
		if r3.Norm(right) < parallelEpsilon {
			if j == 0 {
				right = perpendicular(fr.Tangent, fr.Right)
			} else {
				right = frames[j-1].Right
			}
		}
		fr.Up = r3.Unit(r3.Cross(fr.Tangent, r3.Unit(right)))
		fr.Right = r3.Unit(r3.Cross(fr.Up, fr.Tangent))

		if j > 0 {
			if bend := AngleBetween(frames[j-1].Up, fr.Up); bend > maxBend {
				return nil, errors.Wrapf(ErrExcessiveBend, "up vector turns %.1f degrees between frames %d and %d",
					bend*180/math.Pi, j-1, j)
			}
		}
	}

	// Step 5: global extent and sampling quads
	halfWidths := make([]float64, len(frames))
	for j := range frames {
		halfWidths[j] = frames[j].HalfWidth
	}
	maxHalfWidth := floats.Max(halfWidths)
	extent := int(math.Ceil(maxHalfWidth)) + params.Margin
	quads := make([]Quad, len(frames))
	for j := range frames {
		quads[j] = NewQuad(frames[j], float64(extent))
	}

	return &Result{
		Frames:        frames,
		Quads:         quads,
		Extent:        extent,
		MaxHalfWidth:  maxHalfWidth,
		LatticeFrames: latticeFrames,
	}, nil
}

// MapLatticeToFrames maps each lattice time to the frame with the nearest time.
// Mapped indices must be strictly increasing; otherwise the lattice is reported
// as self-intersecting.
func MapLatticeToFrames(frameTimes, latticeTimes []float64) ([]int, error) {
	mapped := make([]int, len(latticeTimes))
	for i, t := range latticeTimes {
		mapped[i] = nearestIndex(frameTimes, t)
		if i > 0 && mapped[i] <= mapped[i-1] {
			return nil, errors.Wrapf(ErrSelfIntersecting,
				"lattice pair %d maps to frame %d, not after frame %d of pair %d", i, mapped[i], mapped[i-1], i-1)
		}
	}
	return mapped, nil
}

// nearestIndex returns the index of the value in sorted closest to t
func nearestIndex(sorted []float64, t float64) int {
	k := sort.SearchFloat64s(sorted, t)
	if k <= 0 {
		return 0
	}
	if k >= len(sorted) {
		return len(sorted) - 1
	}
	if t-sorted[k-1] <= sorted[k]-t {
		return k - 1
	}
	return k
}
