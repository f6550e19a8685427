package lattice

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// Curves is the output of the curve fitting stage.
// All three curves share the same time values so that equal time corresponds
// to the same anatomical cross-section.
type Curves struct {
	Left   *Curve
	Center *Curve
	Right  *Curve

	// Times holds the center-curve time t_i assigned to each lattice index i
	Times []float64

	// HalfWidths holds half the left-right distance of each lattice pair
	HalfWidths []float64

	// RightVectors holds the unit left-to-right vector of each lattice pair
	RightVectors []r3.Vec
}

// ArcLengthTimes returns t_i = cumulativeLength(i) / totalLength along a polyline.
// A zero-length segment between consecutive points is reported as ErrDegenerateLattice.
func ArcLengthTimes(points []r3.Vec) ([]float64, error) {
	if len(points) < 2 {
		return nil, errors.Wrapf(ErrTooFewPairs, "got %d", len(points))
	}
	cumulative := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		segment := r3.Norm(r3.Sub(points[i], points[i-1]))
		if segment < minSeparation {
			return nil, errors.Wrapf(ErrDegenerateLattice, "lattice points %d and %d coincide", i-1, i)
		}
		cumulative[i] = cumulative[i-1] + segment
	}
	total := cumulative[len(cumulative)-1]
	times := make([]float64, len(points))
	for i := range cumulative {
		times[i] = cumulative[i] / total
	}
	times[len(times)-1] = 1
	return times, nil
}

// Fit builds the left, center and right curves for a lattice.
// The center polyline is the pointwise midpoint of each pair; times are proportional
// to cumulative arc length along it.
func Fit(l Lattice) (*Curves, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}

	centers := l.Centers()
	times, err := ArcLengthTimes(centers)
	if err != nil {
		return nil, err
	}

	center, err := NewCurve(centers, times)
	if err != nil {
		return nil, errors.Wrap(err, "center curve")
	}
	left, err := newSpline(l.Left, times)
	if err != nil {
		return nil, errors.Wrap(err, "left curve")
	}
	right, err := newSpline(l.Right, times)
	if err != nil {
		return nil, errors.Wrap(err, "right curve")
	}

	return &Curves{
		Left:         left,
		Center:       center,
		Right:        right,
		Times:        times,
		HalfWidths:   l.HalfWidths(),
		RightVectors: l.RightVectors(),
	}, nil
}
