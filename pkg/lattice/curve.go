package lattice

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/spatial/r3"
)

// arcSamplesPerVoxel controls the density of the arc-length table
const arcSamplesPerVoxel = 16

// minArcSamples is the smallest arc-length table size
const minArcSamples = 256

// Curve is a natural cubic spline through 3D control points, parametrized by time in [0,1].
// Each coordinate is an independent gonum NaturalCubic over the shared time samples.
type Curve struct {
	times  []float64
	points []r3.Vec

	x, y, z interp.NaturalCubic

	// arc-length table: cumulative length at each table time
	tableTimes   []float64
	tableLengths []float64
	toTime       interp.PiecewiseLinear
	toLength     interp.PiecewiseLinear
}

// NewCurve fits a natural cubic spline through points at the given times and
// builds its arc-length table.
// Times must be strictly increasing; otherwise the fit is refused with ErrDegenerateLattice.
func NewCurve(points []r3.Vec, times []float64) (*Curve, error) {
	c, err := newSpline(points, times)
	if err != nil {
		return nil, err
	}
	if err := c.buildArcTable(); err != nil {
		return nil, err
	}
	return c, nil
}

// newSpline fits the per-axis splines only. Side curves may legitimately have
// coincident control points, so they skip the arc-length table.
func newSpline(points []r3.Vec, times []float64) (*Curve, error) {
	if len(points) != len(times) {
		return nil, errors.Errorf("lattice: %d points but %d times", len(points), len(times))
	}
	if len(points) < 2 {
		return nil, errors.Wrapf(ErrTooFewPairs, "curve needs 2 points, got %d", len(points))
	}
	for i := 1; i < len(times); i++ {
		if !(times[i] > times[i-1]) {
			return nil, errors.Wrapf(ErrDegenerateLattice, "time %d (%.6f) does not increase past %.6f", i, times[i], times[i-1])
		}
	}

	c := &Curve{
		times:  append([]float64(nil), times...),
		points: append([]r3.Vec(nil), points...),
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	zs := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}
	if err := c.x.Fit(c.times, xs); err != nil {
		return nil, errors.Wrap(err, "fit x spline")
	}
	if err := c.y.Fit(c.times, ys); err != nil {
		return nil, errors.Wrap(err, "fit y spline")
	}
	if err := c.z.Fit(c.times, zs); err != nil {
		return nil, errors.Wrap(err, "fit z spline")
	}
	return c, nil
}

// Position returns the point on the curve at time t
func (c *Curve) Position(t float64) r3.Vec {
	return r3.Vec{X: c.x.Predict(t), Y: c.y.Predict(t), Z: c.z.Predict(t)}
}

// Derivative returns the first derivative of the curve at time t
func (c *Curve) Derivative(t float64) r3.Vec {
	return r3.Vec{X: c.x.PredictDerivative(t), Y: c.y.PredictDerivative(t), Z: c.z.PredictDerivative(t)}
}

// Tangent returns the normalized first derivative at time t
func (c *Curve) Tangent(t float64) r3.Vec {
	return r3.Unit(c.Derivative(t))
}

// Times returns the control point times
func (c *Curve) Times() []float64 {
	return append([]float64(nil), c.times...)
}

// Length returns the total arc length of the spline. Curves fitted without an
// arc-length table report their control polyline length.
func (c *Curve) Length() float64 {
	if len(c.tableLengths) == 0 {
		return PolylineLength(c.points)
	}
	return c.tableLengths[len(c.tableLengths)-1]
}

// LengthAt returns the arc length from time 0 to time t
func (c *Curve) LengthAt(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 || len(c.tableLengths) == 0 {
		return c.Length()
	}
	return c.toLength.Predict(t)
}

// TimeAtLength returns the curve time at which the arc length from the start equals s.
// s is clamped to [0, Length()].
func (c *Curve) TimeAtLength(s float64) float64 {
	if len(c.tableTimes) == 0 {
		length := c.Length()
		if length <= 0 {
			return 0
		}
		return math.Max(0, math.Min(1, s/length))
	}
	if s <= 0 {
		return c.tableTimes[0]
	}
	if s >= c.Length() {
		return c.tableTimes[len(c.tableTimes)-1]
	}
	return c.toTime.Predict(s)
}

// buildArcTable samples the spline densely and accumulates chord lengths, then
// fits the inverse (length -> time) as a piecewise linear function.
func (c *Curve) buildArcTable() error {
	polyline := PolylineLength(c.points)
	n := int(math.Ceil(polyline)) * arcSamplesPerVoxel
	if n < minArcSamples {
		n = minArcSamples
	}

	times := make([]float64, 0, n+1)
	lengths := make([]float64, 0, n+1)
	t0 := c.times[0]
	t1 := c.times[len(c.times)-1]
	prev := c.Position(t0)
	total := 0.0
	times = append(times, t0)
	lengths = append(lengths, 0)
	for i := 1; i <= n; i++ {
		t := t0 + (t1-t0)*float64(i)/float64(n)
		p := c.Position(t)
		next := total + r3.Norm(r3.Sub(p, prev))
		prev = p
		if next <= total {
			// Stationary spline samples carry no arc length; skip them so the
			// inverse stays strictly increasing.
			continue
		}
		total = next
		times = append(times, t)
		lengths = append(lengths, total)
	}
	if len(lengths) < 2 || total <= minSeparation {
		return errors.Wrap(ErrDegenerateLattice, "curve has zero arc length")
	}
	// The final sample must land exactly on the end time.
	times[len(times)-1] = t1

	c.tableTimes = times
	c.tableLengths = lengths
	if err := c.toLength.Fit(times, lengths); err != nil {
		return err
	}
	return c.toTime.Fit(lengths, times)
}

// PolylineLength returns the cumulative Euclidean length of a polyline
func PolylineLength(points []r3.Vec) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += r3.Norm(r3.Sub(points[i], points[i-1]))
	}
	return total
}
