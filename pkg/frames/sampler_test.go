package frames

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"volstraighten/pkg/lattice"
)

func fitOrFail(t *testing.T, l lattice.Lattice) *lattice.Curves {
	t.Helper()
	curves, err := lattice.Fit(l)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	return curves
}

// twistedLattice runs along z while the right vector turns from +x to +y
func twistedLattice(n int, gap, halfWidth float64) lattice.Lattice {
	var l lattice.Lattice
	for i := 0; i < n; i++ {
		angle := float64(i) / float64(n-1) * math.Pi / 2
		c := r3.Vec{X: 40, Y: 40, Z: 5 + float64(i)*gap}
		r := r3.Vec{X: math.Cos(angle), Y: math.Sin(angle)}
		l.Left = append(l.Left, r3.Sub(c, r3.Scale(halfWidth, r)))
		l.Right = append(l.Right, r3.Add(c, r3.Scale(halfWidth, r)))
	}
	return l
}

// TestSampleStraight checks frame count, lattice mapping, orientation and extent on a straight lattice
func TestSampleStraight(t *testing.T) {
	var l lattice.Lattice
	for i := 0; i < 5; i++ {
		z := 5 + 4*float64(i)
		l.Left = append(l.Left, r3.Vec{X: 14, Y: 20, Z: z})
		l.Right = append(l.Right, r3.Vec{X: 26, Y: 20, Z: z})
	}
	res, err := Sample(fitOrFail(t, l), DefaultParams())
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	if res.Len() != 17 {
		t.Fatalf("Expected 17 frames, got %d", res.Len())
	}
	for i, j := range res.LatticeFrames {
		if j != 4*i {
			t.Errorf("Expected lattice %d on frame %d, got %d", i, 4*i, j)
		}
	}
	if res.Extent != 36 {
		t.Errorf("Expected extent 36, got %d", res.Extent)
	}

	for _, f := range res.Frames {
		if math.Abs(f.HalfWidth-6) > 1e-9 {
			t.Errorf("Frame %d: expected half-width 6, got %f", f.Index, f.HalfWidth)
		}
		if r3.Norm(r3.Sub(f.Right, r3.Vec{X: 1})) > 1e-6 {
			t.Errorf("Frame %d: expected right +x, got %v", f.Index, f.Right)
		}
		if r3.Norm(r3.Sub(f.Up, r3.Vec{Y: 1})) > 1e-6 {
			t.Errorf("Frame %d: expected up +y, got %v", f.Index, f.Up)
		}
		if math.Abs(f.Position.Z-(5+float64(f.Index))) > 1e-6 {
			t.Errorf("Frame %d: expected z=%d, got %f", f.Index, 5+f.Index, f.Position.Z)
		}
	}

	// every quad spans the same 2*extent square
	for j, q := range res.Quads {
		width := r3.Norm(r3.Sub(q[1], q[0]))
		height := r3.Norm(r3.Sub(q[3], q[0]))
		if math.Abs(width-72) > 1e-9 || math.Abs(height-72) > 1e-9 {
			t.Errorf("Quad %d: expected 72x72, got %.3fx%.3f", j, width, height)
		}
	}
}

// TestSampleTwisted checks right-vector interpolation between rotated lattice pairs
func TestSampleTwisted(t *testing.T) {
	res, err := Sample(fitOrFail(t, twistedLattice(3, 8, 5)), DefaultParams())
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	mid := res.Frames[res.LatticeFrames[0]+(res.LatticeFrames[1]-res.LatticeFrames[0])/2]
	want := r3.Unit(r3.Vec{X: math.Cos(math.Pi / 8), Y: math.Sin(math.Pi / 8)})
	if AngleBetween(mid.Right, want) > 1e-3 {
		t.Errorf("Expected mid-segment right %v, got %v", want, mid.Right)
	}

	for j, f := range res.Frames {
		if math.Abs(r3.Norm(f.Right)-1) > 1e-9 || math.Abs(r3.Norm(f.Up)-1) > 1e-9 {
			t.Errorf("Frame %d: right/up are not unit vectors", j)
		}
		if math.Abs(r3.Dot(f.Right, f.Up)) > 1e-9 || math.Abs(r3.Dot(f.Up, f.Tangent)) > 1e-9 {
			t.Errorf("Frame %d: frame is not orthogonal", j)
		}
	}
}

// TestSampleExcessiveBend lowers the bend limit so the twist is rejected
func TestSampleExcessiveBend(t *testing.T) {
	params := DefaultParams()
	params.MaxBendDegrees = 1

	res, err := Sample(fitOrFail(t, twistedLattice(3, 8, 5)), params)
	if !errors.Is(err, ErrExcessiveBend) {
		t.Fatalf("Expected ErrExcessiveBend, got %v", err)
	}
	if res != nil {
		t.Error("Expected no result on failure")
	}
}

// TestSampleSelfIntersecting places two pairs closer than one step
func TestSampleSelfIntersecting(t *testing.T) {
	l := lattice.Lattice{
		Left:  []r3.Vec{{X: 15, Y: 20, Z: 5}, {X: 15, Y: 20, Z: 5.3}, {X: 15, Y: 20, Z: 15}},
		Right: []r3.Vec{{X: 25, Y: 20, Z: 5}, {X: 25, Y: 20, Z: 5.3}, {X: 25, Y: 20, Z: 15}},
	}
	_, err := Sample(fitOrFail(t, l), DefaultParams())
	if !errors.Is(err, ErrSelfIntersecting) {
		t.Fatalf("Expected ErrSelfIntersecting, got %v", err)
	}
}

// TestMapLatticeToFrames covers the monotonicity invariant of the lattice mapping
func TestMapLatticeToFrames(t *testing.T) {
	frameTimes := []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

	mapped, err := MapLatticeToFrames(frameTimes, []float64{0, 0.31, 0.64, 1})
	if err != nil {
		t.Fatalf("Expected valid mapping, got %v", err)
	}
	expected := []int{0, 3, 6, 10}
	for i := range expected {
		if mapped[i] != expected[i] {
			t.Errorf("Expected lattice %d -> %d, got %d", i, expected[i], mapped[i])
		}
	}

	// index 2 maps before index 1
	if _, err := MapLatticeToFrames(frameTimes, []float64{0, 0.6, 0.4, 1}); !errors.Is(err, ErrSelfIntersecting) {
		t.Errorf("Expected ErrSelfIntersecting for a crossing lattice, got %v", err)
	}
}

// TestInterpolateRight verifies shortest-arc spherical interpolation
func TestInterpolateRight(t *testing.T) {
	x := r3.Vec{X: 1}
	y := r3.Vec{Y: 1}
	z := r3.Vec{Z: 1}

	half := InterpolateRight(x, y, z, 0.5)
	want := r3.Unit(r3.Vec{X: 1, Y: 1})
	if r3.Norm(r3.Sub(half, want)) > 1e-9 {
		t.Errorf("Expected %v, got %v", want, half)
	}

	end := InterpolateRight(x, y, z, 1)
	if AngleBetween(end, y) > 2*math.Pi/180 {
		t.Errorf("Full interpolation should land on the end vector, got %v", end)
	}

	// antiparallel: rotation happens about the hint axis
	flip := InterpolateRight(x, r3.Scale(-1, x), z, 0.5)
	if math.Abs(r3.Dot(flip, x)) > 1e-9 || math.Abs(r3.Dot(flip, z)) > 1e-9 {
		t.Errorf("Expected a vector perpendicular to x and z, got %v", flip)
	}
}
