package lattice

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// straightLattice builds n pairs along the z axis, spaced by gap, with the given half-width
func straightLattice(n int, gap, halfWidth float64) Lattice {
	var l Lattice
	for i := 0; i < n; i++ {
		z := 5 + float64(i)*gap
		l.Left = append(l.Left, r3.Vec{X: 20 - halfWidth, Y: 20, Z: z})
		l.Right = append(l.Right, r3.Vec{X: 20 + halfWidth, Y: 20, Z: z})
	}
	return l
}

// TestValidate covers the structural lattice invariants
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		lattice Lattice
		want    error
	}{
		{
			name:    "valid",
			lattice: straightLattice(3, 4, 5),
		},
		{
			name: "mismatched counts",
			lattice: Lattice{
				Left:  []r3.Vec{{X: 0}, {X: 1}},
				Right: []r3.Vec{{X: 2}},
			},
			want: ErrMismatchedLattice,
		},
		{
			name: "single pair",
			lattice: Lattice{
				Left:  []r3.Vec{{X: 0}},
				Right: []r3.Vec{{X: 2}},
			},
			want: ErrTooFewPairs,
		},
		{
			name: "zero width pair",
			lattice: Lattice{
				Left:  []r3.Vec{{X: 0}, {X: 1, Z: 3}},
				Right: []r3.Vec{{X: 2}, {X: 1, Z: 3}},
			},
			want: ErrDegenerateLattice,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.lattice.Validate()
			if tc.want == nil {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

// TestArcLengthTimes verifies times are proportional to cumulative center length
func TestArcLengthTimes(t *testing.T) {
	points := []r3.Vec{{Z: 0}, {Z: 1}, {Z: 3}, {Z: 4}}
	times, err := ArcLengthTimes(points)
	if err != nil {
		t.Fatalf("ArcLengthTimes failed: %v", err)
	}

	expected := []float64{0, 0.25, 0.75, 1}
	for i := range expected {
		if math.Abs(times[i]-expected[i]) > 1e-12 {
			t.Errorf("Expected t[%d]=%f, got %f", i, expected[i], times[i])
		}
	}
}

// TestFitRejectsCoincidentPairs checks that a zero-length segment fails the fit
func TestFitRejectsCoincidentPairs(t *testing.T) {
	l := straightLattice(4, 5, 3)
	// Duplicate pair 1 into pair 2
	l.Left[2] = l.Left[1]
	l.Right[2] = l.Right[1]

	curves, err := Fit(l)
	if err == nil {
		t.Fatal("Expected degenerate lattice error, got nil")
	}
	if !errors.Is(err, ErrDegenerateLattice) {
		t.Errorf("Expected ErrDegenerateLattice, got %v", err)
	}
	if curves != nil {
		t.Error("Expected no curves for a degenerate lattice")
	}
}

// TestFitStraightLattice checks positions, tangents and arc length on a straight lattice
func TestFitStraightLattice(t *testing.T) {
	l := straightLattice(5, 4, 6)
	curves, err := Fit(l)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if math.Abs(curves.Center.Length()-16) > 1e-6 {
		t.Errorf("Expected center length 16, got %f", curves.Center.Length())
	}

	for i, ti := range curves.Times {
		p := curves.Center.Position(ti)
		want := r3.Vec{X: 20, Y: 20, Z: 5 + 4*float64(i)}
		if r3.Norm(r3.Sub(p, want)) > 1e-9 {
			t.Errorf("Center at t[%d] = %v, expected %v", i, p, want)
		}
		if math.Abs(curves.HalfWidths[i]-6) > 1e-12 {
			t.Errorf("Expected half-width 6, got %f", curves.HalfWidths[i])
		}
	}

	tangent := curves.Center.Tangent(0.5)
	if math.Abs(tangent.Z-1) > 1e-9 {
		t.Errorf("Expected tangent along +z, got %v", tangent)
	}

	// Left and right curves share the center times
	left := curves.Left.Position(curves.Times[2])
	if r3.Norm(r3.Sub(left, l.Left[2])) > 1e-9 {
		t.Errorf("Left curve at t[2] = %v, expected %v", left, l.Left[2])
	}
}

// TestTimeAtLength verifies the arc-length inversion on a curved lattice
func TestTimeAtLength(t *testing.T) {
	var l Lattice
	for i := 0; i < 6; i++ {
		angle := float64(i) * math.Pi / 10
		c := r3.Vec{X: 30 + 20*math.Cos(angle), Y: 30 + 20*math.Sin(angle), Z: 10}
		l.Left = append(l.Left, r3.Sub(c, r3.Vec{Z: 3}))
		l.Right = append(l.Right, r3.Add(c, r3.Vec{Z: 3}))
	}
	curves, err := Fit(l)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	length := curves.Center.Length()
	prev := -1.0
	for s := 0.0; s <= length; s += length / 20 {
		tm := curves.Center.TimeAtLength(s)
		if tm < prev {
			t.Fatalf("TimeAtLength is not monotonic at s=%f", s)
		}
		prev = tm
		back := curves.Center.LengthAt(tm)
		if math.Abs(back-s) > 1e-3*length {
			t.Errorf("LengthAt(TimeAtLength(%f)) = %f", s, back)
		}
	}
	if curves.Center.TimeAtLength(length*2) != 1 {
		t.Errorf("Expected clamped time 1 past the end")
	}
}
