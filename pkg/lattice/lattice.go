// Package lattice validates a left/right point-pair lattice and fits the
// left, center and right curves that trace the specimen head to tail.
package lattice

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrMismatchedLattice is returned when the left and right point lists differ in length.
	ErrMismatchedLattice = errors.New("lattice: left and right point counts differ")

	// ErrTooFewPairs is returned when fewer than two pairs are supplied.
	ErrTooFewPairs = errors.New("lattice: at least two point pairs are required")

	// ErrDegenerateLattice is returned for duplicate points, zero-length segments
	// and zero-width pairs. No curve can be fitted through such a lattice.
	ErrDegenerateLattice = errors.New("lattice: degenerate lattice")
)

// minSeparation is the distance below which two lattice points are considered coincident.
const minSeparation = 1e-6

// Lattice is an ordered sequence of (left, right) point pairs in source voxel coordinates
type Lattice struct {
	Left  []r3.Vec
	Right []r3.Vec
}

// Len returns the number of pairs
func (l Lattice) Len() int {
	return len(l.Left)
}

// Validate checks the structural invariants: equal counts, at least two pairs,
// and no pair with coincident left and right points.
func (l Lattice) Validate() error {
	if len(l.Left) != len(l.Right) {
		return errors.Wrapf(ErrMismatchedLattice, "left=%d right=%d", len(l.Left), len(l.Right))
	}
	if len(l.Left) < 2 {
		return errors.Wrapf(ErrTooFewPairs, "got %d", len(l.Left))
	}
	for i := range l.Left {
		if r3.Norm(r3.Sub(l.Right[i], l.Left[i])) < minSeparation {
			return errors.Wrapf(ErrDegenerateLattice, "pair %d has zero width", i)
		}
	}
	return nil
}

// Centers returns the pointwise midpoints of the left/right pairs
func (l Lattice) Centers() []r3.Vec {
	centers := make([]r3.Vec, len(l.Left))
	for i := range l.Left {
		centers[i] = r3.Scale(0.5, r3.Add(l.Left[i], l.Right[i]))
	}
	return centers
}

// HalfWidths returns half the left-right distance of each pair
func (l Lattice) HalfWidths() []float64 {
	widths := make([]float64, len(l.Left))
	for i := range l.Left {
		widths[i] = 0.5 * r3.Norm(r3.Sub(l.Right[i], l.Left[i]))
	}
	return widths
}

// RightVectors returns the unit vectors pointing from each left point to its right point
func (l Lattice) RightVectors() []r3.Vec {
	rights := make([]r3.Vec, len(l.Left))
	for i := range l.Left {
		rights[i] = r3.Unit(r3.Sub(l.Right[i], l.Left[i]))
	}
	return rights
}
