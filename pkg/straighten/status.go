package straighten

import (
	"github.com/pkg/errors"

	"volstraighten/pkg/frames"
	"volstraighten/pkg/lattice"
)

// Status classifies the outcome of a Generate call for the host
type Status int

const (
	// StatusOK means a result was produced
	StatusOK Status = iota

	// StatusDegenerateInput covers duplicate pairs, zero-length segments and mismatched counts
	StatusDegenerateInput

	// StatusGeometryFailure covers self-intersecting lattices and excessive bends
	StatusGeometryFailure

	// StatusInvalidInput covers missing or mis-sized volumes and bad parameters
	StatusInvalidInput
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDegenerateInput:
		return "degenerate-input"
	case StatusGeometryFailure:
		return "geometry-failure"
	case StatusInvalidInput:
		return "invalid-input"
	default:
		return "unknown"
	}
}

// Classify maps an error returned by Generate to a Status
func Classify(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, lattice.ErrMismatchedLattice),
		errors.Is(err, lattice.ErrTooFewPairs),
		errors.Is(err, lattice.ErrDegenerateLattice):
		return StatusDegenerateInput
	case errors.Is(err, frames.ErrSelfIntersecting),
		errors.Is(err, frames.ErrExcessiveBend):
		return StatusGeometryFailure
	default:
		// includes model.ErrVolumeMismatch, bad parameters and missing volumes
		return StatusInvalidInput
	}
}
