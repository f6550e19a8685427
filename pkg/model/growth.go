package model

import (
	"gonum.org/v1/gonum/spatial/r3"

	"volstraighten/internal/models"
)

// GrowthOutcome tells why boundary growth stopped
type GrowthOutcome int

const (
	// RoundCapReached means the round limit ended growth while frames could still grow
	RoundCapReached GrowthOutcome = iota

	// CoverageSatisfied means every annotation fell on a labeled voxel
	CoverageSatisfied

	// Exhausted means every frame halted before the round limit
	Exhausted
)

func (o GrowthOutcome) String() string {
	switch o {
	case RoundCapReached:
		return "round-cap-reached"
	case CoverageSatisfied:
		return "coverage-satisfied"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// GrowthReport summarizes boundary growth
type GrowthReport struct {
	Outcome GrowthOutcome

	// Rounds is the number of growth rounds executed
	Rounds int

	// HaltRound holds, per frame, the round in which growth halted, or 0 if it never did
	HaltRound []int

	// GrownVoxels is the number of voxels claimed during growth
	GrownVoxels int

	// Uncovered lists the annotations still on unlabeled voxels after growth
	Uncovered []string
}

// grower advances every frame's cross-section contour one voxel per round
type grower struct {
	params   Params
	in       Input
	labels   *models.IntVolume
	contours []*Contour
	active   []bool
	allowed  []map[int32]bool
	report   GrowthReport
}

func newGrower(params Params, in Input, labels *models.IntVolume) *grower {
	n := len(in.Frames.Frames)
	g := &grower{
		params:   params,
		in:       in,
		labels:   labels,
		contours: make([]*Contour, n),
		active:   make([]bool, n),
		allowed:  make([]map[int32]bool, n),
		report:   GrowthReport{HaltRound: make([]int, n)},
	}
	for j, f := range in.Frames.Frames {
		g.contours[j] = NewEllipseContour(f.HalfWidth, f.HalfWidth*params.UpRadiusRatio)
		g.active[j] = true
		g.allowed[j] = g.endpointMarkers(f.Segment)
	}
	return g
}

// endpointMarkers collects the marker ids under both points of the lattice pairs
// bounding a segment
func (g *grower) endpointMarkers(segment int) map[int32]bool {
	ids := make(map[int32]bool)
	if g.in.Markers == nil {
		return ids
	}
	for _, i := range []int{segment, segment + 1} {
		if i < 0 || i >= g.in.Lattice.Len() {
			continue
		}
		for _, p := range []r3.Vec{g.in.Lattice.Left[i], g.in.Lattice.Right[i]} {
			x, y, z := voxelOf(p)
			if id := g.in.Markers.At(x, y, z); id != 0 {
				ids[id] = true
			}
		}
	}
	return ids
}

// run executes growth rounds until a limit is hit
func (g *grower) run() GrowthReport {
	done := false
	for round := 1; round <= g.params.GrowthRounds; round++ {
		if g.coverageSatisfied() {
			g.report.Outcome = CoverageSatisfied
			done = true
			break
		}
		if !g.anyActive() {
			g.report.Outcome = Exhausted
			done = true
			break
		}
		for j := range g.contours {
			if g.active[j] {
				g.grow(j, round)
			}
		}
		g.report.Rounds = round
	}

	if !done {
		switch {
		case g.coverageSatisfied():
			g.report.Outcome = CoverageSatisfied
		case !g.anyActive():
			g.report.Outcome = Exhausted
		default:
			g.report.Outcome = RoundCapReached
		}
	}

	for _, a := range g.in.Annotations {
		if !Covered(g.labels, a) {
			g.report.Uncovered = append(g.report.Uncovered, a.Name)
		}
	}
	return g.report
}

func (g *grower) anyActive() bool {
	for _, a := range g.active {
		if a {
			return true
		}
	}
	return false
}

// coverageSatisfied is only meaningful when annotations were supplied
func (g *grower) coverageSatisfied() bool {
	if !g.params.StopOnCoverage || len(g.in.Annotations) == 0 {
		return false
	}
	for _, a := range g.in.Annotations {
		if !Covered(g.labels, a) {
			return false
		}
	}
	return true
}

// grow advances frame j by one voxel. If any vertex is blocked the frame halts for
// good and claims nothing this round.
func (g *grower) grow(j, round int) {
	f := g.in.Frames.Frames[j]
	c := g.contours[j]
	label := int32(j + 1)
	limit := float64(g.in.Frames.Extent - 1)

	var candidates []int
	for k, r := range c.Radii {
		if r+1 > limit {
			g.halt(j, round)
			return
		}
		for _, step := range []float64{0.5, 1} {
			x, y, z := voxelOf(c.Point(f, k, r+step))
			if !g.accepts(x, y, z, label, j) {
				g.halt(j, round)
				return
			}
			candidates = append(candidates, g.labels.Index(x, y, z))
		}
	}

	for _, idx := range candidates {
		if g.labels.Data[idx] == 0 {
			g.labels.Data[idx] = label
			g.report.GrownVoxels++
		}
	}
	for k := range c.Radii {
		c.Radii[k]++
	}
	c.Densify()
}

func (g *grower) halt(j, round int) {
	g.active[j] = false
	g.report.HaltRound[j] = round
}

// accepts checks one voxel ahead of a growing boundary
func (g *grower) accepts(x, y, z int, label int32, j int) bool {
	if !g.labels.InBounds(x, y, z) {
		return false
	}
	if current := g.labels.At(x, y, z); current != 0 && !SameSection(current, label, g.params.ConflictTolerance) {
		return false
	}
	for _, n := range faceNeighbors {
		other := g.labels.At(x+n[0], y+n[1], z+n[2])
		if other != 0 && !SameSection(other, label, g.params.ConflictTolerance) {
			return false
		}
	}
	if g.in.Mask != nil && g.in.Mask.At(x, y, z) {
		return false
	}
	if g.in.Markers != nil {
		if id := g.in.Markers.At(x, y, z); id != 0 && !g.allowed[j][id] {
			return false
		}
	}
	return true
}
