// Package model builds the per-voxel label volume that assigns source voxels to
// output slices. Each frame claims the voxels of a thin ellipsoid; competing claims
// from distant frames are reset, and the accepted regions are then grown outward
// under label, mask and marker constraints.
package model

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"volstraighten/internal/models"
	"volstraighten/pkg/frames"
	"volstraighten/pkg/lattice"
)

// ErrVolumeMismatch is returned when a marker or mask volume does not match the source extents
var ErrVolumeMismatch = errors.New("model: volume extents do not match")

// Params controls the cross-section model
type Params struct {
	// ConflictTolerance is the largest frame-index difference treated as the same cross-section
	ConflictTolerance int

	// GrowthRounds caps the number of boundary growth rounds
	GrowthRounds int

	// UpRadiusRatio scales the half-width into the ellipsoid's up radius
	UpRadiusRatio float64

	// Thickness is the ellipsoid radius along the tangent, in voxels
	Thickness float64

	// StopOnCoverage ends growth early once every annotation lies on a labeled voxel
	StopOnCoverage bool

	// NumWorkers is the number of goroutines used to rasterize ellipsoids
	NumWorkers int
}

// DefaultParams returns the standard model parameters
func DefaultParams() Params {
	return Params{
		ConflictTolerance: 5,
		GrowthRounds:      25,
		UpRadiusRatio:     0.5,
		Thickness:         1,
		StopOnCoverage:    true,
		NumWorkers:        runtime.NumCPU(),
	}
}

// Input bundles everything the modeler consumes
type Input struct {
	// Width, Height and Depth are the source volume extents
	Width, Height, Depth int

	Frames  *frames.Result
	Lattice lattice.Lattice

	// Markers is an optional marker-segmentation volume (0 = no marker)
	Markers *models.IntVolume

	// Mask is an optional exclusion mask
	Mask *models.Mask

	// Annotations are optional points whose coverage can end growth early
	Annotations []models.Annotation
}

// Result is the settled label volume and its bookkeeping
type Result struct {
	// Labels holds 0 for unclaimed voxels and j+1 for voxels owned by frame j
	Labels *models.IntVolume

	// ConflictVoxels is the number of voxels reset during conflict resolution
	ConflictVoxels int

	// ClaimedVoxels is the number of labeled voxels after the claim pass
	ClaimedVoxels int

	// MarkerSlices maps each marker id to the output slice holding most of its labeled voxels
	MarkerSlices map[int32]int

	Growth GrowthReport
}

// Modeler builds label volumes
type Modeler struct {
	params Params
}

// NewModeler creates a modeler with the provided parameters
func NewModeler(params Params) *Modeler {
	if params.NumWorkers < 1 {
		params.NumWorkers = 1
	}
	if params.ConflictTolerance < 0 {
		params.ConflictTolerance = 0
	}
	return &Modeler{params: params}
}

// Build runs the claim pass followed by boundary growth
func (m *Modeler) Build(in Input) (*Result, error) {
	if in.Frames == nil || len(in.Frames.Frames) == 0 {
		return nil, errors.New("model: no frames to model")
	}
	if in.Width <= 0 || in.Height <= 0 || in.Depth <= 0 {
		return nil, errors.Errorf("model: invalid volume extents %dx%dx%d", in.Width, in.Height, in.Depth)
	}
	if in.Markers != nil && !in.Markers.Valid() {
		return nil, errors.Wrapf(ErrVolumeMismatch, "markers hold %d values for %dx%dx%d",
			len(in.Markers.Data), in.Markers.Width, in.Markers.Height, in.Markers.Depth)
	}
	if in.Mask != nil && !in.Mask.Valid() {
		return nil, errors.Wrapf(ErrVolumeMismatch, "mask holds %d values for %dx%dx%d",
			len(in.Mask.Data), in.Mask.Width, in.Mask.Height, in.Mask.Depth)
	}
	if in.Markers != nil && (in.Markers.Width != in.Width || in.Markers.Height != in.Height || in.Markers.Depth != in.Depth) {
		return nil, errors.Wrapf(ErrVolumeMismatch, "markers %dx%dx%d", in.Markers.Width, in.Markers.Height, in.Markers.Depth)
	}
	if in.Mask != nil && (in.Mask.Width != in.Width || in.Mask.Height != in.Height || in.Mask.Depth != in.Depth) {
		return nil, errors.Wrapf(ErrVolumeMismatch, "mask %dx%dx%d", in.Mask.Width, in.Mask.Height, in.Mask.Depth)
	}

	labels := models.NewIntVolume(in.Width, in.Height, in.Depth)

	// Pass A: claim and conflict
	claims := m.rasterizeEllipsoids(in)
	conflicts := m.mergeClaims(labels, claims)
	claimed := labels.CountNonZero()

	// Pass B: boundary growth on the settled claim state
	g := newGrower(m.params, in, labels)
	report := g.run()

	return &Result{
		Labels:         labels,
		ConflictVoxels: conflicts,
		ClaimedVoxels:  claimed,
		MarkerSlices:   markerSlices(labels, in.Markers),
		Growth:         report,
	}, nil
}

// rasterizeEllipsoids computes every frame's claimed voxel set in parallel.
// Workers only write their own frames' slots, so no voxel state is shared.
func (m *Modeler) rasterizeEllipsoids(in Input) [][]int {
	frameList := in.Frames.Frames
	claims := make([][]int, len(frameList))

	numWorkers := m.params.NumWorkers
	framesPerWorker := (len(frameList) + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		start := w * framesPerWorker
		end := start + framesPerWorker
		if end > len(frameList) {
			end = len(frameList)
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for j := start; j < end; j++ {
				e := NewEllipsoid(frameList[j], m.params.UpRadiusRatio, m.params.Thickness)
				claims[j] = e.Voxels(in.Width, in.Height, in.Depth)
			}
		}(start, end)
	}
	wg.Wait()

	return claims
}

// mergeClaims applies all claims in frame order: unclaimed voxels take the frame's
// label, voxels owned within tolerance keep their first writer, anything else is a
// conflict. Voxels adjacent to an out-of-tolerance owner are conflicts as well.
// Every conflict voxel ends unclaimed. It returns the number of voxels reset.
func (m *Modeler) mergeClaims(labels *models.IntVolume, claims [][]int) int {
	conflict := make(map[int]struct{})
	for j, voxels := range claims {
		label := int32(j + 1)
		for _, idx := range voxels {
			current := labels.Data[idx]
			switch {
			case current == 0:
				labels.Data[idx] = label
			case m.sameSection(current, label):
			default:
				conflict[idx] = struct{}{}
			}
		}
	}

	// Adjacent owners from distant frames are a conflict between overlapping folds.
	w, h, d := labels.Width, labels.Height, labels.Depth
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				idx := labels.Index(x, y, z)
				current := labels.Data[idx]
				if current == 0 {
					continue
				}
				for _, n := range forwardNeighbors {
					nx, ny, nz := x+n[0], y+n[1], z+n[2]
					if !labels.InBounds(nx, ny, nz) {
						continue
					}
					nidx := labels.Index(nx, ny, nz)
					other := labels.Data[nidx]
					if other != 0 && !m.sameSection(current, other) {
						conflict[idx] = struct{}{}
						conflict[nidx] = struct{}{}
					}
				}
			}
		}
	}

	for idx := range conflict {
		labels.Data[idx] = 0
	}
	return len(conflict)
}

// sameSection reports whether two labels are within the conflict tolerance
func (m *Modeler) sameSection(a, b int32) bool {
	return SameSection(a, b, m.params.ConflictTolerance)
}

// SameSection reports whether labels a and b (both non-zero) belong to frames whose
// indices differ by at most tolerance
func SameSection(a, b int32, tolerance int) bool {
	diff := int(a) - int(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

var forwardNeighbors = [][3]int{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

var faceNeighbors = [][3]int{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// markerSlices votes every labeled marker voxel into its owner's slice
func markerSlices(labels *models.IntVolume, markers *models.IntVolume) map[int32]int {
	out := make(map[int32]int)
	if markers == nil {
		return out
	}
	votes := make(map[int32]map[int]int)
	for idx, id := range markers.Data {
		if id == 0 || labels.Data[idx] == 0 {
			continue
		}
		if votes[id] == nil {
			votes[id] = make(map[int]int)
		}
		votes[id][int(labels.Data[idx])-1]++
	}
	for id, perSlice := range votes {
		best, bestCount := -1, 0
		for slice, count := range perSlice {
			if count > bestCount || (count == bestCount && slice < best) {
				best, bestCount = slice, count
			}
		}
		out[id] = best
	}
	return out
}

// voxelOf rounds a point to its nearest voxel
func voxelOf(p r3.Vec) (int, int, int) {
	return int(math.Round(p.X)), int(math.Round(p.Y)), int(math.Round(p.Z))
}

// Covered reports whether the annotation falls on a labeled voxel
func Covered(labels *models.IntVolume, a models.Annotation) bool {
	x, y, z := voxelOf(a.Position)
	return labels.At(x, y, z) != 0
}

func (r *Result) String() string {
	return fmt.Sprintf("claimed=%d conflicts=%d final=%d rounds=%d outcome=%s",
		r.ClaimedVoxels, r.ConflictVoxels, r.Labels.CountNonZero(), r.Growth.Rounds, r.Growth.Outcome)
}
