// Package resample produces the straightened volume. Every output slice is built
// from several planes interpolated between its sampling quad and the neighboring
// one; only source voxels owned by the slice (within the conflict tolerance) are
// sampled, and every accepted sample is recorded in both coordinate maps.
package resample

import (
	"math"
	"runtime"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"volstraighten/internal/models"
	"volstraighten/pkg/frames"
	"volstraighten/pkg/model"
)

// Params controls resampling
type Params struct {
	// SuperSampleFactor multiplies the largest corner distance between neighboring
	// quads to give the number of planes per output slice
	SuperSampleFactor float64

	// ConflictTolerance is the frame-index band accepted when gating samples by label
	ConflictTolerance int

	// NumWorkers bounds the number of slices resampled concurrently
	NumWorkers int
}

// DefaultParams returns the standard resampling parameters
func DefaultParams() Params {
	return Params{
		SuperSampleFactor: 3,
		ConflictTolerance: 5,
		NumWorkers:        runtime.NumCPU(),
	}
}

// Result holds the straightened volume and both coordinate maps
type Result struct {
	// Volume has extents (2*extent, 2*extent, frames) and the source's channel count
	Volume *models.Volume

	// OriginToStraight maps source voxels to output (u, v, slice)
	OriginToStraight *models.CoordinateMap

	// StraightToOrigin maps output voxels to source positions
	StraightToOrigin *models.CoordinateMap

	// Planes holds the number of super-sampling planes used for each slice
	Planes []int

	// Accepted is the total number of label-gated samples written
	Accepted int

	// Background is the value of output voxels that received no sample
	Background float64
}

// Resampler straightens a labeled volume along sampling quads
type Resampler struct {
	params Params
}

// NewResampler creates a resampler with the provided parameters
func NewResampler(params Params) *Resampler {
	if params.NumWorkers < 1 {
		params.NumWorkers = 1
	}
	if params.SuperSampleFactor <= 0 {
		params.SuperSampleFactor = DefaultParams().SuperSampleFactor
	}
	return &Resampler{params: params}
}

// forwardSample is one accepted sample: the source voxel and its output coordinate
type forwardSample struct {
	source int
	target r3.Vec
}

// sliceResult is what one worker produces for one output slice
type sliceResult struct {
	index   int
	sums    []float64
	counts  []int32
	inverse []r3.Vec
	forward []forwardSample
	planes  int
}

// Resample builds the straightened volume
func (r *Resampler) Resample(source *models.Volume, labels *models.IntVolume, fr *frames.Result) (*Result, error) {
	if source == nil || labels == nil || fr == nil {
		return nil, errors.New("resample: source, labels and frames are required")
	}
	if !source.Valid() || !labels.Valid() {
		return nil, errors.Errorf("resample: source holds %d samples and labels %d values for their extents",
			len(source.Data), len(labels.Data))
	}
	if !source.SameShape(labels.Width, labels.Height, labels.Depth) {
		return nil, errors.Errorf("resample: label volume %dx%dx%d does not match source %dx%dx%d",
			labels.Width, labels.Height, labels.Depth, source.Width, source.Height, source.Depth)
	}
	if len(fr.Quads) == 0 {
		return nil, errors.New("resample: no sampling quads")
	}

	size := 2 * fr.Extent
	depth := len(fr.Quads)
	background, _ := source.MinMax()

	out := models.NewVolume(size, size, depth, source.Channels)
	out.VoxelSize = source.VoxelSize
	for i := range out.Data {
		out.Data[i] = background
	}

	res := &Result{
		Volume:           out,
		OriginToStraight: models.NewCoordinateMap(source.Width, source.Height, source.Depth),
		StraightToOrigin: models.NewCoordinateMap(size, size, depth),
		Planes:           make([]int, depth),
		Background:       background,
	}

	resultChan := make(chan sliceResult)
	sem := make(chan struct{}, r.params.NumWorkers)
	go func() {
		for j := 0; j < depth; j++ {
			sem <- struct{}{}
			go func(j int) {
				defer func() { <-sem }()
				resultChan <- r.resampleSlice(source, labels, fr, j)
			}(j)
		}
	}()

	// Collect results; maps are merged here so no worker writes shared state
	for completed := 0; completed < depth; completed++ {
		sr := <-resultChan
		r.merge(res, sr, size)
	}

	return res, nil
}

// Planes returns the number of super-sampling planes for slice j
func (r *Resampler) Planes(fr *frames.Result, j int) int {
	k := neighbor(j, len(fr.Quads))
	if k == j {
		return 1
	}
	count := int(math.Ceil(r.params.SuperSampleFactor * fr.Quads[j].MaxCornerDistance(fr.Quads[k])))
	if count < 1 {
		count = 1
	}
	return count
}

// neighbor is the next slice, or the previous one for the last slice
func neighbor(j, n int) int {
	if j+1 < n {
		return j + 1
	}
	if j > 0 {
		return j - 1
	}
	return j
}

// resampleSlice accumulates every accepted sample of output slice j
func (r *Resampler) resampleSlice(source *models.Volume, labels *models.IntVolume, fr *frames.Result, j int) sliceResult {
	size := 2 * fr.Extent
	ch := source.Channels
	sr := sliceResult{
		index:   j,
		sums:    make([]float64, size*size*ch),
		counts:  make([]int32, size*size),
		inverse: make([]r3.Vec, size*size),
		planes:  r.Planes(fr, j),
	}

	label := int32(j + 1)
	k := neighbor(j, len(fr.Quads))
	for s := 0; s < sr.planes; s++ {
		plane := fr.Quads[j].Lerp(fr.Quads[k], float64(s)/float64(sr.planes))
		for v := 0; v < size; v++ {
			for u := 0; u < size; u++ {
				p := plane.At(float64(u)/float64(size), float64(v)/float64(size))
				x, y, z := int(math.Round(p.X)), int(math.Round(p.Y)), int(math.Round(p.Z))
				if !source.InBounds(x, y, z) {
					continue
				}
				srcIdx := source.Index(x, y, z)
				owner := labels.Data[srcIdx]
				if owner == 0 || !model.SameSection(owner, label, r.params.ConflictTolerance) {
					continue
				}

				pix := v*size + u
				for c := 0; c < ch; c++ {
					sr.sums[pix*ch+c] += source.Data[srcIdx*ch+c]
				}
				sr.counts[pix]++
				sr.inverse[pix] = r3.Add(sr.inverse[pix], p)
				sr.forward = append(sr.forward, forwardSample{
					source: srcIdx,
					target: r3.Vec{X: float64(u), Y: float64(v), Z: float64(j)},
				})
			}
		}
	}
	return sr
}

// merge writes one slice into the output volume and both coordinate maps
func (r *Resampler) merge(res *Result, sr sliceResult, size int) {
	out := res.Volume
	ch := out.Channels
	base := sr.index * size * size
	for pix, n := range sr.counts {
		if n == 0 {
			continue
		}
		for c := 0; c < ch; c++ {
			out.Data[(base+pix)*ch+c] = sr.sums[pix*ch+c] / float64(n)
		}
		// one record per pixel keeps the inverse an average over its samples
		res.StraightToOrigin.Record(base+pix, r3.Scale(1/float64(n), sr.inverse[pix]))
	}
	for _, f := range sr.forward {
		res.OriginToStraight.Record(f.source, f.target)
	}
	res.Planes[sr.index] = sr.planes
	res.Accepted += len(sr.forward)
}
