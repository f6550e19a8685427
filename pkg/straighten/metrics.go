package straighten

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"volstraighten/internal/models"
)

// Metrics scores one straightening result
type Metrics struct {
	// LabeledVoxels is the number of source voxels owned by some slice
	LabeledVoxels int

	// ConflictVoxels is the number of voxels reset by conflict resolution
	ConflictVoxels int

	// MappedVoxels is the number of labeled voxels recorded in the forward map
	MappedVoxels int

	// Coverage is MappedVoxels / LabeledVoxels; 1 means every labeled voxel was sampled
	Coverage float64

	// ProfileCorrelation is the correlation between the source intensity at every frame
	// position and the output intensity at every slice center
	ProfileCorrelation float64

	// ProfileRMSE is the root mean square difference of the same two profiles
	ProfileRMSE float64

	// MeanSourceProfile and MeanOutputProfile are the profile means
	MeanSourceProfile float64
	MeanOutputProfile float64
}

// CenterlineProfiles returns channel 0 of the source at every frame position and of
// the output at every slice center
func (r *Result) CenterlineProfiles(source *models.Volume) (src, out []float64) {
	src = make([]float64, r.Frames.Len())
	out = make([]float64, r.Frames.Len())
	e := r.Frames.Extent
	for j, f := range r.Frames.Frames {
		x, y, z := int(math.Round(f.Position.X)), int(math.Round(f.Position.Y)), int(math.Round(f.Position.Z))
		src[j] = source.At(x, y, z, 0)
		out[j] = r.Volume.At(e, e, j, 0)
	}
	return src, out
}

func computeMetrics(source *models.Volume, r *Result) Metrics {
	m := Metrics{ConflictVoxels: r.Model.ConflictVoxels}

	for idx, l := range r.Labels.Data {
		if l == 0 {
			continue
		}
		m.LabeledVoxels++
		if r.OriginToStraight.Samples(idx) > 0 {
			m.MappedVoxels++
		}
	}
	if m.LabeledVoxels > 0 {
		m.Coverage = float64(m.MappedVoxels) / float64(m.LabeledVoxels)
	}

	src, out := r.CenterlineProfiles(source)
	if len(src) > 0 {
		m.MeanSourceProfile = stat.Mean(src, nil)
		m.MeanOutputProfile = stat.Mean(out, nil)
		m.ProfileRMSE = floats.Distance(src, out, 2) / math.Sqrt(float64(len(src)))
	}
	if len(src) > 1 {
		m.ProfileCorrelation = stat.Correlation(src, out, nil)
		// constant profiles have no variance to correlate
		if math.IsNaN(m.ProfileCorrelation) {
			m.ProfileCorrelation = 0
		}
	}
	return m
}
