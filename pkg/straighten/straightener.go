// Package straighten runs the full lattice-guided straightening pipeline: curve
// fitting, frame sampling, cross-section modeling and resampling. Every call to
// Generate produces a fresh, immutable Result; nothing is patched incrementally.
package straighten

import (
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"volstraighten/internal/models"
	"volstraighten/pkg/frames"
	"volstraighten/pkg/lattice"
	"volstraighten/pkg/lookup"
	"volstraighten/pkg/model"
	"volstraighten/pkg/resample"
)

// Params holds every tunable of the pipeline
type Params struct {
	// Step is the arc length between output slices, in voxels
	Step float64

	// Margin is added to the rounded maximum half-width to size the output cross-section
	Margin int

	// MaxBendDegrees rejects curves whose up vectors turn more than this between slices
	MaxBendDegrees float64

	// ConflictTolerance is the frame-index band treated as one cross-section
	ConflictTolerance int

	// GrowthRounds caps boundary growth
	GrowthRounds int

	// StopOnCoverage ends growth once every annotation is labeled
	StopOnCoverage bool

	// SuperSampleFactor multiplies the corner distance between quads into a plane count
	SuperSampleFactor float64

	// EllipsoidThickness is the ellipsoid radius along the tangent
	EllipsoidThickness float64

	// UpRadiusRatio scales the half-width into the ellipsoid's up radius
	UpRadiusRatio float64

	// SearchRadius bounds the nearest-mapped-voxel fallback during re-projection
	SearchRadius float64

	// NumCores is the number of goroutines used for rasterization and resampling
	NumCores int
}

// DefaultParams returns the standard pipeline parameters
func DefaultParams() Params {
	return Params{
		Step:               1.0,
		Margin:             30,
		MaxBendDegrees:     90,
		ConflictTolerance:  5,
		GrowthRounds:       25,
		StopOnCoverage:     true,
		SuperSampleFactor:  3,
		EllipsoidThickness: 1,
		UpRadiusRatio:      0.5,
		SearchRadius:       3,
		NumCores:           runtime.NumCPU(),
	}
}

// Validate checks parameter ranges
func (p Params) Validate() error {
	switch {
	case p.Step <= 0:
		return errors.Errorf("straighten: step must be positive, got %f", p.Step)
	case p.Margin < 0:
		return errors.Errorf("straighten: margin must be non-negative, got %d", p.Margin)
	case p.MaxBendDegrees <= 0:
		return errors.Errorf("straighten: max bend must be positive, got %f", p.MaxBendDegrees)
	case p.ConflictTolerance < 0:
		return errors.Errorf("straighten: conflict tolerance must be non-negative, got %d", p.ConflictTolerance)
	case p.GrowthRounds < 0:
		return errors.Errorf("straighten: growth rounds must be non-negative, got %d", p.GrowthRounds)
	case p.SuperSampleFactor <= 0:
		return errors.Errorf("straighten: super-sample factor must be positive, got %f", p.SuperSampleFactor)
	case p.EllipsoidThickness <= 0:
		return errors.Errorf("straighten: ellipsoid thickness must be positive, got %f", p.EllipsoidThickness)
	case p.UpRadiusRatio <= 0:
		return errors.Errorf("straighten: up radius ratio must be positive, got %f", p.UpRadiusRatio)
	}
	return nil
}

func (p Params) frameParams() frames.Params {
	return frames.Params{Step: p.Step, Margin: p.Margin, MaxBendDegrees: p.MaxBendDegrees}
}

func (p Params) modelParams() model.Params {
	return model.Params{
		ConflictTolerance: p.ConflictTolerance,
		GrowthRounds:      p.GrowthRounds,
		UpRadiusRatio:     p.UpRadiusRatio,
		Thickness:         p.EllipsoidThickness,
		StopOnCoverage:    p.StopOnCoverage,
		NumWorkers:        p.NumCores,
	}
}

func (p Params) resampleParams() resample.Params {
	return resample.Params{
		SuperSampleFactor: p.SuperSampleFactor,
		ConflictTolerance: p.ConflictTolerance,
		NumWorkers:        p.NumCores,
	}
}

// Input is everything the host supplies for one straightening
type Input struct {
	Source  *models.Volume
	Lattice lattice.Lattice

	// Markers and Mask are optional and must match the source extents
	Markers *models.IntVolume
	Mask    *models.Mask

	// Annotations are optional named points; they bound growth and are re-projected
	Annotations []models.Annotation
}

// Result is the outcome of one successful Generate call. It is never mutated after
// Generate returns.
type Result struct {
	Lattice lattice.Lattice
	Curves  *lattice.Curves
	Frames  *frames.Result

	// Labels is the settled label volume
	Labels *models.IntVolume

	// Model holds the modeling bookkeeping (conflicts, growth report, marker slices)
	Model *model.Result

	// Volume is the straightened volume, (2*extent, 2*extent, frames)
	Volume *models.Volume

	OriginToStraight *models.CoordinateMap
	StraightToOrigin *models.CoordinateMap

	// Planes is the super-sampling plane count used for each slice
	Planes []int

	// ReprojectedLattice holds each lattice pair in output coordinates
	ReprojectedLattice []ProjectedPair

	// ReprojectedAnnotations holds each annotation in output coordinates
	ReprojectedAnnotations []ProjectedPoint

	Metrics Metrics

	// Elapsed is the wall time of the Generate call
	Elapsed time.Duration

	searchRadius float64
	forward      *lookup.Index
	inverse      *lookup.Index
}

// Straightener runs the pipeline and remembers the last successful result
type Straightener struct {
	params Params

	mu   sync.Mutex
	last *Result
}

// NewStraightener creates a straightener with the provided parameters
func NewStraightener(params Params) *Straightener {
	if params.NumCores < 1 {
		params.NumCores = 1
	}
	return &Straightener{params: params}
}

// Params returns the straightener's parameters
func (s *Straightener) Params() Params {
	return s.params
}

// Last returns the most recent successful result, or nil
func (s *Straightener) Last() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Generate computes a straightened volume and its coordinate maps. On failure no
// partial output is returned and the previous successful result is kept.
func (s *Straightener) Generate(in Input) (*Result, error) {
	res, err := s.generate(in)
	if err != nil {
		Logger().Warn("straightening failed", "status", Classify(err).String(), "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()
	return res, nil
}

func (s *Straightener) generate(in Input) (*Result, error) {
	log := Logger()
	start := time.Now()

	if err := s.params.Validate(); err != nil {
		return nil, err
	}
	if in.Source == nil || in.Source.Len() == 0 {
		return nil, errors.New("straighten: source volume is empty")
	}
	if err := checkVolumes(in); err != nil {
		return nil, err
	}
	if err := in.Lattice.Validate(); err != nil {
		return nil, err
	}

	// Step 1: fit left, center and right curves
	log.Info("fitting lattice curves", "pairs", in.Lattice.Len())
	curves, err := lattice.Fit(in.Lattice)
	if err != nil {
		return nil, errors.Wrap(err, "curve fitting failed")
	}
	log.Debug("center curve fitted", "length", curves.Center.Length())

	// Step 2: sample frames along the center curve
	log.Info("sampling frames")
	fr, err := frames.Sample(curves, s.params.frameParams())
	if err != nil {
		return nil, errors.Wrap(err, "frame sampling failed")
	}
	log.Debug("frames sampled", "frames", fr.Len(), "extent", fr.Extent, "maxHalfWidth", fr.MaxHalfWidth)

	// Step 3: build the label volume
	log.Info("modeling cross-sections")
	modeled, err := model.NewModeler(s.params.modelParams()).Build(model.Input{
		Width:       in.Source.Width,
		Height:      in.Source.Height,
		Depth:       in.Source.Depth,
		Frames:      fr,
		Lattice:     in.Lattice,
		Markers:     in.Markers,
		Mask:        in.Mask,
		Annotations: in.Annotations,
	})
	if err != nil {
		return nil, errors.Wrap(err, "cross-section modeling failed")
	}
	log.Debug("label volume built",
		"claimed", modeled.ClaimedVoxels,
		"conflicts", modeled.ConflictVoxels,
		"grown", modeled.Growth.GrownVoxels,
		"rounds", modeled.Growth.Rounds,
		"outcome", modeled.Growth.Outcome.String())
	for _, name := range modeled.Growth.Uncovered {
		log.Warn("annotation not covered by the cross-section model", "annotation", name)
	}

	// Step 4: resample the straightened volume
	log.Info("resampling straightened volume")
	sampled, err := resample.NewResampler(s.params.resampleParams()).Resample(in.Source, modeled.Labels, fr)
	if err != nil {
		return nil, errors.Wrap(err, "resampling failed")
	}
	log.Debug("volume resampled", "samples", sampled.Accepted,
		"width", sampled.Volume.Width, "height", sampled.Volume.Height, "depth", sampled.Volume.Depth)

	res := &Result{
		Lattice:          in.Lattice,
		Curves:           curves,
		Frames:           fr,
		Labels:           modeled.Labels,
		Model:            modeled,
		Volume:           sampled.Volume,
		OriginToStraight: sampled.OriginToStraight,
		StraightToOrigin: sampled.StraightToOrigin,
		Planes:           sampled.Planes,
		searchRadius:     s.params.SearchRadius,
		forward:          lookup.NewIndex(sampled.OriginToStraight),
		inverse:          lookup.NewIndex(sampled.StraightToOrigin),
	}

	// Step 5: re-project lattice and annotations, then score the result
	res.ReprojectedLattice = res.ReprojectLattice()
	res.ReprojectedAnnotations = res.ReprojectAnnotations(in.Annotations)
	res.Metrics = computeMetrics(in.Source, res)
	res.Elapsed = time.Since(start)

	log.Info("straightening complete",
		"slices", res.Volume.Depth,
		"coverage", res.Metrics.Coverage,
		"elapsed", res.Elapsed)
	return res, nil
}

// checkVolumes rejects volumes whose data does not match their extents, and markers
// or masks that do not match the source
func checkVolumes(in Input) error {
	src := in.Source
	if !src.Valid() {
		return errors.Wrapf(model.ErrVolumeMismatch, "source holds %d samples for %dx%dx%dx%d",
			len(src.Data), src.Width, src.Height, src.Depth, src.Channels)
	}
	if m := in.Markers; m != nil {
		if !m.Valid() || !src.SameShape(m.Width, m.Height, m.Depth) {
			return errors.Wrapf(model.ErrVolumeMismatch, "markers %dx%dx%d with %d values",
				m.Width, m.Height, m.Depth, len(m.Data))
		}
	}
	if m := in.Mask; m != nil {
		if !m.Valid() || !src.SameShape(m.Width, m.Height, m.Depth) {
			return errors.Wrapf(model.ErrVolumeMismatch, "mask %dx%dx%d with %d values",
				m.Width, m.Height, m.Depth, len(m.Data))
		}
	}
	return nil
}

// Extent returns the half size of every output cross-section
func (r *Result) Extent() int {
	return r.Frames.Extent
}

// SliceCenter returns the output position of frame j's center
func (r *Result) SliceCenter(j int) r3.Vec {
	e := float64(r.Frames.Extent)
	return r3.Vec{X: e, Y: e, Z: float64(j)}
}
