package volumeio

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"volstraighten/internal/models"
	"volstraighten/pkg/lattice"
	"volstraighten/pkg/straighten"
)

// Point is a voxel coordinate written as a [x, y, z] sequence
type Point [3]float64

func (p Point) vec() r3.Vec { return r3.Vec{X: p[0], Y: p[1], Z: p[2]} }

func pointOf(v r3.Vec) Point { return Point{v.X, v.Y, v.Z} }

// PairFile is one lattice pair
type PairFile struct {
	Left  Point `yaml:"left"`
	Right Point `yaml:"right"`
}

// AnnotationFile is one named point
type AnnotationFile struct {
	Name     string `yaml:"name"`
	Position Point  `yaml:"position"`
}

// LatticeFile is the on-disk form of a lattice and its annotations
type LatticeFile struct {
	Pairs       []PairFile       `yaml:"pairs"`
	Annotations []AnnotationFile `yaml:"annotations,omitempty"`
}

// LoadLattice reads a lattice YAML file
func LoadLattice(path string) (lattice.Lattice, []models.Annotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lattice.Lattice{}, nil, errors.Wrap(err, "error reading lattice file")
	}

	var f LatticeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return lattice.Lattice{}, nil, errors.Wrap(err, "error parsing lattice file")
	}

	var l lattice.Lattice
	for _, p := range f.Pairs {
		l.Left = append(l.Left, p.Left.vec())
		l.Right = append(l.Right, p.Right.vec())
	}
	annotations := make([]models.Annotation, len(f.Annotations))
	for i, a := range f.Annotations {
		annotations[i] = models.Annotation{Name: a.Name, Position: a.Position.vec()}
	}
	return l, annotations, nil
}

// SaveLattice writes a lattice YAML file
func SaveLattice(path string, l lattice.Lattice, annotations []models.Annotation) error {
	f := LatticeFile{}
	for i := 0; i < l.Len(); i++ {
		f.Pairs = append(f.Pairs, PairFile{Left: pointOf(l.Left[i]), Right: pointOf(l.Right[i])})
	}
	for _, a := range annotations {
		f.Annotations = append(f.Annotations, AnnotationFile{Name: a.Name, Position: pointOf(a.Position)})
	}
	return writeYAML(path, f)
}

// ProjectedPointFile is a re-projected point with how it was resolved
type ProjectedPointFile struct {
	Name       string `yaml:"name,omitempty"`
	Source     Point  `yaml:"source"`
	Target     Point  `yaml:"target"`
	Resolution string `yaml:"resolution"`
}

// ProjectedPairFile is a re-projected lattice pair
type ProjectedPairFile struct {
	Index int                `yaml:"index"`
	Left  ProjectedPointFile `yaml:"left"`
	Right ProjectedPointFile `yaml:"right"`
}

// ReprojectionFile is the report written after straightening
type ReprojectionFile struct {
	Extent      int                  `yaml:"extent"`
	Slices      int                  `yaml:"slices"`
	Lattice     []ProjectedPairFile  `yaml:"lattice"`
	Annotations []ProjectedPointFile `yaml:"annotations,omitempty"`

	// MarkerSlices maps marker ids to the slice holding most of their voxels
	MarkerSlices map[int32]int `yaml:"markerSlices,omitempty"`
}

func projectedPoint(p straighten.ProjectedPoint) ProjectedPointFile {
	return ProjectedPointFile{
		Name:       p.Name,
		Source:     pointOf(p.Source),
		Target:     pointOf(p.Target),
		Resolution: p.Resolution.String(),
	}
}

// SaveReprojection writes the re-projected lattice and annotations of a result
func SaveReprojection(path string, res *straighten.Result) error {
	f := ReprojectionFile{
		Extent:       res.Extent(),
		Slices:       res.Volume.Depth,
		MarkerSlices: res.Model.MarkerSlices,
	}
	for _, pair := range res.ReprojectedLattice {
		f.Lattice = append(f.Lattice, ProjectedPairFile{
			Index: pair.Index,
			Left:  projectedPoint(pair.Left),
			Right: projectedPoint(pair.Right),
		})
	}
	for _, a := range res.ReprojectedAnnotations {
		f.Annotations = append(f.Annotations, projectedPoint(a))
	}
	return writeYAML(path, f)
}

func writeYAML(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "error creating output directory")
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "error marshaling yaml")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "error writing %s", path)
	}
	return nil
}
