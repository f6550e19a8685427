// Package lookup indexes the valid cells of a coordinate map in a KD-tree so that
// points falling on unmapped voxels can be resolved through their nearest mapped
// neighbor.
package lookup

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"

	"volstraighten/internal/models"
)

// Point is a mapped voxel position carrying its map cell index
type Point struct {
	X, Y, Z float64
	Cell    int
}

// Compare implements the kdtree.Comparable interface
func (p Point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(Point)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p Point) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p Point) Distance(c kdtree.Comparable) float64 {
	q := c.(Point)
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return dx*dx + dy*dy + dz*dz
}

// Points is a collection of Point that satisfies kdtree.Interface
type Points []Point

func (p Points) Index(i int) kdtree.Comparable         { return p[i] }
func (p Points) Len() int                              { return len(p) }
func (p Points) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p Points) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(plane{Points: p, Dim: d}, kdtree.MedianOfRandoms(plane{Points: p, Dim: d}, 100))
}

// plane implements sort.Interface and kdtree.SortSlicer for Points
type plane struct {
	Points
	kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.Points[i].X < p.Points[j].X
	case 1:
		return p.Points[i].Y < p.Points[j].Y
	case 2:
		return p.Points[i].Z < p.Points[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{Points: p.Points[start:end], Dim: p.Dim}
}

func (p plane) Swap(i, j int) {
	p.Points[i], p.Points[j] = p.Points[j], p.Points[i]
}

// Index answers nearest-mapped-voxel queries over one coordinate map
type Index struct {
	m     *models.CoordinateMap
	tree  *kdtree.Tree
	count int
}

// Match is a resolved query
type Match struct {
	// Voxel is the grid position of the mapped cell that answered the query
	Voxel r3.Vec

	// Target is the mapped coordinate stored in that cell
	Target r3.Vec

	// Distance is the Euclidean distance from the query to Voxel
	Distance float64
}

// NewIndex builds a KD-tree over every valid cell of m
func NewIndex(m *models.CoordinateMap) *Index {
	points := make(Points, 0, m.ValidCount())
	for z := 0; z < m.Depth; z++ {
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				cell := m.Index(x, y, z)
				if m.Samples(cell) == 0 {
					continue
				}
				points = append(points, Point{X: float64(x), Y: float64(y), Z: float64(z), Cell: cell})
			}
		}
	}

	idx := &Index{m: m, count: len(points)}
	if len(points) > 0 {
		idx.tree = kdtree.New(points, true)
	}
	return idx
}

// Len returns the number of indexed cells
func (i *Index) Len() int {
	return i.count
}

// Nearest returns the mapped cell closest to p, provided it lies within radius
func (i *Index) Nearest(p r3.Vec, radius float64) (Match, bool) {
	if i.tree == nil {
		return Match{}, false
	}
	got, dist := i.tree.Nearest(Point{X: p.X, Y: p.Y, Z: p.Z})
	if got == nil || dist > radius*radius {
		return Match{}, false
	}
	return i.match(got.(Point), dist)
}

// Within returns every mapped cell within radius of p, nearest first
func (i *Index) Within(p r3.Vec, radius float64) []Match {
	if i.tree == nil {
		return nil
	}
	keeper := kdtree.NewDistKeeper(radius * radius)
	i.tree.NearestSet(keeper, Point{X: p.X, Y: p.Y, Z: p.Z})

	var out []Match
	for _, item := range keeper.Heap {
		// Skip the sentinel value
		if item.Comparable == nil {
			continue
		}
		if m, ok := i.match(item.Comparable.(Point), item.Dist); ok {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Distance < out[b].Distance })
	return out
}

func (i *Index) match(q Point, dist float64) (Match, bool) {
	target, ok := i.m.LookupIndex(q.Cell)
	if !ok {
		return Match{}, false
	}
	return Match{
		Voxel:    r3.Vec{X: q.X, Y: q.Y, Z: q.Z},
		Target:   target,
		Distance: math.Sqrt(dist),
	}, true
}
