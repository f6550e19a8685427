package volumeio

import (
	"bufio"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"volstraighten/internal/models"
)

// WriteCoordinateMap stores a coordinate map as little-endian binary: three int32
// extents (width, height, depth) followed by the map's 4 channel volume view
// (valid, x, y, z per cell, row-major) as float32.
func WriteCoordinateMap(path string, m *models.CoordinateMap) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "error creating output directory")
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create coordinate map file")
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	header := []int32{int32(m.Width), int32(m.Height), int32(m.Depth)}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return errors.Wrap(err, "failed to write coordinate map header")
	}

	v := m.AsVolume()
	cell := make([]float32, v.Channels)
	for idx := 0; idx < v.Len(); idx++ {
		for c := range cell {
			cell[c] = float32(v.Data[idx*v.Channels+c])
		}
		if err := binary.Write(w, binary.LittleEndian, cell); err != nil {
			return errors.Wrap(err, "failed to write coordinate map data")
		}
	}
	return errors.Wrap(w.Flush(), "failed to flush coordinate map")
}

// ReadCoordinateMap loads a map written by WriteCoordinateMap
func ReadCoordinateMap(path string) (*models.CoordinateMap, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open coordinate map file")
	}
	defer file.Close()

	r := bufio.NewReader(file)
	header := make([]int32, 3)
	if err := binary.Read(r, binary.LittleEndian, header); err != nil {
		return nil, errors.Wrap(err, "failed to read coordinate map header")
	}
	if header[0] <= 0 || header[1] <= 0 || header[2] <= 0 {
		return nil, errors.Errorf("invalid coordinate map extents %v", header)
	}

	m := models.NewCoordinateMap(int(header[0]), int(header[1]), int(header[2]))
	cell := make([]float32, 4)
	for idx := 0; idx < m.Len(); idx++ {
		if err := binary.Read(r, binary.LittleEndian, cell); err != nil {
			return nil, errors.Wrapf(err, "failed to read coordinate map cell %d", idx)
		}
		if cell[0] != 0 {
			m.Record(idx, r3.Vec{X: float64(cell[1]), Y: float64(cell[2]), Z: float64(cell[3])})
		}
	}
	return m, nil
}
