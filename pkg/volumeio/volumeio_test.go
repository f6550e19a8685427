package volumeio

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/spatial/r3"

	"volstraighten/internal/models"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestExtractNumber(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"slice_10.png", 10},
		{"/data/slice_2.tif", 2},
		{"nodigits.jpg", 0},
	}
	for _, tt := range tests {
		if got := extractNumber(tt.name); got != tt.want {
			t.Errorf("extractNumber(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestListSlicesOrder(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []int{10, 2, 1} {
		writePNG(t, filepath.Join(dir, fmt.Sprintf("slice_%d.png", n)), image.NewGray(image.Rect(0, 0, 2, 2)))
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0644); err != nil {
		t.Fatal(err)
	}

	paths, err := ListSlices(dir)
	if err != nil {
		t.Fatalf("ListSlices failed: %v", err)
	}
	want := []string{"slice_1.png", "slice_2.png", "slice_10.png"}
	if len(paths) != len(want) {
		t.Fatalf("Expected %d slices, got %d", len(want), len(paths))
	}
	for i, p := range paths {
		if filepath.Base(p) != want[i] {
			t.Errorf("Slice %d: expected %s, got %s", i, want[i], filepath.Base(p))
		}
	}
}

func TestListSlicesEmpty(t *testing.T) {
	if _, err := ListSlices(t.TempDir()); err == nil {
		t.Error("Expected an error for a directory without slices")
	}
}

func TestLoadVolumeGray(t *testing.T) {
	dir := t.TempDir()
	for z := 0; z < 3; z++ {
		img := image.NewGray(image.Rect(0, 0, 4, 3))
		img.SetGray(1, 2, color.Gray{Y: uint8(100 * z)})
		writePNG(t, filepath.Join(dir, fmt.Sprintf("s%d.png", z)), img)
	}

	v, err := LoadVolume(dir)
	if err != nil {
		t.Fatalf("LoadVolume failed: %v", err)
	}
	if v.Width != 4 || v.Height != 3 || v.Depth != 3 || v.Channels != 1 {
		t.Fatalf("Unexpected volume shape %dx%dx%d/%d", v.Width, v.Height, v.Depth, v.Channels)
	}
	if got, want := v.At(1, 2, 2, 0), 200.0/255.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected %f at (1,2,2), got %f", want, got)
	}
	if v.At(0, 0, 2, 0) != 0 {
		t.Errorf("Expected background 0, got %f", v.At(0, 0, 2, 0))
	}
}

func TestLoadVolumeColorTIFF(t *testing.T) {
	dir := t.TempDir()
	for z := 0; z < 2; z++ {
		img := image.NewRGBA(image.Rect(0, 0, 2, 2))
		img.Set(0, 0, color.RGBA{R: 255, G: 0, B: 51, A: 255})
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("c%d.tif", z)))
		if err != nil {
			t.Fatal(err)
		}
		if err := tiff.Encode(f, img, nil); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}

	v, err := LoadVolume(dir)
	if err != nil {
		t.Fatalf("LoadVolume failed: %v", err)
	}
	if v.Channels != 3 {
		t.Fatalf("Expected 3 channels, got %d", v.Channels)
	}
	if v.At(0, 0, 1, 0) != 1 || v.At(0, 0, 1, 1) != 0 || math.Abs(v.At(0, 0, 1, 2)-0.2) > 1e-9 {
		t.Errorf("Unexpected color (%f, %f, %f)", v.At(0, 0, 1, 0), v.At(0, 0, 1, 1), v.At(0, 0, 1, 2))
	}
}

func TestLoadVolumeSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "s0.png"), image.NewGray(image.Rect(0, 0, 4, 4)))
	writePNG(t, filepath.Join(dir, "s1.png"), image.NewGray(image.Rect(0, 0, 5, 4)))
	if _, err := LoadVolume(dir); err == nil {
		t.Error("Expected an error for slices of different sizes")
	}
}

func TestLoadLabelsAndMask(t *testing.T) {
	dir := t.TempDir()
	img8 := image.NewGray(image.Rect(0, 0, 3, 3))
	img8.SetGray(2, 1, color.Gray{Y: 7})
	writePNG(t, filepath.Join(dir, "m0.png"), img8)
	img16 := image.NewGray16(image.Rect(0, 0, 3, 3))
	img16.SetGray16(0, 0, color.Gray16{Y: 1000})
	writePNG(t, filepath.Join(dir, "m1.png"), img16)

	labels, err := LoadLabels(dir)
	if err != nil {
		t.Fatalf("LoadLabels failed: %v", err)
	}
	if labels.At(2, 1, 0) != 7 {
		t.Errorf("Expected id 7, got %d", labels.At(2, 1, 0))
	}
	if labels.At(0, 0, 1) != 1000 {
		t.Errorf("Expected 16-bit id 1000, got %d", labels.At(0, 0, 1))
	}

	mask, err := LoadMask(dir)
	if err != nil {
		t.Fatalf("LoadMask failed: %v", err)
	}
	if !mask.At(2, 1, 0) || !mask.At(0, 0, 1) || mask.At(1, 1, 1) {
		t.Error("Mask does not follow the non-zero pixels")
	}
}

func TestLatticeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lattice.yaml")
	data := []byte(`pairs:
  - left: [1, 2, 3]
    right: [4, 5, 6]
  - left: [1, 2, 7]
    right: [4, 5, 8]
annotations:
  - name: tip
    position: [2, 3, 4]
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	l, annotations, err := LoadLattice(path)
	if err != nil {
		t.Fatalf("LoadLattice failed: %v", err)
	}
	if l.Len() != 2 {
		t.Fatalf("Expected 2 pairs, got %d", l.Len())
	}
	if l.Right[1] != (r3.Vec{X: 4, Y: 5, Z: 8}) {
		t.Errorf("Unexpected right point %v", l.Right[1])
	}
	if len(annotations) != 1 || annotations[0].Name != "tip" || annotations[0].Position != (r3.Vec{X: 2, Y: 3, Z: 4}) {
		t.Errorf("Unexpected annotations %+v", annotations)
	}

	out := filepath.Join(t.TempDir(), "copy.yaml")
	if err := SaveLattice(out, l, annotations); err != nil {
		t.Fatalf("SaveLattice failed: %v", err)
	}
	again, _, err := LoadLattice(out)
	if err != nil {
		t.Fatalf("LoadLattice on saved file failed: %v", err)
	}
	if again.Len() != 2 || again.Left[0] != l.Left[0] {
		t.Errorf("Saved lattice differs: %+v", again)
	}
}

func TestLatticeFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("pairs: [left: {"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadLattice(path); err == nil {
		t.Error("Expected a parse error")
	}
	if _, _, err := LoadLattice(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestCoordinateMapFile(t *testing.T) {
	m := models.NewCoordinateMap(3, 2, 2)
	m.Record(m.Index(1, 1, 0), r3.Vec{X: 10.5, Y: 2, Z: 3})
	m.Record(m.Index(2, 0, 1), r3.Vec{X: 1, Y: 1, Z: 1})
	m.Record(m.Index(2, 0, 1), r3.Vec{X: 3, Y: 3, Z: 3})

	path := filepath.Join(t.TempDir(), "maps", "origin_to_straight.bin")
	if err := WriteCoordinateMap(path, m); err != nil {
		t.Fatalf("WriteCoordinateMap failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(3*4 + 12*4*4); info.Size() != want {
		t.Errorf("Expected %d bytes, got %d", want, info.Size())
	}

	loaded, err := ReadCoordinateMap(path)
	if err != nil {
		t.Fatalf("ReadCoordinateMap failed: %v", err)
	}
	if loaded.ValidCount() != 2 {
		t.Errorf("Expected 2 valid cells, got %d", loaded.ValidCount())
	}
	if p, ok := loaded.Lookup(2, 0, 1); !ok || p != (r3.Vec{X: 2, Y: 2, Z: 2}) {
		t.Errorf("Expected averaged (2,2,2), got %v (valid=%v)", p, ok)
	}
	if _, ok := loaded.Lookup(0, 0, 0); ok {
		t.Error("Expected cell (0,0,0) to stay invalid")
	}
}
