// Package visualization exports straightened volumes as image slices and draws
// per-slice diagnostic plots.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff"

	"volstraighten/internal/models"
)

// Viewer extracts and saves 2D slices of a volume. Samples inside the intensity
// window [lo, hi] are spread over the full 16-bit range.
type Viewer struct {
	volume *models.Volume

	lo, hi float64
}

// NewViewer creates a viewer with the window [0, 1]
func NewViewer(volume *models.Volume) *Viewer {
	return &Viewer{volume: volume, lo: 0, hi: 1}
}

// SetWindow changes the intensity window
func (v *Viewer) SetWindow(lo, hi float64) error {
	if hi <= lo {
		return errors.Errorf("invalid window [%f, %f]", lo, hi)
	}
	v.lo, v.hi = lo, hi
	return nil
}

// AutoWindow sets the window to the volume's value range
func (v *Viewer) AutoWindow() {
	lo, hi := v.volume.MinMax()
	if hi <= lo {
		hi = lo + 1
	}
	v.lo, v.hi = lo, hi
}

func (v *Viewer) level(value float64) uint16 {
	return uint16(math.Max(0, math.Min(65535, math.Round((value-v.lo)/(v.hi-v.lo)*65535))))
}

// sliceShape returns the image size of a slice along axis and a mapping from image
// pixels to voxels
func (v *Viewer) sliceShape(axis string, position int) (w, h int, voxel func(px, py int) (int, int, int), err error) {
	if position < 0 {
		return 0, 0, nil, errors.New("position must be non-negative")
	}
	vol := v.volume
	switch axis {
	case "x", "X":
		// YZ plane
		if position >= vol.Width {
			return 0, 0, nil, errors.Errorf("position %d exceeds width %d", position, vol.Width)
		}
		return vol.Depth, vol.Height, func(px, py int) (int, int, int) { return position, py, px }, nil
	case "y", "Y":
		// XZ plane
		if position >= vol.Height {
			return 0, 0, nil, errors.Errorf("position %d exceeds height %d", position, vol.Height)
		}
		return vol.Width, vol.Depth, func(px, py int) (int, int, int) { return px, position, py }, nil
	case "z", "Z":
		// XY plane
		if position >= vol.Depth {
			return 0, 0, nil, errors.Errorf("position %d exceeds depth %d", position, vol.Depth)
		}
		return vol.Width, vol.Height, func(px, py int) (int, int, int) { return px, py, position }, nil
	}
	return 0, 0, nil, errors.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// ExtractSlice extracts a 2D slice along the given axis. Scalar volumes give a
// 16-bit gray image, color volumes a 64-bit RGBA image.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	w, h, voxel, err := v.sliceShape(axis, position)
	if err != nil {
		return nil, err
	}

	vol := v.volume
	if vol.Channels < 3 {
		img := image.NewGray16(image.Rect(0, 0, w, h))
		for py := 0; py < h; py++ {
			for px := 0; px < w; px++ {
				x, y, z := voxel(px, py)
				img.SetGray16(px, py, color.Gray16{Y: v.level(vol.At(x, y, z, 0))})
			}
		}
		return img, nil
	}

	img := image.NewRGBA64(image.Rect(0, 0, w, h))
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			x, y, z := voxel(px, py)
			img.SetRGBA64(px, py, color.RGBA64{
				R: v.level(vol.At(x, y, z, 0)),
				G: v.level(vol.At(x, y, z, 1)),
				B: v.level(vol.At(x, y, z, 2)),
				A: 65535,
			})
		}
	}
	return img, nil
}

// ExtractRegion copies a box of the volume into a new volume
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) (*models.Volume, error) {
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, errors.New("start coordinates must be non-negative")
	}
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, errors.New("size dimensions must be positive")
	}
	vol := v.volume
	if startX+sizeX > vol.Width || startY+sizeY > vol.Height || startZ+sizeZ > vol.Depth {
		return nil, errors.New("region extends beyond volume boundaries")
	}

	region := models.NewVolume(sizeX, sizeY, sizeZ, vol.Channels)
	region.VoxelSize = vol.VoxelSize
	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			for x := 0; x < sizeX; x++ {
				for c := 0; c < vol.Channels; c++ {
					region.Set(x, y, z, c, vol.At(startX+x, startY+y, startZ+z, c))
				}
			}
		}
	}
	return region, nil
}

// Extension returns the file extension used for a slice format
func Extension(format string) (string, error) {
	switch format {
	case "tiff":
		return ".tif", nil
	case "png":
		return ".png", nil
	case "jpeg":
		return ".jpg", nil
	}
	return "", errors.Errorf("unsupported slice format %q", format)
}

// SaveSlice writes an image as tiff, png or jpeg
func SaveSlice(img image.Image, filename, format string) error {
	if _, err := Extension(format); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch format {
	case "tiff":
		return tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate})
	case "png":
		return png.Encode(file, img)
	default:
		return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	}
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis, outputDir, format string) error {
	ext, err := Extension(format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.volume.Width
	case "y", "Y":
		maxPos = v.volume.Height
	case "z", "Z":
		maxPos = v.volume.Depth
	default:
		return errors.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d%s", axis, pos, ext))
		if err := SaveSlice(img, filename, format); err != nil {
			return errors.Wrapf(err, "failed to save slice %d", pos)
		}
	}
	return nil
}

// SaveLabelSlices writes an integer volume as 16-bit gray PNG slices along z, one
// file per slice, keeping the raw ids
func SaveLabelSlices(labels *models.IntVolume, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	for z := 0; z < labels.Depth; z++ {
		img := image.NewGray16(image.Rect(0, 0, labels.Width, labels.Height))
		for y := 0; y < labels.Height; y++ {
			for x := 0; x < labels.Width; x++ {
				l := labels.At(x, y, z)
				if l < 0 || l > math.MaxUint16 {
					return errors.Errorf("label %d at (%d,%d,%d) does not fit 16 bits", l, x, y, z)
				}
				img.SetGray16(x, y, color.Gray16{Y: uint16(l)})
			}
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("labels_%03d.png", z))
		if err := SaveSlice(img, filename, "png"); err != nil {
			return errors.Wrapf(err, "failed to save label slice %d", z)
		}
	}
	return nil
}
