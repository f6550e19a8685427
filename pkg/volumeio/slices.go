// Package volumeio reads and writes the host-side files of the straightening CLI:
// slice directories, lattice files, re-projection reports and coordinate maps.
package volumeio

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	_ "golang.org/x/image/tiff"

	"volstraighten/internal/models"
)

// sliceExtensions are the image formats a slice directory may contain
var sliceExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
}

// ListSlices returns the image files of dir ordered by the number in their name
func ListSlices(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var imageFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if sliceExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			imageFiles = append(imageFiles, entry.Name())
		}
	}
	if len(imageFiles) == 0 {
		return nil, errors.Errorf("no slice images found in %s", dir)
	}

	// Slices are ordered by the number in their file name, so slice_2 comes before slice_10
	sort.SliceStable(imageFiles, func(i, j int) bool {
		return extractNumber(imageFiles[i]) < extractNumber(imageFiles[j])
	})

	paths := make([]string, len(imageFiles))
	for i, name := range imageFiles {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

// extractNumber returns the digits of a file name as a number, or 0
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

// loadImage decodes any registered image format
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// loadImages decodes every slice of dir and checks that all share the first slice's size
func loadImages(dir string) ([]image.Image, int, int, error) {
	paths, err := ListSlices(dir)
	if err != nil {
		return nil, 0, 0, err
	}

	var width, height int
	images := make([]image.Image, len(paths))
	for i, path := range paths {
		img, err := loadImage(path)
		if err != nil {
			return nil, 0, 0, errors.Wrapf(err, "failed to load image %s", filepath.Base(path))
		}
		b := img.Bounds()
		if i == 0 {
			width, height = b.Dx(), b.Dy()
		} else if b.Dx() != width || b.Dy() != height {
			return nil, 0, 0, errors.Errorf("slice %s is %dx%d, expected %dx%d",
				filepath.Base(path), b.Dx(), b.Dy(), width, height)
		}
		images[i] = img
	}
	return images, width, height, nil
}

// isGray reports whether every pixel model of img is grayscale
func isGray(img image.Image) bool {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return true
	}
	return false
}

// LoadVolume loads a slice directory into a volume with samples in [0,1].
// Grayscale slices give a scalar volume, anything else gives RGB.
func LoadVolume(dir string) (*models.Volume, error) {
	images, width, height, err := loadImages(dir)
	if err != nil {
		return nil, err
	}

	channels := 1
	for _, img := range images {
		if !isGray(img) {
			channels = 3
			break
		}
	}

	v := models.NewVolume(width, height, len(images), channels)
	for z, img := range images {
		b := img.Bounds()
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				// Convert 16-bit color to float64 (0-1 range)
				v.Set(x, y, z, 0, float64(r)/65535.0)
				if channels == 3 {
					v.Set(x, y, z, 1, float64(g)/65535.0)
					v.Set(x, y, z, 2, float64(bl)/65535.0)
				}
			}
		}
	}
	return v, nil
}

// LoadLabels loads a slice directory of integer ids, such as a marker segmentation.
// 16-bit grayscale slices keep their full range; other slices use 8-bit gray levels.
func LoadLabels(dir string) (*models.IntVolume, error) {
	images, width, height, err := loadImages(dir)
	if err != nil {
		return nil, err
	}

	v := models.NewIntVolume(width, height, len(images))
	for z, img := range images {
		b := img.Bounds()
		wide := img.ColorModel() == color.Gray16Model
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16).Y
				if wide {
					v.Set(x, y, z, int32(g))
				} else {
					v.Set(x, y, z, int32(g>>8))
				}
			}
		}
	}
	return v, nil
}

// LoadMask loads a slice directory where any non-black pixel is masked
func LoadMask(dir string) (*models.Mask, error) {
	labels, err := LoadLabels(dir)
	if err != nil {
		return nil, err
	}
	m := models.NewMask(labels.Width, labels.Height, labels.Depth)
	for i, l := range labels.Data {
		m.Data[i] = l != 0
	}
	return m, nil
}
