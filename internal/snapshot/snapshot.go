// Package snapshot exports grid fields as 16-bit grayscale images for
// offline inspection.
package snapshot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"

	"github.com/KangWeon/Vortex2D/compute"
	"golang.org/x/image/tiff"
)

// ErrDataSize is returned when the value count does not match the extent.
var ErrDataSize = errors.New("snapshot: data does not match size")

// Range maps field values to gray levels: Min becomes black, Max white.
// The zero Range scales to the data's own extremes.
type Range struct {
	Min, Max float32
}

func (r Range) fit(data []float32) Range {
	if r.Min < r.Max {
		return r
	}
	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range data {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return Range{Min: lo, Max: hi}
}

// Image converts a row-major field to a grayscale image. Row 0 is the
// top row of the image.
func Image(data []float32, size compute.Size, r Range) (*image.Gray16, error) {
	if !size.Valid() || len(data) != size.Cells() {
		return nil, fmt.Errorf("%w: %d values for %s", ErrDataSize, len(data), size)
	}
	r = r.fit(data)
	scale := float32(0)
	if r.Max > r.Min {
		scale = math.MaxUint16 / (r.Max - r.Min)
	}

	img := image.NewGray16(image.Rect(0, 0, size.Width, size.Height))
	for y := range size.Height {
		for x := range size.Width {
			v := (data[size.Index(x, y)] - r.Min) * scale
			v = min(max(v, 0), math.MaxUint16)
			img.SetGray16(x, y, color.Gray16{Y: uint16(v + 0.5)})
		}
	}
	return img, nil
}

// Encode writes the field as a deflate-compressed TIFF.
func Encode(w io.Writer, data []float32, size compute.Size, r Range) error {
	img, err := Image(data, size, r)
	if err != nil {
		return err
	}
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
}

// Save writes the field to a TIFF file at path.
func Save(path string, data []float32, size compute.Size, r Range) error {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	if err := Encode(f, data, size, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
