package compute

import "fmt"

// Size is the extent of a 2D domain in cells.
type Size struct {
	Width  int
	Height int
}

// Sz is shorthand for Size{Width: w, Height: h}.
func Sz(w, h int) Size {
	return Size{Width: w, Height: h}
}

// Cells returns Width*Height.
func (s Size) Cells() int {
	return s.Width * s.Height
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Half returns the size of the next coarser level: each dimension halved,
// rounded up.
func (s Size) Half() Size {
	return Size{Width: (s.Width + 1) / 2, Height: (s.Height + 1) / 2}
}

// Contains reports whether (x, y) lies inside the domain.
func (s Size) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < s.Width && y < s.Height
}

// Index returns the row-major offset of (x, y).
func (s Size) Index(x, y int) int {
	return y*s.Width + x
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

func (s Size) validate() error {
	if !s.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidSize, s)
	}
	return nil
}
