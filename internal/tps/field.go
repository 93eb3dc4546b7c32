package tps

import (
	"errors"
	"fmt"

	"github.com/yyyoichi/warptps/internal/vector"
)

var ErrFieldSize = errors.New("tps: field size mismatch")

// Field is a presampled grid of full-strength offsets, one per pixel,
// stored row-major from y = 0.
type Field struct {
	Width, Height int
	DX, DY        []float64
}

// Presample evaluates s at every integer pixel position of a width x height
// grid.
func Presample(s *Solution, width, height int) *Field {
	f := &Field{
		Width:  width,
		Height: height,
		DX:     make([]float64, width*height),
		DY:     make([]float64, width*height),
	}
	if s == nil {
		return f
	}
	for y := range height {
		for x := range width {
			i := y*width + x
			f.DX[i], f.DY[i] = s.Offset(vector.New3(float64(x), float64(y), 0))
		}
	}
	return f
}

func (f *Field) At(x, y int) (dx, dy float64) {
	i := y*f.Width + x
	return f.DX[i], f.DY[i]
}

// Fits reports an error unless f covers exactly width x height.
func (f *Field) Fits(width, height int) error {
	if f.Width != width || f.Height != height || len(f.DX) != width*height || len(f.DY) != width*height {
		return fmt.Errorf("%w: %dx%d field for %dx%d image", ErrFieldSize, f.Width, f.Height, width, height)
	}
	return nil
}
