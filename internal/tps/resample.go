package tps

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidBuffer = errors.New("tps: invalid pixel buffer")

// Layout describes a raw pixel buffer. Row y of the image starts at byte
// (Height-1-y)·Stride, so y = 0 is the last row in memory.
type Layout struct {
	BytesPerPixel int
	Width, Height int
	Stride        int
}

// Validate checks the layout against source and destination buffer sizes.
func (l Layout) Validate(srcLen, dstLen int) error {
	switch {
	case l.BytesPerPixel <= 0:
		return fmt.Errorf("%w: %d bytes per pixel", ErrInvalidBuffer, l.BytesPerPixel)
	case l.Width < 0 || l.Height < 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalidBuffer, l.Width, l.Height)
	case l.Stride < l.Width*l.BytesPerPixel:
		return fmt.Errorf("%w: stride %d for %d pixels of %d bytes", ErrInvalidBuffer, l.Stride, l.Width, l.BytesPerPixel)
	}
	need := l.size()
	if srcLen < need {
		return fmt.Errorf("%w: source has %d bytes, need %d", ErrInvalidBuffer, srcLen, need)
	}
	if dstLen < need {
		return fmt.Errorf("%w: destination has %d bytes, need %d", ErrInvalidBuffer, dstLen, need)
	}
	return nil
}

func (l Layout) size() int {
	if l.Height == 0 {
		return 0
	}
	return (l.Height-1)*l.Stride + l.Width*l.BytesPerPixel
}

// OffsetFunc returns the full-strength offset of pixel (x, y).
type OffsetFunc func(x, y int) (dx, dy float64)

// Resample fills dst by pulling, for every destination pixel p, the source
// pixel nearest to p + percent·offset(p). Pixels pulled from outside the
// image are zero. The layout must be validated.
func Resample(src, dst []byte, l Layout, percent float64, offset OffsetFunc) {
	bpp := l.BytesPerPixel
	w, h := float64(l.Width), float64(l.Height)
	for y := range l.Height {
		row := dst[(l.Height-1-y)*l.Stride:]
		for x := range l.Width {
			px := row[x*bpp : (x+1)*bpp]
			dx, dy := offset(x, y)
			sx := math.Floor(float64(x) + percent*dx + 0.5)
			sy := math.Floor(float64(y) + percent*dy + 0.5)
			if !(sx >= 0 && sx < w && sy >= 0 && sy < h) {
				clear(px)
				continue
			}
			from := (l.Height-1-int(sy))*l.Stride + int(sx)*bpp
			copy(px, src[from:from+bpp])
		}
	}
}
