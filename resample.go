package warptps

import (
	"fmt"

	"github.com/yyyoichi/warptps/internal/tps"
	"github.com/yyyoichi/warptps/internal/vector"
)

// Field is a presampled grid of full-strength offsets for one image size.
type Field = tps.Field

func layout(bytesPerPixel, width, height, stride, srcLen, dstLen int) (tps.Layout, error) {
	l := tps.Layout{BytesPerPixel: bytesPerPixel, Width: width, Height: height, Stride: stride}
	if err := l.Validate(srcLen, dstLen); err != nil {
		return l, fmt.Errorf("%w:%w", ErrInvalidBuffer, err)
	}
	return l, nil
}

// Resample warps src into dst, evaluating the spline at every pixel.
//
// Both buffers hold height rows of width pixels of bytesPerPixel bytes,
// stride bytes apart, with row y stored at (height-1-y)·stride. For every
// destination pixel p the source pixel nearest to p + Eval(p, percent) is
// copied; pixels taken from outside the image are zero.
func (t *Transform) Resample(src, dst []byte, bytesPerPixel, width, height, stride int, percent float64) error {
	l, err := layout(bytesPerPixel, width, height, stride, len(src), len(dst))
	if err != nil {
		return err
	}
	s, err := t.solve()
	if err != nil {
		return err
	}
	tps.Resample(src, dst, l, percent, func(x, y int) (float64, float64) {
		return s.Offset(vector.New3(float64(x), float64(y), 0))
	})
	return nil
}

// ResampleWithField is Resample using a presampled field. The field is
// computed once per image size and reused until the landmarks or kernel
// change. The output is identical to Resample.
func (t *Transform) ResampleWithField(src, dst []byte, bytesPerPixel, width, height, stride int, percent float64) error {
	l, err := layout(bytesPerPixel, width, height, stride, len(src), len(dst))
	if err != nil {
		return err
	}
	f, err := t.presample(width, height)
	if err != nil {
		return err
	}
	tps.Resample(src, dst, l, percent, f.At)
	return nil
}

// Field returns a copy of the presampled field for a width x height image.
func (t *Transform) Field(width, height int) (*Field, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidBuffer, width, height)
	}
	f, err := t.presample(width, height)
	if err != nil {
		return nil, err
	}
	return &Field{
		Width:  f.Width,
		Height: f.Height,
		DX:     append([]float64(nil), f.DX...),
		DY:     append([]float64(nil), f.DY...),
	}, nil
}

func (t *Transform) presample(width, height int) (*tps.Field, error) {
	s, err := t.solve()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return tps.Presample(nil, width, height), nil
	}
	if t.state.Stage(tps.FieldLayer) == tps.Solved && t.field.Fits(width, height) == nil {
		return t.field, nil
	}
	t.state.Begin(tps.FieldLayer)
	t.field = tps.Presample(s, width, height)
	t.state.Done(tps.FieldLayer)
	return t.field, nil
}

// ResampleField warps src into dst with a field obtained from
// Transform.Field, possibly in another process.
func ResampleField(f *Field, src, dst []byte, bytesPerPixel, width, height, stride int, percent float64) error {
	l, err := layout(bytesPerPixel, width, height, stride, len(src), len(dst))
	if err != nil {
		return err
	}
	if err := f.Fits(width, height); err != nil {
		return fmt.Errorf("%w:%w", ErrFieldSize, err)
	}
	tps.Resample(src, dst, l, percent, f.At)
	return nil
}
