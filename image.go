package warptps

import (
	"context"
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// toNRGBA copies img into a new NRGBA image anchored at the origin.
func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Warp is a convenience function that creates a Transform from ls and
// warps img with it.
func Warp(ctx context.Context, img image.Image, ls []Landmark, percent float64, opts ...Option) (*image.NRGBA, error) {
	t, err := New(append(opts, WithLandmarks(ls))...)
	if err != nil {
		return nil, err
	}
	return t.WarpImage(ctx, img, percent, true)
}

// WarpImage resamples img as an NRGBA buffer. Coordinates follow the raw
// buffer convention of Resample: y = 0 is the bottom row of the image.
// With useField the presampled field is used and kept for later calls
// on images of the same size.
func (t *Transform) WarpImage(ctx context.Context, img image.Image, percent float64, useField bool) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src := toNRGBA(img)
	dst := image.NewNRGBA(src.Rect)
	w, h := src.Rect.Dx(), src.Rect.Dy()

	resample := t.Resample
	if useField {
		resample = t.ResampleWithField
	}
	if err := resample(src.Pix, dst.Pix, 4, w, h, src.Stride, percent); err != nil {
		return nil, err
	}
	return dst, nil
}

// WarpField is WarpImage with a field from Transform.Field, typically one
// kept in a cache. The field must match the size of img.
func WarpField(ctx context.Context, f *Field, img image.Image, percent float64) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src := toNRGBA(img)
	dst := image.NewNRGBA(src.Rect)
	if err := ResampleField(f, src.Pix, dst.Pix, 4, src.Rect.Dx(), src.Rect.Dy(), src.Stride, percent); err != nil {
		return nil, err
	}
	return dst, nil
}

// Morph builds frames+1 images going from img1 to img2. Frame i is at
// p = i/frames: img1 warped forward by p blended with img2 warped back by
// 1-p, weighted (1-p) and p.
func Morph(ctx context.Context, img1, img2 image.Image, ls []Landmark, frames int, opts ...Option) ([]*image.NRGBA, error) {
	if frames < 1 {
		return nil, fmt.Errorf("invalid frame count %d", frames)
	}
	a, b := toNRGBA(img1), toNRGBA(img2)
	if a.Rect != b.Rect {
		return nil, fmt.Errorf("%w: %v and %v", ErrImageSize, a.Rect.Size(), b.Rect.Size())
	}
	w, h := a.Rect.Dx(), a.Rect.Dy()

	forward, err := New(append(opts, WithLandmarks(ls))...)
	if err != nil {
		return nil, err
	}
	inverse := forward.Inverse()

	var fields [2]*Field
	var errs [2]error
	var wg sync.WaitGroup
	wg.Add(2)
	for i, t := range []*Transform{forward, inverse} {
		go func(i int, t *Transform) {
			defer wg.Done()
			fields[i], errs[i] = t.Field(w, h)
		}(i, t)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	out := make([]*image.NRGBA, frames+1)
	for i := range frames + 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := float64(i) / float64(frames)

		wa, wb := image.NewNRGBA(a.Rect), image.NewNRGBA(b.Rect)
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs[0] = ResampleField(fields[0], a.Pix, wa.Pix, 4, w, h, a.Stride, p)
		}()
		go func() {
			defer wg.Done()
			errs[1] = ResampleField(fields[1], b.Pix, wb.Pix, 4, w, h, b.Stride, 1-p)
		}()
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
		out[i] = blend(wa, wb, p)
	}
	return out, nil
}

// blend returns (1-p)·a + p·b per channel, truncated.
func blend(a, b *image.NRGBA, p float64) *image.NRGBA {
	out := image.NewNRGBA(a.Rect)
	for i := range out.Pix {
		out.Pix[i] = uint8((1-p)*float64(a.Pix[i]) + p*float64(b.Pix[i]))
	}
	return out
}
