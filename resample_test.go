package warptps

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noise(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(rng.IntN(256))
	}
	return b
}

func bentLandmarks(w, h float64) []Landmark {
	ls := CornerLandmarks(int(w), int(h), int(w), int(h))
	return append(ls,
		Landmark{Source: Pt(w*0.4, h*0.5), Destination: Pt(w*0.55, h*0.35)},
		Landmark{Source: Pt(w*0.7, h*0.2), Destination: Pt(w*0.65, h*0.3)},
	)
}

func TestResample_ZeroPercent(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	const w, h, bpp = 17, 11, 3
	stride := w*bpp + 5
	src := noise(rng, stride*h)
	tr := newTransform(t, bentLandmarks(w, h))

	for _, useField := range []bool{false, true} {
		dst := make([]byte, len(src))
		resample := tr.Resample
		if useField {
			resample = tr.ResampleWithField
		}
		require.NoError(t, resample(src, dst, bpp, w, h, stride, 0))
		for y := range h {
			row := y * stride
			assert.Equal(t, src[row:row+w*bpp], dst[row:row+w*bpp], "row %d", y)
		}
	}
}

func TestResample_FieldMatchesDirect(t *testing.T) {
	rng := rand.New(rand.NewPCG(2, 2))
	const w, h, bpp = 40, 30, 4
	src := noise(rng, w*h*bpp)
	tr := newTransform(t, bentLandmarks(w, h))

	for _, percent := range []float64{0, 0.25, 0.5, 1, 1.7, -0.3} {
		direct := make([]byte, len(src))
		field := make([]byte, len(src))
		require.NoError(t, tr.Resample(src, direct, bpp, w, h, w*bpp, percent))
		require.NoError(t, tr.ResampleWithField(src, field, bpp, w, h, w*bpp, percent))
		assert.Equal(t, direct, field, "percent %v", percent)
	}
}

func TestResampleWithField_AfterEdit(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	const w, h, bpp = 24, 18, 3
	src := noise(rng, w*h*bpp)
	tr := newTransform(t, bentLandmarks(w, h))

	before := make([]byte, len(src))
	require.NoError(t, tr.ResampleWithField(src, before, bpp, w, h, w*bpp, 1))

	edits := []struct {
		name string
		edit func() error
	}{
		{name: "destination", edit: func() error { return tr.SetLandmark(Destination, 4, Pt(w*0.3, h*0.6)) }},
		{name: "source", edit: func() error { return tr.SetLandmark(Source, 5, Pt(w*0.75, h*0.25)) }},
		{name: "kernel", edit: func() error { return tr.SetKernelExponent(2.5) }},
		{name: "add", edit: func() error {
			tr.AddLandmarkPair(Pt(w*0.2, h*0.8), Pt(w*0.25, h*0.7))
			return nil
		}},
	}
	for _, e := range edits {
		require.NoError(t, e.edit(), e.name)
		field := make([]byte, len(src))
		direct := make([]byte, len(src))
		require.NoError(t, tr.ResampleWithField(src, field, bpp, w, h, w*bpp, 1))
		require.NoError(t, tr.Resample(src, direct, bpp, w, h, w*bpp, 1))
		assert.Equal(t, direct, field, e.name)
		assert.NotEqual(t, before, field, e.name)
		before = field
	}
}

func TestResample_MatchesEval(t *testing.T) {
	const w, h = 9, 7
	src := make([]byte, w*h)
	for i := range src {
		src[i] = byte(i + 1)
	}
	tr := newTransform(t, bentLandmarks(w, h))
	dst := make([]byte, len(src))
	require.NoError(t, tr.Resample(src, dst, 1, w, h, w, 1))

	for y := range h {
		for x := range w {
			p, err := tr.Map(Pt(float64(x), float64(y)), 1)
			require.NoError(t, err)
			sx, sy := int(p.X()+0.5), int(p.Y()+0.5)
			got := dst[(h-1-y)*w+x]
			if p.X() < -0.5 || p.Y() < -0.5 || sx >= w || sy >= h {
				assert.Zero(t, got, "(%d,%d)", x, y)
				continue
			}
			assert.Equal(t, src[(h-1-sy)*w+sx], got, "(%d,%d)", x, y)
		}
	}
}

func TestResample_Translation(t *testing.T) {
	const w, h = 4, 3
	// y = 0 is the last row
	src := []byte{
		9, 10, 11, 12,
		5, 6, 7, 8,
		1, 2, 3, 4,
	}
	// every destination pixel pulls from one pixel right and one up
	ls := []Landmark{
		{Source: Pt(0, 0), Destination: Pt(1, 1)},
		{Source: Pt(3, 0), Destination: Pt(4, 1)},
		{Source: Pt(0, 2), Destination: Pt(1, 3)},
	}
	tr := newTransform(t, ls)
	dst := make([]byte, len(src))
	require.NoError(t, tr.Resample(src, dst, 1, w, h, w, 1))
	assert.Equal(t, []byte{
		0, 0, 0, 0,
		10, 11, 12, 0,
		6, 7, 8, 0,
	}, dst)
}

func TestResample_FewLandmarksCopies(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6}
	tr := newTransform(t, []Landmark{{Source: Pt(0, 0), Destination: Pt(5, 5)}})
	dst := make([]byte, len(src))
	require.NoError(t, tr.Resample(src, dst, 2, 3, 1, 6, 1))
	assert.Equal(t, src, dst)
	dst = make([]byte, len(src))
	require.NoError(t, tr.ResampleWithField(src, dst, 2, 3, 1, 6, 1))
	assert.Equal(t, src, dst)
	assert.Equal(t, Stale, tr.Status().Field)
}

func TestResample_Errors(t *testing.T) {
	tr := newTransform(t, identitySquare())
	buf := make([]byte, 16)
	assert.ErrorIs(t, tr.Resample(buf, buf[:8], 1, 4, 4, 4, 1), ErrInvalidBuffer)
	assert.ErrorIs(t, tr.Resample(buf, buf, 1, 4, 4, 3, 1), ErrInvalidBuffer)
	assert.ErrorIs(t, tr.ResampleWithField(buf, buf, 0, 4, 4, 4, 1), ErrInvalidBuffer)

	singular := newTransform(t, []Landmark{
		{Source: Pt(0, 0), Destination: Pt(0, 0)},
		{Source: Pt(1, 0), Destination: Pt(1, 1)},
		{Source: Pt(2, 0), Destination: Pt(2, 0)},
	})
	dst := make([]byte, 16)
	assert.ErrorIs(t, singular.Resample(buf, dst, 1, 4, 4, 4, 1), ErrSingularSystem)
	assert.ErrorIs(t, singular.ResampleWithField(buf, dst, 1, 4, 4, 4, 1), ErrSingularSystem)
}

func TestField(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	const w, h = 12, 8
	src := noise(rng, w*h*3)
	tr := newTransform(t, bentLandmarks(w, h))

	f, err := tr.Field(w, h)
	require.NoError(t, err)
	assert.Equal(t, w, f.Width)
	assert.Len(t, f.DX, w*h)

	// the copy is detached from the cached field
	f2, err := tr.Field(w, h)
	require.NoError(t, err)
	f2.DX[0] += 100
	f3, err := tr.Field(w, h)
	require.NoError(t, err)
	assert.Equal(t, f.DX, f3.DX)

	want := make([]byte, len(src))
	got := make([]byte, len(src))
	require.NoError(t, tr.Resample(src, want, 3, w, h, w*3, 0.8))
	require.NoError(t, ResampleField(f, src, got, 3, w, h, w*3, 0.8))
	assert.Equal(t, want, got)

	assert.ErrorIs(t, ResampleField(f, src, got, 3, w-1, h, w*3, 0.8), ErrFieldSize)

	// a new size replaces the cached field
	small, err := tr.Field(4, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, small.Width)
	assert.Len(t, small.DY, 16)

	_, err = tr.Field(-1, 2)
	assert.ErrorIs(t, err, ErrInvalidBuffer)
}
