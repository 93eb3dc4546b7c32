package fieldcache

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yyyoichi/warptps"
)

func transform(t *testing.T) *warptps.Transform {
	t.Helper()
	tr, err := warptps.New(warptps.WithLandmarks([]warptps.Landmark{
		{Source: warptps.Pt(0, 0), Destination: warptps.Pt(0, 0)},
		{Source: warptps.Pt(8, 0), Destination: warptps.Pt(8, 1)},
		{Source: warptps.Pt(0, 6), Destination: warptps.Pt(1, 6)},
		{Source: warptps.Pt(4, 3), Destination: warptps.Pt(5, 2)},
	}))
	require.NoError(t, err)
	return tr
}

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	require.NoError(t, c.Set(ctx, "key", []byte("value"), time.Hour))
	data, hit, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, data)
	assert.NoError(t, c.Delete(ctx, "key"))
}

func TestBoltCache(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fields.db")
	c, err := NewBoltCache(path)
	require.NoError(t, err)

	_, hit, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "a", []byte{1, 2, 3}, 0))
	require.NoError(t, c.Set(ctx, "old", []byte{4}, time.Nanosecond))
	time.Sleep(time.Millisecond)

	data, hit, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, hit, err = c.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, hit, "expired entries are misses")

	require.NoError(t, c.Delete(ctx, "a"))
	_, hit, _ = c.Get(ctx, "a")
	assert.False(t, hit)
	require.NoError(t, c.Close())

	// entries survive reopening
	c, err = NewBoltCache(path)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "b", []byte("kept"), time.Hour))
	require.NoError(t, c.Close())
	c, err = NewBoltCache(path)
	require.NoError(t, err)
	data, hit, err = c.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("kept"), data)
	require.NoError(t, c.Close())
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("WARPTPS_TEST_REDIS")
	if addr == "" {
		t.Skip("WARPTPS_TEST_REDIS not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, addr, "", 0)
	require.NoError(t, err)
	defer c.Close()

	key := "test:" + time.Now().Format(time.RFC3339Nano)
	require.NoError(t, c.Set(ctx, key, []byte("x"), time.Minute))
	data, hit, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("x"), data)
	require.NoError(t, c.Delete(ctx, key))
	_, hit, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestFieldCodec(t *testing.T) {
	f, err := transform(t).Field(9, 7)
	require.NoError(t, err)
	data, err := EncodeField(f)
	require.NoError(t, err)
	back, err := DecodeField(data)
	require.NoError(t, err)
	assert.Equal(t, f, back)

	bad, err := EncodeField(&warptps.Field{Width: 2, Height: 2, DX: []float64{1}, DY: []float64{1}})
	require.NoError(t, err)
	_, err = DecodeField(bad)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestKey(t *testing.T) {
	a := transform(t)
	b := transform(t)
	assert.Equal(t, Key(a, 10, 10), Key(b, 10, 10))
	assert.NotEqual(t, Key(a, 10, 10), Key(a, 10, 11))

	full, err := warptps.New(warptps.WithSolver(warptps.SolverFullPivot), warptps.WithLandmarks(a.Landmarks()))
	require.NoError(t, err)
	assert.NotEqual(t, Key(a, 10, 10), Key(full, 10, 10))

	require.NoError(t, b.SetKernelScale(2))
	assert.NotEqual(t, Key(a, 10, 10), Key(b, 10, 10))

	// non-finite coordinates hash apart instead of colliding
	nan, err := warptps.New(warptps.WithLandmarks([]warptps.Landmark{{Source: warptps.Pt(math.NaN(), 0)}}))
	require.NoError(t, err)
	inf, err := warptps.New(warptps.WithLandmarks([]warptps.Landmark{{Source: warptps.Pt(math.Inf(1), 0)}}))
	require.NoError(t, err)
	assert.NotEqual(t, Key(nan, 10, 10), Key(inf, 10, 10))
	assert.Equal(t, Key(nan, 10, 10), Key(nan, 10, 10))

	require.NoError(t, a.SetLandmark(warptps.Destination, 3, warptps.Pt(5, 3)))
	assert.NotEqual(t, Key(a, 10, 10), Key(transform(t), 10, 10))
}

func TestFields(t *testing.T) {
	ctx := context.Background()
	c, err := NewBoltCache(filepath.Join(t.TempDir(), "fields.db"))
	require.NoError(t, err)
	defer c.Close()
	fs := &Fields{Cache: c}

	f1, hit, err := fs.Get(ctx, transform(t), 12, 10)
	require.NoError(t, err)
	assert.False(t, hit)

	f2, hit, err := fs.Get(ctx, transform(t), 12, 10)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, f1, f2)

	// a cached field resamples exactly like the transform itself
	src := make([]byte, 12*10)
	for i := range src {
		src[i] = byte(i)
	}
	want := make([]byte, len(src))
	got := make([]byte, len(src))
	tr := transform(t)
	require.NoError(t, tr.Resample(src, want, 1, 12, 10, 12, 0.7))
	require.NoError(t, warptps.ResampleField(f2, src, got, 1, 12, 10, 12, 0.7))
	assert.Equal(t, want, got)

	null := &Fields{Cache: NewNullCache()}
	_, hit, err = null.Get(ctx, transform(t), 12, 10)
	require.NoError(t, err)
	assert.False(t, hit)
}
