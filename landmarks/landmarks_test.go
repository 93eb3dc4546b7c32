package landmarks

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yyyoichi/warptps"
)

func sample() []warptps.Landmark {
	return []warptps.Landmark{
		{Source: warptps.Pt(0, 0), Destination: warptps.Pt(1, 2)},
		{Source: warptps.Pt(10.5, 0), Destination: warptps.Pt(11, -3.25)},
		{Source: warptps.Pt(0, 8), Destination: warptps.Pt(0.125, 8)},
		{Source: warptps.Pt(1e-3, 7), Destination: warptps.Pt(2, 6)},
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))
	assert.Equal(t, "LandmarkIndex,SourceX,SourceY,DestX,DestY\n"+
		"0,0,0,1,2\n"+
		"1,10.5,0,11,-3.25\n"+
		"2,0,8,0.125,8\n"+
		"3,0.001,7,2,6\n", buf.String())

	ls, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, sample(), ls)
}

func TestReadCSV_Order(t *testing.T) {
	in := "LandmarkIndex,SourceX,SourceY,DestX,DestY\n1, 5, 5, 6, 6\n0, 1, 1, 2, 2\n"
	ls, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []warptps.Landmark{
		{Source: warptps.Pt(1, 1), Destination: warptps.Pt(2, 2)},
		{Source: warptps.Pt(5, 5), Destination: warptps.Pt(6, 6)},
	}, ls)
}

func TestReadCSV_Errors(t *testing.T) {
	const header = "LandmarkIndex,SourceX,SourceY,DestX,DestY\n"
	test := []string{
		"",
		"Index,SourceX,SourceY,DestX,DestY\n",
		header + "0,1,2,3\n",
		header + "0,1,2,3,x\n",
		header + "1,1,2,3,4\n",
		header + "0,1,2,3,4\n0,1,2,3,4\n",
		header + "-1,1,2,3,4\n",
	}
	for _, in := range test {
		_, err := ReadCSV(strings.NewReader(in))
		assert.ErrorIs(t, err, ErrFormat, "%q", in)
	}

	ls, err := ReadCSV(strings.NewReader(header))
	require.NoError(t, err)
	assert.Empty(t, ls)
}

func TestCBOR(t *testing.T) {
	in := sample()
	in[0].Source = warptps.Pt3(0, 0, 4)
	data, err := Marshal(in)
	require.NoError(t, err)
	out, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	data, err = Marshal(nil)
	require.NoError(t, err)
	out, err = Unmarshal(data)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = Unmarshal([]byte{0xff, 0x00})
	assert.ErrorIs(t, err, ErrFormat)
}

func float(x float64) *float64 { return &x }

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "landmarks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.Load(ctx, "face")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, &Set{Name: "face", KernelExponent: float(2), KernelScale: float(1), Landmarks: sample()}))
	require.NoError(t, s.Save(ctx, &Set{Name: "empty", KernelExponent: float(3), KernelScale: float(0.5)}))

	got, err := s.Load(ctx, "face")
	require.NoError(t, err)
	assert.Equal(t, sample(), got.Landmarks)
	assert.Equal(t, float(2), got.KernelExponent)
	assert.False(t, got.UpdatedAt.IsZero())

	// saving under the same name replaces the landmarks
	require.NoError(t, s.Save(ctx, &Set{Name: "face", KernelScale: float(1), Landmarks: sample()[:3]}))
	got, err = s.Load(ctx, "face")
	require.NoError(t, err)
	assert.Equal(t, sample()[:3], got.Landmarks)
	assert.Nil(t, got.KernelExponent)
	assert.Equal(t, float(1), got.KernelScale)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "empty", list[0].Name)
	assert.Equal(t, 0, list[0].Count)
	assert.Equal(t, "face", list[1].Name)
	assert.Equal(t, 3, list[1].Count)

	require.NoError(t, s.Delete(ctx, "face"))
	assert.ErrorIs(t, s.Delete(ctx, "face"), ErrNotFound)
	_, err = s.Load(ctx, "face")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSet_Transform(t *testing.T) {
	tr, err := warptps.New(warptps.WithKernelExponent(3), warptps.WithLandmarks(sample()))
	require.NoError(t, err)

	set := NewSet("x", tr)
	assert.Equal(t, float(3), set.KernelExponent)
	assert.Equal(t, float(1), set.KernelScale)

	back, err := set.Transform()
	require.NoError(t, err)
	assert.True(t, warptps.CheckInverse(tr, back.Inverse()))
	exp, _ := back.Kernel()
	assert.Equal(t, 3.0, exp)

	unset := &Set{Landmarks: sample()}
	def, err := unset.Transform(warptps.WithKernelScale(4))
	require.NoError(t, err)
	exp, k := def.Kernel()
	assert.Equal(t, 2.0, exp)
	assert.Equal(t, 4.0, k)

	// the stored kernel wins over the caller's
	exp, k = 1.5, 0.25
	stored := &Set{KernelExponent: &exp, KernelScale: &k, Landmarks: sample()}
	over, err := stored.Transform(warptps.WithKernelExponent(2), warptps.WithKernelScale(4))
	require.NoError(t, err)
	gotExp, gotK := over.Kernel()
	assert.Equal(t, 1.5, gotExp)
	assert.Equal(t, 0.25, gotK)
}

func TestStore_ZeroKernel(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	tr, err := warptps.New(warptps.WithKernelExponent(0), warptps.WithKernelScale(0), warptps.WithLandmarks(sample()))
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, NewSet("log", tr)))

	set, err := s.Load(ctx, "log")
	require.NoError(t, err)
	assert.Equal(t, float(0), set.KernelExponent)
	assert.Equal(t, float(0), set.KernelScale)

	back, err := set.Transform()
	require.NoError(t, err)
	exp, k := back.Kernel()
	assert.Equal(t, 0.0, exp)
	assert.Equal(t, 0.0, k)
}
