package imageio

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{uint8(x * 30), uint8(y * 40), uint8(x + y), 255})
		}
	}
	return img
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", PNG},
		{"PNG", PNG},
		{".jpg", JPEG},
		{"jpeg", JPEG},
		{"bmp", BMP},
		{"ppm", PNM},
		{"pgm", PNM},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseFormat("tiff")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	assert.Equal(t, JPEG, FormatOf("out/frame.JPG"))
	assert.Equal(t, PNG, FormatOf("noext"))
	assert.Equal(t, "image/bmp", BMP.ContentType())
}

func TestEncodeDecode(t *testing.T) {
	src := gradient(5, 4)
	for _, f := range []Format{PNG, BMP, PNM} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, src, f))
			got, _, err := Decode(&buf)
			require.NoError(t, err)
			require.Equal(t, src.Bounds(), got.Bounds())
			for y := range 4 {
				for x := range 5 {
					r1, g1, b1, _ := src.At(x, y).RGBA()
					r2, g2, b2, _ := got.At(x, y).RGBA()
					assert.Equal(t, [3]uint32{r1 >> 8, g1 >> 8, b1 >> 8}, [3]uint32{r2 >> 8, g2 >> 8, b2 >> 8})
				}
			}
		})
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, src, JPEG))
	got, name, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", name)
	assert.Equal(t, src.Bounds(), got.Bounds())

	assert.ErrorIs(t, Encode(&buf, src, "gif"), ErrUnknownFormat)
	_, _, err = Decode(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestFetcher(t *testing.T) {
	var body bytes.Buffer
	require.NoError(t, Encode(&body, gradient(3, 2), PNG))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/img.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(body.Bytes())
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	ctx := context.Background()

	img, err := f.Open(ctx, srv.URL+"/img.png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())

	_, err = f.Open(ctx, srv.URL+"/missing.png")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "local.png")
	require.NoError(t, os.WriteFile(path, body.Bytes(), 0o644))
	img, err = f.Open(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())

	assert.True(t, IsURL("https://example.com/a.png"))
	assert.False(t, IsURL("a.png"))
}
