package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yyyoichi/warptps"
	"github.com/yyyoichi/warptps/internal/fieldcache"
	"github.com/yyyoichi/warptps/internal/imageio"
	"github.com/yyyoichi/warptps/landmarks"
)

const (
	srcJSON = `[[0,0],[15,0],[0,11],[15,11],[7,5]]`
	dstJSON = `[[0,0],[15,0],[0,11],[15,11],[9,6]]`
)

func testImage(w, h int, seed uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{uint8(x*13) + seed, uint8(y * 17), seed, 255})
		}
	}
	return img
}

func nrgba(img image.Image) *image.NRGBA {
	out := image.NewNRGBA(img.Bounds())
	draw.Draw(out, out.Rect, img, img.Bounds().Min, draw.Src)
	return out
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imageio.Encode(&buf, img, imageio.PNG))
	return buf.Bytes()
}

func testLandmarks(t *testing.T) []warptps.Landmark {
	t.Helper()
	ls, err := pairLandmarks(
		[][]float64{{0, 0}, {15, 0}, {0, 11}, {15, 11}, {7, 5}},
		[][]float64{{0, 0}, {15, 0}, {0, 11}, {15, 11}, {9, 6}},
	)
	require.NoError(t, err)
	return ls
}

func newTestServer(t *testing.T) (*Server, *landmarks.Store) {
	t.Helper()
	store, err := landmarks.Open(filepath.Join(t.TempDir(), "sets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	cache, err := fieldcache.NewBoltCache(filepath.Join(t.TempDir(), "fields.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return New(Config{
		Store:   store,
		Fields:  &fieldcache.Fields{Cache: cache},
		Logger:  log.New(io.Discard),
		Version: "test",
	}), store
}

type form struct {
	fields map[string]string
	files  map[string][]byte
}

func (f form) request(t *testing.T, path string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range f.fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for k, data := range f.files {
		fw, err := mw.CreateFormFile(k, k+".png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, path string, v any) *http.Request {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = serve(s, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"name":"warptps","version":"test"}`, rec.Body.String())
}

func TestWarp(t *testing.T) {
	s, _ := newTestServer(t)
	img := testImage(16, 12, 0)
	want, err := warptps.Warp(context.Background(), img, testLandmarks(t), 0.8)
	require.NoError(t, err)

	for range 2 { // second request is served from the field cache
		rec := serve(s, form{
			fields: map[string]string{
				"source_landmarks": srcJSON,
				"dest_landmarks":   dstJSON,
				"percent":          "0.8",
			},
			files: map[string][]byte{"image": encodePNG(t, img)},
		}.request(t, "/warp"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		got, _, err := imageio.Decode(rec.Body)
		require.NoError(t, err)
		assert.Equal(t, want.Pix, nrgba(got).Pix)
	}

	rec := serve(s, form{
		fields: map[string]string{"source_landmarks": srcJSON, "dest_landmarks": dstJSON, "format": "bmp"},
		files:  map[string][]byte{"image": encodePNG(t, img)},
	}.request(t, "/warp"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/bmp", rec.Header().Get("Content-Type"))
}

func TestWarp_Errors(t *testing.T) {
	s, _ := newTestServer(t)
	png := encodePNG(t, testImage(8, 8, 0))
	tests := []struct {
		name string
		form form
		code int
	}{
		{
			name: "missing image",
			form: form{fields: map[string]string{"source_landmarks": srcJSON, "dest_landmarks": dstJSON}},
			code: http.StatusBadRequest,
		},
		{
			name: "bad landmarks",
			form: form{fields: map[string]string{"source_landmarks": "[[0,0]", "dest_landmarks": dstJSON}, files: map[string][]byte{"image": png}},
			code: http.StatusBadRequest,
		},
		{
			name: "count mismatch",
			form: form{fields: map[string]string{"source_landmarks": `[[0,0],[1,0],[0,1]]`, "dest_landmarks": dstJSON}, files: map[string][]byte{"image": png}},
			code: http.StatusBadRequest,
		},
		{
			name: "collinear",
			form: form{fields: map[string]string{"source_landmarks": `[[0,0],[1,1],[2,2]]`, "dest_landmarks": `[[0,0],[2,1],[2,2]]`}, files: map[string][]byte{"image": png}},
			code: http.StatusUnprocessableEntity,
		},
		{
			name: "format",
			form: form{fields: map[string]string{"source_landmarks": srcJSON, "dest_landmarks": dstJSON, "format": "tiff"}, files: map[string][]byte{"image": png}},
			code: http.StatusBadRequest,
		},
		{
			name: "unknown set",
			form: form{fields: map[string]string{"set": "nope"}, files: map[string][]byte{"image": png}},
			code: http.StatusNotFound,
		},
		{
			name: "percent",
			form: form{fields: map[string]string{"source_landmarks": srcJSON, "dest_landmarks": dstJSON, "percent": "half"}, files: map[string][]byte{"image": png}},
			code: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, tt.form.request(t, "/warp"))
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestWarpBase64(t *testing.T) {
	s, _ := newTestServer(t)
	img := testImage(16, 12, 40)
	ls := testLandmarks(t)
	want, err := warptps.Warp(context.Background(), img, ls, 0.5, warptps.WithKernelScale(2))
	require.NoError(t, err)

	src, dst := fromLandmarks(ls)
	k, percent := 2.0, 0.5
	enc, err := encodeDataURL(img, imageio.PNG)
	require.NoError(t, err)
	rec := serve(s, jsonRequest(t, http.MethodPost, "/warp/base64", warpBase64Request{
		kernelParams: kernelParams{Source: src, Dest: dst, K: &k},
		Image:        enc,
		Percent:      &percent,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp imageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.Image, "data:image/png;base64,"))
	got, err := decodeDataURL(resp.Image)
	require.NoError(t, err)
	assert.Equal(t, want.Pix, nrgba(got).Pix)

	rec = serve(s, jsonRequest(t, http.MethodPost, "/warp/base64", map[string]any{"image": "!!!"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMorph(t *testing.T) {
	s, _ := newTestServer(t)
	a, b := testImage(16, 12, 0), testImage(16, 12, 120)
	rec := serve(s, form{
		fields: map[string]string{"landmarks1": srcJSON, "landmarks2": dstJSON, "num_frames": "3"},
		files:  map[string][]byte{"image1": encodePNG(t, a), "image2": encodePNG(t, b)},
	}.request(t, "/morph"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp morphResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.NumFrames)
	require.Len(t, resp.Frames, 4)
	first, err := decodeDataURL(resp.Frames[0])
	require.NoError(t, err)
	assert.Equal(t, a.Pix, nrgba(first).Pix)
	last, err := decodeDataURL(resp.Frames[3])
	require.NoError(t, err)
	assert.Equal(t, b.Pix, nrgba(last).Pix)

	rec = serve(s, form{
		fields: map[string]string{"landmarks1": srcJSON, "landmarks2": dstJSON, "num_frames": "0"},
		files:  map[string][]byte{"image1": encodePNG(t, a), "image2": encodePNG(t, b)},
	}.request(t, "/morph"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(s, form{
		fields: map[string]string{"landmarks1": srcJSON, "landmarks2": dstJSON},
		files:  map[string][]byte{"image1": encodePNG(t, a), "image2": encodePNG(t, testImage(10, 12, 0))},
	}.request(t, "/morph"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransformPoints(t *testing.T) {
	s, _ := newTestServer(t)
	ls := testLandmarks(t)
	src, dst := fromLandmarks(ls)
	rec := serve(s, jsonRequest(t, http.MethodPost, "/transform/points", pointsRequest{
		kernelParams: kernelParams{Source: src, Dest: dst},
		Points:       [][]float64{{7, 5}, {0, 0}, {3, 4, 1}},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp pointsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Points, 3)
	assert.InDeltaSlice(t, []float64{9, 6}, resp.Points[0], 1e-6)
	assert.InDeltaSlice(t, []float64{0, 0}, resp.Points[1], 1e-6)
	assert.Len(t, resp.Points[2], 3)

	rec = serve(s, jsonRequest(t, http.MethodPost, "/transform/points", pointsRequest{
		kernelParams: kernelParams{Source: src, Dest: dst},
		Points:       [][]float64{{1}},
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(s, jsonRequest(t, http.MethodPost, "/transform/points", pointsRequest{
		kernelParams: kernelParams{Source: src, Dest: dst, Solver: "lu"},
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func float(x float64) *float64 { return &x }

func TestLandmarkSets(t *testing.T) {
	s, _ := newTestServer(t)
	src, dst := fromLandmarks(testLandmarks(t))

	rec := serve(s, jsonRequest(t, http.MethodPut, "/landmarks/face", setBody{Source: src, Dest: dst, RExponent: float(3), K: float(1.5)}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/landmarks/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Sets []setSummary `json:"sets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Sets, 1)
	assert.Equal(t, "face", list.Sets[0].Name)
	assert.Equal(t, 5, list.Sets[0].Count)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/landmarks/face", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got setBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, src, got.Source)
	assert.Equal(t, dst, got.Dest)
	assert.Equal(t, float(3), got.RExponent)
	assert.Equal(t, float(1.5), got.K)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/landmarks/face?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "LandmarkIndex,SourceX,SourceY,DestX,DestY\n"))

	// a stored set drives the point transform
	rec = serve(s, jsonRequest(t, http.MethodPost, "/transform/points", pointsRequest{
		kernelParams: kernelParams{Set: "face"},
		Points:       [][]float64{{7, 5}},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	csvReq := httptest.NewRequest(http.MethodPut, "/landmarks/grid?k=2", strings.NewReader(
		"LandmarkIndex,SourceX,SourceY,DestX,DestY\n0,0,0,0,0\n1,4,0,4,0\n2,0,4,1,4\n"))
	csvReq.Header.Set("Content-Type", "text/csv")
	rec = serve(s, csvReq)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = setBody{}
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/landmarks/grid", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Nil(t, got.RExponent)
	assert.Equal(t, float(2), got.K)

	// a zero exponent is a kernel of its own, not a missing one
	rec = serve(s, jsonRequest(t, http.MethodPut, "/landmarks/log", setBody{Source: src, Dest: dst, RExponent: float(0)}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = setBody{}
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/landmarks/log", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, float(0), got.RExponent)
	assert.Nil(t, got.K)

	rec = serve(s, httptest.NewRequest(http.MethodDelete, "/landmarks/face", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(s, httptest.NewRequest(http.MethodDelete, "/landmarks/face", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(s, jsonRequest(t, http.MethodPut, "/landmarks/bad", setBody{Source: src, Dest: dst[:2]}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNoStore(t *testing.T) {
	s := New(Config{Logger: log.New(io.Discard)})
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/landmarks/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(warptps.ErrInsufficientLandmarks))
	assert.Equal(t, http.StatusBadRequest, statusOf(badRequest("x")))
	assert.Equal(t, http.StatusNotFound, statusOf(landmarks.ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, statusOf(fmt.Errorf("option: %w", warptps.ErrInvalidKernel)))
	assert.Equal(t, http.StatusInternalServerError, statusOf(io.ErrUnexpectedEOF))
}
