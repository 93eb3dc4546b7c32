package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"strings"

	"github.com/yyyoichi/warptps"
	"github.com/yyyoichi/warptps/internal/imageio"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "warptps",
		"version": s.version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return badRequest("multipart form: %v", err)
	}
	return nil
}

func formImage(r *http.Request, field string) (image.Image, error) {
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, badRequest("%s: %v", field, err)
	}
	defer f.Close()
	img, _, err := imageio.Decode(f)
	if err != nil {
		return nil, badRequest("%s: %v", field, err)
	}
	return img, nil
}

// warp resamples img with the transform, through the field cache.
func (s *Server) warp(r *http.Request, t *warptps.Transform, img image.Image, percent float64) (*image.NRGBA, error) {
	ctx := r.Context()
	b := img.Bounds()
	f, hit, err := s.fields.Get(ctx, t, b.Dx(), b.Dy())
	if err != nil {
		if f == nil {
			return nil, err
		}
		s.logger.Warn("field cache", "id", requestID(ctx), "err", err)
	}
	s.logger.Debug("field", "id", requestID(ctx), "size", b.Size(), "cached", hit)
	return warptps.WarpField(ctx, f, img, percent)
}

func (s *Server) handleWarp(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	img, err := formImage(r, "image")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := formParams(r, "source_landmarks", "dest_landmarks")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	percent, err := floatOr(r, "percent", 1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format, err := imageio.ParseFormat(r.FormValue("format"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.transform(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.warp(r, t, img, percent)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := imageio.Encode(&buf, out, format); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

type warpBase64Request struct {
	kernelParams
	Image   string   `json:"image"`
	Percent *float64 `json:"percent"`
	Format  string   `json:"format"`
}

type imageResponse struct {
	Success bool   `json:"success"`
	Image   string `json:"image"`
}

// decodeDataURL accepts plain base64 or a data URL.
func decodeDataURL(s string) (image.Image, error) {
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, badRequest("image: %v", err)
	}
	img, _, err := imageio.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, badRequest("image: %v", err)
	}
	return img, nil
}

func encodeDataURL(img image.Image, f imageio.Format) (string, error) {
	var buf bytes.Buffer
	if err := imageio.Encode(&buf, img, f); err != nil {
		return "", err
	}
	return "data:" + f.ContentType() + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (s *Server) handleWarpBase64(w http.ResponseWriter, r *http.Request) {
	var req warpBase64Request
	if err := decodeJSON(w, r, s.maxUpload, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	img, err := decodeDataURL(req.Image)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format, err := imageio.ParseFormat(req.Format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	percent := 1.0
	if req.Percent != nil {
		percent = *req.Percent
	}
	t, err := s.transform(r.Context(), req.kernelParams)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.warp(r, t, img, percent)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	enc, err := encodeDataURL(out, format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{Success: true, Image: enc})
}

type morphResponse struct {
	Success   bool     `json:"success"`
	NumFrames int      `json:"num_frames"`
	Frames    []string `json:"frames"`
}

func (s *Server) handleMorph(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	img1, err := formImage(r, "image1")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	img2, err := formImage(r, "image2")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := formParams(r, "landmarks1", "landmarks2")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	frames, err := intOr(r, "num_frames", 10)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if frames < 1 || frames > s.maxFrames {
		s.writeError(w, r, badRequest("num_frames must be in 1..%d, got %d", s.maxFrames, frames))
		return
	}
	opts, ls, err := s.options(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := warptps.Morph(r.Context(), img1, img2, ls, frames, opts...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := morphResponse{Success: true, NumFrames: len(out), Frames: make([]string, len(out))}
	for i, frame := range out {
		if resp.Frames[i], err = encodeDataURL(frame, imageio.PNG); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type pointsRequest struct {
	kernelParams
	Points  [][]float64 `json:"points"`
	Percent *float64    `json:"percent"`
}

type pointsResponse struct {
	Success bool        `json:"success"`
	Points  [][]float64 `json:"transformed_points"`
}

func (s *Server) handleTransformPoints(w http.ResponseWriter, r *http.Request) {
	var req pointsRequest
	if err := decodeJSON(w, r, s.maxUpload, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	pts, err := toPoints(req.Points)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	percent := 1.0
	if req.Percent != nil {
		percent = *req.Percent
	}
	t, err := s.transform(r.Context(), req.kernelParams)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	mapped, err := t.TransformPoints(pts, percent)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := pointsResponse{Success: true, Points: make([][]float64, len(mapped))}
	for i, p := range mapped {
		resp.Points[i] = p.Slice()[:len(req.Points[i])]
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return badRequest("json: %v", err)
	}
	return nil
}
