package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/yyyoichi/warptps"
)

// kernelParams are the transform settings shared by every endpoint.
type kernelParams struct {
	Source    [][]float64 `json:"source_landmarks"`
	Dest      [][]float64 `json:"dest_landmarks"`
	Set       string      `json:"set,omitempty"`
	RExponent *float64    `json:"r_exponent,omitempty"`
	K         *float64    `json:"k,omitempty"`
	Solver    string      `json:"solver,omitempty"`
}

func toPoint(raw []float64) (warptps.Point, error) {
	switch len(raw) {
	case 2:
		return warptps.Pt(raw[0], raw[1]), nil
	case 3:
		return warptps.Pt3(raw[0], raw[1], raw[2]), nil
	}
	return warptps.Point{}, badRequest("point %v must have 2 or 3 coordinates", raw)
}

func toPoints(raw [][]float64) ([]warptps.Point, error) {
	pts := make([]warptps.Point, len(raw))
	for i, r := range raw {
		p, err := toPoint(r)
		if err != nil {
			return nil, err
		}
		pts[i] = p
	}
	return pts, nil
}

func pairLandmarks(src, dst [][]float64) ([]warptps.Landmark, error) {
	if len(src) != len(dst) {
		return nil, badRequest("%d source and %d destination landmarks", len(src), len(dst))
	}
	s, err := toPoints(src)
	if err != nil {
		return nil, err
	}
	d, err := toPoints(dst)
	if err != nil {
		return nil, err
	}
	ls := make([]warptps.Landmark, len(s))
	for i := range s {
		ls[i] = warptps.Landmark{Source: s[i], Destination: d[i]}
	}
	return ls, nil
}

func fromLandmarks(ls []warptps.Landmark) (src, dst [][]float64) {
	src = make([][]float64, len(ls))
	dst = make([][]float64, len(ls))
	for i, l := range ls {
		src[i] = []float64{l.Source.X(), l.Source.Y()}
		dst[i] = []float64{l.Destination.X(), l.Destination.Y()}
	}
	return src, dst
}

// options resolves the landmarks, from the request or a stored set, and
// the kernel overrides.
func (s *Server) options(ctx context.Context, p kernelParams) ([]warptps.Option, []warptps.Landmark, error) {
	opts := append([]warptps.Option(nil), s.defaults...)
	var ls []warptps.Landmark
	if p.Set != "" {
		if s.store == nil {
			return nil, nil, errNoStore
		}
		set, err := s.store.Load(ctx, p.Set)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, set.Options()...)
		ls = set.Landmarks
	} else {
		var err error
		if ls, err = pairLandmarks(p.Source, p.Dest); err != nil {
			return nil, nil, err
		}
	}
	if p.RExponent != nil {
		opts = append(opts, warptps.WithKernelExponent(*p.RExponent))
	}
	if p.K != nil {
		opts = append(opts, warptps.WithKernelScale(*p.K))
	}
	if p.Solver != "" {
		solver, err := warptps.ParseSolver(p.Solver)
		if err != nil {
			return nil, nil, badRequest("%v", err)
		}
		opts = append(opts, warptps.WithSolver(solver))
	}
	return opts, ls, nil
}

func (s *Server) transform(ctx context.Context, p kernelParams) (*warptps.Transform, error) {
	opts, ls, err := s.options(ctx, p)
	if err != nil {
		return nil, err
	}
	t, err := warptps.New(append(opts, warptps.WithLandmarks(ls))...)
	if err != nil {
		return nil, badRequest("%v", err)
	}
	return t, nil
}

// formParams reads kernelParams from multipart form fields, where the
// landmark lists are JSON arrays.
func formParams(r *http.Request, srcField, dstField string) (kernelParams, error) {
	var p kernelParams
	p.Set = r.FormValue("set")
	p.Solver = r.FormValue("solver")
	if p.Set == "" {
		if err := json.Unmarshal([]byte(r.FormValue(srcField)), &p.Source); err != nil {
			return p, badRequest("%s: %v", srcField, err)
		}
		if err := json.Unmarshal([]byte(r.FormValue(dstField)), &p.Dest); err != nil {
			return p, badRequest("%s: %v", dstField, err)
		}
	}
	var err error
	if p.RExponent, err = optionalFloat(r, "r_exponent"); err != nil {
		return p, err
	}
	if p.K, err = optionalFloat(r, "k"); err != nil {
		return p, err
	}
	return p, nil
}

func optionalFloat(r *http.Request, name string) (*float64, error) {
	v := r.FormValue(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, badRequest("%s: %v", name, err)
	}
	return &f, nil
}

func floatOr(r *http.Request, name string, def float64) (float64, error) {
	f, err := optionalFloat(r, name)
	if err != nil || f == nil {
		return def, err
	}
	return *f, nil
}

func intOr(r *http.Request, name string, def int) (int, error) {
	v := r.FormValue(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("%s: %v", name, err)
	}
	return n, nil
}
