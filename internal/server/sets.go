package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yyyoichi/warptps/landmarks"
)

type setSummary struct {
	Name      string    `json:"name"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}

type setBody struct {
	Name      string      `json:"name"`
	Source    [][]float64 `json:"source_landmarks"`
	Dest      [][]float64 `json:"dest_landmarks"`
	RExponent *float64    `json:"r_exponent,omitempty"`
	K         *float64    `json:"k,omitempty"`
	UpdatedAt *time.Time  `json:"updated_at,omitempty"`
}

func (s *Server) handleListSets(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, errNoStore)
		return
	}
	sums, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]setSummary, len(sums))
	for i, sum := range sums {
		out[i] = setSummary{Name: sum.Name, Count: sum.Count, UpdatedAt: sum.UpdatedAt}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sets": out})
}

// handleGetSet answers with JSON, or with CSV for ?format=csv.
func (s *Server) handleGetSet(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, errNoStore)
		return
	}
	set, err := s.store.Load(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		if err := landmarks.WriteCSV(w, set.Landmarks); err != nil {
			s.logger.Error("write csv", "id", requestID(r.Context()), "err", err)
		}
		return
	}
	src, dst := fromLandmarks(set.Landmarks)
	writeJSON(w, http.StatusOK, setBody{
		Name:      set.Name,
		Source:    src,
		Dest:      dst,
		RExponent: set.KernelExponent,
		K:         set.KernelScale,
		UpdatedAt: &set.UpdatedAt,
	})
}

// handlePutSet stores a set from a JSON body or a text/csv landmark table.
func (s *Server) handlePutSet(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, errNoStore)
		return
	}
	set := &landmarks.Set{Name: chi.URLParam(r, "name")}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/csv") {
		ls, err := landmarks.ReadCSV(http.MaxBytesReader(w, r.Body, s.maxUpload))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		set.Landmarks = ls
		if set.KernelExponent, err = optionalFloat(r, "r_exponent"); err != nil {
			s.writeError(w, r, err)
			return
		}
		if set.KernelScale, err = optionalFloat(r, "k"); err != nil {
			s.writeError(w, r, err)
			return
		}
	} else {
		var body setBody
		if err := decodeJSON(w, r, s.maxUpload, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
		ls, err := pairLandmarks(body.Source, body.Dest)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		set.Landmarks = ls
		set.KernelExponent, set.KernelScale = body.RExponent, body.K
	}
	// reject kernels the transform would refuse later
	if _, err := set.Transform(); err != nil {
		s.writeError(w, r, badRequest("%v", err))
		return
	}
	if err := s.store.Save(r.Context(), set); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, setSummary{Name: set.Name, Count: len(set.Landmarks), UpdatedAt: time.Now()})
}

func (s *Server) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, errNoStore)
		return
	}
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
