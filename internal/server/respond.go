package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/yyyoichi/warptps"
	"github.com/yyyoichi/warptps/internal/imageio"
	"github.com/yyyoichi/warptps/landmarks"
)

var (
	errBadRequest = errors.New("bad request")
	errNoStore    = errors.New("landmark store not configured")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// statusOf maps library errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, landmarks.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errNoStore):
		return http.StatusServiceUnavailable
	case errors.Is(err, warptps.ErrInsufficientLandmarks),
		errors.Is(err, warptps.ErrSingularSystem),
		errors.Is(err, warptps.ErrSVDNonConvergence):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest),
		errors.Is(err, warptps.ErrDimensionMismatch),
		errors.Is(err, warptps.ErrOutOfRange),
		errors.Is(err, warptps.ErrInvalidKernel),
		errors.Is(err, warptps.ErrImageSize),
		errors.Is(err, warptps.ErrInvalidBuffer),
		errors.Is(err, imageio.ErrUnknownFormat),
		errors.Is(err, landmarks.ErrFormat):
		return http.StatusBadRequest
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "id", requestID(r.Context()), "err", err)
	} else {
		s.logger.Debug("request rejected", "id", requestID(r.Context()), "status", code, "err", err)
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}
