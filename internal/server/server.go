// Package server exposes warping, morphing, point transforms and the
// landmark set store over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/yyyoichi/warptps"
	"github.com/yyyoichi/warptps/internal/fieldcache"
	"github.com/yyyoichi/warptps/landmarks"
)

const (
	defaultMaxUpload = 32 << 20
	defaultMaxFrames = 120
)

type Config struct {
	// Store backs the /landmarks routes and the "set" request parameter.
	// Without it those requests fail with 503.
	Store *landmarks.Store
	// Fields caches presampled fields for /warp. Nil computes every field.
	Fields *fieldcache.Fields
	Logger *log.Logger
	// Defaults apply to every transform before request parameters.
	Defaults       []warptps.Option
	MaxUploadBytes int64
	MaxFrames      int
	Version        string
}

type Server struct {
	store     *landmarks.Store
	fields    *fieldcache.Fields
	logger    *log.Logger
	defaults  []warptps.Option
	maxUpload int64
	maxFrames int
	version   string
	router    chi.Router
}

func New(cfg Config) *Server {
	s := &Server{
		store:     cfg.Store,
		fields:    cfg.Fields,
		logger:    cfg.Logger,
		defaults:  cfg.Defaults,
		maxUpload: cfg.MaxUploadBytes,
		maxFrames: cfg.MaxFrames,
		version:   cfg.Version,
	}
	if s.fields == nil {
		s.fields = &fieldcache.Fields{Cache: fieldcache.NewNullCache()}
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.maxUpload <= 0 {
		s.maxUpload = defaultMaxUpload
	}
	if s.maxFrames <= 0 {
		s.maxFrames = defaultMaxFrames
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/warp", s.handleWarp)
	r.Post("/warp/base64", s.handleWarpBase64)
	r.Post("/morph", s.handleMorph)
	r.Post("/transform/points", s.handleTransformPoints)

	r.Route("/landmarks", func(r chi.Router) {
		r.Get("/", s.handleListSets)
		r.Get("/{name}", s.handleGetSet)
		r.Put("/{name}", s.handlePutSet)
		r.Delete("/{name}", s.handleDeleteSet)
	})
	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type ctxKey int

const requestIDKey ctxKey = 0

// requestLogger tags each request with an X-Request-ID, generating one
// when the client sent none, and logs the outcome.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.Info("request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
