// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the catalog over a JSON REST API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/pdiddy/bes-catalog/internal/catalog"
	"github.com/pdiddy/bes-catalog/internal/extract"
	"github.com/pdiddy/bes-catalog/internal/metrics"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

// Store is the catalog surface the API uses.
type Store interface {
	Ping(ctx context.Context) error
	Create(ctx context.Context, p *types.Paper) error
	Get(ctx context.Context, id string) (types.Paper, error)
	Update(ctx context.Context, p *types.Paper) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts catalog.ListOptions) ([]types.Paper, int, error)
	SaveExtraction(ctx context.Context, id string, set *types.ExtractedParameterSet, v *types.ValidationResult) error
}

// Deps holds the server's collaborators. Backend defaults to the regex
// engine; Metrics and MetricsHandler are optional.
type Deps struct {
	Store          Store
	Backend        extract.Backend
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Logger         zerolog.Logger
}

// Server is the HTTP REST API server.
type Server struct {
	cfg        types.ServerConfig
	router     chi.Router
	httpServer *http.Server
	store      Store
	backend    extract.Backend
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

const (
	defaultAddress         = ":8080"
	defaultShutdownTimeout = 10 * time.Second
	defaultMetricsPath     = "/metrics"
)

// New builds a server and its routes.
func New(cfg types.ServerConfig, deps Deps) *Server {
	if cfg.Address == "" {
		cfg.Address = defaultAddress
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = defaultMetricsPath
	}
	backend := deps.Backend
	if backend == nil {
		backend = extract.RegexBackend{}
	}

	s := &Server{
		cfg:     cfg,
		store:   deps.Store,
		backend: backend,
		metrics: deps.Metrics,
		logger:  deps.Logger.With().Str("component", "http-server").Logger(),
	}
	s.router = s.buildRouter(deps.MetricsHandler)
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter(metricsHandler http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthHandler)
	if metricsHandler != nil {
		r.Handle(s.cfg.MetricsPath, metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jsonContentType)

		r.Get("/papers", s.listPapers)
		r.Post("/papers", s.createPaper)
		r.Get("/papers/{id}", s.getPaper)
		r.Put("/papers/{id}", s.updatePaper)
		r.Delete("/papers/{id}", s.deletePaper)
		r.Post("/papers/{id}/extract", s.extractPaper)
		r.Post("/extract", s.extractText)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	s.logger.Info().Str("address", ln.Addr().String()).Msg("HTTP server starting")

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeStoreError maps catalog errors onto HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "paper not found")
	case errors.Is(err, catalog.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "a paper with this DOI already exists")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("store error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
