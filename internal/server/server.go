// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the assessment engine and the record store over
// a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdiddy/microfinance-engine/internal/logging"
	"github.com/pdiddy/microfinance-engine/internal/metrics"
	"github.com/pdiddy/microfinance-engine/internal/store"
	"github.com/pdiddy/microfinance-engine/pkg/types"
)

const (
	DefaultAddr            = ":8080"
	DefaultRateLimit       = 60
	DefaultRateWindow      = time.Minute
	DefaultShutdownTimeout = 10 * time.Second

	// maxBodyBytes bounds a submitted application.
	maxBodyBytes = 1 << 20
)

// Assessor runs the pipeline for one application.
type Assessor interface {
	Process(ctx context.Context, app *types.Application) (types.Assessment, error)
}

// Preparer assigns IDs, validates and fetches documents for new applications.
type Preparer interface {
	Prepare(ctx context.Context, app *types.Application) error
}

// Records answers assessment queries.
type Records interface {
	Get(ctx context.Context, id string) (types.Assessment, error)
	List(ctx context.Context, opts store.QueryOptions) ([]store.Summary, error)
	Stats(ctx context.Context) (store.Stats, error)
}

// Server is the HTTP API.
type Server struct {
	cfg     types.ServerConfig
	engine  Assessor
	intake  Preparer
	records Records
	ready   chan string
}

// New returns a Server. Zero config fields select defaults.
func New(cfg types.ServerConfig, engine Assessor, intake Preparer, records Records) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = DefaultRateWindow
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{
		cfg:     cfg,
		engine:  engine,
		intake:  intake,
		records: records,
		ready:   make(chan string, 1),
	}
}

// Handler builds the router. The logger in ctx is used for access logs.
func (s *Server) Handler(ctx context.Context) http.Handler {
	log := logging.WithComponent(ctx, "server")

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(metrics.Middleware)
	r.Use(accessLog(log))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimit(s.cfg.RateLimit, s.cfg.RateWindow))
		r.Post("/applications", s.handleSubmit)
		r.Get("/assessments", s.handleList)
		r.Get("/assessments/{id}", s.handleGet)
		r.Get("/stats", s.handleStats)
	})
	return r
}

// Ready receives the bound address once Run is listening.
func (s *Server) Ready() <-chan string { return s.ready }

// Run serves until ctx is cancelled, then shuts down gracefully within the
// configured timeout.
func (s *Server) Run(ctx context.Context) error {
	log := logging.WithComponent(ctx, "server")

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("serving")
	s.ready <- ln.Addr().String()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	log.Info().Msg("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}
