// Package web serves the book planning API over HTTP.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/trip-book/internal/database"
	"github.com/kozaktomas/trip-book/internal/metrics"
	"github.com/kozaktomas/trip-book/internal/pipeline"
	"github.com/kozaktomas/trip-book/internal/web/middleware"
	"github.com/sirupsen/logrus"
)

// Options configures the HTTP server.
type Options struct {
	Host           string
	Port           int
	AllowedOrigins string // comma-separated, localhost is always allowed
}

// Server represents the web server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	generator  *pipeline.Generator
	store      database.Store
	metrics    *metrics.Recorder
	log        *logrus.Logger
}

// NewServer creates a new web server. rec may be nil to disable /metrics.
func NewServer(opts Options, gen *pipeline.Generator, store database.Store, rec *metrics.Recorder, log *logrus.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:    r,
		generator: gen,
		store:     store,
		metrics:   rec,
		log:       log,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Metrics(rec))
	r.Use(middleware.RequestLogger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))
	r.Use(middleware.CORS(opts.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // generation with map rendering can be slow
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("starting web server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
