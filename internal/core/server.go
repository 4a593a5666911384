// Package core provides the HTTP chassis for the lawn-care notification API.
// It builds a chi router, applies the cross-cutting middleware (panic
// recovery, request IDs, logging, CORS, metrics) and exposes the JSON
// response helpers shared by every handler.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lawncare/internal/config"
	"lawncare/internal/types"
)

// MetricsCollector records API request telemetry.
type MetricsCollector interface {
	// RecordRequest is called once per request with the matched route
	// pattern, never the raw path.
	RecordRequest(method, route, status string, duration time.Duration)
}

// RouteRegistrar mounts a handler group onto a router.
type RouteRegistrar func(r chi.Router)

// Server encapsulates the dependencies of the API so tests can inject fakes.
type Server struct {
	Config    *config.Config
	Repos     types.RepositoryRegistry
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler

	HealthProbes []HealthProbe

	// V1RouteRegistrars are mounted under /v1; APIRouteRegistrars under
	// /api (vendor callbacks). Both are filled by main to avoid an import
	// cycle between core and the handler packages.
	V1RouteRegistrars  []RouteRegistrar
	APIRouteRegistrars []RouteRegistrar

	router *chi.Mux
}

// NewServer validates the critical dependencies and prepares an empty
// router. Routes are attached later by MountRoutes.
func NewServer(
	cfg *config.Config,
	repos types.RepositoryRegistry,
	logger *slog.Logger,
) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if repos == nil {
		return nil, fmt.Errorf("repository registry must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Repos:     repos,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server resources. Registries that hold connections
// expose Close and are closed here.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	if closer, ok := s.Repos.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.Logger.Error("error closing repository connections", "error", err)
			return fmt.Errorf("closing repository connections: %w", err)
		}
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
