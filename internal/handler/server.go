// Package handler implements the ops HTTP surface of the admission daemon:
// liveness/readiness and Prometheus metrics. The admission core itself has
// no HTTP API; callers embed the service package.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pkordes/splitbuy/internal/middleware"
)

// Pinger reports whether a backing store is reachable.
// Satisfied by *pgxpool.Pool and *memory.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies of the ops endpoints.
type Server struct {
	store       Pinger
	pingTimeout time.Duration
}

// NewServer constructs the Server.
func NewServer(store Pinger) *Server {
	return &Server{store: store, pingTimeout: 2 * time.Second}
}

// NewRouter mounts the ops endpoints behind the standard middleware chain:
// RequestID, RealIP, SlogLogger, Recoverer.
func NewRouter(s *Server, log *slog.Logger, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.GetHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
