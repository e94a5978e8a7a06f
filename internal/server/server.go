// Package server exposes the coordinator's admin HTTP surface: fleet
// status as JSON, a liveness endpoint, and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/keyfleet/internal/fleet"
	"git.home.luguber.info/inful/keyfleet/internal/logfields"
)

// SnapshotSource provides the current fleet aggregate for /status.
type SnapshotSource interface {
	Snapshot() fleet.Snapshot
}

// Server is the admin HTTP server.
type Server struct {
	addr   string
	source SnapshotSource
	http   *http.Server
}

// New builds the admin server over the given snapshot source. A nil
// gatherer falls back to the default Prometheus registry.
func New(addr string, source SnapshotSource, gatherer prometheus.Gatherer) *Server {
	s := &Server{addr: addr, source: source}

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until Shutdown. It returns on listener failure; callers run
// it in a goroutine.
func (s *Server) Start() error {
	slog.Info("Admin server listening", slog.String("addr", s.addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		slog.Warn("Failed to encode status", logfields.Error(err))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
