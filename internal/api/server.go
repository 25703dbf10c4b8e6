// Package api exposes a minimal read-only HTTP surface for inspecting a
// finished (or in-flight) backtest run: a health check and a JSON snapshot
// of the coordinator's result. There is no live market state to stream, so
// unlike the teacher's dashboard this has no WebSocket hub — a single
// request/response snapshot endpoint is the whole surface.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// SnapshotProvider supplies the current result snapshot on demand. The
// coordinator (or a wrapper around it) implements this by returning its
// most recent Result.
type SnapshotProvider interface {
	Snapshot() any
}

// Server runs the read-only status HTTP surface.
type Server struct {
	provider SnapshotProvider
	server   *http.Server
	logger   *slog.Logger
}

// NewServer builds a Server bound to port, backed by provider.
func NewServer(port int, provider SnapshotProvider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{provider: provider, logger: logger.With("component", "api-server")}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until Stop is called or the listener errors.
func (s *Server) Start() error {
	s.logger.Info("status server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.logger.Info("stopping status server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.provider.Snapshot()); err != nil {
		s.logger.Error("encode snapshot failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
