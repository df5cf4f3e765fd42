// Package health exposes a minimal liveness endpoint for the orchestrator.
// Only GET /healthz exists; the watcher emits events, it does not serve a
// query API.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// StatusFunc supplies the current liveness payload.
type StatusFunc func() map[string]any

// Server serves the liveness endpoint.
type Server struct {
	srv    *http.Server
	status StatusFunc
}

// New creates a liveness server bound to addr.
func New(addr string, status StatusFunc) *Server {
	s := &Server{status: status}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("liveness endpoint listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("liveness endpoint failed")
		}
	}()
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status()); err != nil {
		log.Error().Err(err).Msg("failed to encode health status")
	}
}
