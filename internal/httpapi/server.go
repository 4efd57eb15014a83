// Package httpapi exposes the backfill pipeline as a small HTTP surface for
// managed-function style invocation.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"histfill/internal/domain"
)

// Runner executes one backfill run and returns its summary. The pipeline
// guarantees per-symbol failures are folded into the summary; an error here
// means the run itself could not complete.
type Runner func(ctx context.Context) (*domain.RunSummary, error)

// Server serves the backfill trigger API.
type Server struct {
	run Runner
	log *slog.Logger
}

// NewServer creates a Server around the given runner.
func NewServer(run Runner, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{run: run, log: log}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/backfill", s.handleBackfill)
	mux.HandleFunc("GET /api/healthz", s.handleHealthz)
}

// Handler returns the ready-to-serve handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// handleBackfill runs a full backfill and responds with the run summary.
// Partial success (some symbols failed) is still a 200: the summary carries
// the per-symbol failures.
func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	s.log.Info("backfill triggered", "remote", r.RemoteAddr)

	summary, err := s.run(r.Context())
	if err != nil {
		s.log.Error("backfill run failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, summary)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
