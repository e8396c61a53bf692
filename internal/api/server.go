package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"circularscan/internal/domain"
	"circularscan/internal/ports"
	"circularscan/internal/usecase"
)

// Server exposes the trigger/status endpoints external consumers (the
// dashboard, operator tooling) call. Rendering and auth live elsewhere.
type Server struct {
	pipeline *usecase.Pipeline
	ledger   ports.JobLedger
	logger   *slog.Logger
	http     *http.Server
}

// NewServer builds the HTTP surface on the stdlib mux.
func NewServer(addr string, pipeline *usecase.Pipeline, ledger ports.JobLedger, logger *slog.Logger) *Server {
	s := &Server{
		pipeline: pipeline,
		ledger:   ledger,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/scan", s.handleScan)
	mux.HandleFunc("GET /api/jobs", s.handleJobs)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline is not configured")
		return
	}

	summary, err := s.pipeline.Run(r.Context())
	if err != nil {
		s.error("scan run failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		writeJSON(w, http.StatusOK, []domain.QueueJobRecord{})
		return
	}

	records, err := s.ledger.ListQueueJobs(r.Context(), 100)
	if err != nil {
		s.error("list jobs failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []domain.QueueJobRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) error(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}
}
