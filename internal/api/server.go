package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/samijaber1/session-relay/internal/query"
	"github.com/samijaber1/session-relay/internal/storage"
	"github.com/samijaber1/session-relay/internal/transfer"
	"go.uber.org/zap"
)

// StatusReader exposes the transfer workflow status
type StatusReader interface {
	Status() transfer.Status
}

// RankedView produces the ranked data view
type RankedView interface {
	Ranked(ctx context.Context) ([]query.Entry, error)
}

// TransferReader returns the latest recorded transfer, or nil when none exists
type TransferReader interface {
	LatestTransfer(ctx context.Context) (*storage.TransferRecord, error)
}

// Server is the HTTP API server
type Server struct {
	status    StatusReader
	view      RankedView
	transfers TransferReader
	logger    *zap.Logger
	router    *mux.Router
	server    *http.Server
}

// NewServer creates a new API server. transfers may be nil, in which case
// /v1/transfer answers 503.
func NewServer(status StatusReader, view RankedView, transfers TransferReader, addr string, logger *zap.Logger) *Server {
	s := &Server{
		status:    status,
		view:      view,
		transfers: transfers,
		logger:    logger.Named("api"),
	}

	router := mux.NewRouter()

	// Health endpoints
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	// Data endpoint
	router.HandleFunc("/data", s.handleData).Methods(http.MethodGet)

	// Transfer audit endpoint
	router.HandleFunc("/v1/transfer", s.handleTransfer).Methods(http.MethodGet)

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})

	s.router = router

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(s.logger)),
		handlers.PrintRecoveryStack(true),
	)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.loggingMiddleware(recovery(router)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting API server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: s.status.Status().String()})
}

// handleReady handles GET /readyz
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	current := s.status.Status()
	ready := current == transfer.StatusReady

	var reasons []string
	switch current {
	case transfer.StatusWaiting:
		reasons = append(reasons, "no data transferred yet")
	case transfer.StatusError:
		reasons = append(reasons, "data transfer failed")
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, ReadyResponse{
		Ready:   ready,
		Status:  current.String(),
		Reasons: reasons,
	})
}

// handleData handles GET /data
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	entries, err := s.view.Ranked(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if entries == nil {
		entries = []query.Entry{}
	}

	respondJSON(w, http.StatusOK, entries)
}

// handleTransfer handles GET /v1/transfer
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if s.transfers == nil {
		respondError(w, http.StatusServiceUnavailable, "transfer storage not configured")
		return
	}

	record, err := s.transfers.LatestTransfer(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if record == nil {
		respondError(w, http.StatusNotFound, "no transfer recorded yet")
		return
	}

	respondJSON(w, http.StatusOK, TransferResponse{
		ID:         record.ID,
		Outcome:    string(record.Outcome),
		Rows:       record.Rows,
		Error:      record.Error,
		StartedAt:  record.StartedAt,
		FinishedAt: record.FinishedAt,
		DurationMs: record.FinishedAt.Sub(record.StartedAt).Milliseconds(),
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", m.Code),
			zap.Duration("duration", m.Duration))
	})
}
