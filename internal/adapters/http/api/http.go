// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/pulse/internal/adapters/vitals"
	service "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/domain/cursor"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ScoreDependencies
	BloodPressureDependencies
	RunDependencies
	StreamDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	scoresHandler *ScoresHandler
	bpHandler     *BloodPressureHandler
	runsHandler   *RunsHandler
	streamHandler *StreamHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		scoresHandler: NewScoresHandler(deps),
		bpHandler:     NewBloodPressureHandler(deps),
		runsHandler:   NewRunsHandler(deps),
		streamHandler: NewStreamHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /health_scores", MetricsMiddleware(s.scoresHandler.HandleList, "health_scores"))
	mux.HandleFunc("GET /health_scores/{name}", MetricsMiddleware(s.scoresHandler.HandleGet, "health_score"))

	mux.HandleFunc("GET /blood_pressure", MetricsMiddleware(s.bpHandler.HandleList, "blood_pressure"))
	mux.HandleFunc("GET /blood_pressure/{id}", MetricsMiddleware(s.bpHandler.HandleGet, "blood_pressure_subject"))

	mux.HandleFunc("POST /runs/extract", MetricsMiddleware(s.runsHandler.HandleExtract, "runs_extract"))
	mux.HandleFunc("POST /runs/score", MetricsMiddleware(s.runsHandler.HandleScore, "runs_score"))

	mux.HandleFunc("POST /hr_streams", MetricsMiddleware(s.streamHandler.HandleOpen, "hr_streams_open"))
	mux.HandleFunc("GET /hr_streams/{id}/next", MetricsMiddleware(s.streamHandler.HandleNext, "hr_streams_next"))
	mux.HandleFunc("POST /hr_streams/{id}/reset", MetricsMiddleware(s.streamHandler.HandleReset, "hr_streams_reset"))
	mux.HandleFunc("DELETE /hr_streams/{id}", MetricsMiddleware(s.streamHandler.HandleClose, "hr_streams_close"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates service errors into status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSubjectNotFound),
		errors.Is(err, cursor.ErrCursorNotFound),
		errors.Is(err, cursor.ErrNoSamples),
		errors.Is(err, vitals.ErrNoData):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrRunInProgress):
		writeError(w, http.StatusConflict, "run_in_progress", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
