package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/pulse/internal/domain/model"
)

// StreamDependencies defines the interface for heart-rate stream sessions.
type StreamDependencies interface {
	OpenHeartRateStream(ctx context.Context, subject string) (string, int, error)
	NextHeartRate(id string) (model.HRSample, error)
	ResetHeartRateStream(id string) error
	CloseHeartRateStream(id string) error
}

// StreamHandler replays a subject's heart-rate samples one per request.
type StreamHandler struct {
	deps StreamDependencies
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps StreamDependencies) *StreamHandler {
	return &StreamHandler{deps: deps}
}

type openStreamRequest struct {
	Subject string `json:"subject"`
}

type openStreamResponse struct {
	ID      string `json:"id"`
	Samples int    `json:"samples"`
}

// HandleOpen handles POST /hr_streams requests.
func (h *StreamHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	var req openStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Subject) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing subject", ErrBadRequest))
		return
	}
	id, n, err := h.deps.OpenHeartRateStream(r.Context(), req.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, openStreamResponse{ID: id, Samples: n})
}

// HandleNext handles GET /hr_streams/{id}/next requests.
func (h *StreamHandler) HandleNext(w http.ResponseWriter, r *http.Request) {
	sample, err := h.deps.NextHeartRate(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

// HandleReset handles POST /hr_streams/{id}/reset requests.
func (h *StreamHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.ResetHeartRateStream(r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClose handles DELETE /hr_streams/{id} requests.
func (h *StreamHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.CloseHeartRateStream(r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
