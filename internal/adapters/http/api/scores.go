package api

import (
	"context"
	"net/http"

	"github.com/okian/pulse/internal/domain/model"
)

// ScoreDependencies defines the interface for reading ranked results.
type ScoreDependencies interface {
	Results(ctx context.Context) ([]model.ScoreResult, error)
	Result(ctx context.Context, name string) (model.ScoreResult, error)
}

// ScoresHandler serves the ranked health scores.
type ScoresHandler struct {
	deps ScoreDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoreDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandleList handles GET /health_scores requests.
func (h *ScoresHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	results, err := h.deps.Results(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// HandleGet handles GET /health_scores/{name} requests. Names match exactly.
func (h *ScoresHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Result(r.Context(), r.PathValue("name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
