package api

import (
	"context"
	"net/http"

	"github.com/okian/pulse/internal/pipeline"
)

// RunDependencies defines the interface for triggering batches.
type RunDependencies interface {
	RunExtraction(ctx context.Context) (pipeline.ExtractSummary, error)
	RunScoring(ctx context.Context) (pipeline.ScoreSummary, error)
}

// RunsHandler triggers extraction and scoring batches synchronously.
type RunsHandler struct {
	deps RunDependencies
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps RunDependencies) *RunsHandler {
	return &RunsHandler{deps: deps}
}

// HandleExtract handles POST /runs/extract requests.
func (h *RunsHandler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	sum, err := h.deps.RunExtraction(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleScore handles POST /runs/score requests.
func (h *RunsHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	sum, err := h.deps.RunScoring(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
