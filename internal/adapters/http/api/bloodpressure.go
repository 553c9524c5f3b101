package api

import (
	"context"
	"net/http"

	"github.com/okian/pulse/internal/adapters/tabular"
	"github.com/okian/pulse/internal/domain/model"
)

// BloodPressureDependencies defines the interface for reading BP estimates.
type BloodPressureDependencies interface {
	Estimates(ctx context.Context) ([]model.BPEstimate, error)
	Estimate(ctx context.Context, subjectID string) (model.BPEstimate, error)
}

// BloodPressureHandler serves the extracted estimates. Unavailable readings
// are rendered as null, never as zero.
type BloodPressureHandler struct {
	deps BloodPressureDependencies
}

// NewBloodPressureHandler creates a new blood pressure handler.
func NewBloodPressureHandler(deps BloodPressureDependencies) *BloodPressureHandler {
	return &BloodPressureHandler{deps: deps}
}

// HandleList handles GET /blood_pressure requests.
func (h *BloodPressureHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	estimates, err := h.deps.Estimates(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tabular.EstimateRows(estimates))
}

// HandleGet handles GET /blood_pressure/{id} requests.
func (h *BloodPressureHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	est, err := h.deps.Estimate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tabular.NewEstimateRow(est))
}
