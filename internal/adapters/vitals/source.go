// Package vitals fetches the wearable vitals used for scoring, either from the
// vendor HTTP API or from a deterministic generator.
package vitals

import (
	"context"
	"time"

	"github.com/okian/pulse/internal/domain/model"
)

// Vital names as they appear in gaps and on the wire.
const (
	VitalHeartRate       = "heart_rate"
	VitalHRV             = "hrv"
	VitalSleepScore      = "sleep_score"
	VitalBaselineHR      = "baseline_hr"
	VitalActivityMinutes = "activity_minutes"
	VitalImmunityIndex   = "immunity_index"
	VitalTrainingStress  = "training_stress"
	VitalSpO2            = "spo2"
)

// Range is a half-open time window [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether End is after Start.
func (r Range) Valid() bool { return r.End.After(r.Start) }

// Source is the vitals collaborator.
type Source interface {
	// Fetch returns every vital for subject over r in one call. Vitals the
	// source had no value for are listed in VitalsBundle.Gaps.
	Fetch(ctx context.Context, subject string, r Range) (model.VitalsBundle, error)
	// HeartRateSamples returns the raw heart-rate stream for subject over r.
	HeartRateSamples(ctx context.Context, subject string, r Range) ([]model.HRSample, error)
}
