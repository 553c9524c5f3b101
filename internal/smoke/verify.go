package smoke

import (
	"fmt"

	"github.com/okian/pulse/internal/adapters/tabular"
	"github.com/okian/pulse/internal/domain/bplookup"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/scoring"
)

// verifyRanking checks the result list is ordered by readiness and every
// row is internally consistent.
func verifyRanking(results []model.ScoreResult) error {
	for i, r := range results {
		if i > 0 && r.ReadinessScore > results[i-1].ReadinessScore {
			return fmt.Errorf("results not sorted: %s (%.2f) ranks below %s (%.2f)",
				r.SubjectID, r.ReadinessScore, results[i-1].SubjectID, results[i-1].ReadinessScore)
		}
		for name, v := range map[string]float64{
			"readiness":   r.ReadinessScore,
			"performance": r.PerformanceScore,
			"success":     r.SuccessScore,
		} {
			if v < 0 || v > 100 {
				return fmt.Errorf("%s: %s score %.2f outside [0, 100]", r.SubjectID, name, v)
			}
		}
		if scoring.HypertensiveCrisis(r.SBP, r.DBP) && r.SuccessScore != 0 {
			return fmt.Errorf("%s: success %.2f despite %.0f/%.0f", r.SubjectID, r.SuccessScore, r.SBP, r.DBP)
		}
		if r.BPSource.IsDefault() && (r.SBP != bplookup.DefaultSystolic || r.DBP != bplookup.DefaultDiastolic) {
			return fmt.Errorf("%s: default BP source with %.1f/%.1f", r.SubjectID, r.SBP, r.DBP)
		}
	}
	return nil
}

// verifyEstimates checks that results scored with an estimated BP carry the
// extractor's reading and that no unavailable estimate reports one.
func verifyEstimates(results []model.ScoreResult, estimates []tabular.EstimateRow) error {
	byName := make(map[string]tabular.EstimateRow, len(estimates))
	for _, e := range estimates {
		if e.Status == string(model.StatusInsufficientSignal) && e.Systolic != nil {
			return fmt.Errorf("%s: insufficient signal but SBP %.1f", e.Name, *e.Systolic)
		}
		byName[e.Name] = e
	}
	for _, r := range results {
		if r.BPSource != model.BPSourceEstimated {
			continue
		}
		e, ok := byName[r.SubjectID]
		if !ok || e.Systolic == nil || e.Diastolic == nil {
			return fmt.Errorf("%s: scored with an estimate that is not served", r.SubjectID)
		}
		if r.SBP != *e.Systolic || r.DBP != *e.Diastolic {
			return fmt.Errorf("%s: result BP %.2f/%.2f differs from estimate %.2f/%.2f",
				r.SubjectID, r.SBP, r.DBP, *e.Systolic, *e.Diastolic)
		}
	}
	return nil
}

// verifyReplay checks a stream read one past its end: timestamps increase
// and the extra read repeats the last sample.
func verifyReplay(samples []model.HRSample) error {
	if len(samples) < 2 {
		return fmt.Errorf("replay too short: %d samples", len(samples))
	}
	last := len(samples) - 1
	for i := 1; i < last; i++ {
		if !samples[i].Timestamp.After(samples[i-1].Timestamp) {
			return fmt.Errorf("sample %d at %s is not after %s", i, samples[i].Timestamp, samples[i-1].Timestamp)
		}
	}
	if !samples[last].Timestamp.Equal(samples[last-1].Timestamp) || samples[last].BPM != samples[last-1].BPM {
		return fmt.Errorf("read past the end did not repeat the last sample")
	}
	return nil
}
