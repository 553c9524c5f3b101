// Package model contains domain models passed between layers.
package model

import "time"

// EstimateStatus records how a blood pressure estimate came about.
type EstimateStatus string

const (
	// StatusEstimated means at least two peaks were detected and the linear model ran.
	StatusEstimated EstimateStatus = "estimated"
	// StatusInsufficientSignal means fewer than two peaks were detected; no reading exists.
	StatusInsufficientSignal EstimateStatus = "insufficient_signal"
)

// BPEstimate is the extractor's per-subject output. When Available is false
// HeartRate, Systolic and Diastolic carry no meaning and must not be read as a reading.
type BPEstimate struct {
	SubjectID string
	HeartRate float64
	Systolic  float64
	Diastolic float64
	Peaks     int
	Available bool
	Status    EstimateStatus
}

// BPSource says where the blood pressure used for scoring came from.
type BPSource string

const (
	BPSourceEstimated                 BPSource = "estimated"
	BPSourceDefaultMissing            BPSource = "default_missing"
	BPSourceDefaultInsufficientSignal BPSource = "default_insufficient_signal"
)

// IsDefault reports whether the population default was substituted.
// Unknown sources are not defaults.
func (s BPSource) IsDefault() bool {
	return s == BPSourceDefaultMissing || s == BPSourceDefaultInsufficientSignal
}

// VitalsBundle is the composite set of vitals for one subject and range.
// Gaps lists vitals the collaborator had no value for; their fields are zero.
type VitalsBundle struct {
	HeartRate       float64
	HRV             float64
	SleepScore      float64
	BaselineHR      float64
	ActivityMinutes float64
	ImmunityIndex   float64
	TrainingStress  float64
	SpO2            float64
	Gaps            []string
}

// Complete reports whether every vital was supplied.
func (v VitalsBundle) Complete() bool {
	return len(v.Gaps) == 0
}

// HRSample is one timestamped heart-rate reading from the stream.
type HRSample struct {
	Timestamp time.Time `json:"timestamp"`
	BPM       float64   `json:"bpm"`
}

// ScoreResult is one subject's scored row. Scores are rounded to two decimals.
type ScoreResult struct {
	SubjectID        string   `json:"name" csv:"name"`
	SBP              float64  `json:"SBP" csv:"SBP"`
	DBP              float64  `json:"DBP" csv:"DBP"`
	BPSource         BPSource `json:"bp_source" csv:"bp_source"`
	SpO2             float64  `json:"SpO2" csv:"SpO2"`
	HR               float64  `json:"HR" csv:"HR"`
	HRV              float64  `json:"HRV" csv:"HRV"`
	SleepScore       float64  `json:"Sleep Score" csv:"Sleep Score"`
	BaselineHR       float64  `json:"Baseline HR" csv:"Baseline HR"`
	Activity         float64  `json:"Activity" csv:"Activity"`
	Immunity         float64  `json:"Immunity" csv:"Immunity"`
	TrainingStress   float64  `json:"Training Stress" csv:"Training Stress"`
	ReadinessScore   float64  `json:"Readiness Score" csv:"Readiness Score"`
	PerformanceScore float64  `json:"Performance Score" csv:"Performance Score"`
	SuccessScore     float64  `json:"Success Score" csv:"Success Score"`
	SuccessOverride  bool     `json:"success_override" csv:"success_override"`
}

// Job is a unit of scoring work. Ordinal is the subject's roster position and
// breaks ties in the final ranking.
type Job struct {
	RunID     string
	Ordinal   int
	SubjectID string
}

// Outcome is a worker's answer for one job: a result or the reason there is none.
type Outcome struct {
	Job    Job
	Result ScoreResult
	Err    error
}
