// Package scoring combines normalized vitals into the Readiness, Performance
// and Success composite scores.
package scoring

import (
	"math"
	"sort"

	"github.com/okian/pulse/internal/domain/model"
)

// Hypertensive crisis thresholds in mmHg. Exceeding either forces Success to 0.
const (
	CrisisSystolic  = 200.0
	CrisisDiastolic = 120.0

	weightSumTolerance = 1e-9
)

// ReadinessWeights weighs sleep, recovery and load terms.
type ReadinessWeights struct {
	Sleep, HRV, BP, HR, SpO2, Activity, Immunity, TrainingStress float64
}

// Sum returns the total weight.
func (w ReadinessWeights) Sum() float64 {
	return w.Sleep + w.HRV + w.BP + w.HR + w.SpO2 + w.Activity + w.Immunity + w.TrainingStress
}

// PerformanceWeights weighs cardiovascular terms.
type PerformanceWeights struct {
	HR, HRV, BP, SpO2 float64
}

// Sum returns the total weight.
func (w PerformanceWeights) Sum() float64 { return w.HR + w.HRV + w.BP + w.SpO2 }

// SuccessWeights weighs the terms of the Success score.
type SuccessWeights struct {
	HRV, HR, BP float64
}

// Sum returns the total weight.
func (w SuccessWeights) Sum() float64 { return w.HRV + w.HR + w.BP }

// Default weight tables.
var (
	DefaultReadinessWeights = ReadinessWeights{
		Sleep: 0.30, HRV: 0.25, BP: 0.20, HR: 0.10, SpO2: 0.05,
		Activity: 0.05, Immunity: 0.025, TrainingStress: 0.025,
	}
	DefaultPerformanceWeights = PerformanceWeights{HR: 0.35, HRV: 0.30, BP: 0.20, SpO2: 0.15}
	DefaultSuccessWeights     = SuccessWeights{HRV: 0.40, HR: 0.30, BP: 0.30}
)

// Inputs are the raw vitals for one subject.
type Inputs struct {
	Systolic       float64
	Diastolic      float64
	SpO2           float64
	HeartRate      float64
	HRV            float64
	SleepScore     float64
	Activity       float64
	Immunity       float64
	TrainingStress float64
}

// SubScores are the normalized terms, each in [0, 100].
type SubScores struct {
	BP, SpO2, HR, HRV, Sleep, Activity, Immunity, TrainingStress float64
}

// Scores are unrounded composite scores.
type Scores struct {
	Readiness   float64
	Performance float64
	Success     float64
	// Override is set when the hypertensive crisis rule zeroed Success.
	Override bool
	Sub      SubScores
}

// Rounded returns the scores rounded to two decimals for output.
func (s Scores) Rounded() Scores {
	s.Readiness = Round2(s.Readiness)
	s.Performance = Round2(s.Performance)
	s.Success = Round2(s.Success)
	return s
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithReadinessWeights replaces the readiness table when it sums to 1.
func WithReadinessWeights(w ReadinessWeights) Option {
	return func(e *Engine) {
		if sumsToOne(w.Sum()) {
			e.readiness = w
		}
	}
}

// WithPerformanceWeights replaces the performance table when it sums to 1.
func WithPerformanceWeights(w PerformanceWeights) Option {
	return func(e *Engine) {
		if sumsToOne(w.Sum()) {
			e.performance = w
		}
	}
}

// WithSuccessWeights replaces the success table when it sums to 1.
func WithSuccessWeights(w SuccessWeights) Option {
	return func(e *Engine) {
		if sumsToOne(w.Sum()) {
			e.success = w
		}
	}
}

// Engine computes composite scores from a fixed set of weight tables.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	readiness   ReadinessWeights
	performance PerformanceWeights
	success     SuccessWeights
}

// NewEngine creates an Engine with the default weight tables.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		readiness:   DefaultReadinessWeights,
		performance: DefaultPerformanceWeights,
		success:     DefaultSuccessWeights,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Normalize maps raw inputs to sub-scores. Activity, immunity and training
// stress are clamped to [0, 100] before they are weighted.
func Normalize(in Inputs) SubScores {
	return SubScores{
		BP:             BPScore(in.Systolic, in.Diastolic),
		SpO2:           SpO2Score(in.SpO2),
		HR:             HRScore(in.HeartRate),
		HRV:            HRVScore(in.HRV),
		Sleep:          SleepScore(in.SleepScore),
		Activity:       ClampScore(in.Activity),
		Immunity:       ClampScore(in.Immunity),
		TrainingStress: ClampScore(in.TrainingStress),
	}
}

// Compute returns unrounded composite scores. Success is exactly 0 when
// systolic > 200 or diastolic > 120, regardless of the weighted sum.
func (e *Engine) Compute(in Inputs) Scores {
	sub := Normalize(in)
	r, p, s := e.readiness, e.performance, e.success

	out := Scores{
		Readiness: r.Sleep*sub.Sleep + r.HRV*sub.HRV + r.BP*sub.BP + r.HR*sub.HR +
			r.SpO2*sub.SpO2 + r.Activity*sub.Activity + r.Immunity*sub.Immunity +
			r.TrainingStress*sub.TrainingStress,
		Performance: p.HR*sub.HR + p.HRV*sub.HRV + p.BP*sub.BP + p.SpO2*sub.SpO2,
		Success:     s.HRV*sub.HRV + s.HR*sub.HR + s.BP*sub.BP,
		Sub:         sub,
	}
	if HypertensiveCrisis(in.Systolic, in.Diastolic) {
		out.Success = 0
		out.Override = true
	}
	return out
}

// HypertensiveCrisis reports whether the raw pressure exceeds the crisis thresholds.
func HypertensiveCrisis(systolic, diastolic float64) bool {
	return systolic > CrisisSystolic || diastolic > CrisisDiastolic
}

// Rank orders results by readiness descending. Equal scores keep their input order.
func Rank(results []model.ScoreResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ReadinessScore > results[j].ReadinessScore
	})
}

func sumsToOne(sum float64) bool {
	return math.Abs(sum-1) <= weightSumTolerance
}
