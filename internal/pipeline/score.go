package pipeline

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pulse/internal/adapters/mq/queue"
	"github.com/okian/pulse/internal/adapters/mq/worker"
	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/adapters/tabular"
	"github.com/okian/pulse/internal/adapters/vitals"
	"github.com/okian/pulse/internal/domain/bplookup"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/scoring"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

// Failure is a subject left out of a scoring batch.
type Failure struct {
	Subject string `json:"subject"`
	Reason  string `json:"reason"`
}

// ScoreSummary describes one scoring batch.
type ScoreSummary struct {
	RunID     string        `json:"run_id"`
	Subjects  int           `json:"subjects"`
	Scored    int           `json:"scored"`
	Failed    int           `json:"failed"`
	Failures  []Failure     `json:"failures,omitempty"`
	DefaultBP int           `json:"default_bp"`
	Overrides int           `json:"success_overrides"`
	Duration  time.Duration `json:"duration_ns"`
}

// ScorerOption configures a Scorer.
type ScorerOption func(*Scorer)

// WithEngine replaces the scoring engine.
func WithEngine(e *scoring.Engine) ScorerOption {
	return func(s *Scorer) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) ScorerOption {
	return func(s *Scorer) { s.workers = n }
}

// WithQueueSize sets the job queue capacity.
func WithQueueSize(n int) ScorerOption {
	return func(s *Scorer) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithVitalsRange sets the window vitals are fetched for.
func WithVitalsRange(r vitals.Range) ScorerOption {
	return func(s *Scorer) { s.window = r }
}

// WithScoreOutputDir writes the ranked CSV and JSON tables to dir.
func WithScoreOutputDir(dir string) ScorerOption {
	return func(s *Scorer) { s.outDir = dir }
}

// Scorer scores a roster and persists the ranked results.
type Scorer struct {
	store     repository.Store
	lookup    *bplookup.Lookup
	source    vitals.Source
	engine    *scoring.Engine
	workers   int
	queueSize int
	window    vitals.Range
	outDir    string
	log       logger.Logger
}

// NewScorer creates a Scorer.
func NewScorer(store repository.Store, lookup *bplookup.Lookup, source vitals.Source, opts ...ScorerOption) *Scorer {
	s := &Scorer{
		store:     store,
		lookup:    lookup,
		source:    source,
		engine:    scoring.NewEngine(),
		queueSize: 1024,
		log:       logger.Named("scorer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process scores one subject. It is the worker pool's Processor.
func (s *Scorer) Process(ctx context.Context, job model.Job) (model.ScoreResult, error) {
	bp := s.lookup.Resolve(job.SubjectID)
	metrics.RecordBPResolution(string(bp.Source))

	bundle, err := s.source.Fetch(ctx, job.SubjectID, s.window)
	if err != nil {
		return model.ScoreResult{}, err
	}
	if !bundle.Complete() {
		return model.ScoreResult{}, fmt.Errorf("%w: missing %s", vitals.ErrIncomplete, strings.Join(bundle.Gaps, ", "))
	}
	return s.Assemble(job.SubjectID, bp, bundle), nil
}

// Assemble computes the composites for one subject and builds its result row.
func (s *Scorer) Assemble(subject string, bp bplookup.Resolution, v model.VitalsBundle) model.ScoreResult {
	scores := s.engine.Compute(scoring.Inputs{
		Systolic:       bp.Systolic,
		Diastolic:      bp.Diastolic,
		SpO2:           v.SpO2,
		HeartRate:      v.HeartRate,
		HRV:            v.HRV,
		SleepScore:     v.SleepScore,
		Activity:       v.ActivityMinutes,
		Immunity:       v.ImmunityIndex,
		TrainingStress: v.TrainingStress,
	}).Rounded()
	if scores.Override {
		metrics.RecordSuccessOverride()
	}

	return model.ScoreResult{
		SubjectID:        subject,
		SBP:              bp.Systolic,
		DBP:              bp.Diastolic,
		BPSource:         bp.Source,
		SpO2:             v.SpO2,
		HR:               v.HeartRate,
		HRV:              v.HRV,
		SleepScore:       v.SleepScore,
		BaselineHR:       v.BaselineHR,
		Activity:         v.ActivityMinutes,
		Immunity:         v.ImmunityIndex,
		TrainingStress:   v.TrainingStress,
		ReadinessScore:   scores.Readiness,
		PerformanceScore: scores.Performance,
		SuccessScore:     scores.Success,
		SuccessOverride:  scores.Override,
	}
}

type outcomeSink struct {
	mu       sync.Mutex
	outcomes []model.Outcome
}

func (c *outcomeSink) Collect(o model.Outcome) {
	c.mu.Lock()
	c.outcomes = append(c.outcomes, o)
	c.mu.Unlock()
}

// Run scores every subject in roster, ranks by readiness and persists the
// result. A subject whose vitals cannot be fetched is excluded and reported
// in the summary; the batch carries on.
func (s *Scorer) Run(ctx context.Context, roster []string) (ScoreSummary, []model.ScoreResult, error) {
	start := time.Now()
	if !s.window.Valid() {
		return ScoreSummary{}, nil, vitals.ErrInvalidRange
	}

	runID := uuid.NewString()
	log := s.log.With(logger.String("run_id", runID))
	log.Info(ctx, "scoring started", logger.Int("subjects", len(roster)))

	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	sink := &outcomeSink{outcomes: make([]model.Outcome, 0, len(roster))}
	pool := worker.NewPool(s.workers, q, s, sink)
	pool.Start(ctx)

	var enqueueErr error
	for i, subject := range roster {
		if err := q.Enqueue(ctx, model.Job{RunID: runID, Ordinal: i, SubjectID: subject}); err != nil {
			enqueueErr = err
			break
		}
	}
	if err := pool.Shutdown(ctx); err != nil && enqueueErr == nil {
		enqueueErr = err
	}
	if enqueueErr != nil {
		return ScoreSummary{}, nil, fmt.Errorf("scoring run %s: %w", runID, enqueueErr)
	}
	if err := ctx.Err(); err != nil {
		return ScoreSummary{}, nil, fmt.Errorf("scoring run %s: %w", runID, err)
	}

	// Restore roster order so the stable rank breaks ties by it.
	outcomes := sink.outcomes
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Job.Ordinal < outcomes[j].Job.Ordinal })

	sum := ScoreSummary{RunID: runID, Subjects: len(roster)}
	results := make([]model.ScoreResult, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			sum.Failed++
			sum.Failures = append(sum.Failures, Failure{Subject: o.Job.SubjectID, Reason: o.Err.Error()})
			continue
		}
		if o.Result.BPSource.IsDefault() {
			sum.DefaultBP++
		}
		if o.Result.SuccessOverride {
			sum.Overrides++
		}
		results = append(results, o.Result)
	}
	sum.Scored = len(results)
	scoring.Rank(results)

	if err := s.store.SaveResults(ctx, runID, results); err != nil {
		return sum, nil, fmt.Errorf("persist results: %w", err)
	}
	if s.outDir != "" {
		if err := writeFile(s.outDir, ResultsJSON, func(w io.Writer) error { return tabular.WriteResultsJSON(w, results) }); err != nil {
			return sum, nil, err
		}
		if err := writeFile(s.outDir, ResultsCSV, func(w io.Writer) error { return tabular.WriteResultsCSV(w, results) }); err != nil {
			return sum, nil, err
		}
	}

	sum.Duration = time.Since(start)
	metrics.RecordBatchDuration("score", sum.Duration.Seconds())
	log.Info(ctx, "scoring finished",
		logger.Int("scored", sum.Scored),
		logger.Int("failed", sum.Failed),
		logger.Int("default_bp", sum.DefaultBP),
		logger.Duration("duration", sum.Duration),
	)
	return sum, results, nil
}
