// Package service wires the extraction and scoring pipelines, the record
// store and the heart-rate stream cursors into the operations the HTTP API
// and the CLI call.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/adapters/tabular"
	"github.com/okian/pulse/internal/adapters/vitals"
	"github.com/okian/pulse/internal/domain/bplookup"
	"github.com/okian/pulse/internal/domain/cursor"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/scoring"
	"github.com/okian/pulse/internal/domain/waveform"
	"github.com/okian/pulse/internal/pipeline"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

// Service implements the API dependencies for the health scoring system.
type Service struct {
	mu sync.RWMutex
	// runMu serializes extraction and scoring batches.
	runMu sync.Mutex

	// Core components
	store     repository.Store
	source    vitals.Source
	lookup    *bplookup.Lookup
	cursors   *cursor.Registry
	engine    *scoring.Engine
	extractor *pipeline.Extractor
	scorer    *pipeline.Scorer

	// Configuration
	waveformDir        string
	rosterPath         string
	dataDir            string
	workerCount        int
	queueSize          int
	extractConcurrency int
	maxCursors         int
	params             waveform.Params
	vitalsRange        vitals.Range
	hrRange            vitals.Range
	runOnStart         bool

	// State
	started     bool
	lastExtract *pipeline.ExtractSummary
	lastScore   *pipeline.ScoreSummary

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the record store. Defaults to an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithVitalsSource sets the vitals collaborator. Defaults to the mock generator.
func WithVitalsSource(src vitals.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithEngine sets the scoring engine.
func WithEngine(e *scoring.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithWaveformDir sets the directory of per-subject PPG files.
func WithWaveformDir(dir string) Option {
	return func(s *Service) { s.waveformDir = dir }
}

// WithRosterPath sets the roster table path.
func WithRosterPath(path string) Option {
	return func(s *Service) { s.rosterPath = path }
}

// WithDataDir sets where the CSV and JSON tables are written. Empty disables file output.
func WithDataDir(dir string) Option {
	return func(s *Service) { s.dataDir = dir }
}

// WithWorkerCount sets the number of scoring workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the scoring job queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithExtractConcurrency bounds concurrent waveform files.
func WithExtractConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.extractConcurrency = n
		}
	}
}

// WithMaxCursors bounds the number of open heart-rate streams.
func WithMaxCursors(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxCursors = n
		}
	}
}

// WithPeakParams sets the peak detection parameters.
func WithPeakParams(p waveform.Params) Option {
	return func(s *Service) { s.params = p }
}

// WithVitalsRange sets the daily vitals window used for scoring.
func WithVitalsRange(start, end time.Time) Option {
	return func(s *Service) { s.vitalsRange = vitals.Range{Start: start, End: end} }
}

// WithHRRange sets the window heart-rate streams are loaded for.
func WithHRRange(start, end time.Time) Option {
	return func(s *Service) { s.hrRange = vitals.Range{Start: start, End: end} }
}

// WithRunOnStart runs extraction and scoring once during Start.
func WithRunOnStart(enabled bool) Option {
	return func(s *Service) { s.runOnStart = enabled }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		waveformDir:        "regular",
		rosterPath:         "data/pilot_data.csv",
		dataDir:            "data",
		workerCount:        runtime.NumCPU() * 2,
		queueSize:          10_000,
		extractConcurrency: runtime.NumCPU(),
		maxCursors:         1024,
		params:             waveform.DefaultParams(),
		vitalsRange: vitals.Range{
			Start: time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 2, 6, 0, 0, 0, 0, time.UTC),
		},
		hrRange: vitals.Range{
			Start: time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.engine == nil {
		s.engine = scoring.NewEngine()
	}
	return s
}

// Start initializes the pipelines and warms the BP lookup from the store.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	s.logger.Info(ctx, "starting health scoring service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	if s.source == nil {
		s.source = vitals.NewGenerator(0)
		s.logger.Info(ctx, "using mock vitals generator")
	}

	persisted, err := s.store.Estimates(ctx)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("load persisted estimates: %w", err)
	}
	s.lookup = bplookup.New(persisted)
	s.cursors = cursor.NewRegistry(cursor.WithMaxCursors(s.maxCursors))
	s.extractor = pipeline.NewExtractor(s.store, s.lookup,
		pipeline.WithParams(s.params),
		pipeline.WithConcurrency(s.extractConcurrency),
		pipeline.WithExtractOutputDir(s.dataDir),
	)
	s.scorer = pipeline.NewScorer(s.store, s.lookup, s.source,
		pipeline.WithEngine(s.engine),
		pipeline.WithWorkers(s.workerCount),
		pipeline.WithQueueSize(s.queueSize),
		pipeline.WithVitalsRange(s.vitalsRange),
		pipeline.WithScoreOutputDir(s.dataDir),
	)

	s.started = true
	metrics.UpdateWorkerCount(s.workerCount)
	s.logger.Info(ctx, "health scoring service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("persistedEstimates", len(persisted)),
	)
	runOnStart := s.runOnStart
	s.mu.Unlock()

	if !runOnStart {
		return nil
	}
	if _, err := s.RunExtraction(ctx); err != nil {
		return fmt.Errorf("initial extraction: %w", err)
	}
	if _, err := s.RunScoring(ctx); err != nil {
		return fmt.Errorf("initial scoring: %w", err)
	}
	return nil
}

// Stop closes the store and drops every open stream.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping health scoring service...")

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "closing store", logger.Error(err))
		}
	}
	s.cursors = nil
	metrics.UpdateOpenCursors(0)

	s.started = false
	s.logger.Info(context.Background(), "health scoring service stopped")
}

// RunExtraction estimates blood pressure for every waveform file and refreshes the lookup.
func (s *Service) RunExtraction(ctx context.Context) (pipeline.ExtractSummary, error) {
	extractor, _, err := s.pipelines()
	if err != nil {
		return pipeline.ExtractSummary{}, err
	}
	if !s.runMu.TryLock() {
		return pipeline.ExtractSummary{}, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	sum, err := extractor.Run(ctx, s.waveformDir)
	if err != nil {
		return sum, err
	}
	s.mu.Lock()
	s.lastExtract = &sum
	s.mu.Unlock()
	return sum, nil
}

// RunScoring scores every subject on the roster and persists the ranking.
func (s *Service) RunScoring(ctx context.Context) (pipeline.ScoreSummary, error) {
	_, scorer, err := s.pipelines()
	if err != nil {
		return pipeline.ScoreSummary{}, err
	}
	if !s.runMu.TryLock() {
		return pipeline.ScoreSummary{}, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	roster, err := readRoster(s.rosterPath)
	if err != nil {
		return pipeline.ScoreSummary{}, err
	}
	sum, _, err := scorer.Run(ctx, roster)
	if err != nil {
		return sum, err
	}
	s.mu.Lock()
	s.lastScore = &sum
	s.mu.Unlock()
	return sum, nil
}

func (s *Service) pipelines() (*pipeline.Extractor, *pipeline.Scorer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.extractor, s.scorer, nil
}

func readRoster(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	names, err := tabular.ReadRoster(f)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	return names, nil
}

// Results returns the latest ranked results, best readiness first.
func (s *Service) Results(ctx context.Context) ([]model.ScoreResult, error) {
	store, err := s.activeStore()
	if err != nil {
		return nil, err
	}
	return store.LatestResults(ctx)
}

// Result returns the latest result for one subject by exact name.
func (s *Service) Result(ctx context.Context, name string) (model.ScoreResult, error) {
	results, err := s.Results(ctx)
	if err != nil {
		return model.ScoreResult{}, err
	}
	for _, r := range results {
		if r.SubjectID == name {
			return r, nil
		}
	}
	return model.ScoreResult{}, ErrSubjectNotFound
}

// Estimates returns the persisted BP estimates.
func (s *Service) Estimates(ctx context.Context) ([]model.BPEstimate, error) {
	store, err := s.activeStore()
	if err != nil {
		return nil, err
	}
	return store.Estimates(ctx)
}

// Estimate returns one subject's BP estimate.
func (s *Service) Estimate(ctx context.Context, subjectID string) (model.BPEstimate, error) {
	store, err := s.activeStore()
	if err != nil {
		return model.BPEstimate{}, err
	}
	est, err := store.Estimate(ctx, subjectID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.BPEstimate{}, ErrSubjectNotFound
	}
	return est, err
}

func (s *Service) activeStore() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

func (s *Service) registry() (*cursor.Registry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.cursors, nil
}

// OpenHeartRateStream loads a subject's heart-rate samples and opens a cursor
// over them. It returns the session ID and the number of samples.
func (s *Service) OpenHeartRateStream(ctx context.Context, subject string) (string, int, error) {
	reg, err := s.registry()
	if err != nil {
		return "", 0, err
	}
	samples, err := s.source.HeartRateSamples(ctx, subject, s.hrRange)
	if err != nil {
		return "", 0, fmt.Errorf("load heart rate for %s: %w", subject, err)
	}
	id, c, err := reg.Open(samples)
	if err != nil {
		return "", 0, fmt.Errorf("open stream for %s: %w", subject, err)
	}
	metrics.UpdateOpenCursors(reg.Len())
	s.logger.Debug(ctx, "heart rate stream opened",
		logger.String("id", id), logger.String("subject", subject), logger.Int("samples", c.Len()))
	return id, c.Len(), nil
}

// NextHeartRate returns the stream's next sample. Past the end it keeps
// returning the last sample.
func (s *Service) NextHeartRate(id string) (model.HRSample, error) {
	c, err := s.cursor(id)
	if err != nil {
		return model.HRSample{}, err
	}
	return c.Next(), nil
}

// ResetHeartRateStream rewinds the stream to its first sample.
func (s *Service) ResetHeartRateStream(id string) error {
	c, err := s.cursor(id)
	if err != nil {
		return err
	}
	c.Reset()
	return nil
}

// CloseHeartRateStream releases the stream.
func (s *Service) CloseHeartRateStream(id string) error {
	reg, err := s.registry()
	if err != nil {
		return err
	}
	if err := reg.Close(id); err != nil {
		return err
	}
	metrics.UpdateOpenCursors(reg.Len())
	return nil
}

func (s *Service) cursor(id string) (*cursor.Cursor, error) {
	reg, err := s.registry()
	if err != nil {
		return nil, err
	}
	return reg.Get(id)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}

	if s.started {
		stats["estimates"] = s.lookup.Len()
		stats["openStreams"] = s.cursors.Len()
		if s.lastExtract != nil {
			stats["lastExtraction"] = *s.lastExtract
		}
		if s.lastScore != nil {
			stats["lastScoring"] = *s.lastScore
		}
		metrics.UpdateWorkerCount(s.workerCount)
		metrics.UpdateOpenCursors(s.cursors.Len())
	}

	return stats
}
