package service

import (
	"context"
	"fmt"

	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/adapters/vitals"
	"github.com/okian/pulse/internal/config"
	"github.com/okian/pulse/internal/domain/waveform"
	"github.com/okian/pulse/internal/resilience"
	"github.com/okian/pulse/pkg/logger"
)

// NewFromConfig builds a Service from cfg. A non-empty DBPath selects the
// SQLite store and a non-empty VitalsBaseURL selects the HTTP vitals client;
// otherwise the in-memory store and the mock generator are used. Extra opts
// are applied last.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	vitalsFrom, vitalsTo, err := cfg.VitalsRange()
	if err != nil {
		return nil, fmt.Errorf("vitals range: %w", err)
	}
	hrFrom, hrTo, err := cfg.HRRange()
	if err != nil {
		return nil, fmt.Errorf("hr range: %w", err)
	}

	var store repository.Store = repository.NewMemoryStore()
	if cfg.DBPath != "" {
		store, err = repository.NewSQLite(ctx, cfg.DBPath)
		if err != nil {
			return nil, err
		}
	}

	source, err := newVitalsSource(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	base := []Option{
		WithStore(store),
		WithVitalsSource(source),
		WithWaveformDir(cfg.WaveformDir),
		WithRosterPath(cfg.RosterPath),
		WithDataDir(cfg.DataDir),
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithExtractConcurrency(cfg.ExtractConcurrency),
		WithPeakParams(waveform.Params{
			SamplingDivisor: cfg.SamplingDivisor,
			MinPeakDistance: cfg.MinPeakDistance,
		}),
		WithVitalsRange(vitalsFrom, vitalsTo),
		WithHRRange(hrFrom, hrTo),
		WithRunOnStart(cfg.RunOnStart),
	}
	return New(append(base, opts...)...), nil
}

func newVitalsSource(ctx context.Context, cfg *config.Config) (vitals.Source, error) {
	if cfg.VitalsBaseURL == "" {
		logger.Named("service").Info(ctx, "no vitals_base_url; using mock vitals generator")
		return vitals.NewGenerator(0), nil
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.VitalsMaxAttempts
	retry.InitialBackoff = cfg.VitalsInitialBackoff
	retry.OnRetry = resilience.RetryLogger(ctx, "vitals", "fetch")

	client, err := vitals.NewClient(cfg.VitalsBaseURL,
		vitals.WithAPIKey(cfg.VitalsAPIKey),
		vitals.WithTimeout(cfg.VitalsTimeout),
		vitals.WithRetry(retry),
		vitals.WithRateLimit(cfg.VitalsRateLimit, cfg.VitalsBurst),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}
