package smoke

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/pulse/internal/adapters/tabular"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/logger"
)

// Run executes the complete smoke test against cfg.BaseURL.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	start := time.Now()
	log := logger.Named("smoke")
	c := newClient(cfg.BaseURL, cfg.Timeout)
	var stats Stats

	log.Info(ctx, "starting smoke run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Bool("triggerRuns", cfg.TriggerRuns),
		logger.Int("streams", cfg.Streams))

	// Step 1: the server answers
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: optionally run both batches
	if cfg.TriggerRuns {
		if err := c.do(ctx, http.MethodPost, "/runs/extract", nil, nil, http.StatusOK); err != nil {
			return stats, err
		}
		if err := c.do(ctx, http.MethodPost, "/runs/score", nil, nil, http.StatusOK); err != nil {
			return stats, err
		}
	}

	// Step 3: read and verify what the server serves
	var results []model.ScoreResult
	if err := c.do(ctx, http.MethodGet, "/health_scores", nil, &results, http.StatusOK); err != nil {
		return stats, err
	}
	var estimates []tabular.EstimateRow
	if err := c.do(ctx, http.MethodGet, "/blood_pressure", nil, &estimates, http.StatusOK); err != nil {
		return stats, err
	}
	stats.Results, stats.Estimates = len(results), len(estimates)
	for _, r := range results {
		if r.BPSource.IsDefault() {
			stats.DefaultBP++
		}
		if r.SuccessOverride {
			stats.Overrides++
		}
	}
	if err := verifyRanking(results); err != nil {
		return stats, fmt.Errorf("ranking: %w", err)
	}
	if err := verifyEstimates(results, estimates); err != nil {
		return stats, fmt.Errorf("estimates: %w", err)
	}
	for _, r := range results {
		var one model.ScoreResult
		if err := c.do(ctx, http.MethodGet, "/health_scores/"+url.PathEscape(r.SubjectID), nil, &one, http.StatusOK); err != nil {
			return stats, err
		}
		if one != r {
			return stats, fmt.Errorf("%s: single lookup differs from ranked row", r.SubjectID)
		}
	}

	// Step 4: replay heart-rate streams concurrently
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for _, r := range results[:min(cfg.Streams, len(results))] {
		g.Go(func() error {
			n, err := replay(gctx, c, r.SubjectID)
			if err != nil {
				return fmt.Errorf("stream %s: %w", r.SubjectID, err)
			}
			mu.Lock()
			stats.StreamsReplayed++
			stats.SamplesRead += n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	log.Info(ctx, "smoke run passed",
		logger.Int("results", stats.Results),
		logger.Int("estimates", stats.Estimates),
		logger.Int("defaultBP", stats.DefaultBP),
		logger.Int("overrides", stats.Overrides),
		logger.Int("streamsReplayed", stats.StreamsReplayed),
		logger.Int("samplesRead", stats.SamplesRead),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}

// replay opens a stream, reads it one past the end, verifies it and closes it.
func replay(ctx context.Context, c *client, subject string) (int, error) {
	var opened struct {
		ID      string `json:"id"`
		Samples int    `json:"samples"`
	}
	if err := c.do(ctx, http.MethodPost, "/hr_streams", map[string]string{"subject": subject}, &opened, http.StatusCreated); err != nil {
		return 0, err
	}
	defer func() {
		_ = c.do(context.WithoutCancel(ctx), http.MethodDelete, "/hr_streams/"+opened.ID, nil, nil, http.StatusNoContent)
	}()

	samples := make([]model.HRSample, opened.Samples+1)
	for i := range samples {
		if err := c.do(ctx, http.MethodGet, "/hr_streams/"+opened.ID+"/next", nil, &samples[i], http.StatusOK); err != nil {
			return i, err
		}
	}
	return len(samples), verifyReplay(samples)
}
