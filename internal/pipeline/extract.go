package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/adapters/tabular"
	"github.com/okian/pulse/internal/domain/bplookup"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/waveform"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

// SkippedFile is a waveform file left out of a batch and why.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ExtractSummary describes one extraction batch.
type ExtractSummary struct {
	RunID              string        `json:"run_id"`
	Processed          int           `json:"processed"`
	Estimated          int           `json:"estimated"`
	InsufficientSignal int           `json:"insufficient_signal"`
	Skipped            int           `json:"skipped"`
	SkippedFiles       []SkippedFile `json:"skipped_files,omitempty"`
	Duration           time.Duration `json:"duration_ns"`
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithParams sets the peak detection parameters.
func WithParams(p waveform.Params) ExtractorOption {
	return func(e *Extractor) { e.params = p }
}

// WithConcurrency bounds how many files are processed at once.
func WithConcurrency(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithExtractOutputDir writes the estimate CSV and JSON tables to dir.
func WithExtractOutputDir(dir string) ExtractorOption {
	return func(e *Extractor) { e.outDir = dir }
}

// Extractor turns a directory of waveform files into the BP estimate table.
type Extractor struct {
	store       repository.Store
	lookup      *bplookup.Lookup
	params      waveform.Params
	concurrency int
	outDir      string
	log         logger.Logger
}

// NewExtractor creates an Extractor that persists to store and refreshes lookup.
func NewExtractor(store repository.Store, lookup *bplookup.Lookup, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		store:       store,
		lookup:      lookup,
		params:      waveform.DefaultParams(),
		concurrency: runtime.NumCPU(),
		log:         logger.Named("extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type fileResult struct {
	est     model.BPEstimate
	skipped string
}

// Run processes every *.csv file in dir. Malformed files are skipped and
// counted; only I/O on the directory, cancellation or persistence failures
// abort the batch.
func (e *Extractor) Run(ctx context.Context, dir string) (ExtractSummary, error) {
	start := time.Now()
	if err := e.params.Validate(); err != nil {
		return ExtractSummary{}, err
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return ExtractSummary{}, fmt.Errorf("list waveforms in %s: %w", dir, err)
	}
	if _, err := os.Stat(dir); err != nil {
		return ExtractSummary{}, fmt.Errorf("waveform dir: %w", err)
	}

	runID := uuid.NewString()
	log := e.log.With(logger.String("run_id", runID))
	log.Info(ctx, "extraction started", logger.String("dir", dir), logger.Int("files", len(files)))

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.extractFile(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ExtractSummary{}, fmt.Errorf("extraction cancelled: %w", err)
	}

	sum := ExtractSummary{RunID: runID, Processed: len(files)}
	estimates := make([]model.BPEstimate, 0, len(files))
	seen := make(map[string]int, len(files))
	for i, r := range results {
		if r.skipped != "" {
			sum.Skipped++
			sum.SkippedFiles = append(sum.SkippedFiles, SkippedFile{Path: files[i], Reason: r.skipped})
			continue
		}
		if j, dup := seen[r.est.SubjectID]; dup {
			log.Warn(ctx, "duplicate subject, later file wins",
				logger.String("subject", r.est.SubjectID), logger.String("path", files[i]))
			estimates[j] = r.est
			continue
		}
		seen[r.est.SubjectID] = len(estimates)
		estimates = append(estimates, r.est)
	}
	for _, est := range estimates {
		if est.Available {
			sum.Estimated++
		} else {
			sum.InsufficientSignal++
		}
	}

	if err := e.store.ReplaceEstimates(ctx, runID, estimates); err != nil {
		return sum, fmt.Errorf("persist estimates: %w", err)
	}
	e.lookup.Replace(estimates)
	if e.outDir != "" {
		if err := writeFile(e.outDir, EstimatesCSV, func(w io.Writer) error { return tabular.WriteEstimatesCSV(w, estimates) }); err != nil {
			return sum, err
		}
		if err := writeFile(e.outDir, EstimatesJSON, func(w io.Writer) error { return tabular.WriteEstimatesJSON(w, estimates) }); err != nil {
			return sum, err
		}
	}

	sum.Duration = time.Since(start)
	metrics.RecordBatchDuration("extract", sum.Duration.Seconds())
	log.Info(ctx, "extraction finished",
		logger.Int("estimated", sum.Estimated),
		logger.Int("insufficient_signal", sum.InsufficientSignal),
		logger.Int("skipped", sum.Skipped),
		logger.Duration("duration", sum.Duration),
	)
	return sum, nil
}

func (e *Extractor) extractFile(ctx context.Context, path string) fileResult {
	start := time.Now()
	defer func() {
		metrics.RecordExtractionLatency(float64(time.Since(start).Milliseconds()))
	}()

	subject := tabular.SubjectIDFromPath(path)
	samples, err := readWaveformFile(path)
	if err == nil {
		var est model.BPEstimate
		est, err = waveform.Extract(subject, samples, e.params)
		if err == nil {
			if est.Available {
				metrics.RecordWaveform("estimated")
			} else {
				metrics.RecordWaveform("insufficient_signal")
				e.log.Info(ctx, "insufficient signal",
					logger.String("subject", subject), logger.Int("peaks", est.Peaks))
			}
			return fileResult{est: est}
		}
	}

	metrics.RecordWaveform("skipped")
	e.log.Warn(ctx, "skipping waveform", logger.String("path", path), logger.Error(err))
	return fileResult{skipped: err.Error()}
}

func readWaveformFile(path string) ([]waveform.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tabular.ReadWaveform(f)
}
