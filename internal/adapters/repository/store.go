// Package repository persists BP estimates and ranked score results.
package repository

import (
	"context"

	"github.com/okian/pulse/internal/domain/model"
)

// Store is the persistence boundary for both batch pipelines.
type Store interface {
	// ReplaceEstimates atomically swaps the whole estimate table for estimates.
	ReplaceEstimates(ctx context.Context, runID string, estimates []model.BPEstimate) error
	// Estimates returns the current estimate table in the order it was written.
	Estimates(ctx context.Context) ([]model.BPEstimate, error)
	// Estimate returns one subject's estimate or ErrNotFound.
	Estimate(ctx context.Context, subjectID string) (model.BPEstimate, error)

	// SaveResults records a ranked scoring run. Results keep their order.
	SaveResults(ctx context.Context, runID string, results []model.ScoreResult) error
	// LatestResults returns the most recently saved run, or an empty slice.
	LatestResults(ctx context.Context) ([]model.ScoreResult, error)

	Close() error
}
