package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/metrics"
)

// MemoryStore is a Store kept entirely in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	estimates []model.BPEstimate
	index     map[string]int
	results   []model.ScoreResult
	closed    bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: map[string]int{}}
}

func (s *MemoryStore) ReplaceEstimates(_ context.Context, _ string, estimates []model.BPEstimate) error {
	index := make(map[string]int, len(estimates))
	for i, e := range estimates {
		index[e.SubjectID] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.estimates = slices.Clone(estimates)
	s.index = index
	metrics.UpdateEstimatesStored(len(estimates))
	return nil
}

func (s *MemoryStore) Estimates(_ context.Context) ([]model.BPEstimate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return slices.Clone(s.estimates), nil
}

func (s *MemoryStore) Estimate(_ context.Context, subjectID string) (model.BPEstimate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.BPEstimate{}, ErrClosed
	}
	i, ok := s.index[subjectID]
	if !ok {
		return model.BPEstimate{}, ErrNotFound
	}
	return s.estimates[i], nil
}

func (s *MemoryStore) SaveResults(_ context.Context, _ string, results []model.ScoreResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.results = slices.Clone(results)
	metrics.UpdateResultsRanked(len(results))
	return nil
}

func (s *MemoryStore) LatestResults(_ context.Context) ([]model.ScoreResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.results == nil {
		return []model.ScoreResult{}, nil
	}
	return slices.Clone(s.results), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
