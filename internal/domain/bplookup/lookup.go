// Package bplookup resolves a subject's blood pressure for scoring.
package bplookup

import (
	"sync/atomic"

	"github.com/okian/pulse/internal/domain/model"
)

// Population defaults used when no usable estimate exists, in mmHg.
const (
	DefaultSystolic  = 120.0
	DefaultDiastolic = 80.0
)

// Resolution is the pressure used for one subject and where it came from.
type Resolution struct {
	Systolic  float64
	Diastolic float64
	Source    model.BPSource
}

// Lookup is a read-mostly index of BP estimates keyed by subject.
// Replace swaps in a new snapshot atomically, so concurrent readers
// always see either the previous or the next full set, never a mix.
type Lookup struct {
	snap atomic.Pointer[map[string]model.BPEstimate]
}

// New creates a Lookup seeded with estimates.
func New(estimates []model.BPEstimate) *Lookup {
	l := &Lookup{}
	l.Replace(estimates)
	return l
}

// Replace installs a new snapshot built from estimates.
// A later estimate for the same subject wins.
func (l *Lookup) Replace(estimates []model.BPEstimate) {
	m := make(map[string]model.BPEstimate, len(estimates))
	for _, e := range estimates {
		m[e.SubjectID] = e
	}
	l.snap.Store(&m)
}

// Resolve returns the subject's estimate, or 120/80 flagged with the reason
// the default was substituted.
func (l *Lookup) Resolve(subjectID string) Resolution {
	est, ok := l.Get(subjectID)
	switch {
	case !ok:
		return Resolution{Systolic: DefaultSystolic, Diastolic: DefaultDiastolic, Source: model.BPSourceDefaultMissing}
	case !est.Available:
		return Resolution{Systolic: DefaultSystolic, Diastolic: DefaultDiastolic, Source: model.BPSourceDefaultInsufficientSignal}
	default:
		return Resolution{Systolic: est.Systolic, Diastolic: est.Diastolic, Source: model.BPSourceEstimated}
	}
}

// Get returns the raw estimate for subjectID.
func (l *Lookup) Get(subjectID string) (model.BPEstimate, bool) {
	m := l.snap.Load()
	if m == nil {
		return model.BPEstimate{}, false
	}
	est, ok := (*m)[subjectID]
	return est, ok
}

// Len returns the number of subjects in the current snapshot.
func (l *Lookup) Len() int {
	m := l.snap.Load()
	if m == nil {
		return 0
	}
	return len(*m)
}
