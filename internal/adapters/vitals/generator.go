package vitals

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/okian/pulse/internal/domain/model"
)

const (
	// ActivityHistoryDays is how much activity history the generator produces.
	ActivityHistoryDays = 168
	hrSampleInterval    = 5 * time.Minute
)

// Generator is a deterministic Source for demos and tests. The same subject
// and range always yield the same values.
type Generator struct {
	seed uint64
}

var _ Source = (*Generator)(nil)

// NewGenerator creates a Generator. Different seeds give different populations.
func NewGenerator(seed uint64) *Generator {
	return &Generator{seed: seed}
}

func (g *Generator) rng(subject string, r Range, stream uint64) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(subject))
	return rand.New(rand.NewPCG(h.Sum64()^g.seed^uint64(r.Start.Unix()), stream))
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// Fetch returns a complete bundle for subject.
func (g *Generator) Fetch(ctx context.Context, subject string, r Range) (model.VitalsBundle, error) {
	if err := ctx.Err(); err != nil {
		return model.VitalsBundle{}, err
	}
	if !r.Valid() {
		return model.VitalsBundle{}, ErrInvalidRange
	}
	rng := g.rng(subject, r, 1)
	b := model.VitalsBundle{
		HeartRate:      uniform(rng, 55, 90),
		HRV:            uniform(rng, 25, 120),
		SleepScore:     uniform(rng, 55, 100),
		BaselineHR:     uniform(rng, 50, 70),
		ImmunityIndex:  uniform(rng, 40, 100),
		TrainingStress: uniform(rng, 10, 90),
		SpO2:           uniform(rng, 92, 100),
	}
	avg, _ := LatestCompleteWeek(WeeklyAverages(g.ActivityHistory(subject, r)))
	b.ActivityMinutes = avg
	return b, nil
}

// ActivityHistory returns ActivityHistoryDays days of records ending the day before r.End.
func (g *Generator) ActivityHistory(subject string, r Range) []ActivityRecord {
	rng := g.rng(subject, r, 2)
	end := r.End.Truncate(24 * time.Hour)
	out := make([]ActivityRecord, ActivityHistoryDays)
	for i := range out {
		out[i] = ActivityRecord{
			Date:          end.AddDate(0, 0, i-ActivityHistoryDays),
			ActiveMinutes: float64(rng.IntN(91) + 10),
		}
	}
	return out
}

// HeartRateSamples returns one sample every five minutes across r.
func (g *Generator) HeartRateSamples(ctx context.Context, subject string, r Range) ([]model.HRSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.Valid() {
		return nil, ErrInvalidRange
	}
	rng := g.rng(subject, r, 3)
	n := int(r.End.Sub(r.Start) / hrSampleInterval)
	if n == 0 {
		return nil, ErrNoData
	}
	out := make([]model.HRSample, n)
	bpm := uniform(rng, 58, 72)
	for i := range out {
		bpm += uniform(rng, -3, 3)
		bpm = min(max(bpm, 45), 160)
		out[i] = model.HRSample{
			Timestamp: r.Start.Add(time.Duration(i) * hrSampleInterval).UTC(),
			BPM:       float64(int(bpm + 0.5)),
		}
	}
	return out, nil
}
