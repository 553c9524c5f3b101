package pipeline_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/adapters/vitals"
	"github.com/okian/pulse/internal/domain/bplookup"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/pipeline"
	"github.com/okian/pulse/internal/synth"
)

var window = vitals.Range{
	Start: time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 2, 6, 0, 0, 0, 0, time.UTC),
}

// flakySource wraps the generator with a subject that has no data and one with gaps.
type flakySource struct {
	*vitals.Generator
}

func (f flakySource) Fetch(ctx context.Context, subject string, r vitals.Range) (model.VitalsBundle, error) {
	switch subject {
	case "ghost":
		return model.VitalsBundle{}, vitals.ErrNoData
	case "gappy":
		b, err := f.Generator.Fetch(ctx, subject, r)
		b.Gaps = []string{vitals.VitalHRV}
		return b, err
	}
	return f.Generator.Fetch(ctx, subject, r)
}

func corpus(t *testing.T) (waves, out string) {
	t.Helper()
	dir := t.TempDir()
	waves = filepath.Join(dir, "regular")
	out = filepath.Join(dir, "data")
	_, err := synth.WriteCorpus(waves, "", synth.CorpusConfig{Subjects: 5, Seconds: 20, Seed: 3})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(waves, "broken.csv"), []byte("sample_index,RED\n0,1\n"), 0o600))
	return waves, out
}

func TestExtractor_Run(t *testing.T) {
	waves, out := corpus(t)
	store := repository.NewMemoryStore()
	lookup := bplookup.New(nil)
	ex := pipeline.NewExtractor(store, lookup, pipeline.WithConcurrency(2), pipeline.WithExtractOutputDir(out))

	sum, err := ex.Run(context.Background(), waves)
	require.NoError(t, err)

	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, 6, sum.Processed)
	assert.Equal(t, 4, sum.Estimated)
	assert.Equal(t, 1, sum.InsufficientSignal)
	assert.Equal(t, 1, sum.Skipped)
	require.Len(t, sum.SkippedFiles, 1)
	assert.Contains(t, sum.SkippedFiles[0].Reason, "missing required columns")

	stored, err := store.Estimates(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 5)
	assert.Equal(t, 5, lookup.Len())
	assert.Equal(t, model.BPSourceDefaultInsufficientSignal, lookup.Resolve("pilot_005").Source)
	assert.Equal(t, model.BPSourceEstimated, lookup.Resolve("pilot_001").Source)

	raw, err := os.ReadFile(filepath.Join(out, pipeline.EstimatesJSON))
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(raw, &rows))
	assert.Len(t, rows, 5)
	assert.FileExists(t, filepath.Join(out, pipeline.EstimatesCSV))

	// Running again on the same input gives the same estimates.
	_, err = ex.Run(context.Background(), waves)
	require.NoError(t, err)
	again, err := store.Estimates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stored, again)
}

func TestExtractor_ShortRecordings(t *testing.T) {
	waves := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(waves, "solo.csv"), []byte("sample_index,IR\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(waves, "two.csv"), []byte("sample_index,IR\n0,1\n1,2\n"), 0o600))

	store := repository.NewMemoryStore()
	lookup := bplookup.New(nil)
	sum, err := pipeline.NewExtractor(store, lookup).Run(context.Background(), waves)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 0, sum.Skipped)
	assert.Equal(t, 2, sum.InsufficientSignal)
	for _, subject := range []string{"solo", "two"} {
		r := lookup.Resolve(subject)
		assert.Equal(t, model.BPSourceDefaultInsufficientSignal, r.Source, subject)
		assert.Equal(t, bplookup.DefaultSystolic, r.Systolic, subject)
	}
}

func TestExtractor_OutputFailureKeepsLookupInStep(t *testing.T) {
	waves, _ := corpus(t)
	// A regular file where the output directory should be makes every write fail.
	blocked := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(blocked, nil, 0o600))

	store := repository.NewMemoryStore()
	lookup := bplookup.New([]model.BPEstimate{{SubjectID: "stale", Systolic: 150, Diastolic: 95, Available: true}})
	_, err := pipeline.NewExtractor(store, lookup, pipeline.WithExtractOutputDir(blocked)).Run(context.Background(), waves)
	require.Error(t, err)

	stored, err := store.Estimates(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 5)
	assert.Equal(t, len(stored), lookup.Len())
	assert.Equal(t, model.BPSourceDefaultMissing, lookup.Resolve("stale").Source)
	assert.Equal(t, model.BPSourceEstimated, lookup.Resolve("pilot_001").Source)
}

func TestExtractor_MissingDir(t *testing.T) {
	ex := pipeline.NewExtractor(repository.NewMemoryStore(), bplookup.New(nil))
	_, err := ex.Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestScorer_Run(t *testing.T) {
	waves, out := corpus(t)
	store := repository.NewMemoryStore()
	lookup := bplookup.New(nil)
	_, err := pipeline.NewExtractor(store, lookup).Run(context.Background(), waves)
	require.NoError(t, err)

	sc := pipeline.NewScorer(store, lookup, flakySource{vitals.NewGenerator(1)},
		pipeline.WithWorkers(3),
		pipeline.WithQueueSize(2),
		pipeline.WithVitalsRange(window),
		pipeline.WithScoreOutputDir(out),
	)

	roster := []string{"pilot_001", "pilot_002", "ghost", "pilot_003", "pilot_004", "pilot_005", "nobody", "gappy"}
	sum, results, err := sc.Run(context.Background(), roster)
	require.NoError(t, err)

	assert.Equal(t, 8, sum.Subjects)
	assert.Equal(t, 6, sum.Scored)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 2, sum.DefaultBP)
	require.Len(t, sum.Failures, 2)
	assert.Equal(t, "ghost", sum.Failures[0].Subject)
	assert.Contains(t, sum.Failures[0].Reason, "no data for range")
	assert.Equal(t, "gappy", sum.Failures[1].Subject)
	assert.Contains(t, sum.Failures[1].Reason, "hrv")

	require.Len(t, results, 6)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].ReadinessScore, results[i].ReadinessScore)
	}
	bySubject := map[string]model.ScoreResult{}
	for _, r := range results {
		bySubject[r.SubjectID] = r
		assert.GreaterOrEqual(t, r.ReadinessScore, 0.0)
		assert.LessOrEqual(t, r.ReadinessScore, 100.0)
	}
	assert.Equal(t, model.BPSourceDefaultMissing, bySubject["nobody"].BPSource)
	assert.Equal(t, 120.0, bySubject["nobody"].SBP)
	assert.Equal(t, model.BPSourceDefaultInsufficientSignal, bySubject["pilot_005"].BPSource)

	latest, err := store.LatestResults(context.Background())
	require.NoError(t, err)
	assert.Equal(t, results, latest)
	assert.FileExists(t, filepath.Join(out, pipeline.ResultsCSV))
	assert.FileExists(t, filepath.Join(out, pipeline.ResultsJSON))
}

func TestScorer_Assemble(t *testing.T) {
	sc := pipeline.NewScorer(repository.NewMemoryStore(), bplookup.New(nil), vitals.NewGenerator(0))
	perfect := model.VitalsBundle{HeartRate: 70, HRV: 100, SleepScore: 100, SpO2: 100}

	r := sc.Assemble("ana", bplookup.Resolution{Systolic: 120, Diastolic: 80, Source: model.BPSourceEstimated}, perfect)
	assert.Equal(t, 90.0, r.ReadinessScore)
	assert.Equal(t, 100.0, r.PerformanceScore)
	assert.Equal(t, 100.0, r.SuccessScore)

	crisis := sc.Assemble("ben", bplookup.Resolution{Systolic: 210, Diastolic: 80, Source: model.BPSourceEstimated}, perfect)
	assert.Equal(t, 0.0, crisis.SuccessScore)
	assert.True(t, crisis.SuccessOverride)
}

func TestScorer_TiesKeepRosterOrder(t *testing.T) {
	lookup := bplookup.New(nil)
	same := constSource{b: model.VitalsBundle{HeartRate: 70, HRV: 50, SleepScore: 80, SpO2: 97}}
	sc := pipeline.NewScorer(repository.NewMemoryStore(), lookup, same, pipeline.WithWorkers(4), pipeline.WithVitalsRange(window))

	roster := []string{"d", "a", "c", "b", "e"}
	_, results, err := sc.Run(context.Background(), roster)
	require.NoError(t, err)

	got := make([]string, len(results))
	for i, r := range results {
		got[i] = r.SubjectID
	}
	assert.Equal(t, roster, got)
}

func TestScorer_InvalidRange(t *testing.T) {
	sc := pipeline.NewScorer(repository.NewMemoryStore(), bplookup.New(nil), vitals.NewGenerator(0))
	_, _, err := sc.Run(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, vitals.ErrInvalidRange)
}

type constSource struct {
	b model.VitalsBundle
}

func (c constSource) Fetch(context.Context, string, vitals.Range) (model.VitalsBundle, error) {
	return c.b, nil
}

func (c constSource) HeartRateSamples(context.Context, string, vitals.Range) ([]model.HRSample, error) {
	return nil, vitals.ErrNoData
}
