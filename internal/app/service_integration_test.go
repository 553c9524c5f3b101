package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/pulse/internal/adapters/repository"
	service "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/synth"
	. "github.com/smartystreets/goconvey/convey"
)

type fixture struct {
	waves, roster, data, db string
}

func newFixture(t *testing.T, subjects int) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		waves:  filepath.Join(dir, "regular"),
		roster: filepath.Join(dir, "data", "pilot_data.csv"),
		data:   filepath.Join(dir, "data"),
		db:     filepath.Join(dir, "pulse.db"),
	}
	if _, err := synth.WriteCorpus(f.waves, f.roster, synth.CorpusConfig{Subjects: subjects, Seconds: 15, Seed: 9}); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	return f
}

func (f fixture) service(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	store, err := repository.NewSQLite(context.Background(), f.db)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	base := []service.Option{
		service.WithStore(store),
		service.WithWaveformDir(f.waves),
		service.WithRosterPath(f.roster),
		service.WithDataDir(f.data),
		service.WithWorkerCount(3),
	}
	return service.New(append(base, opts...)...)
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a synthetic corpus and a SQLite-backed service", t, func() {
		f := newFixture(t, 8)
		svc := f.service(t)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When extraction and scoring run end-to-end", func() {
			ex, err := svc.RunExtraction(ctx)
			So(err, ShouldBeNil)
			sc, err := svc.RunScoring(ctx)
			So(err, ShouldBeNil)

			Convey("Then every subject is accounted for", func() {
				So(ex.Processed, ShouldEqual, 8)
				So(ex.Estimated+ex.InsufficientSignal, ShouldEqual, 8)
				So(ex.InsufficientSignal, ShouldEqual, 1)
				So(sc.Subjects, ShouldEqual, 8)
				So(sc.Scored, ShouldEqual, 8)
				So(sc.DefaultBP, ShouldEqual, 1)
			})

			Convey("Then results are ranked by readiness", func() {
				results, err := svc.Results(ctx)
				So(err, ShouldBeNil)
				So(len(results), ShouldEqual, 8)
				for i := 1; i < len(results); i++ {
					So(results[i-1].ReadinessScore, ShouldBeGreaterThanOrEqualTo, results[i].ReadinessScore)
				}
			})

			Convey("Then a single subject can be looked up", func() {
				r, err := svc.Result(ctx, "pilot_004")
				So(err, ShouldBeNil)
				So(r.SubjectID, ShouldEqual, "pilot_004")

				est, err := svc.Estimate(ctx, "pilot_005")
				So(err, ShouldBeNil)
				So(est.Status, ShouldEqual, model.StatusInsufficientSignal)
				So(est.Available, ShouldBeFalse)
			})

			Convey("Then the dual serializations are written", func() {
				for _, name := range []string{"estimated_blood_pressure.csv", "estimated_blood_pressure.json", "health_scores.csv", "health_scores.json"} {
					_, err := os.Stat(filepath.Join(f.data, name))
					So(err, ShouldBeNil)
				}
			})

			Convey("Then stats report the last runs", func() {
				stats := svc.GetStats()
				So(stats["estimates"], ShouldEqual, 8)
				So(stats, ShouldContainKey, "lastExtraction")
				So(stats, ShouldContainKey, "lastScoring")
			})
		})

		Convey("When the service restarts on the same database", func() {
			_, err := svc.RunExtraction(ctx)
			So(err, ShouldBeNil)
			before, err := svc.RunScoring(ctx)
			So(err, ShouldBeNil)
			svc.Stop()

			again := f.service(t)
			So(again.Start(ctx), ShouldBeNil)
			defer again.Stop()

			Convey("Then persisted estimates and results survive", func() {
				results, err := again.Results(ctx)
				So(err, ShouldBeNil)
				So(len(results), ShouldEqual, before.Scored)
				So(again.GetStats()["estimates"], ShouldEqual, 8)
			})
		})
	})
}

func TestServiceRunOnStart(t *testing.T) {
	Convey("Given a service configured to run on start", t, func() {
		f := newFixture(t, 4)
		svc := f.service(t, service.WithRunOnStart(true))
		defer svc.Stop()

		Convey("When it starts", func() {
			err := svc.Start(context.Background())

			Convey("Then results are available immediately", func() {
				So(err, ShouldBeNil)
				results, err := svc.Results(context.Background())
				So(err, ShouldBeNil)
				So(len(results), ShouldEqual, 4)
			})
		})
	})
}

func TestServiceConcurrency(t *testing.T) {
	Convey("Given a started service", t, func() {
		f := newFixture(t, 6)
		svc := f.service(t)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When batches are requested concurrently", func() {
			var wg sync.WaitGroup
			errs := make(chan error, 8)
			for range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := svc.RunExtraction(ctx)
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)

			Convey("Then each either succeeds or reports a run in progress", func() {
				ok := 0
				for err := range errs {
					if err == nil {
						ok++
						continue
					}
					So(errors.Is(err, service.ErrRunInProgress), ShouldBeTrue)
				}
				So(ok, ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When readers run alongside a scoring batch", func() {
			_, err := svc.RunExtraction(ctx)
			So(err, ShouldBeNil)

			var wg sync.WaitGroup
			wg.Add(2)
			var runErr error
			go func() {
				defer wg.Done()
				_, runErr = svc.RunScoring(ctx)
			}()
			go func() {
				defer wg.Done()
				for range 50 {
					_, _ = svc.Results(ctx)
					_ = svc.GetStats()
				}
			}()
			wg.Wait()

			Convey("Then the batch completes", func() {
				So(runErr, ShouldBeNil)
			})
		})
	})
}
