package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/pulse/internal/adapters/http/api"
	service "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/domain/cursor"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/pipeline"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDependencies is an in-memory stand-in for the service.
type mockDependencies struct {
	results   []model.ScoreResult
	estimates []model.BPEstimate
	runErr    error
	samples   []model.HRSample
	streams   map[string]int
}

func (m *mockDependencies) Results(context.Context) ([]model.ScoreResult, error) {
	return m.results, nil
}

func (m *mockDependencies) Result(_ context.Context, name string) (model.ScoreResult, error) {
	for _, r := range m.results {
		if r.SubjectID == name {
			return r, nil
		}
	}
	return model.ScoreResult{}, service.ErrSubjectNotFound
}

func (m *mockDependencies) Estimates(context.Context) ([]model.BPEstimate, error) {
	return m.estimates, nil
}

func (m *mockDependencies) Estimate(_ context.Context, id string) (model.BPEstimate, error) {
	for _, e := range m.estimates {
		if e.SubjectID == id {
			return e, nil
		}
	}
	return model.BPEstimate{}, service.ErrSubjectNotFound
}

func (m *mockDependencies) RunExtraction(context.Context) (pipeline.ExtractSummary, error) {
	return pipeline.ExtractSummary{RunID: "x1", Processed: 2, Estimated: 2}, m.runErr
}

func (m *mockDependencies) RunScoring(context.Context) (pipeline.ScoreSummary, error) {
	return pipeline.ScoreSummary{RunID: "s1", Subjects: 2, Scored: 2}, m.runErr
}

func (m *mockDependencies) OpenHeartRateStream(_ context.Context, subject string) (string, int, error) {
	if subject == "silent" {
		return "", 0, fmt.Errorf("open stream for %s: %w", subject, cursor.ErrNoSamples)
	}
	id := fmt.Sprintf("stream-%d", len(m.streams)+1)
	m.streams[id] = 0
	return id, len(m.samples), nil
}

func (m *mockDependencies) NextHeartRate(id string) (model.HRSample, error) {
	pos, ok := m.streams[id]
	if !ok {
		return model.HRSample{}, cursor.ErrCursorNotFound
	}
	m.streams[id] = pos + 1
	return m.samples[min(pos, len(m.samples)-1)], nil
}

func (m *mockDependencies) ResetHeartRateStream(id string) error {
	if _, ok := m.streams[id]; !ok {
		return cursor.ErrCursorNotFound
	}
	m.streams[id] = 0
	return nil
}

func (m *mockDependencies) CloseHeartRateStream(id string) error {
	if _, ok := m.streams[id]; !ok {
		return cursor.ErrCursorNotFound
	}
	delete(m.streams, id)
	return nil
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats() map[string]any {
	return m.stats
}

func newMux() (*http.ServeMux, *mockDependencies) {
	t0 := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	deps := &mockDependencies{
		results: []model.ScoreResult{
			{SubjectID: "Ana", SBP: 130, DBP: 84, BPSource: model.BPSourceEstimated, ReadinessScore: 81.5},
			{SubjectID: "Ben", SBP: 120, DBP: 80, BPSource: model.BPSourceDefaultMissing, ReadinessScore: 70.25},
		},
		estimates: []model.BPEstimate{
			{SubjectID: "Ana", HeartRate: 60, Systolic: 130, Diastolic: 78, Peaks: 12, Available: true, Status: model.StatusEstimated},
			{SubjectID: "Cy", Peaks: 1, Status: model.StatusInsufficientSignal},
		},
		samples: []model.HRSample{
			{Timestamp: t0, BPM: 61},
			{Timestamp: t0.Add(5 * time.Minute), BPM: 64},
		},
		streams: map[string]int{},
	}
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]any{"started": true}})
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux, deps
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux, _ := newMux()

		Convey("Then the health endpoint serves metrics", func() {
			So(do(mux, "GET", "/healthz", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint is accessible", func() {
			w := do(mux, "GET", "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then unknown methods are rejected", func() {
			So(do(mux, "DELETE", "/health_scores", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestScoresHandler(t *testing.T) {
	Convey("Given ranked results", t, func() {
		mux, _ := newMux()

		Convey("When listing every result", func() {
			w := do(mux, "GET", "/health_scores", "")

			Convey("Then rank order and output keys are kept", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var rows []map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &rows), ShouldBeNil)
				So(len(rows), ShouldEqual, 2)
				So(rows[0]["name"], ShouldEqual, "Ana")
				So(rows[0]["Readiness Score"], ShouldEqual, 81.5)
				So(rows[1]["bp_source"], ShouldEqual, "default_missing")
			})
		})

		Convey("When fetching an existing subject", func() {
			w := do(mux, "GET", "/health_scores/Ben", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"name":"Ben"`)
		})

		Convey("When the name differs only by case", func() {
			w := do(mux, "GET", "/health_scores/ana", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(w.Body.String(), ShouldContainSubstring, `"code":"not_found"`)
				So(w.Body.String(), ShouldContainSubstring, "subject not found")
			})
		})
	})
}

func TestBloodPressureHandler(t *testing.T) {
	Convey("Given stored estimates", t, func() {
		mux, _ := newMux()

		Convey("When an estimate is unavailable", func() {
			w := do(mux, "GET", "/blood_pressure/Cy", "")

			Convey("Then its reading is null rather than zero", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var row map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &row), ShouldBeNil)
				So(row, ShouldContainKey, "SBP")
				So(row["SBP"], ShouldBeNil)
			})
		})

		Convey("When listing estimates", func() {
			w := do(mux, "GET", "/blood_pressure", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "Ana")
		})

		Convey("When the subject is unknown", func() {
			So(do(mux, "GET", "/blood_pressure/nobody", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestRunsHandler(t *testing.T) {
	Convey("Given the run endpoints", t, func() {
		mux, deps := newMux()

		Convey("When a run succeeds", func() {
			w := do(mux, "POST", "/runs/extract", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"run_id":"x1"`)

			w = do(mux, "POST", "/runs/score", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"scored":2`)
		})

		Convey("When another run is in progress", func() {
			deps.runErr = service.ErrRunInProgress
			So(do(mux, "POST", "/runs/score", "").Code, ShouldEqual, http.StatusConflict)
		})

		Convey("When the service is not started", func() {
			deps.runErr = service.ErrNotStarted
			So(do(mux, "POST", "/runs/extract", "").Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When the run fails unexpectedly", func() {
			deps.runErr = fmt.Errorf("disk full")
			So(do(mux, "POST", "/runs/extract", "").Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestStreamHandler(t *testing.T) {
	Convey("Given the heart-rate stream endpoints", t, func() {
		mux, _ := newMux()

		Convey("When a stream is opened", func() {
			w := do(mux, "POST", "/hr_streams", `{"subject":"Ana"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			var opened struct {
				ID      string `json:"id"`
				Samples int    `json:"samples"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &opened), ShouldBeNil)
			So(opened.Samples, ShouldEqual, 2)

			next := func() float64 {
				w := do(mux, "GET", "/hr_streams/"+opened.ID+"/next", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var s model.HRSample
				So(json.Unmarshal(w.Body.Bytes(), &s), ShouldBeNil)
				return s.BPM
			}

			Convey("Then samples replay and clamp at the end", func() {
				So(next(), ShouldEqual, 61)
				So(next(), ShouldEqual, 64)
				So(next(), ShouldEqual, 64)
			})

			Convey("Then reset rewinds the stream", func() {
				next()
				So(do(mux, "POST", "/hr_streams/"+opened.ID+"/reset", "").Code, ShouldEqual, http.StatusNoContent)
				So(next(), ShouldEqual, 61)
			})

			Convey("Then a closed stream is gone", func() {
				So(do(mux, "DELETE", "/hr_streams/"+opened.ID, "").Code, ShouldEqual, http.StatusNoContent)
				So(do(mux, "GET", "/hr_streams/"+opened.ID+"/next", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the request body is invalid", func() {
			So(do(mux, "POST", "/hr_streams", `{`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, "POST", "/hr_streams", `{"subject":"  "}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the subject has no samples", func() {
			So(do(mux, "POST", "/hr_streams", `{"subject":"silent"}`).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the stream ID is unknown", func() {
			So(do(mux, "GET", "/hr_streams/missing/next", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestCORS(t *testing.T) {
	Convey("Given CORS middleware for one origin", t, func() {
		mux, _ := newMux()
		h := api.CORS([]string{"https://dash.example"})(mux)

		Convey("When an allowed origin asks", func() {
			req := httptest.NewRequest("GET", "/health_scores", http.NoBody)
			req.Header.Set("Origin", "https://dash.example")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			Convey("Then the origin is echoed", func() {
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://dash.example")
			})
		})

		Convey("When another origin asks", func() {
			req := httptest.NewRequest("GET", "/health_scores", http.NoBody)
			req.Header.Set("Origin", "https://evil.example")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			Convey("Then no CORS header is set", func() {
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
			})
		})
	})
}
