package scoring_test

import (
	"testing"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func perfectInputs() scoring.Inputs {
	return scoring.Inputs{
		Systolic:   120,
		Diastolic:  80,
		SpO2:       100,
		HeartRate:  70,
		HRV:        100,
		SleepScore: 100,
	}
}

func TestSubScores(t *testing.T) {
	Convey("Given raw vitals", t, func() {
		Convey("When blood pressure is ideal", func() {
			So(scoring.BPScore(120, 80), ShouldEqual, 100)
		})

		Convey("When blood pressure deviates by 20 mmHg in total", func() {
			So(scoring.BPScore(130, 90), ShouldEqual, 0)
			So(scoring.BPScore(110, 70), ShouldEqual, 0)
			So(scoring.BPScore(200, 120), ShouldEqual, 0)
		})

		Convey("When blood pressure deviates by 10 mmHg", func() {
			So(scoring.BPScore(125, 85), ShouldAlmostEqual, 50, 1e-9)
		})

		Convey("When SpO2 moves along its ramp", func() {
			So(scoring.SpO2Score(100), ShouldEqual, 100)
			So(scoring.SpO2Score(85), ShouldEqual, 0)
			So(scoring.SpO2Score(80), ShouldEqual, 0)
			So(scoring.SpO2Score(101), ShouldEqual, 100)
		})

		Convey("When heart rate moves away from 70 bpm", func() {
			So(scoring.HRScore(70), ShouldEqual, 100)
			So(scoring.HRScore(85), ShouldAlmostEqual, 50, 1e-9)
			So(scoring.HRScore(55), ShouldAlmostEqual, 50, 1e-9)
			So(scoring.HRScore(100), ShouldEqual, 0)
			So(scoring.HRScore(20), ShouldEqual, 0)
		})

		Convey("When HRV exceeds the ceiling", func() {
			So(scoring.HRVScore(150), ShouldEqual, 100)
			So(scoring.HRVScore(42), ShouldAlmostEqual, 42, 1e-9)
			So(scoring.HRVScore(-5), ShouldEqual, 0)
		})

		Convey("When the sleep score is out of range", func() {
			So(scoring.SleepScore(130), ShouldEqual, 100)
			So(scoring.SleepScore(-1), ShouldEqual, 0)
		})
	})
}

func TestEngine_Compute(t *testing.T) {
	Convey("Given the default engine", t, func() {
		engine := scoring.NewEngine()

		Convey("When every scored vital is ideal and load terms are zero", func() {
			scores := engine.Compute(perfectInputs())
			rounded := scores.Rounded()

			Convey("Then the composites match the weight tables", func() {
				So(rounded.Readiness, ShouldEqual, 90.00)
				So(rounded.Performance, ShouldEqual, 100.00)
				So(rounded.Success, ShouldEqual, 100.00)
				So(scores.Override, ShouldBeFalse)
			})
		})

		Convey("When systolic pressure is 210 with otherwise perfect inputs", func() {
			in := perfectInputs()
			in.Systolic = 210
			scores := engine.Compute(in)

			Convey("Then Success is forced to zero", func() {
				So(scores.Success, ShouldEqual, 0)
				So(scores.Override, ShouldBeTrue)
			})
		})

		Convey("When pressure sits exactly on the crisis thresholds", func() {
			in := perfectInputs()
			in.Systolic, in.Diastolic = 200, 120
			scores := engine.Compute(in)

			Convey("Then the override does not fire", func() {
				So(scores.Override, ShouldBeFalse)
				So(scores.Success, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When either pressure crosses its threshold by one", func() {
			sys := perfectInputs()
			sys.Systolic = 201
			dia := perfectInputs()
			dia.Diastolic = 121

			Convey("Then the override fires", func() {
				So(engine.Compute(sys).Success, ShouldEqual, 0)
				So(engine.Compute(sys).Override, ShouldBeTrue)
				So(engine.Compute(dia).Success, ShouldEqual, 0)
				So(engine.Compute(dia).Override, ShouldBeTrue)
			})
		})

		Convey("When load terms are far out of range", func() {
			in := perfectInputs()
			in.Activity, in.Immunity, in.TrainingStress = 900, 500, 1e6
			scores := engine.Compute(in)

			Convey("Then they are clamped before weighting", func() {
				So(scores.Sub.Activity, ShouldEqual, 100)
				So(scores.Readiness, ShouldAlmostEqual, 100, 1e-9)
				So(scores.Rounded().Readiness, ShouldEqual, 100)
			})
		})

		Convey("When inputs sweep a grid of values", func() {
			Convey("Then every composite stays within [0, 100]", func() {
				for _, sbp := range []float64{60, 120, 180, 200} {
					for _, hr := range []float64{0, 40, 70, 150} {
						for _, hrv := range []float64{-10, 0, 50, 250} {
							s := engine.Compute(scoring.Inputs{
								Systolic: sbp, Diastolic: 80, SpO2: 92, HeartRate: hr,
								HRV: hrv, SleepScore: 140, Activity: -5, Immunity: 60, TrainingStress: 300,
							})
							for _, v := range []float64{s.Readiness, s.Performance, s.Success} {
								So(v, ShouldBeBetweenOrEqual, 0, 100)
							}
						}
					}
				}
			})
		})

		Convey("When HRV increases with everything else fixed", func() {
			Convey("Then no score decreases", func() {
				in := perfectInputs()
				in.HeartRate = 82
				in.HRV = 0
				prev := engine.Compute(in)
				for hrv := 0.0; hrv <= 160; hrv += 7.5 {
					in.HRV = hrv
					cur := engine.Compute(in)
					So(cur.Sub.HRV, ShouldBeGreaterThanOrEqualTo, prev.Sub.HRV)
					So(cur.Readiness, ShouldBeGreaterThanOrEqualTo, prev.Readiness)
					So(cur.Performance, ShouldBeGreaterThanOrEqualTo, prev.Performance)
					prev = cur
				}
			})
		})
	})
}

func TestEngine_Options(t *testing.T) {
	Convey("Given custom weight tables", t, func() {
		Convey("When the table sums to one", func() {
			engine := scoring.NewEngine(scoring.WithSuccessWeights(scoring.SuccessWeights{HRV: 1}))
			in := perfectInputs()
			in.HRV = 40

			Convey("Then it replaces the default", func() {
				So(engine.Compute(in).Success, ShouldAlmostEqual, 40, 1e-9)
			})
		})

		Convey("When the table does not sum to one", func() {
			engine := scoring.NewEngine(scoring.WithPerformanceWeights(scoring.PerformanceWeights{HR: 2}))

			Convey("Then the default is kept", func() {
				So(engine.Compute(perfectInputs()).Rounded().Performance, ShouldEqual, 100)
			})
		})

		Convey("Then the default tables each sum to one", func() {
			So(scoring.DefaultReadinessWeights.Sum(), ShouldAlmostEqual, 1, 1e-9)
			So(scoring.DefaultPerformanceWeights.Sum(), ShouldAlmostEqual, 1, 1e-9)
			So(scoring.DefaultSuccessWeights.Sum(), ShouldAlmostEqual, 1, 1e-9)
		})
	})
}

func TestRound2(t *testing.T) {
	Convey("Given unrounded composites", t, func() {
		So(scoring.Round2(55.234), ShouldEqual, 55.23)
		So(scoring.Round2(55.236), ShouldEqual, 55.24)
		So(scoring.Round2(0), ShouldEqual, 0)
	})
}

func TestRank(t *testing.T) {
	Convey("Given unordered results", t, func() {
		results := []model.ScoreResult{
			{SubjectID: "a", ReadinessScore: 55.2},
			{SubjectID: "b", ReadinessScore: 90.0},
			{SubjectID: "c", ReadinessScore: 12.1},
		}

		Convey("When ranked", func() {
			scoring.Rank(results)

			Convey("Then readiness is descending", func() {
				So(results[0].ReadinessScore, ShouldEqual, 90.0)
				So(results[1].ReadinessScore, ShouldEqual, 55.2)
				So(results[2].ReadinessScore, ShouldEqual, 12.1)
			})
		})

		Convey("When readiness ties", func() {
			tied := []model.ScoreResult{
				{SubjectID: "first", ReadinessScore: 70},
				{SubjectID: "top", ReadinessScore: 80},
				{SubjectID: "second", ReadinessScore: 70},
				{SubjectID: "third", ReadinessScore: 70},
			}
			scoring.Rank(tied)

			Convey("Then input order is preserved among equals", func() {
				So(tied[0].SubjectID, ShouldEqual, "top")
				So(tied[1].SubjectID, ShouldEqual, "first")
				So(tied[2].SubjectID, ShouldEqual, "second")
				So(tied[3].SubjectID, ShouldEqual, "third")
			})
		})
	})
}
