package tabular_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/okian/pulse/internal/adapters/tabular"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/waveform"
	. "github.com/smartystreets/goconvey/convey"
)

func TestReadRoster(t *testing.T) {
	Convey("Given a roster table", t, func() {
		Convey("When it has a Name column", func() {
			names, err := tabular.ReadRoster(strings.NewReader("Name,Unit\nana,1\n  ,2\nben,3\n"))

			Convey("Then names come back in order without blanks", func() {
				So(err, ShouldBeNil)
				So(names, ShouldResemble, []string{"ana", "ben"})
			})
		})

		Convey("When the Name column is missing", func() {
			_, err := tabular.ReadRoster(strings.NewReader("pilot\nana\n"))
			So(errors.Is(err, tabular.ErrMissingColumns), ShouldBeTrue)
		})

		Convey("When the table is empty", func() {
			_, err := tabular.ReadRoster(strings.NewReader(""))
			So(errors.Is(err, tabular.ErrEmptyTable), ShouldBeTrue)
		})
	})
}

func TestReadWaveform(t *testing.T) {
	Convey("Given a waveform recording", t, func() {
		Convey("When both columns are present", func() {
			samples, err := tabular.ReadWaveform(strings.NewReader("sample_index,IR,RED\n0,1.5,9\n1,2.5,9\n"))

			Convey("Then rows decode in order", func() {
				So(err, ShouldBeNil)
				So(len(samples), ShouldEqual, 2)
				So(samples[1].Index, ShouldEqual, 1)
				So(samples[1].IR, ShouldEqual, 2.5)
			})
		})

		Convey("When IR is missing", func() {
			_, err := tabular.ReadWaveform(strings.NewReader("sample_index,RED\n0,1\n"))

			Convey("Then the file is reported as malformed", func() {
				So(errors.Is(err, tabular.ErrMissingColumns), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "IR")
			})
		})

		Convey("When a value does not parse", func() {
			_, err := tabular.ReadWaveform(strings.NewReader("sample_index,IR\n0,abc\n"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestSubjectIDFromPath(t *testing.T) {
	Convey("Given waveform file paths", t, func() {
		So(tabular.SubjectIDFromPath("regular/ana.csv"), ShouldEqual, "ana")
		So(tabular.SubjectIDFromPath("/x/ben.2025.csv"), ShouldEqual, "ben")
		So(tabular.SubjectIDFromPath("cara"), ShouldEqual, "cara")
	})
}

func TestWriteEstimates(t *testing.T) {
	Convey("Given one available and one unavailable estimate", t, func() {
		estimates := []model.BPEstimate{
			{SubjectID: "ana", HeartRate: 75, Systolic: 137.5, Diastolic: 82.5, Peaks: 5, Available: true, Status: model.StatusEstimated},
			{SubjectID: "ben", Peaks: 1, Status: model.StatusInsufficientSignal},
		}

		Convey("When written as CSV", func() {
			var buf bytes.Buffer
			So(tabular.WriteEstimatesCSV(&buf, estimates), ShouldBeNil)
			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

			Convey("Then unavailable readings are empty, never zero", func() {
				So(lines[0], ShouldEqual, "name,HR,SBP,DBP,peaks,status")
				So(lines[1], ShouldEqual, "ana,75,137.5,82.5,5,estimated")
				So(lines[2], ShouldEqual, "ben,,,,1,insufficient_signal")
			})
		})

		Convey("When written as JSON", func() {
			var buf bytes.Buffer
			So(tabular.WriteEstimatesJSON(&buf, estimates), ShouldBeNil)
			var rows []map[string]any
			So(json.Unmarshal(buf.Bytes(), &rows), ShouldBeNil)

			Convey("Then unavailable readings are null", func() {
				So(rows[0]["SBP"], ShouldEqual, 137.5)
				So(rows[1]["SBP"], ShouldBeNil)
				So(rows[1]["status"], ShouldEqual, "insufficient_signal")
			})
		})
	})
}

func TestWriteResults(t *testing.T) {
	Convey("Given ranked results", t, func() {
		results := []model.ScoreResult{
			{SubjectID: "ana", SBP: 120, DBP: 80, BPSource: model.BPSourceEstimated, ReadinessScore: 90},
			{SubjectID: "ben", SBP: 120, DBP: 80, BPSource: model.BPSourceDefaultMissing, ReadinessScore: 55.2},
		}

		Convey("When written as CSV", func() {
			var buf bytes.Buffer
			So(tabular.WriteResultsCSV(&buf, results), ShouldBeNil)
			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

			Convey("Then the header names every field and rows keep their order", func() {
				So(lines[0], ShouldStartWith, "name,SBP,DBP,bp_source,SpO2,HR,HRV,Sleep Score")
				So(lines[1], ShouldStartWith, "ana,")
				So(lines[2], ShouldContainSubstring, "default_missing")
			})
		})

		Convey("When written as JSON", func() {
			var buf bytes.Buffer
			So(tabular.WriteResultsJSON(&buf, results), ShouldBeNil)
			var rows []map[string]any
			So(json.Unmarshal(buf.Bytes(), &rows), ShouldBeNil)
			So(rows[0]["name"], ShouldEqual, "ana")
			So(rows[1]["Readiness Score"], ShouldEqual, 55.2)
		})

		Convey("When there are no results", func() {
			var csvBuf, jsonBuf bytes.Buffer
			So(tabular.WriteResultsCSV(&csvBuf, nil), ShouldBeNil)
			So(tabular.WriteResultsJSON(&jsonBuf, nil), ShouldBeNil)
			So(csvBuf.String(), ShouldStartWith, "name,SBP")
			So(strings.TrimSpace(jsonBuf.String()), ShouldEqual, "[]")
		})
	})
}

func TestWriteInputs(t *testing.T) {
	Convey("Given a roster and a waveform", t, func() {
		Convey("When the roster is written and read back", func() {
			var buf bytes.Buffer
			So(tabular.WriteRoster(&buf, []string{"ana", "ben"}), ShouldBeNil)
			names, err := tabular.ReadRoster(&buf)
			So(err, ShouldBeNil)
			So(names, ShouldResemble, []string{"ana", "ben"})
		})

		Convey("When the waveform is written", func() {
			var buf bytes.Buffer
			So(tabular.WriteWaveform(&buf, []waveform.Sample{{Index: 0, IR: 1.25}, {Index: 1, IR: 2}}), ShouldBeNil)

			Convey("Then it has the columns the reader expects", func() {
				So(buf.String(), ShouldStartWith, "sample_index,IR\n0,1.25\n1,2\n")
			})
		})
	})
}
