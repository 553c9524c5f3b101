package tabular

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jszwec/csvutil"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/waveform"
)

// EstimateRow is the serialized form of a BP estimate. Unavailable readings
// are null in JSON and empty in CSV.
type EstimateRow struct {
	Name      string   `json:"name" csv:"name"`
	HeartRate *float64 `json:"HR" csv:"HR"`
	Systolic  *float64 `json:"SBP" csv:"SBP"`
	Diastolic *float64 `json:"DBP" csv:"DBP"`
	Peaks     int      `json:"peaks" csv:"peaks"`
	Status    string   `json:"status" csv:"status"`
}

// NewEstimateRow converts an estimate for output.
func NewEstimateRow(e model.BPEstimate) EstimateRow {
	row := EstimateRow{Name: e.SubjectID, Peaks: e.Peaks, Status: string(e.Status)}
	if e.Available {
		hr, sys, dia := e.HeartRate, e.Systolic, e.Diastolic
		row.HeartRate, row.Systolic, row.Diastolic = &hr, &sys, &dia
	}
	return row
}

// EstimateRows converts estimates for output.
func EstimateRows(estimates []model.BPEstimate) []EstimateRow {
	rows := make([]EstimateRow, len(estimates))
	for i, e := range estimates {
		rows[i] = NewEstimateRow(e)
	}
	return rows
}

// WriteEstimatesCSV writes estimates as a CSV table with a header row.
func WriteEstimatesCSV(w io.Writer, estimates []model.BPEstimate) error {
	return writeCSV(w, EstimateRows(estimates))
}

// WriteEstimatesJSON writes estimates as an indented JSON array.
func WriteEstimatesJSON(w io.Writer, estimates []model.BPEstimate) error {
	return writeJSON(w, EstimateRows(estimates))
}

// WriteResultsCSV writes ranked results as a CSV table with a header row.
func WriteResultsCSV(w io.Writer, results []model.ScoreResult) error {
	if results == nil {
		results = []model.ScoreResult{}
	}
	return writeCSV(w, results)
}

// WriteResultsJSON writes ranked results as an indented JSON array.
func WriteResultsJSON(w io.Writer, results []model.ScoreResult) error {
	if results == nil {
		results = []model.ScoreResult{}
	}
	return writeJSON(w, results)
}

func writeCSV[T any](w io.Writer, rows []T) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if len(rows) == 0 {
		var zero T
		if err := enc.EncodeHeader(zero); err != nil {
			return fmt.Errorf("encode csv header: %w", err)
		}
	}
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return fmt.Errorf("encode csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteRoster writes a roster table with a Name column.
func WriteRoster(w io.Writer, names []string) error {
	rows := make([]rosterRow, len(names))
	for i, n := range names {
		rows[i] = rosterRow{Name: n}
	}
	return writeCSV(w, rows)
}

// WriteWaveform writes a PPG recording with sample_index and IR columns.
func WriteWaveform(w io.Writer, samples []waveform.Sample) error {
	rows := make([]waveformRow, len(samples))
	for i, s := range samples {
		rows[i] = waveformRow{SampleIndex: s.Index, IR: s.IR}
	}
	return writeCSV(w, rows)
}
