// Package tabular reads rosters and waveform recordings and writes estimate
// and result tables as CSV and JSON.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jszwec/csvutil"

	"github.com/okian/pulse/internal/domain/waveform"
)

// Column names of the input tables.
const (
	ColumnName        = "Name"
	ColumnSampleIndex = "sample_index"
	ColumnIR          = "IR"
)

type rosterRow struct {
	Name string `csv:"Name"`
}

type waveformRow struct {
	SampleIndex int64   `csv:"sample_index"`
	IR          float64 `csv:"IR"`
}

func newDecoder(r io.Reader, required ...string) (*csvutil.Decoder, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyTable
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	var missing []string
	for _, col := range required {
		if !slices.Contains(dec.Header(), col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return dec, nil
}

// ReadRoster returns subject names in file order. Blank names are skipped.
func ReadRoster(r io.Reader) ([]string, error) {
	dec, err := newDecoder(r, ColumnName)
	if err != nil {
		return nil, err
	}
	var names []string
	for {
		var row rosterRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return names, nil
			}
			return nil, fmt.Errorf("roster row %d: %w", len(names)+1, err)
		}
		if name := strings.TrimSpace(row.Name); name != "" {
			names = append(names, name)
		}
	}
}

// ReadWaveform decodes a PPG recording. Columns other than sample_index and IR are ignored.
func ReadWaveform(r io.Reader) ([]waveform.Sample, error) {
	dec, err := newDecoder(r, ColumnSampleIndex, ColumnIR)
	if err != nil {
		return nil, err
	}
	var samples []waveform.Sample
	for {
		var row waveformRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return samples, nil
			}
			return nil, fmt.Errorf("waveform row %d: %w", len(samples)+1, err)
		}
		samples = append(samples, waveform.Sample{Index: row.SampleIndex, IR: row.IR})
	}
}

// SubjectIDFromPath returns the file name up to its first dot.
func SubjectIDFromPath(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}
