// Package pipeline runs the two batch jobs: waveform extraction and scoring.
package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Output file names written under the data directory.
const (
	EstimatesCSV  = "estimated_blood_pressure.csv"
	EstimatesJSON = "estimated_blood_pressure.json"
	ResultsCSV    = "health_scores.csv"
	ResultsJSON   = "health_scores.json"
)

// writeFile writes through a temp file and renames it into place so readers
// never see a half-written table.
func writeFile(dir, name string, write func(io.Writer) error) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after rename

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
