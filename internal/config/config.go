// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat snake_case so env vars map one-to-one (PULSE_WORKER_COUNT -> worker_count).
// - New builds a Config with defaults; Load layers a YAML file and env vars on top.
// - Date ranges are kept as YYYY-MM-DD strings and parsed by accessor methods.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// DateLayout is the layout for the configured vitals date ranges.
const DateLayout = "2006-01-02"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`
	// CORSOrigins lists the allowed CORS origins (comma separated in env).
	CORSOrigins []string `koanf:"cors_origins"`

	// RosterPath is the CSV listing subject names under a "Name" column.
	RosterPath string `koanf:"roster_path"`
	// WaveformDir holds one PPG CSV per subject.
	WaveformDir string `koanf:"waveform_dir"`
	// DataDir receives the dual CSV/JSON serializations of estimates and results.
	DataDir string `koanf:"data_dir"`
	// DBPath is the SQLite record store; empty keeps records in memory.
	DBPath string `koanf:"db_path"`
	// RunOnStart runs extraction and scoring once before serving.
	RunOnStart bool `koanf:"run_on_start"`

	// QueueSize bounds the in-memory scoring job queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count"`
	// ExtractConcurrency bounds concurrent waveform files during extraction.
	ExtractConcurrency int `koanf:"extract_concurrency"`

	// SamplingDivisor converts sample-index differences to seconds (samples per second).
	SamplingDivisor float64 `koanf:"sampling_divisor"`
	// MinPeakDistance is the minimum number of samples between two detected heartbeats.
	MinPeakDistance int `koanf:"min_peak_distance"`

	// VitalsBaseURL points at the vendor vitals API; empty selects the mock generator.
	VitalsBaseURL string `koanf:"vitals_base_url"`
	// VitalsAPIKey is sent as the x-api-key header.
	VitalsAPIKey string `koanf:"vitals_api_key"`
	// VitalsTimeout bounds a single vitals HTTP call.
	VitalsTimeout time.Duration `koanf:"vitals_timeout"`
	// VitalsMaxAttempts is the total number of attempts per vitals call.
	VitalsMaxAttempts int `koanf:"vitals_max_attempts"`
	// VitalsInitialBackoff is the base retry delay.
	VitalsInitialBackoff time.Duration `koanf:"vitals_initial_backoff"`
	// VitalsRateLimit caps vitals requests per second; VitalsBurst sets the bucket size.
	VitalsRateLimit float64 `koanf:"vitals_rate_limit"`
	VitalsBurst     int     `koanf:"vitals_burst"`

	// VitalsRangeStart and VitalsRangeEnd bound the daily vitals window (YYYY-MM-DD).
	VitalsRangeStart string `koanf:"vitals_range_start"`
	VitalsRangeEnd   string `koanf:"vitals_range_end"`
	// HRRangeStart and HRRangeEnd bound the heart-rate sample stream window (YYYY-MM-DD).
	HRRangeStart string `koanf:"hr_range_start"`
	HRRangeEnd   string `koanf:"hr_range_end"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		CORSOrigins:          []string{"*"},
		RosterPath:           "data/pilot_data.csv",
		WaveformDir:          "regular",
		DataDir:              "data",
		DBPath:               "",
		RunOnStart:           false,
		QueueSize:            10_000,
		WorkerCount:          runtime.NumCPU() * 2,
		ExtractConcurrency:   runtime.NumCPU(),
		SamplingDivisor:      100,
		MinPeakDistance:      30,
		VitalsTimeout:        10 * time.Second,
		VitalsMaxAttempts:    3,
		VitalsInitialBackoff: 500 * time.Millisecond,
		VitalsRateLimit:      10,
		VitalsBurst:          10,
		VitalsRangeStart:     "2025-02-05",
		VitalsRangeEnd:       "2025-02-06",
		HRRangeStart:         "2025-02-10",
		HRRangeEnd:           "2025-02-15",
	}
}

// VitalsRange returns the parsed daily vitals window.
func (c *Config) VitalsRange() (time.Time, time.Time, error) {
	return parseRange(c.VitalsRangeStart, c.VitalsRangeEnd)
}

// HRRange returns the parsed heart-rate stream window.
func (c *Config) HRRange() (time.Time, time.Time, error) {
	return parseRange(c.HRRangeStart, c.HRRangeEnd)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.SamplingDivisor <= 0:
		return fmt.Errorf("%w: sampling_divisor must be positive", ErrInvalidConfig)
	case c.MinPeakDistance < 1:
		return fmt.Errorf("%w: min_peak_distance must be at least 1", ErrInvalidConfig)
	case c.VitalsMaxAttempts < 1:
		return fmt.Errorf("%w: vitals_max_attempts must be at least 1", ErrInvalidConfig)
	case c.VitalsRateLimit <= 0:
		return fmt.Errorf("%w: vitals_rate_limit must be positive", ErrInvalidConfig)
	}
	if _, _, err := c.VitalsRange(); err != nil {
		return fmt.Errorf("%w: vitals range: %w", ErrInvalidConfig, err)
	}
	if _, _, err := c.HRRange(); err != nil {
		return fmt.Errorf("%w: hr range: %w", ErrInvalidConfig, err)
	}
	return nil
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	from, err := time.Parse(DateLayout, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse start %q: %w", start, err)
	}
	to, err := time.Parse(DateLayout, end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse end %q: %w", end, err)
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("end %s must be after start %s", end, start)
	}
	return from, to, nil
}
