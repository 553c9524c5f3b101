// Package smoke drives a running pulse server end to end and checks the
// invariants its responses must hold.
package smoke

import "time"

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// TriggerRuns posts /runs/extract and /runs/score before reading.
	TriggerRuns bool
	// Streams is how many subjects get a heart-rate stream replayed.
	Streams int
	// Workers bounds concurrent stream replays.
	Workers int
}

// DefaultConfig returns the configuration used by pulsectl smoke.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:9080",
		Timeout:     2 * time.Minute,
		TriggerRuns: true,
		Streams:     3,
		Workers:     4,
	}
}

// Stats summarizes a smoke run.
type Stats struct {
	Results         int
	Estimates       int
	DefaultBP       int
	Overrides       int
	StreamsReplayed int
	SamplesRead     int
	Duration        time.Duration
}
