package waveform

import "errors"

// Sentinel kinds for malformed waveform input.
var (
	ErrEmptyWaveform = errors.New("waveform has no samples")
	ErrNonMonotonic  = errors.New("sample_index is not strictly increasing")
	ErrInvalidParams = errors.New("invalid extraction parameters")
)
