package waveform

import (
	"fmt"

	"github.com/okian/pulse/internal/domain/model"
)

// Reproducibility constants. Changing any of these changes every stored estimate.
const (
	// DefaultSamplingDivisor is the sampling rate in samples per second used to
	// turn sample-index differences into seconds.
	DefaultSamplingDivisor = 100.0
	// DefaultMinPeakDistance is the minimum spacing between two heartbeats, in samples.
	DefaultMinPeakDistance = 30

	// Linear heart-rate to blood-pressure model, mmHg per bpm and mmHg offsets.
	SystolicSlope      = 0.5
	SystolicIntercept  = 100.0
	DiastolicSlope     = 0.3
	DiastolicIntercept = 60.0

	secondsPerMinute = 60.0
	minPeaksForRate  = 2
)

// Sample is one row of a PPG recording.
type Sample struct {
	Index int64   // sample_index, strictly increasing
	IR    float64 // infrared intensity
}

// Params controls peak detection and heart-rate derivation.
type Params struct {
	SamplingDivisor float64
	MinPeakDistance int
}

// DefaultParams returns the reproducibility defaults.
func DefaultParams() Params {
	return Params{
		SamplingDivisor: DefaultSamplingDivisor,
		MinPeakDistance: DefaultMinPeakDistance,
	}
}

// Validate checks the parameters are usable.
func (p Params) Validate() error {
	if p.SamplingDivisor <= 0 {
		return fmt.Errorf("%w: sampling divisor %v", ErrInvalidParams, p.SamplingDivisor)
	}
	if p.MinPeakDistance < 1 {
		return fmt.Errorf("%w: min peak distance %d", ErrInvalidParams, p.MinPeakDistance)
	}
	return nil
}

// Validate checks that samples is non-empty and its indices strictly increase.
func Validate(samples []Sample) error {
	if len(samples) == 0 {
		return ErrEmptyWaveform
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Index <= samples[i-1].Index {
			return fmt.Errorf("%w: index %d at row %d follows %d",
				ErrNonMonotonic, samples[i].Index, i, samples[i-1].Index)
		}
	}
	return nil
}

// HeartRate derives beats per minute from the mean spacing of the detected peaks.
// It reports false when fewer than two peaks exist; the rate is then undefined.
func HeartRate(samples []Sample, peaks []int, samplingDivisor float64) (float64, bool) {
	if len(peaks) < minPeaksForRate || samplingDivisor <= 0 {
		return 0, false
	}
	var total float64
	for i := 1; i < len(peaks); i++ {
		total += float64(samples[peaks[i]].Index - samples[peaks[i-1]].Index)
	}
	meanInterval := total / float64(len(peaks)-1)
	if meanInterval <= 0 {
		return 0, false
	}
	return secondsPerMinute / (meanInterval / samplingDivisor), true
}

// EstimateBP maps a heart rate to systolic and diastolic pressure.
func EstimateBP(heartRate float64) (systolic, diastolic float64) {
	return SystolicSlope*heartRate + SystolicIntercept, DiastolicSlope*heartRate + DiastolicIntercept
}

// Extract runs peak detection, heart-rate derivation and the BP model for one subject.
// Too few peaks is not an error: the estimate comes back unavailable. An empty
// recording has no peaks and is treated the same way.
func Extract(subjectID string, samples []Sample, p Params) (model.BPEstimate, error) {
	if err := p.Validate(); err != nil {
		return model.BPEstimate{}, err
	}
	if len(samples) == 0 {
		return model.BPEstimate{SubjectID: subjectID, Status: model.StatusInsufficientSignal}, nil
	}
	if err := Validate(samples); err != nil {
		return model.BPEstimate{}, err
	}

	ir := make([]float64, len(samples))
	for i, s := range samples {
		ir[i] = s.IR
	}
	peaks := FindPeaks(ir, p.MinPeakDistance)

	est := model.BPEstimate{SubjectID: subjectID, Peaks: len(peaks)}
	hr, ok := HeartRate(samples, peaks, p.SamplingDivisor)
	if !ok {
		est.Status = model.StatusInsufficientSignal
		return est, nil
	}

	est.HeartRate = hr
	est.Systolic, est.Diastolic = EstimateBP(hr)
	est.Available = true
	est.Status = model.StatusEstimated
	return est, nil
}
