package scoring

import "math"

// Normalization constants. Each sub-score maps a raw vital into [0, 100].
const (
	maxScore = 100.0

	// Idealized blood pressure and the combined mmHg deviation that zeroes bp_score.
	idealSystolic   = 120.0
	idealDiastolic  = 80.0
	bpToleranceMmHg = 20.0

	// SpO2 ramp: floor and span in percent saturation.
	spo2Floor = 85.0
	spo2Span  = 15.0

	// Resting heart-rate baseline and tolerance band in bpm.
	restingHR     = 70.0
	hrToleranceHR = 30.0

	// HRV that earns a full score, in ms.
	hrvCeiling = 100.0
)

// BPScore penalizes the combined distance from 120/80; 20 mmHg of total deviation scores 0.
func BPScore(systolic, diastolic float64) float64 {
	margin := bpToleranceMmHg - math.Abs(idealSystolic-systolic) - math.Abs(idealDiastolic-diastolic)
	return math.Max(0, margin) / bpToleranceMmHg * maxScore
}

// SpO2Score ramps linearly from 85% (0) to 100% (100).
func SpO2Score(spo2 float64) float64 {
	return clamp01((spo2-spo2Floor)/spo2Span) * maxScore
}

// HRScore penalizes distance from a 70 bpm baseline within a 30 bpm band.
func HRScore(heartRate float64) float64 {
	return math.Max(0, hrToleranceHR-math.Abs(heartRate-restingHR)) / hrToleranceHR * maxScore
}

// HRVScore scales HRV linearly, capped at 100 ms.
func HRVScore(hrv float64) float64 {
	return clamp01(hrv/hrvCeiling) * maxScore
}

// SleepScore passes the vendor sleep score through, capped at 100.
func SleepScore(sleep float64) float64 {
	return ClampScore(sleep)
}

// ClampScore bounds v to [0, 100].
func ClampScore(v float64) float64 {
	return math.Min(maxScore, math.Max(0, v))
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

// Round2 rounds to two decimals, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
