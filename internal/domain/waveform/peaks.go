// Package waveform turns a PPG infrared waveform into a heart rate and a
// blood pressure estimate.
package waveform

import "sort"

// FindPeaks returns the positions of local maxima in x that are at least
// minDistance samples apart.
//
// A flat top counts as a single peak located at the middle of the plateau.
// The first and last samples are never peaks. When two peaks are closer than
// minDistance the taller one survives; among equally tall peaks the later one
// is visited first. No amplitude threshold is applied.
func FindPeaks(x []float64, minDistance int) []int {
	peaks := localMaxima(x)
	if minDistance <= 1 || len(peaks) < 2 {
		return peaks
	}
	return selectByDistance(x, peaks, minDistance)
}

func localMaxima(x []float64) []int {
	var peaks []int
	last := len(x) - 1
	for i := 1; i < last; i++ {
		if x[i-1] >= x[i] {
			continue
		}
		ahead := i + 1
		for ahead < last && x[ahead] == x[i] {
			ahead++
		}
		if x[ahead] < x[i] {
			peaks = append(peaks, (i+ahead-1)/2)
			i = ahead
		}
	}
	return peaks
}

func selectByDistance(x []float64, peaks []int, minDistance int) []int {
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	// ascending by height; visited from the back so the tallest wins
	sort.SliceStable(order, func(a, b int) bool {
		return x[peaks[order[a]]] < x[peaks[order[b]]]
	})

	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}
	for i := len(order) - 1; i >= 0; i-- {
		j := order[i]
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < minDistance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < len(peaks) && peaks[k]-peaks[j] < minDistance; k++ {
			keep[k] = false
		}
	}

	out := make([]int, 0, len(peaks))
	for i, p := range peaks {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}
