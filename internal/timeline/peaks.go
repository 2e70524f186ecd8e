package timeline

import "math"

// DefaultPeakInterval is the width of one audio bar, in seconds.
const DefaultPeakInterval = 0.01

// SamplePeaks reduces mono samples to one peak amplitude per interval,
// normalised so the loudest bar is 1.
func SamplePeaks(samples []float32, sampleRate int, interval float64) []float32 {
	step := int(math.Round(float64(sampleRate) * interval))
	if step <= 0 || len(samples) == 0 {
		return nil
	}

	bars := make([]float32, 0, len(samples)/step+1)
	var loudest float32
	for start := 0; start < len(samples); start += step {
		end := min(start+step, len(samples))
		var peak float32
		for _, s := range samples[start:end] {
			if s < 0 {
				s = -s
			}
			peak = max(peak, s)
		}
		bars = append(bars, peak)
		loudest = max(loudest, peak)
	}

	if loudest == 0 {
		return bars
	}
	for i := range bars {
		bars[i] /= loudest
	}
	return bars
}

// PeakAt returns the bar covering time t, zero outside the data.
func PeakAt(bars []float32, interval, t float64) float32 {
	if interval <= 0 || t < 0 {
		return 0
	}
	idx := int(t / interval)
	if idx >= len(bars) {
		return 0
	}
	return bars[idx]
}
