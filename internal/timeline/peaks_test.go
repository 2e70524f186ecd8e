package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSamplePeaksNormalises(t *testing.T) {
	samples := []float32{0.1, -0.4, 0.2, 0.1, 0.05, -0.1}
	bars := SamplePeaks(samples, 200, 0.01)

	assert.Len(t, bars, 3)
	assert.InDelta(t, 1.0, bars[0], 1e-6)
	assert.InDelta(t, 0.5, bars[1], 1e-6)
	assert.InDelta(t, 0.25, bars[2], 1e-6)
}

func TestSamplePeaksPartialWindowAndSilence(t *testing.T) {
	bars := SamplePeaks([]float32{0, 0, 0}, 200, 0.01)
	assert.Equal(t, []float32{0, 0}, bars)

	assert.Nil(t, SamplePeaks(nil, 200, 0.01))
	assert.Nil(t, SamplePeaks([]float32{1}, 0, 0.01))
}

func TestPeakAt(t *testing.T) {
	bars := []float32{0.2, 1}
	assert.Equal(t, float32(1), PeakAt(bars, 0.01, 0.015))
	assert.Zero(t, PeakAt(bars, 0.01, 0.5))
	assert.Zero(t, PeakAt(bars, 0.01, -1))
}
