package vad

import "math"

// Energy is the classic "speech then silence" check: the window qualifies
// when the trailing windowMS is quiet relative to the whole window, meaning
// the speaker just paused. Input samples are never modified.
type Energy struct{}

func (Energy) HasSpeech(samples []float32, sampleRate, windowMS int, energyThreshold, freqThreshold float64) bool {
	n := len(samples)
	nLast := sampleRate * windowMS / 1000
	if n == 0 || nLast >= n {
		return false
	}

	pcm := samples
	if freqThreshold > 0 {
		pcm = HighPass(samples, freqThreshold, sampleRate)
	}

	var all, last float64
	for i, s := range pcm {
		a := math.Abs(float64(s))
		all += a
		if i >= n-nLast {
			last += a
		}
	}
	all /= float64(n)
	last /= float64(nLast)

	return last <= energyThreshold*all
}

// HighPass runs a first-order high-pass filter with the given cutoff and
// returns the filtered copy.
func HighPass(samples []float32, cutoffHz float64, sampleRate int) []float32 {
	out := make([]float32, len(samples))
	if len(samples) == 0 {
		return out
	}
	rc := 1.0 / (2.0 * math.Pi * cutoffHz)
	dt := 1.0 / float64(sampleRate)
	alpha := float32(dt / (rc + dt))

	y := samples[0]
	out[0] = y
	for i := 1; i < len(samples); i++ {
		y = alpha * (y + samples[i] - samples[i-1])
		out[i] = y
	}
	return out
}
