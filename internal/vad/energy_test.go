package vad

import (
	"math"
	"testing"
)

func tone(n int, amp float64, freq float64, rate int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestEnergySpeechThenSilence(t *testing.T) {
	const rate = 16000
	samples := append(tone(2*rate, 0.5, 440, rate), make([]float32, rate)...)
	if !(Energy{}).HasSpeech(samples, rate, 1000, 0.6, 100) {
		t.Fatalf("expected pause after speech to trigger")
	}
}

func TestEnergyOngoingSpeech(t *testing.T) {
	const rate = 16000
	samples := tone(3*rate, 0.5, 440, rate)
	if (Energy{}).HasSpeech(samples, rate, 1000, 0.6, 100) {
		t.Fatalf("steady speech must not trigger")
	}
}

func TestEnergyWindowTooLong(t *testing.T) {
	samples := make([]float32, 1000)
	if (Energy{}).HasSpeech(samples, 1000, 1000, 0.6, 0) {
		t.Fatalf("window covering the whole input must report false")
	}
	if (Energy{}).HasSpeech(nil, 16000, 1000, 0.6, 0) {
		t.Fatalf("empty input must report false")
	}
}

func TestEnergyDoesNotModifyInput(t *testing.T) {
	const rate = 8000
	samples := tone(2*rate, 0.3, 200, rate)
	orig := append([]float32(nil), samples...)
	(Energy{}).HasSpeech(samples, rate, 500, 0.6, 100)
	for i := range samples {
		if samples[i] != orig[i] {
			t.Fatalf("input modified at %d", i)
		}
	}
}

func TestHighPassRemovesDC(t *testing.T) {
	in := make([]float32, 4000)
	for i := range in {
		in[i] = 0.5
	}
	out := HighPass(in, 100, 16000)
	if math.Abs(float64(out[len(out)-1])) > 1e-3 {
		t.Fatalf("DC not removed: %v", out[len(out)-1])
	}
}

func TestNewEngines(t *testing.T) {
	if d, err := New("", 2); err != nil {
		t.Fatalf("default engine: %v", err)
	} else if _, ok := d.(Energy); !ok {
		t.Fatalf("default engine is %T", d)
	}
	if _, err := New("silero", 2); err == nil {
		t.Fatalf("unknown engine accepted")
	}
}
