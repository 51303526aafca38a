// Package vad decides whether the tail of an audio window contains speech.
package vad

import (
	"fmt"
	"strings"
)

// Detector judges a window of mono samples. windowMS is the length of the
// trailing region to examine. Implementations that do not use a threshold
// ignore it.
type Detector interface {
	HasSpeech(samples []float32, sampleRate, windowMS int, energyThreshold, freqThreshold float64) bool
}

// New returns the detector registered under engine: "energy" (default) or
// "webrtc".
func New(engine string, aggressiveness int) (Detector, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", "energy", "simple":
		return Energy{}, nil
	case "webrtc":
		return NewWebRTC(aggressiveness)
	default:
		return nil, fmt.Errorf("unknown vad engine %q (want energy or webrtc)", engine)
	}
}
