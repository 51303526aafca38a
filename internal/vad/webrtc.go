package vad

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

const (
	webrtcFrameMS = 20
	// share of voiced frames in the trailing window that counts as speech
	webrtcSpeechRatio = 0.10
)

// WebRTC classifies the trailing window with the WebRTC voice detector.
// It only accepts 8, 16, 32 and 48 kHz audio; other rates report no speech.
type WebRTC struct {
	mu  sync.Mutex
	vad *webrtcvad.VAD
}

// NewWebRTC creates a detector with aggressiveness 0 (lenient) to 3 (strict).
func NewWebRTC(aggressiveness int) (*WebRTC, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("webrtc vad: %w", err)
	}
	if err := v.SetMode(aggressiveness); err != nil {
		return nil, fmt.Errorf("webrtc vad mode %d: %w", aggressiveness, err)
	}
	return &WebRTC{vad: v}, nil
}

func (w *WebRTC) HasSpeech(samples []float32, sampleRate, windowMS int, _, _ float64) bool {
	frameLen := sampleRate * webrtcFrameMS / 1000
	nLast := sampleRate * windowMS / 1000
	if nLast <= 0 || nLast > len(samples) {
		nLast = len(samples)
	}
	tail := samples[len(samples)-nLast:]

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.vad.ValidRateAndFrameLength(sampleRate, frameLen) {
		return false
	}

	frame := make([]byte, frameLen*2)
	var total, voiced int
	for off := 0; off+frameLen <= len(tail); off += frameLen {
		for i, s := range tail[off : off+frameLen] {
			binary.LittleEndian.PutUint16(frame[i*2:], uint16(toPCM16(s)))
		}
		active, err := w.vad.Process(sampleRate, frame)
		if err != nil {
			continue
		}
		total++
		if active {
			voiced++
		}
	}
	if total == 0 {
		return false
	}
	return float64(voiced)/float64(total) >= webrtcSpeechRatio
}

func toPCM16(s float32) int16 {
	v := math.Round(float64(s) * 32767)
	return int16(min(max(v, -32768), 32767))
}
