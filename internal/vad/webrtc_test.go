package vad

import "testing"

func TestWebRTCSilenceIsNotSpeech(t *testing.T) {
	d, err := NewWebRTC(3)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if d.HasSpeech(make([]float32, 16000), 16000, 1000, 0, 0) {
		t.Fatalf("silence reported as speech")
	}
}

func TestWebRTCUnsupportedRate(t *testing.T) {
	d, err := NewWebRTC(1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if d.HasSpeech(tone(44100, 0.5, 300, 44100), 44100, 1000, 0, 0) {
		t.Fatalf("44.1 kHz must be rejected")
	}
}

func TestWebRTCBadMode(t *testing.T) {
	if _, err := NewWebRTC(7); err == nil {
		t.Fatalf("mode 7 accepted")
	}
}
