package stream

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"streamscribe/internal/asr"
	"streamscribe/internal/audio"
	"streamscribe/internal/config"
	"streamscribe/internal/logging"
)

func TestOpenReplaysWAVFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "speech.wav")
	if err := audio.WriteWAV(path, constant(0.2, 16000*3), 16000); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Audio.Backend = "file"
	cfg.Audio.FilePath = path
	cfg.Audio.Realtime = false
	cfg.Stream.StepMS = 1000
	cfg.Stream.LengthMS = 5000

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr := &fakeTranscriber{respond: func(int, []float32) ([]asr.Segment, error) {
		cancel()
		return []asr.Segment{{Text: "ok"}}, nil
	}}
	s, err := Open(cfg, tr, logging.NewTestLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Run(ctx, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(tr.Calls()) == 0 {
		t.Fatalf("no window transcribed")
	}
}

func TestOpenRejectsUnknownVADEngine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.wav")
	if err := audio.WriteWAV(path, constant(0, 1600), 16000); err != nil {
		t.Fatal(err)
	}
	cfg, _ := config.Default()
	cfg.Audio.Backend = "file"
	cfg.Audio.FilePath = path
	cfg.VAD.Engine = "neural"
	if _, err := Open(cfg, &fakeTranscriber{}, logging.NewTestLogger()); err == nil {
		t.Fatalf("unknown engine accepted")
	}
}

func TestBufferHoldsMoreThanTwoSteps(t *testing.T) {
	c := Config{StepMS: 3000, LengthMS: 5000}.normalized()
	if got := bufferMS(c); got <= 2*c.StepMS {
		t.Fatalf("buffer %dms cannot exceed two %dms steps", got, c.StepMS)
	}
	v := Config{StepMS: 0, LengthMS: 5000}.normalized()
	if got := bufferMS(v); got != max(v.LengthMS, v.ProbeMS) {
		t.Fatalf("voice activity buffer %dms", got)
	}
}
