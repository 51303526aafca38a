package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnvOverrides(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}

	t.Setenv("STREAMSCRIBE_METRICS_ADDR", "1.2.3.4:9999")
	t.Setenv("STREAMSCRIBE_LOG_LEVEL", "debug")
	t.Setenv("STREAMSCRIBE_LOG_FORMAT", "json")
	t.Setenv("STREAMSCRIBE_STREAM_STEP_MS", "0")
	t.Setenv("STREAMSCRIBE_STREAM_LANGUAGE", "de")
	t.Setenv("STREAMSCRIBE_AUDIO_BACKEND", "file")
	t.Setenv("STREAMSCRIBE_TRANSCRIPTS_ENABLED", "false")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("env: %v", err)
	}

	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != "1.2.3.4:9999" {
		t.Fatalf("metrics override failed: %+v", cfg.Metrics)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging overrides failed: %+v", cfg.Logging)
	}
	if cfg.Stream.StepMS != 0 || cfg.Stream.Language != "de" {
		t.Fatalf("stream overrides failed: %+v", cfg.Stream)
	}
	if cfg.Audio.Backend != "file" {
		t.Fatalf("audio backend override failed: %q", cfg.Audio.Backend)
	}
	if cfg.Transcripts.Enabled {
		t.Fatalf("transcripts should be disabled via env")
	}
	// untouched fields keep their defaults
	if cfg.Stream.LengthMS != 10000 || cfg.Stream.KeepMS != 200 {
		t.Fatalf("defaults clobbered: %+v", cfg.Stream)
	}
}

func TestEnvOverridesBadValue(t *testing.T) {
	cfg, _ := Default()
	t.Setenv("STREAMSCRIBE_STREAM_STEP_MS", "three seconds")
	if err := applyEnvOverrides(cfg); err == nil {
		t.Fatalf("expected parse error for non-numeric step")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Hook.Command = "/bin/echo"
	cfg.Stream.StepMS = 500
	cfg.VAD.Engine = "webrtc"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Hook.Command != "/bin/echo" {
		t.Fatalf("expected hook command to persist")
	}
	if loaded.Stream.StepMS != 500 || loaded.VAD.Engine != "webrtc" {
		t.Fatalf("stream/vad not persisted: %+v %+v", loaded.Stream, loaded.VAD)
	}
	if loaded.Paths.ConfigPath != path {
		t.Fatalf("config path = %q", loaded.Paths.ConfigPath)
	}
}

func TestLoadWritesTemplateWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("template not written: %v", err)
	}
	if cfg.Stream.StepMS != 3000 {
		t.Fatalf("expected default step, got %d", cfg.Stream.StepMS)
	}
}

func TestResolveModel(t *testing.T) {
	cfg, _ := Default()
	cfg.Paths.ModelDir = "/models"
	if got := ResolveModel(cfg, "ggml-tiny.bin"); got != "/models/ggml-tiny.bin" {
		t.Fatalf("bare name: %s", got)
	}
	if got := ResolveModel(cfg, "/abs/m.bin"); got != "/abs/m.bin" {
		t.Fatalf("abs path: %s", got)
	}
	if got := ResolveModel(cfg, "rel/m.bin"); got != "rel/m.bin" {
		t.Fatalf("relative path: %s", got)
	}
}
