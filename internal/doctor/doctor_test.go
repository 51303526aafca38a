package doctor

import (
	"os"
	"path/filepath"
	"testing"

	"streamscribe/internal/audio"
	"streamscribe/internal/config"
)

func byName(results []Result) map[string]Result {
	out := make(map[string]Result, len(results))
	for _, r := range results {
		out[r.Name] = r
	}
	return out
}

func TestRunWithFileBackend(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := config.Default()
	cfg.Paths.ConfigPath = filepath.Join(dir, "config.toml")
	if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
		t.Fatalf("save: %v", err)
	}
	cfg.ASR.ModelPath = filepath.Join(dir, "missing.bin")
	wav := filepath.Join(dir, "in.wav")
	if err := audio.WriteWAV(wav, make([]float32, 1600), 16000); err != nil {
		t.Fatalf("wav: %v", err)
	}
	cfg.Audio.Backend = "file"
	cfg.Audio.FilePath = wav
	cfg.Hook.Enabled = true
	cfg.Hook.Command = dir
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = "not-an-addr"

	got := byName(Run(cfg))
	if !got["config path"].Pass {
		t.Fatalf("config path should pass: %+v", got["config path"])
	}
	if got["model file"].Pass {
		t.Fatalf("missing model should fail")
	}
	if !got["audio"].Pass || !got["vad"].Pass || !got["stream"].Pass {
		t.Fatalf("audio/vad/stream should pass: %+v", got)
	}
	if got["hook.command"].Pass {
		t.Fatalf("directory hook should fail")
	}
	if got["metrics.addr"].Pass {
		t.Fatalf("bad addr should fail")
	}
	if _, ok := got["portaudio"]; ok {
		t.Fatalf("portaudio checks only apply to the portaudio backend")
	}
}

func TestCheckVADRejectsUnknownEngine(t *testing.T) {
	cfg, _ := config.Default()
	cfg.VAD.Engine = "psychic"
	if r := checkVAD(cfg); r.Pass {
		t.Fatalf("expected failure")
	}
}

func TestCheckHookExecutable(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "hook.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := checkHookExecutable(script); r.Pass {
		t.Fatalf("non-executable should fail")
	}
	if err := os.Chmod(script, 0o755); err != nil {
		t.Fatal(err)
	}
	if r := checkHookExecutable(script); !r.Pass {
		t.Fatalf("executable should pass: %+v", r)
	}
}
