package daemon

import (
	"fmt"
	"os"
	"testing"
	"time"

	"streamscribe/internal/config"
)

func TestWaitForExitSucceedsWhenPidFileRemoved(t *testing.T) {
	pidPath := t.TempDir() + "/streamscribe.pid"
	if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.Remove(pidPath)
	}()
	if err := waitForExit(pidPath, 2*time.Second); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestWaitForExitRemovesStalePidFile(t *testing.T) {
	pidPath := t.TempDir() + "/streamscribe.pid"
	if err := os.WriteFile(pidPath, []byte("-7"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if err := waitForExit(pidPath, time.Second); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("stale pid file should be removed: %v", err)
	}
}

func TestWaitForExitTimesOutOnAlivePid(t *testing.T) {
	pidPath := t.TempDir() + "/streamscribe.pid"
	if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if err := waitForExit(pidPath, 300*time.Millisecond); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestFlagOverrides(t *testing.T) {
	cmd := NewServeCmd(new(string))
	if got := flagOverrides(cmd); len(got) != 0 {
		t.Fatalf("expected no overrides, got %v", got)
	}
	if err := cmd.ParseFlags([]string{"--metrics-addr", "127.0.0.1:9999", "--vad", "--audio-file", "/tmp/a.wav"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{
		"STREAMSCRIBE_METRICS_ADDR=127.0.0.1:9999",
		"STREAMSCRIBE_STREAM_STEP_MS=0",
		"STREAMSCRIBE_AUDIO_BACKEND=file",
		"STREAMSCRIBE_AUDIO_FILE_PATH=/tmp/a.wav",
	}
	got := flagOverrides(cmd)
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestEnsureNotRunning(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := config.Default()
	cfg.Paths.PidPath = dir + "/streamscribe.pid"
	if err := ensureNotRunning(cfg); err != nil {
		t.Fatalf("no pid file: %v", err)
	}
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if err := ensureNotRunning(cfg); err == nil {
		t.Fatalf("expected already running error")
	}
}
