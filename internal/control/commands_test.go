package control

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"streamscribe/internal/config"
)

func TestTailFileKeepsLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log")
	if err := os.WriteFile(path, []byte("a\nb\n\nc\nd\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := tailFile(&buf, path, 2); err != nil {
		t.Fatalf("tail: %v", err)
	}
	if buf.String() != "c\nd\n" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestParseEnvPairs(t *testing.T) {
	env, err := parseEnvPairs([]string{"A=1", "B=x=y"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if env["A"] != "1" || env["B"] != "x=y" {
		t.Fatalf("env %v", env)
	}
	if _, err := parseEnvPairs([]string{"novalue"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAskDecodesReply(t *testing.T) {
	dir, err := os.MkdirTemp("", "ssc")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(dir) }()
	sock := filepath.Join(dir, "s.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		var req Request
		sc := bufio.NewScanner(conn)
		if sc.Scan() {
			_ = json.Unmarshal(sc.Bytes(), &req)
		}
		now := time.Now()
		_ = json.NewEncoder(conn).Encode(Status{Running: true, Mode: req.Op, Heard: 3, LastHeard: &now})
	}()

	var st Status
	if err := ask(sock, "status", &st); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !st.Running || st.Mode != "status" || st.Heard != 3 {
		t.Fatalf("status %+v", st)
	}

	var buf bytes.Buffer
	printStatus(&buf, st)
	if !strings.Contains(buf.String(), "heard: 3") || !strings.Contains(buf.String(), "last heard:") {
		t.Fatalf("printed %q", buf.String())
	}
}

func TestAskWithoutDaemon(t *testing.T) {
	var st Status
	if err := ask(filepath.Join(t.TempDir(), "none.sock"), "status", &st); err == nil {
		t.Fatalf("expected connection error")
	}
}

func TestApplyStreamFlags(t *testing.T) {
	cfg, _ := config.Default()
	cmd := NewStreamCmd(new(string))
	if err := cmd.ParseFlags([]string{"--step", "0", "--length", "8000", "--keep-context", "--file", "/tmp/x.wav", "--fast", "-l", "de"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := applyStreamFlags(cmd, cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Stream.StepMS != 0 || cfg.Stream.LengthMS != 8000 || cfg.Stream.NoContext {
		t.Fatalf("stream %+v", cfg.Stream)
	}
	if cfg.Audio.Backend != "file" || cfg.Audio.FilePath != "/tmp/x.wav" || cfg.Audio.Realtime {
		t.Fatalf("audio %+v", cfg.Audio)
	}
	if cfg.Stream.Language != "de" || cfg.Stream.KeepMS != 200 {
		t.Fatalf("untouched defaults changed: %+v", cfg.Stream)
	}

	cmd = NewStreamCmd(new(string))
	_ = cmd.ParseFlags([]string{"--keep=-5"})
	if err := applyStreamFlags(cmd, cfg); err == nil {
		t.Fatalf("expected negative keep to fail")
	}
}

func TestMicAndModelSetPersist(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	cfg, _ := config.Default()
	cfg.Paths.ModelDir = filepath.Join(dir, "models")
	if err := config.Save(cfg, cfgPath); err != nil {
		t.Fatal(err)
	}

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		var root = NewMicCmd(&cfgPath)
		if args[0] == "models" {
			root = NewModelsCmd(&cfgPath)
		}
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetArgs(args[1:])
		if err := root.Execute(); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	run("mic", "set", "--index", "2")
	loaded, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Audio.DeviceIndex != 2 || loaded.Audio.DeviceName != "" {
		t.Fatalf("audio %+v", loaded.Audio)
	}

	run("mic", "set", "USB")
	run("models", "set", "ggml-small.en.bin")
	loaded, _ = config.Load(cfgPath)
	if loaded.Audio.DeviceName != "USB" || loaded.Audio.DeviceIndex != -1 {
		t.Fatalf("audio %+v", loaded.Audio)
	}
	if loaded.ASR.ModelPath != filepath.Join(dir, "models", "ggml-small.en.bin") {
		t.Fatalf("model path %s", loaded.ASR.ModelPath)
	}

	if out := run("models", "list"); !strings.Contains(out, "ggml-small.en.bin (active)") {
		t.Fatalf("list output %q", out)
	}
}
