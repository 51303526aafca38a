// Package doctor runs environment checks for the daemon.
package doctor

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"

	"streamscribe/internal/audio"
	"streamscribe/internal/config"
	"streamscribe/internal/vad"
)

// Result represents a diagnostic check.
type Result struct {
	Name   string
	Pass   bool
	Detail string
}

// Run executes doctor checks.
func Run(cfg *config.Config) []Result {
	results := []Result{
		checkFile("config path", cfg.Paths.ConfigPath),
		checkFile("model file", cfg.ASR.ModelPath),
		checkStream(cfg),
		checkVAD(cfg),
		checkAudio(cfg),
	}
	if cfg.Hook.Enabled {
		results = append(results, checkHookExecutable(cfg.Hook.Command))
	}
	if cfg.Metrics.Enabled {
		results = append(results, checkAddr(cfg.Metrics.Addr))
	}
	switch strings.ToLower(cfg.Audio.Backend) {
	case "", "portaudio":
		results = append(results, checkPortAudioPkgConfig(), checkPortAudio())
	}
	return results
}

func checkFile(label, path string) Result {
	if path == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if _, err := os.Stat(os.ExpandEnv(path)); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

func checkStream(cfg *config.Config) Result {
	s := cfg.Stream
	if s.StepMS <= 0 {
		return Result{Name: "stream", Pass: true, Detail: fmt.Sprintf("voice activity, length %dms, probe %dms", s.LengthMS, cfg.VAD.ProbeMS)}
	}
	if s.LengthMS < s.StepMS {
		return Result{Name: "stream", Pass: true, Detail: fmt.Sprintf("length %dms < step %dms, will be raised to step", s.LengthMS, s.StepMS)}
	}
	return Result{Name: "stream", Pass: true, Detail: fmt.Sprintf("step %dms, length %dms, keep %dms", s.StepMS, s.LengthMS, min(s.KeepMS, s.StepMS))}
}

func checkVAD(cfg *config.Config) Result {
	if _, err := vad.New(cfg.VAD.Engine, cfg.VAD.Aggressiveness); err != nil {
		return Result{Name: "vad", Pass: false, Detail: err.Error()}
	}
	return Result{Name: "vad", Pass: true, Detail: cfg.VAD.Engine}
}

func checkAudio(cfg *config.Config) Result {
	b, err := audio.NewBackend(cfg.Audio.Backend, audio.BackendOptions{FilePath: cfg.Audio.FilePath})
	if err != nil {
		return Result{Name: "audio", Pass: false, Detail: err.Error()}
	}
	defer func() { _ = b.Close() }()
	devs, err := b.Devices()
	if err != nil {
		return Result{Name: "audio", Pass: false, Detail: err.Error()}
	}
	if len(devs) == 0 {
		return Result{Name: "audio", Pass: false, Detail: "no input devices"}
	}
	if cfg.Audio.DeviceName != "" {
		if _, err := audio.FindDevice(b, cfg.Audio.DeviceName); err != nil {
			return Result{Name: "audio", Pass: false, Detail: err.Error()}
		}
	}
	return Result{Name: "audio", Pass: true, Detail: fmt.Sprintf("%d input device(s)", len(devs))}
}

func checkAddr(addr string) Result {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return Result{Name: "metrics.addr", Pass: false, Detail: err.Error()}
	}
	return Result{Name: "metrics.addr", Pass: true, Detail: addr}
}

func checkHookExecutable(cmd string) Result {
	label := "hook.command"
	if cmd == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	path := os.ExpandEnv(cmd)
	// If contains a path separator, treat as explicit path.
	if strings.Contains(path, "/") || strings.Contains(path, "\\") {
		info, err := os.Stat(path)
		if err != nil {
			return Result{Name: label, Pass: false, Detail: err.Error()}
		}
		if info.IsDir() {
			return Result{Name: label, Pass: false, Detail: "is a directory; set hook.command to an executable file"}
		}
		if info.Mode().Perm()&0o111 == 0 {
			return Result{Name: label, Pass: false, Detail: "not executable; chmod +x or choose another command"}
		}
		return Result{Name: label, Pass: true, Detail: path}
	}
	// Else search PATH.
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: resolved}
}

func checkPortAudioPkgConfig() Result {
	pkg, err := exec.LookPath("pkg-config")
	if err != nil {
		return Result{Name: "pkg-config", Pass: false, Detail: "pkg-config not found"}
	}
	cmd := exec.Command(pkg, "--exists", "portaudio-2.0")
	if err := cmd.Run(); err != nil {
		return Result{Name: "portaudio-dev", Pass: false, Detail: "portaudio-2.0 not found (brew install portaudio / apt install portaudio19-dev)"}
	}
	versionCmd := exec.Command(pkg, "--modversion", "portaudio-2.0")
	if out, err := versionCmd.Output(); err == nil {
		return Result{Name: "portaudio-dev", Pass: true, Detail: strings.TrimSpace(string(out))}
	}
	return Result{Name: "portaudio-dev", Pass: true, Detail: "found via pkg-config"}
}
