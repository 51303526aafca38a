package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

const (
	envPrefix            = "STREAMSCRIBE_"
	defaultStatusTail    = 10
	defaultStateDirLinux = ".local/state/streamscribe"
	defaultConfigDir     = ".config/streamscribe"
	defaultModelName     = "ggml-base.en.bin"
)

// Config holds user configuration loaded from TOML and STREAMSCRIBE_* env vars.
type Config struct {
	Audio struct {
		Backend     string `toml:"backend" env:"BACKEND"` // portaudio, miniaudio, file
		DeviceIndex int    `toml:"device_index" env:"DEVICE_INDEX"`
		DeviceName  string `toml:"device_name" env:"DEVICE_NAME"`
		SampleRate  int    `toml:"sample_rate" env:"SAMPLE_RATE"`
		FilePath    string `toml:"file_path" env:"FILE_PATH"` // file backend only
		Realtime    bool   `toml:"realtime" env:"REALTIME"`   // file backend pacing
	} `toml:"audio" envPrefix:"AUDIO_"`

	Stream struct {
		StepMS             int     `toml:"step_ms" env:"STEP_MS"`
		LengthMS           int     `toml:"length_ms" env:"LENGTH_MS"`
		KeepMS             int     `toml:"keep_ms" env:"KEEP_MS"`
		MaxTokens          int     `toml:"max_tokens" env:"MAX_TOKENS"`
		AudioCtx           int     `toml:"audio_ctx" env:"AUDIO_CTX"`
		VADEnergyThreshold float64 `toml:"vad_energy_threshold" env:"VAD_ENERGY_THRESHOLD"`
		VADFreqThresholdHz float64 `toml:"vad_freq_threshold_hz" env:"VAD_FREQ_THRESHOLD_HZ"`
		Translate          bool    `toml:"translate" env:"TRANSLATE"`
		NoContext          bool    `toml:"no_context" env:"NO_CONTEXT"`
		NoTimestamps       bool    `toml:"no_timestamps" env:"NO_TIMESTAMPS"`
		Language           string  `toml:"language" env:"LANGUAGE"`
		SpeedUp            bool    `toml:"speed_up" env:"SPEED_UP"`
	} `toml:"stream" envPrefix:"STREAM_"`

	VAD struct {
		Engine         string `toml:"engine" env:"ENGINE"` // energy, webrtc
		Aggressiveness int    `toml:"aggressiveness" env:"AGGRESSIVENESS"`
		WindowMS       int    `toml:"window_ms" env:"WINDOW_MS"`
		ProbeMS        int    `toml:"probe_ms" env:"PROBE_MS"`
	} `toml:"vad" envPrefix:"VAD_"`

	ASR struct {
		ModelPath string `toml:"model_path" env:"MODEL_PATH"`
		Threads   int    `toml:"threads" env:"THREADS"`
	} `toml:"asr" envPrefix:"ASR_"`

	Hook struct {
		Enabled     bool              `toml:"enabled" env:"ENABLED"`
		Command     string            `toml:"command" env:"COMMAND"`
		Args        []string          `toml:"args"`
		ArgsLine    string            `toml:"args_line" env:"ARGS"` // shell-style, appended to args
		Prefix      string            `toml:"prefix" env:"PREFIX"`
		CooldownSec float64           `toml:"cooldown_sec" env:"COOLDOWN_SEC"`
		MinChars    int               `toml:"min_chars" env:"MIN_CHARS"`
		QueueSize   int               `toml:"queue_size" env:"QUEUE_SIZE"`
		TimeoutSec  float64           `toml:"timeout_sec" env:"TIMEOUT_SEC"`
		Env         map[string]string `toml:"env"`
		RedactPII   bool              `toml:"redact_pii" env:"REDACT_PII"`
	} `toml:"hook" envPrefix:"HOOK_"`

	Logging struct {
		Level  string `toml:"level" env:"LEVEL"`   // debug, info, warn, error
		Format string `toml:"format" env:"FORMAT"` // text, json
		Stdout bool   `toml:"stdout" env:"STDOUT"`
	} `toml:"logging" envPrefix:"LOG_"`

	Paths struct {
		StateDir       string `toml:"state_dir"`
		LogPath        string `toml:"log_path"`
		TranscriptPath string `toml:"transcript_path"`
		SocketPath     string `toml:"socket_path"`
		PidPath        string `toml:"pid_path"`
		ModelDir       string `toml:"model_dir"`
		ConfigPath     string `toml:"-"`
	} `toml:"paths"`

	UI struct {
		StatusTail int `toml:"status_tail" env:"STATUS_TAIL"`
	} `toml:"ui" envPrefix:"UI_"`

	Metrics struct {
		Enabled bool   `toml:"enabled" env:"ENABLED"`
		Addr    string `toml:"addr" env:"ADDR"`
	} `toml:"metrics" envPrefix:"METRICS_"`

	Feed struct {
		Enabled bool `toml:"enabled" env:"ENABLED"` // /ws on the metrics listener
	} `toml:"feed" envPrefix:"FEED_"`

	Transcripts struct {
		Enabled bool `toml:"enabled" env:"ENABLED"`
	} `toml:"transcripts" envPrefix:"TRANSCRIPTS_"`
}

// Default returns Config populated with defaults.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	stateDir := filepath.Join(home, defaultStateDirLinux)
	if isMac() {
		stateDir = filepath.Join(home, "Library", "Application Support", "streamscribe")
	}

	cfg := &Config{}

	cfg.Audio.Backend = "portaudio"
	cfg.Audio.DeviceIndex = -1
	cfg.Audio.SampleRate = 16000
	cfg.Audio.Realtime = true

	cfg.Stream.StepMS = 3000
	cfg.Stream.LengthMS = 10000
	cfg.Stream.KeepMS = 200
	cfg.Stream.MaxTokens = 32
	cfg.Stream.AudioCtx = 0
	cfg.Stream.VADEnergyThreshold = 0.6
	cfg.Stream.VADFreqThresholdHz = 100.0
	cfg.Stream.NoContext = true
	cfg.Stream.NoTimestamps = true
	cfg.Stream.Language = "en"

	cfg.VAD.Engine = "energy"
	cfg.VAD.Aggressiveness = 2
	cfg.VAD.WindowMS = 1000
	cfg.VAD.ProbeMS = 2000

	cfg.Paths.StateDir = stateDir
	cfg.Paths.ModelDir = filepath.Join(stateDir, "models")
	cfg.Paths.LogPath = filepath.Join(stateDir, "streamscribe.log")
	cfg.Paths.TranscriptPath = filepath.Join(stateDir, "transcripts.log")
	cfg.Paths.SocketPath = filepath.Join(stateDir, "streamscribe.sock")
	cfg.Paths.PidPath = filepath.Join(stateDir, "streamscribe.pid")

	cfg.ASR.ModelPath = filepath.Join(cfg.Paths.ModelDir, defaultModelName)
	cfg.ASR.Threads = min(4, runtime.NumCPU())

	cfg.Hook.Enabled = false
	cfg.Hook.Args = []string{}
	cfg.Hook.Prefix = "Heard on ${hostname}: "
	cfg.Hook.CooldownSec = 1.0
	cfg.Hook.MinChars = 8
	cfg.Hook.QueueSize = 16
	cfg.Hook.TimeoutSec = 5
	cfg.Hook.Env = map[string]string{}

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.UI.StatusTail = defaultStatusTail

	cfg.Metrics.Enabled = false
	cfg.Metrics.Addr = "127.0.0.1:9318"

	cfg.Feed.Enabled = true
	cfg.Transcripts.Enabled = true

	return cfg, nil
}

// Load loads config from file, applying defaults. A missing file is created
// from the defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, defaultConfigDir, "config.toml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if err := Save(cfg, path); err != nil {
			return nil, err
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Paths.ConfigPath = path
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

func isMac() bool {
	return runtime.GOOS == "darwin"
}

// MustStatePaths ensures state dirs exist.
func MustStatePaths(cfg *Config) error {
	for _, p := range []string{cfg.Paths.StateDir, filepath.Dir(cfg.Paths.LogPath), filepath.Dir(cfg.Paths.TranscriptPath)} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// ResolveModel turns a bare model file name into a path inside the model dir.
func ResolveModel(cfg *Config, name string) string {
	if filepath.IsAbs(name) || filepath.Base(name) != name {
		return name
	}
	return filepath.Join(cfg.Paths.ModelDir, name)
}

func applyEnvOverrides(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	// An explicit metrics address implies the endpoint should be served.
	if _, ok := os.LookupEnv(envPrefix + "METRICS_ADDR"); ok {
		cfg.Metrics.Enabled = true
	}
	return nil
}
