package stream

import (
	"runtime"

	"streamscribe/internal/config"
)

// Config holds the windowing and decoding settings for one session.
type Config struct {
	StepMS   int // <= 0 selects voice-activity mode
	LengthMS int
	KeepMS   int

	MaxTokens int
	AudioCtx  int
	Threads   int

	VADEnergyThreshold float64
	VADFreqThresholdHz float64
	VADWindowMS        int
	ProbeMS            int

	Translate    bool
	NoContext    bool
	NoTimestamps bool
	Language     string
	SpeedUp      bool
}

// DefaultConfig returns the stock settings: 3 s steps over a 10 s window.
func DefaultConfig() Config {
	return Config{
		StepMS:             3000,
		LengthMS:           10000,
		KeepMS:             200,
		MaxTokens:          32,
		Threads:            min(4, runtime.NumCPU()),
		VADEnergyThreshold: 0.6,
		VADFreqThresholdHz: 100,
		VADWindowMS:        1000,
		ProbeMS:            2000,
		NoContext:          true,
		NoTimestamps:       true,
		Language:           "en",
	}
}

// FromConfig builds a session config from the application config.
func FromConfig(cfg *config.Config) Config {
	return Config{
		StepMS:             cfg.Stream.StepMS,
		LengthMS:           cfg.Stream.LengthMS,
		KeepMS:             cfg.Stream.KeepMS,
		MaxTokens:          cfg.Stream.MaxTokens,
		AudioCtx:           cfg.Stream.AudioCtx,
		Threads:            cfg.ASR.Threads,
		VADEnergyThreshold: cfg.Stream.VADEnergyThreshold,
		VADFreqThresholdHz: cfg.Stream.VADFreqThresholdHz,
		VADWindowMS:        cfg.VAD.WindowMS,
		ProbeMS:            cfg.VAD.ProbeMS,
		Translate:          cfg.Stream.Translate,
		NoContext:          cfg.Stream.NoContext,
		NoTimestamps:       cfg.Stream.NoTimestamps,
		Language:           cfg.Stream.Language,
		SpeedUp:            cfg.Stream.SpeedUp,
	}
}

// VoiceActivity reports whether the config selects VAD-gated windows.
func (c Config) VoiceActivity() bool { return c.StepMS <= 0 }

// normalized applies the clamps the loop relies on. Voice-activity mode
// always decodes without context and with timestamps.
func (c Config) normalized() Config {
	if c.VoiceActivity() {
		c.NoContext = true
		c.NoTimestamps = false
	} else {
		c.KeepMS = min(c.KeepMS, c.StepMS)
		c.LengthMS = max(c.LengthMS, c.StepMS)
		c.NoTimestamps = true
	}
	c.KeepMS = max(c.KeepMS, 0)
	if c.ProbeMS <= 0 {
		c.ProbeMS = 2000
	}
	if c.VADWindowMS <= 0 {
		c.VADWindowMS = 1000
	}
	return c
}

// Effective returns the settings a session will run with after clamping.
func (c Config) Effective() Config { return c.normalized() }

// newLineEvery is how many fixed-step windows make up one output line.
func (c Config) newLineEvery() int {
	if c.StepMS <= 0 {
		return 1
	}
	return max(1, c.LengthMS/c.StepMS-1)
}
