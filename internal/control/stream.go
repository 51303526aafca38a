package control

import (
	"fmt"

	"streamscribe/internal/asr"
	"streamscribe/internal/config"
	"streamscribe/internal/logging"
	"streamscribe/internal/metrics"
	"streamscribe/internal/stream"

	"github.com/spf13/cobra"
)

// NewStreamCmd runs a streaming session in the foreground and renders the
// live transcript on stdout.
func NewStreamCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Transcribe the microphone live in this terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if err := applyStreamFlags(cmd, cfg); err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}

			tr, err := asr.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("asr init: %w", err)
			}
			defer func() { _ = tr.Close() }()

			sess, err := stream.Open(cfg, tr, logger,
				stream.WithOutput(cmd.OutOrStdout()),
				stream.WithMetrics(metrics.New()),
			)
			if err != nil {
				return err
			}
			return sess.Run(cmd.Context(), nil)
		},
	}
	f := cmd.Flags()
	f.Int("step", 0, "audio step size in ms (0 = voice activity mode)")
	f.Int("length", 0, "window length in ms")
	f.Int("keep", 0, "audio kept from the previous step in ms")
	f.Float64("vad-thold", 0, "voice activity energy threshold")
	f.Float64("freq-thold", 0, "high-pass cutoff in Hz")
	f.String("vad-engine", "", "voice activity engine (energy, webrtc)")
	f.StringP("language", "l", "", "spoken language (auto for detection)")
	f.Bool("translate", false, "translate to English")
	f.Bool("keep-context", false, "carry decoded tokens into the next window")
	f.IntP("threads", "t", 0, "decoder threads")
	f.String("file", "", "replay a WAV file instead of the microphone")
	f.Bool("fast", false, "replay --file without realtime pacing")
	return cmd
}

// applyStreamFlags layers explicitly set flags over the loaded config.
func applyStreamFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("step") {
		cfg.Stream.StepMS, _ = f.GetInt("step")
	}
	if f.Changed("length") {
		cfg.Stream.LengthMS, _ = f.GetInt("length")
	}
	if f.Changed("keep") {
		cfg.Stream.KeepMS, _ = f.GetInt("keep")
	}
	if f.Changed("vad-thold") {
		cfg.Stream.VADEnergyThreshold, _ = f.GetFloat64("vad-thold")
	}
	if f.Changed("freq-thold") {
		cfg.Stream.VADFreqThresholdHz, _ = f.GetFloat64("freq-thold")
	}
	if f.Changed("vad-engine") {
		cfg.VAD.Engine, _ = f.GetString("vad-engine")
	}
	if f.Changed("language") {
		cfg.Stream.Language, _ = f.GetString("language")
	}
	if f.Changed("translate") {
		cfg.Stream.Translate, _ = f.GetBool("translate")
	}
	if f.Changed("keep-context") {
		keep, _ := f.GetBool("keep-context")
		cfg.Stream.NoContext = !keep
	}
	if f.Changed("threads") {
		cfg.ASR.Threads, _ = f.GetInt("threads")
	}
	if f.Changed("file") {
		cfg.Audio.Backend = "file"
		cfg.Audio.FilePath, _ = f.GetString("file")
	}
	if f.Changed("fast") {
		fast, _ := f.GetBool("fast")
		cfg.Audio.Realtime = !fast
	}
	if cfg.Stream.LengthMS < 0 || cfg.Stream.KeepMS < 0 {
		return fmt.Errorf("length and keep must not be negative")
	}
	return nil
}
