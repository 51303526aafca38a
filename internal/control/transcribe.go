package control

import (
	"fmt"
	"strings"
	"time"

	"streamscribe/internal/asr"
	"streamscribe/internal/audio"
	"streamscribe/internal/config"
	"streamscribe/internal/hook"
	"streamscribe/internal/logging"

	"github.com/spf13/cobra"
)

// NewTranscribeCmd transcribes a WAV file in one pass and optionally fires
// the hook with the result.
func NewTranscribeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe <wavfile>",
		Short: "Transcribe a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			samples, rate, err := audio.ReadWAV(args[0])
			if err != nil {
				return err
			}
			if rate != asr.SampleRate {
				samples = audio.Resample(samples, rate, asr.SampleRate)
			}

			tr, err := asr.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("asr init: %w", err)
			}
			defer func() { _ = tr.Close() }()

			timestamps, _ := cmd.Flags().GetBool("timestamps")
			segs, err := tr.Transcribe(cmd.Context(), samples, asr.Options{
				Language:   cfg.Stream.Language,
				Translate:  cfg.Stream.Translate,
				NoContext:  true,
				Timestamps: timestamps,
				Threads:    cfg.ASR.Threads,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if timestamps {
				for _, s := range segs {
					_, _ = fmt.Fprintf(out, "[%s --> %s]  %s\n", mmss(s.Start), mmss(s.End), strings.TrimSpace(s.Text))
				}
			}
			txt := strings.TrimSpace(asr.Join(segs))
			if !timestamps {
				_, _ = fmt.Fprintln(out, txt)
			}

			if want, _ := cmd.Flags().GetBool("hook"); !want {
				return nil
			}
			r, err := hook.NewRunner(cfg, logger)
			if err != nil {
				return err
			}
			if cfg.Hook.Command == "" {
				return fmt.Errorf("hook.command not set")
			}
			if !r.Accepts(txt) {
				return fmt.Errorf("skipped: text shorter than hook.min_chars=%d", cfg.Hook.MinChars)
			}
			return r.Run(cmd.Context(), hook.Job{Text: txt, Timestamp: time.Now()})
		},
	}
	cmd.Flags().Bool("hook", false, "also send through configured hook")
	cmd.Flags().Bool("timestamps", false, "print one line per segment with timestamps")
	return cmd
}

func mmss(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, ms/1000%60, ms%1000)
}
