package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"streamscribe/internal/control"
	"streamscribe/internal/daemon"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "streamscribe",
		Short: "streamscribe: live local speech-to-text",
		Long: `streamscribe captures your microphone into a rolling buffer, cuts it into windows
on a fixed step or when voice activity is detected, and transcribes them locally with whisper.cpp.
Finished lines go to a transcript log, an optional hook command and a websocket feed.`,
		Example: `  streamscribe stream --step 500 --length 5000
  streamscribe stream --step 0 --vad-thold 0.6
  streamscribe start --metrics-addr 127.0.0.1:9318
  streamscribe mic list
  streamscribe mic set --index 1
  streamscribe models download ggml-base.en.bin
  streamscribe transcribe sample.wav --timestamps
  streamscribe service install --env STREAMSCRIBE_METRICS_ADDR=127.0.0.1:9318`,
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
	}

	root.Version = version
	root.SetVersionTemplate("streamscribe v{{.Version}}\n")

	cfgPath := root.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML). Defaults to ~/.config/streamscribe/config.toml")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(control.NewStreamCmd(cfgPath))
	root.AddCommand(daemon.NewStartCmd(cfgPath))
	root.AddCommand(daemon.NewStopCmd(cfgPath))
	root.AddCommand(daemon.NewRestartCmd(cfgPath))
	root.AddCommand(control.NewStatusCmd(cfgPath))
	root.AddCommand(control.NewHealthCmd(cfgPath))
	root.AddCommand(control.NewTailLogCmd(cfgPath))
	root.AddCommand(control.NewMicCmd(cfgPath))
	root.AddCommand(control.NewTranscribeCmd(cfgPath))
	root.AddCommand(control.NewTestHookCmd(cfgPath))
	root.AddCommand(control.NewDoctorCmd(cfgPath))
	root.AddCommand(control.NewSetupCmd(cfgPath))
	root.AddCommand(control.NewModelsCmd(cfgPath))
	root.AddCommand(control.NewServiceRootCmd(cfgPath))

	// Hidden internal serve command used by start.
	root.AddCommand(daemon.NewServeCmd(cfgPath))

	applyColorHelp(root)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return root.ExecuteContext(ctx)
}

func applyColorHelp(root *cobra.Command) {
	const (
		boldBlue = "\033[1;34m"
		green    = "\033[32m"
		bold     = "\033[1m"
		dim      = "\033[2m"
		reset    = "\033[0m"
	)
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != root {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
			return
		}
		out := cmd.OutOrStdout()
		write := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }
		writeln := func(line string) { _, _ = fmt.Fprintln(out, line) }

		write("%sstreamscribe%s: live local speech-to-text %s(v%s)%s\n", boldBlue, reset, dim, version, reset)
		write("%sRolling mic buffer, fixed-step or voice-activity windows, whisper.cpp decoding.%s\n\n", dim, reset)

		write("%sUsage%s\n", bold, reset)
		write("  streamscribe [command] [flags]\n\n")

		write("%sKey commands%s\n", bold, reset)
		writeln("  stream                      live transcript in this terminal")
		writeln("  start|stop|restart          daemon lifecycle")
		writeln("  status [--json]             uptime, counters, last transcripts")
		writeln("  mic list|set|record         select or test the input device")
		writeln("  transcribe <wav>            one-shot file transcription")
		writeln("  doctor|setup                check deps / download the model")
		writeln("  models list|download|set    manage whisper.cpp models")
		writeln("  service install|uninstall|status  launchd or systemd user service")
		writeln("  health|tail-log|test-hook   liveness, log tail, manual hook")
		writeln("")

		write("%sNotable flags & env%s\n", bold, reset)
		writeln("  --step <ms>             0 selects voice activity mode")
		writeln("  --metrics-addr <addr>   enable /metrics and the /ws live feed")
		writeln("  -c, --config <path>     config file (default ~/.config/streamscribe/config.toml)")
		writeln("  Env: STREAMSCRIBE_STREAM_STEP_MS, STREAMSCRIBE_METRICS_ADDR=host:port,")
		writeln("       STREAMSCRIBE_LOG_LEVEL=debug, STREAMSCRIBE_LOG_FORMAT=json,")
		writeln("       STREAMSCRIBE_AUDIO_BACKEND=miniaudio, STREAMSCRIBE_VAD_ENGINE=webrtc")
		writeln("")

		write("%sExamples%s\n", bold, reset)
		writeln(root.Example)
		writeln("")

		write("%sCommands%s\n", bold, reset)
		for _, c := range cmd.Commands() {
			if c.Hidden {
				continue
			}
			write("  %s%-15s%s %s\n", green, c.Name(), reset, c.Short)
		}
	})
}
