package control

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"streamscribe/internal/audio"
	"streamscribe/internal/config"
	"streamscribe/internal/logging"

	"github.com/spf13/cobra"
)

// NewMicCmd groups mic subcommands.
func NewMicCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mic",
		Aliases: []string{"microphone", "mics"},
		Short:   "Microphone management",
	}
	cmd.AddCommand(newMicListCmd(cfgPath))
	cmd.AddCommand(newMicSetCmd(cfgPath))
	cmd.AddCommand(newMicRecordCmd(cfgPath))
	return cmd
}

func backendFor(cfg *config.Config, cmd *cobra.Command) (audio.Backend, error) {
	name := cfg.Audio.Backend
	if b, _ := cmd.Flags().GetString("backend"); b != "" {
		name = b
	}
	return audio.NewBackend(name, audio.BackendOptions{FilePath: cfg.Audio.FilePath, Realtime: true})
}

func newMicListCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available microphones",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			backend, err := backendFor(cfg, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			devs := audio.ListDevices(backend, logging.NewConsoleLogger(cfg.Logging.Level))
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(devs)
			}
			for _, d := range devs {
				defMark := ""
				if d.Default {
					defMark = " (default)"
				}
				cmd.Printf("[%d] %s%s (in %d ch, latency %.2fms)\n", d.ID, d.Name, defMark, d.Channels, float64(d.Latency)/float64(time.Millisecond))
			}
			if len(devs) == 0 && runtime.GOOS == "darwin" {
				cmd.Println("tip: if no devices appear, install PortAudio: brew install portaudio")
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	cmd.Flags().String("backend", "", "audio backend (portaudio, miniaudio)")
	return cmd
}

func newMicSetCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set [name]",
		Short: "Set microphone by name or --index in config",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			idx, _ := cmd.Flags().GetInt("index")
			switch {
			case len(args) == 1:
				cfg.Audio.DeviceName = args[0]
				cfg.Audio.DeviceIndex = -1
			case cmd.Flags().Changed("index"):
				cfg.Audio.DeviceName = ""
				cfg.Audio.DeviceIndex = idx
			default:
				return fmt.Errorf("give a device name or --index")
			}
			if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
				return err
			}
			sel := strconv.Quote(cfg.Audio.DeviceName)
			if cfg.Audio.DeviceName == "" {
				sel = fmt.Sprintf("index %d", cfg.Audio.DeviceIndex)
			}
			cmd.Printf("mic set to %s in %s\n", sel, cfg.Paths.ConfigPath)
			return nil
		},
	}
	cmd.Flags().Int("index", -1, "device index from 'mic list'")
	return cmd
}

// newMicRecordCmd captures from the configured device into a WAV file.
func newMicRecordCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record <out.wav>",
		Short: "Record a few seconds from the configured microphone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			secs, _ := cmd.Flags().GetInt("seconds")
			if secs <= 0 {
				return fmt.Errorf("--seconds must be positive")
			}
			backend, err := backendFor(cfg, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			id := cfg.Audio.DeviceIndex
			if cfg.Audio.DeviceName != "" {
				if id, err = audio.FindDevice(backend, cfg.Audio.DeviceName); err != nil {
					return err
				}
			}
			logger := logging.NewConsoleLogger(cfg.Logging.Level)
			dev := audio.NewDevice(backend, secs*1000, logger)
			if !dev.Init(id, cfg.Audio.SampleRate) {
				return fmt.Errorf("open capture device %d", id)
			}
			defer func() { _ = dev.Close() }()

			dev.Resume()
			cmd.Printf("recording %ds at %d Hz...\n", secs, dev.SampleRate())
			select {
			case <-time.After(time.Duration(secs) * time.Second):
			case <-cmd.Context().Done():
			}
			samples := dev.Read(secs * 1000)
			dev.Pause()
			if err := audio.WriteWAV(args[0], samples, dev.SampleRate()); err != nil {
				return err
			}
			cmd.Printf("wrote %d samples to %s\n", len(samples), args[0])
			return nil
		},
	}
	cmd.Flags().Int("seconds", 5, "recording length")
	cmd.Flags().String("backend", "", "audio backend (portaudio, miniaudio)")
	return cmd
}
