// Command showcfg prints the effective configuration after file and env
// overrides, plus the session settings the stream loop will actually use.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"streamscribe/internal/config"
	"streamscribe/internal/stream"
)

func main() {
	path := flag.String("config", "", "config file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := toml.NewEncoder(os.Stdout).Encode(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	s := stream.FromConfig(cfg).Effective()
	mode := "fixed-step"
	if s.VoiceActivity() {
		mode = "voice-activity"
	}
	fmt.Printf("\n# effective: mode=%s step=%dms length=%dms keep=%dms no_context=%v timestamps=%v\n",
		mode, s.StepMS, s.LengthMS, s.KeepMS, s.NoContext, !s.NoTimestamps)
}
