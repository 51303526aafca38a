package control

import (
	"os"
	"path/filepath"

	"streamscribe/internal/config"

	"github.com/spf13/cobra"
)

// NewSetupCmd creates the state dirs and downloads the configured model if
// it is missing.
func NewSetupCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create state dirs and download the configured model if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if err := config.MustStatePaths(cfg); err != nil {
				return err
			}
			modelPath := os.ExpandEnv(cfg.ASR.ModelPath)
			if _, err := os.Stat(modelPath); err == nil {
				cmd.Println("model already present at", modelPath)
				return nil
			}
			url, ok := modelRegistry[filepath.Base(modelPath)]
			if !ok {
				url = modelRegistry["ggml-base.en.bin"]
			}
			cmd.Printf("downloading model to %s\n", modelPath)
			if err := download(cmd.Context(), url, modelPath); err != nil {
				return err
			}
			cmd.Println("model download complete")
			return nil
		},
	}
}
