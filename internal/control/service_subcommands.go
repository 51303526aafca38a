package control

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"streamscribe/internal/config"
	"streamscribe/internal/service"

	"github.com/spf13/cobra"
)

func newServiceInstallCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install user service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return err
			}
			envPairs, _ := cmd.Flags().GetStringArray("env")
			env, err := parseEnvPairs(envPairs)
			if err != nil {
				return err
			}
			params := service.Params{
				Label:  service.Label,
				Binary: exe,
				Config: cfg.Paths.ConfigPath,
				Log:    cfg.Paths.LogPath,
				Env:    env,
			}
			path, err := service.Install(params)
			if err != nil {
				return err
			}
			cmd.Printf("service file written: %s\n", path)
			if runtime.GOOS == "darwin" {
				cmd.Println("Load:   launchctl load -w", path)
				cmd.Printf("Start:  launchctl kickstart gui/$(id -u)/%s\n", params.Label)
				cmd.Printf("Stop:   launchctl bootout gui/$(id -u)/%s\n", params.Label)
				return nil
			}
			cmd.Println("Reload: systemctl --user daemon-reload")
			cmd.Printf("Start:  systemctl --user enable --now %s\n", params.Label)
			cmd.Printf("Logs:   journalctl --user -u %s -f\n", params.Label)
			return nil
		},
	}
	cmd.Flags().StringArray("env", nil, "Env to set in the service (KEY=VAL)")
	return cmd
}

func parseEnvPairs(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("bad env %q, want KEY=VAL", p)
		}
		env[k] = v
	}
	return env, nil
}

func newServiceUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove user service file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := service.Path(service.Label)
			_ = os.Remove(path)
			if runtime.GOOS == "darwin" {
				cmd.Printf("removed %s (if present); unload manually with: launchctl bootout gui/$(id -u) %s\n", path, path)
				return nil
			}
			cmd.Printf("removed %s (if present); stop with: systemctl --user disable --now %s\n", path, service.Label)
			return nil
		},
	}
}

func newServiceStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show service file path and whether it exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, ok := service.Status(service.Label)
			cmd.Printf("service file: %s\n", path)
			if ok {
				cmd.Println("status: present")
			} else {
				cmd.Println("status: missing (install via: streamscribe service install)")
			}
			return nil
		},
	}
}
