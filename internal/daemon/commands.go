package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"streamscribe/internal/config"
	"streamscribe/internal/logging"
	"streamscribe/internal/run"

	"github.com/spf13/cobra"
)

// NewStartCmd starts the daemon (background).
func NewStartCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start streamscribe daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			return startDaemon(cfg, flagOverrides(cmd))
		},
	}
	addRuntimeFlags(cmd)
	return cmd
}

// startDaemon re-executes the binary as "serve" with the extra env and waits
// briefly for its pid file.
func startDaemon(cfg *config.Config, env []string) error {
	if err := ensureNotRunning(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Paths.PidPath), 0o755); err != nil {
		return err
	}
	self, err := os.Executable()
	if err != nil {
		return err
	}
	child := exec.Command(self, "serve", "--config", cfg.Paths.ConfigPath)
	child.Env = append(os.Environ(), env...)
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	if err := child.Start(); err != nil {
		return err
	}
	pid := child.Process.Pid
	exited := make(chan error, 1)
	go func() { exited <- child.Wait() }()

	deadline := time.After(2 * time.Second)
	for {
		if got, err := readPID(cfg.Paths.PidPath); err == nil && got == pid {
			fmt.Printf("streamscribe started (pid %d)\n", pid)
			return nil
		}
		select {
		case err := <-exited:
			return fmt.Errorf("daemon exited during startup (%v); see %s", err, cfg.Paths.LogPath)
		case <-deadline:
			fmt.Printf("streamscribe starting (pid %d)\n", pid)
			return nil
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// NewServeCmd runs the daemon foreground (internal).
func NewServeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:    "serve",
		Short:  "Run streamscribe daemon (internal)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, kv := range flagOverrides(cmd) {
				k, v, _ := strings.Cut(kv, "=")
				if err := os.Setenv(k, v); err != nil {
					return fmt.Errorf("set %s: %w", k, err)
				}
			}
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			return run.Serve(cfg, logger)
		},
	}
	addRuntimeFlags(cmd)
	return cmd
}

func addRuntimeFlags(cmd *cobra.Command) {
	cmd.Flags().String("metrics-addr", "", "serve metrics and the live feed at address (e.g., 127.0.0.1:9318) for this run")
	cmd.Flags().Bool("vad", false, "use voice activity mode (step 0) for this run")
	cmd.Flags().String("audio-file", "", "replay a WAV file instead of capturing from a device")
}

// flagOverrides turns changed runtime flags into STREAMSCRIBE_* assignments.
func flagOverrides(cmd *cobra.Command) []string {
	var env []string
	if addr := cmd.Flag("metrics-addr").Value.String(); addr != "" {
		env = append(env, "STREAMSCRIBE_METRICS_ADDR="+addr)
	}
	if cmd.Flag("vad").Changed && cmd.Flag("vad").Value.String() == "true" {
		env = append(env, "STREAMSCRIBE_STREAM_STEP_MS=0")
	}
	if path := cmd.Flag("audio-file").Value.String(); path != "" {
		env = append(env, "STREAMSCRIBE_AUDIO_BACKEND=file", "STREAMSCRIBE_AUDIO_FILE_PATH="+path)
	}
	return env
}

// NewStopCmd stops the daemon.
func NewStopCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop streamscribe daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			pid, err := readPID(cfg.Paths.PidPath)
			if err != nil {
				return fmt.Errorf("not running (%w)", err)
			}
			if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
				return fmt.Errorf("signal pid %d: %w", pid, err)
			}
			if wait, _ := cmd.Flags().GetDuration("wait"); wait > 0 {
				if err := waitForExit(cfg.Paths.PidPath, wait); err != nil {
					return err
				}
				fmt.Println("stopped")
				return nil
			}
			fmt.Println("stop signal sent")
			return nil
		},
	}
	cmd.Flags().Duration("wait", 0, "wait up to this long for the daemon to exit")
	return cmd
}

// NewRestartCmd stops then starts.
func NewRestartCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart streamscribe daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if pid, err := readPID(cfg.Paths.PidPath); err == nil && alive(pid) {
				_ = syscall.Kill(pid, syscall.SIGTERM)
			}
			if err := waitForExit(cfg.Paths.PidPath, 5*time.Second); err != nil {
				return err
			}
			return startDaemon(cfg, flagOverrides(cmd))
		},
	}
	addRuntimeFlags(cmd)
	return cmd
}

func ensureNotRunning(cfg *config.Config) error {
	pid, err := readPID(cfg.Paths.PidPath)
	if err != nil {
		return nil
	}
	if alive(pid) {
		return fmt.Errorf("already running with pid %d", pid)
	}
	return nil
}

// alive reports whether pid names a live process we may signal.
func alive(pid int) bool {
	return pid > 0 && syscall.Kill(pid, syscall.Signal(0)) == nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return pid, nil
}

// waitForExit polls until the pid file is gone or names a dead process. A
// stale pid file is removed.
func waitForExit(pidPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		pid, err := readPID(pidPath)
		if err != nil {
			return nil
		}
		if !alive(pid) {
			_ = os.Remove(pidPath)
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("daemon (pid %d) did not stop within %s", pid, timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
