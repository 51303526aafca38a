// Package hook runs a user command for every final transcript line.
package hook

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"

	"streamscribe/internal/config"
)

// Job is one hook invocation request.
type Job struct {
	Text      string
	Window    int
	Timestamp time.Time
}

// Runner executes the hook command with cooldown and prefix handling.
type Runner struct {
	cfg      *config.Config
	logger   *logrus.Logger
	hostname string
	extra    []string

	mu      sync.Mutex
	lastRun time.Time
}

// NewRunner validates the hook settings. args_line is split shell-style and
// appended to args.
func NewRunner(cfg *config.Config, logger *logrus.Logger) (*Runner, error) {
	extra, err := ParseArgs(cfg.Hook.ArgsLine)
	if err != nil {
		return nil, fmt.Errorf("hook.args_line: %w", err)
	}
	host, _ := os.Hostname()
	return &Runner{cfg: cfg, logger: logger, hostname: host, extra: extra}, nil
}

// Accepts reports whether text is long enough to be worth sending.
func (r *Runner) Accepts(text string) bool {
	return len([]rune(strings.TrimSpace(text))) >= r.cfg.Hook.MinChars
}

// ShouldRun returns whether cooldown allows a new invocation.
func (r *Runner) ShouldRun() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg.Hook.CooldownSec <= 0 {
		return true
	}
	return time.Since(r.lastRun).Seconds() >= r.cfg.Hook.CooldownSec
}

// Run executes the configured command with the prefixed text as its last
// argument.
func (r *Runner) Run(ctx context.Context, job Job) error {
	r.mu.Lock()
	r.lastRun = time.Now()
	r.mu.Unlock()

	if r.cfg.Hook.Command == "" {
		return fmt.Errorf("no hook.command configured")
	}

	prefix := r.Prefix()
	text := strings.TrimSpace(job.Text)
	if r.cfg.Hook.RedactPII {
		text = redactPII(text)
	}
	args := append([]string{}, r.cfg.Hook.Args...)
	args = append(args, r.extra...)
	args = append(args, strings.TrimSpace(prefix+text))

	if r.cfg.Hook.TimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(float64(time.Second)*r.cfg.Hook.TimeoutSec))
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, r.cfg.Hook.Command, args...)
	cmd.Env = os.Environ()
	for k, v := range r.cfg.Hook.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Env = append(cmd.Env,
		"STREAMSCRIBE_TEXT="+text,
		"STREAMSCRIBE_PREFIX="+prefix,
		fmt.Sprintf("STREAMSCRIBE_WINDOW=%d", job.Window),
	)

	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		r.logger.Infof("hook output: %s", strings.TrimSpace(string(out)))
	}
	if err != nil {
		return fmt.Errorf("hook failed: %w", err)
	}
	return nil
}

// Prefix returns the configured prefix with ${hostname} expanded.
func (r *Runner) Prefix() string {
	return strings.ReplaceAll(r.cfg.Hook.Prefix, "${hostname}", r.hostname)
}

// ParseArgs splits a shell-style argument string.
func ParseArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	return shlex.Split(raw)
}

var (
	emailRE = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.[A-Za-z]{2,}`)
	phoneRE = regexp.MustCompile(`\+?\d[\d\s\-\(\)]{6,}\d`)
)

func redactPII(s string) string {
	s = emailRE.ReplaceAllString(s, "[redacted-email]")
	s = phoneRE.ReplaceAllString(s, "[redacted-phone]")
	return s
}
