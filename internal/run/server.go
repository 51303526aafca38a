package run

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"streamscribe/internal/asr"
	"streamscribe/internal/config"
	"streamscribe/internal/control"
	"streamscribe/internal/feed"
	"streamscribe/internal/hook"
	"streamscribe/internal/metrics"
	"streamscribe/internal/stream"
)

// Runner is the segment producer the server consumes. *stream.Session
// satisfies it.
type Runner interface {
	Run(ctx context.Context, out chan<- asr.Segment) error
}

// Server consumes the streaming session and fans segments out to the
// transcript log, the hook, the live feed and the control socket.
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	hook       *hook.Runner
	metrics    *metrics.Metrics
	feed       *feed.Hub
	mode       string
	sampleRate int
	startedAt  time.Time
	lastHeard  atomic.Int64

	transcriptsMu sync.Mutex
	transcripts   []control.Transcript

	stats  stats
	hookCh chan hook.Job

	wg sync.WaitGroup
}

// NewServer prepares the fan-out side. The hook runner is built only when
// hooks are enabled.
func NewServer(cfg *config.Config, logger *logrus.Logger, m *metrics.Metrics) (*Server, error) {
	s := &Server{
		cfg:         cfg,
		logger:      logger,
		metrics:     m,
		mode:        "fixed-step",
		sampleRate:  cfg.Audio.SampleRate,
		startedAt:   time.Now(),
		transcripts: make([]control.Transcript, 0, max(cfg.UI.StatusTail, 0)),
		hookCh:      make(chan hook.Job, max(1, cfg.Hook.QueueSize)),
	}
	if cfg.Stream.StepMS <= 0 {
		s.mode = "voice-activity"
	}
	if cfg.Hook.Enabled {
		r, err := hook.NewRunner(cfg, logger)
		if err != nil {
			return nil, err
		}
		s.hook = r
	}
	if cfg.Feed.Enabled && cfg.Metrics.Enabled {
		s.feed = feed.NewHub(logger)
	}
	return s, nil
}

// Serve runs the daemon until interrupted or until the session fails.
func Serve(cfg *config.Config, logger *logrus.Logger) error {
	if err := config.MustStatePaths(cfg); err != nil {
		return err
	}
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(cfg.Paths.PidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("remove pid file: %v", err)
		}
	}()
	if err := os.Remove(cfg.Paths.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Debugf("remove stale socket: %v", err)
	}

	tr, err := asr.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("asr init: %w", err)
	}
	defer func() { _ = tr.Close() }()

	m := metrics.New()
	srv, err := NewServer(cfg, logger, m)
	if err != nil {
		return err
	}
	sess, err := stream.Open(cfg, tr, logger, stream.WithMetrics(m))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 2)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.Infof("received signal %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return srv.Run(ctx, sess)
}

// Run starts the control socket, hook worker and HTTP endpoints, then
// consumes r until it finishes. A session failure is returned; cancellation
// is not an error.
func (s *Server) Run(ctx context.Context, r Runner) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.controlLoop(ctx)
	if s.hook != nil {
		s.wg.Add(1)
		go s.hookWorker(ctx)
	}
	if s.cfg.Metrics.Enabled {
		go s.httpServe(ctx, s.cfg.Metrics.Addr)
	}

	segCh := make(chan asr.Segment, 8)
	errc := make(chan error, 1)
	go func() {
		errc <- r.Run(ctx, segCh)
		close(segCh)
	}()
	for seg := range segCh {
		s.handleSegment(seg)
	}
	err := <-errc

	cancel()
	s.wg.Wait()
	if s.feed != nil {
		s.feed.Close()
	}
	if err != nil {
		return fmt.Errorf("streaming session: %w", err)
	}
	return nil
}

func (s *Server) handleSegment(seg asr.Segment) {
	text := strings.TrimSpace(seg.Text)
	if text == "" {
		return
	}
	if s.feed != nil {
		s.feed.Broadcast(seg)
	}
	if seg.Partial {
		s.logger.Debugf("partial: %q", text)
		return
	}

	s.lastHeard.Store(time.Now().UnixNano())
	s.incHeard()
	s.logger.Infof("heard: %q", text)
	s.recordTranscript(text, seg.Window)

	if s.hook == nil {
		return
	}
	if !s.hook.Accepts(text) {
		s.incSkipped()
		return
	}
	if !s.hook.ShouldRun() {
		s.logger.Debug("hook skipped (cooldown)")
		s.incSkipped()
		return
	}
	job := hook.Job{Text: text, Window: seg.Window, Timestamp: time.Now()}
	select {
	case s.hookCh <- job:
	default:
		s.incDropped()
		s.logger.Warn("hook queue full, dropping job")
	}
}

func (s *Server) recordTranscript(text string, window int) {
	if !s.cfg.Transcripts.Enabled {
		return
	}
	entry := control.Transcript{Text: text, Window: window, Timestamp: time.Now()}
	s.transcriptsMu.Lock()
	s.transcripts = append(s.transcripts, entry)
	if len(s.transcripts) > s.cfg.UI.StatusTail {
		s.transcripts = s.transcripts[len(s.transcripts)-s.cfg.UI.StatusTail:]
	}
	s.transcriptsMu.Unlock()

	if s.cfg.Paths.TranscriptPath == "" {
		return
	}
	f, err := os.OpenFile(s.cfg.Paths.TranscriptPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.logger.Warnf("open transcript: %v", err)
		return
	}
	if _, err := fmt.Fprintf(f, "%s\t%s\n", entry.Timestamp.Format(time.RFC3339), entry.Text); err != nil {
		s.logger.Warnf("write transcript: %v", err)
	}
	_ = f.Close()
}

func (s *Server) controlLoop(ctx context.Context) {
	ln, err := net.Listen("unix", s.cfg.Paths.SocketPath)
	if err != nil {
		s.logger.Errorf("control listen: %v", err)
		return
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Errorf("control accept: %v", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil && ctx.Err() == nil {
			s.logger.Warnf("control connection close: %v", err)
		}
	}()
	sc := bufio.NewScanner(conn)
	if !sc.Scan() {
		return
	}
	var req control.Request
	if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
		_ = json.NewEncoder(conn).Encode(control.SimpleResponse{OK: false, Message: "invalid request"})
		return
	}
	switch req.Op {
	case "status":
		_ = json.NewEncoder(conn).Encode(s.status())
	case "health":
		_ = json.NewEncoder(conn).Encode(control.SimpleResponse{OK: true, Message: "ok"})
	default:
		_ = json.NewEncoder(conn).Encode(control.SimpleResponse{OK: false, Message: "unknown op " + req.Op})
	}
}

func (s *Server) status() control.Status {
	st := control.Status{
		Running:      true,
		UptimeSec:    time.Since(s.startedAt).Seconds(),
		Mode:         s.mode,
		SampleRate:   s.sampleRate,
		Heard:        s.stats.heard.Load(),
		HooksSent:    s.stats.sent.Load(),
		HooksSkipped: s.stats.skipped.Load(),
		HooksDropped: s.stats.dropped.Load(),
		Transcripts:  s.copyTranscripts(),
	}
	if ns := s.lastHeard.Load(); ns > 0 {
		t := time.Unix(0, ns)
		st.LastHeard = &t
	}
	return st
}

func (s *Server) copyTranscripts() []control.Transcript {
	s.transcriptsMu.Lock()
	defer s.transcriptsMu.Unlock()
	out := make([]control.Transcript, len(s.transcripts))
	copy(out, s.transcripts)
	return out
}
