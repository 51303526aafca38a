package run

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"
)

// stats are the counters reported over the control socket.
type stats struct {
	heard   atomic.Int64
	sent    atomic.Int64
	skipped atomic.Int64
	dropped atomic.Int64
}

func (s *Server) incHeard() { s.stats.heard.Add(1) }

func (s *Server) incSent() {
	s.stats.sent.Add(1)
	s.metrics.HookSent()
}

func (s *Server) incSkipped() {
	s.stats.skipped.Add(1)
	s.metrics.HookSkipped()
}

func (s *Server) incDropped() {
	s.stats.dropped.Add(1)
	s.metrics.HookDropped()
}

// httpHandler serves /metrics, /healthz and, when enabled, the /ws feed.
func (s *Server) httpHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.feed != nil {
		mux.Handle("/ws", s.feed)
	}
	return mux
}

func (s *Server) httpServe(ctx context.Context, addr string) {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.httpHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	s.logger.Infof("metrics listening on http://%s/metrics", addr)
	if s.feed != nil {
		s.logger.Infof("live feed on ws://%s/ws", addr)
	}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Warnf("metrics server: %v", err)
	}
}
