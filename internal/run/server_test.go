package run

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"streamscribe/internal/asr"
	"streamscribe/internal/config"
	"streamscribe/internal/control"
	"streamscribe/internal/logging"
	"streamscribe/internal/metrics"
)

type fakeRunner struct {
	segs []asr.Segment
	err  error
	hold bool
}

func (f fakeRunner) Run(ctx context.Context, out chan<- asr.Segment) error {
	for _, seg := range f.segs {
		select {
		case out <- seg:
		case <-ctx.Done():
			return nil
		}
	}
	if f.hold {
		<-ctx.Done()
	}
	return f.err
}

// testConfig keeps state in a short temp dir so the unix socket path fits.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	dir, err := os.MkdirTemp("", "ss")
	if err != nil {
		t.Fatalf("tempdir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	cfg.Paths.StateDir = dir
	cfg.Paths.SocketPath = filepath.Join(dir, "s.sock")
	cfg.Paths.TranscriptPath = filepath.Join(dir, "transcripts.log")
	cfg.Paths.PidPath = filepath.Join(dir, "s.pid")
	cfg.Metrics.Enabled = false
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	s, err := NewServer(cfg, logging.NewTestLogger(), m)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s, m
}

func TestRunRecordsOnlyFinalSegments(t *testing.T) {
	cfg := testConfig(t)
	s, _ := newTestServer(t, cfg)

	r := fakeRunner{segs: []asr.Segment{
		{Text: " the quick", Window: 0, Partial: true},
		{Text: " the quick brown fox", Window: 1},
		{Text: "   ", Window: 2},
	}}
	if err := s.Run(context.Background(), r); err != nil {
		t.Fatalf("run: %v", err)
	}

	st := s.status()
	if st.Heard != 1 {
		t.Fatalf("heard=%d want 1", st.Heard)
	}
	if len(st.Transcripts) != 1 || st.Transcripts[0].Text != "the quick brown fox" || st.Transcripts[0].Window != 1 {
		t.Fatalf("transcripts %+v", st.Transcripts)
	}
	if st.LastHeard == nil {
		t.Fatalf("expected last heard time")
	}
	data, err := os.ReadFile(cfg.Paths.TranscriptPath)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(string(data)), "\tthe quick brown fox") {
		t.Fatalf("transcript file %q", data)
	}
}

func TestTranscriptTailIsBounded(t *testing.T) {
	cfg := testConfig(t)
	cfg.UI.StatusTail = 2
	cfg.Paths.TranscriptPath = ""
	s, _ := newTestServer(t, cfg)

	for _, text := range []string{"one", "two", "three"} {
		s.handleSegment(asr.Segment{Text: text})
	}
	got := s.copyTranscripts()
	if len(got) != 2 || got[0].Text != "two" || got[1].Text != "three" {
		t.Fatalf("tail %+v", got)
	}
}

func TestRunWrapsSessionFailure(t *testing.T) {
	cfg := testConfig(t)
	s, _ := newTestServer(t, cfg)

	cause := &asr.Error{Reason: asr.ReasonEncode, Code: -6}
	err := s.Run(context.Background(), fakeRunner{err: cause})
	var ae *asr.Error
	if !errors.As(err, &ae) || ae.Reason != asr.ReasonEncode {
		t.Fatalf("err=%v", err)
	}
}

func TestHandleSegmentHookGating(t *testing.T) {
	cfg := testConfig(t)
	cfg.Hook.Enabled = true
	cfg.Hook.Command = "/bin/true"
	cfg.Hook.MinChars = 8
	cfg.Hook.QueueSize = 1
	s, m := newTestServer(t, cfg)

	s.handleSegment(asr.Segment{Text: "short"})
	s.handleSegment(asr.Segment{Text: "long enough to send", Partial: true})
	s.handleSegment(asr.Segment{Text: "long enough to send"})
	s.handleSegment(asr.Segment{Text: "queue is full by now"})

	if got := s.stats.skipped.Load(); got != 1 {
		t.Fatalf("skipped=%d want 1", got)
	}
	if got := s.stats.dropped.Load(); got != 1 {
		t.Fatalf("dropped=%d want 1", got)
	}
	if got := testutil.ToFloat64(m.HooksDropped); got != 1 {
		t.Fatalf("dropped metric=%v", got)
	}
	select {
	case job := <-s.hookCh:
		if job.Text != "long enough to send" {
			t.Fatalf("job %+v", job)
		}
	default:
		t.Fatalf("expected queued job")
	}
}

func TestControlSocketStatusAndHealth(t *testing.T) {
	cfg := testConfig(t)
	s, _ := newTestServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, fakeRunner{segs: []asr.Segment{{Text: "hello there"}}, hold: true})
	}()

	var st control.Status
	deadline := time.Now().Add(2 * time.Second)
	for {
		raw, err := ask(cfg.Paths.SocketPath, "status")
		if err == nil {
			if err := json.Unmarshal(raw, &st); err != nil {
				t.Fatalf("decode status: %v", err)
			}
			if st.Heard == 1 {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("status never reported the segment: %v %+v", err, st)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !st.Running || st.Mode != "fixed-step" || st.SampleRate != 16000 {
		t.Fatalf("status %+v", st)
	}

	raw, err := ask(cfg.Paths.SocketPath, "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	var resp control.SimpleResponse
	if err := json.Unmarshal(raw, &resp); err != nil || !resp.OK {
		t.Fatalf("health %s %v", raw, err)
	}
	raw, err = ask(cfg.Paths.SocketPath, "bogus")
	if err != nil {
		t.Fatalf("bogus: %v", err)
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.OK {
		t.Fatalf("bogus op %s %v", raw, err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func ask(sock, op string) ([]byte, error) {
	conn, err := net.DialTimeout("unix", sock, time.Second)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	if err := json.NewEncoder(conn).Encode(control.Request{Op: op}); err != nil {
		return nil, err
	}
	return bufio.NewReader(conn).ReadBytes('\n')
}

func TestHTTPHandler(t *testing.T) {
	cfg := testConfig(t)
	s, m := newTestServer(t, cfg)
	m.Segment(false)

	srv := httptest.NewServer(s.httpHandler())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", res.StatusCode)
	}

	res, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ := io.ReadAll(res.Body)
	_ = res.Body.Close()
	if !strings.Contains(string(body), "streamscribe_segments_total") {
		t.Fatalf("metrics body missing segments counter")
	}

	res, err = http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatalf("ws: %v", err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("feed should be off without metrics listener, got %d", res.StatusCode)
	}
}
