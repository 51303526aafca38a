package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.AddSamples(10)
	m.ObserveTranscribe(time.Second, nil)
	m.DropWindow()
	m.Probe(true)
	m.Segment(false)
	m.HookSent()
	m.HookSkipped()
	m.HookDropped()
}

func TestCounters(t *testing.T) {
	m := New()
	m.AddSamples(160)
	m.AddSamples(0)
	m.ObserveTranscribe(200*time.Millisecond, nil)
	m.ObserveTranscribe(time.Second, errors.New("boom"))
	m.DropWindow()
	m.Probe(false)
	m.Probe(true)
	m.Segment(true)
	m.Segment(false)
	m.Segment(false)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"samples", testutil.ToFloat64(m.SamplesCaptured), 160},
		{"transcribed", testutil.ToFloat64(m.WindowsTranscribed), 1},
		{"failures", testutil.ToFloat64(m.TranscribeFailures), 1},
		{"dropped", testutil.ToFloat64(m.WindowsDropped), 1},
		{"probes", testutil.ToFloat64(m.VADProbes), 2},
		{"triggers", testutil.ToFloat64(m.VADTriggers), 1},
		{"partial", testutil.ToFloat64(m.Segments.WithLabelValues("partial")), 1},
		{"final", testutil.ToFloat64(m.Segments.WithLabelValues("final")), 2},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Fatalf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestHandlerExposesNames(t *testing.T) {
	m := New()
	m.HookSent()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"streamscribe_hooks_sent_total 1", "streamscribe_transcribe_seconds_bucket"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("missing %q in output", name)
		}
	}
}
