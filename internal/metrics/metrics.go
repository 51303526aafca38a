// Package metrics exposes Prometheus counters for capture, windowing,
// transcription and hook delivery. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	SamplesCaptured    prometheus.Counter
	WindowsTranscribed prometheus.Counter
	WindowsDropped     prometheus.Counter
	VADProbes          prometheus.Counter
	VADTriggers        prometheus.Counter
	TranscribeFailures prometheus.Counter
	TranscribeSeconds  prometheus.Histogram
	Segments           *prometheus.CounterVec
	HooksSent          prometheus.Counter
	HooksSkipped       prometheus.Counter
	HooksDropped       prometheus.Counter
}

// New registers every collector on a fresh registry, together with the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		SamplesCaptured: f.NewCounter(prometheus.CounterOpts{
			Name: "streamscribe_samples_captured_total",
			Help: "Samples accepted into the capture ring",
		}),
		WindowsTranscribed: f.NewCounter(prometheus.CounterOpts{
			Name: "streamscribe_windows_transcribed_total",
			Help: "Audio windows handed to the model",
		}),
		WindowsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "streamscribe_windows_dropped_total",
			Help: "Buffered audio discarded because transcription fell behind",
		}),
		VADProbes: f.NewCounter(prometheus.CounterOpts{
			Name: "streamscribe_vad_probes_total",
			Help: "Voice activity checks performed",
		}),
		VADTriggers: f.NewCounter(prometheus.CounterOpts{
			Name: "streamscribe_vad_triggers_total",
			Help: "Voice activity checks that started a transcription",
		}),
		TranscribeFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "streamscribe_transcribe_failures_total",
			Help: "Failed model invocations",
		}),
		TranscribeSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "streamscribe_transcribe_seconds",
			Help:    "Wall time of one model invocation",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		Segments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "streamscribe_segments_total",
			Help: "Decoded segments by kind",
		}, []string{"kind"}),
		HooksSent: f.NewCounter(prometheus.CounterOpts{
			Name: "streamscribe_hooks_sent_total",
			Help: "Hook invocations that ran",
		}),
		HooksSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "streamscribe_hooks_skipped_total",
			Help: "Segments not sent to the hook (cooldown or too short)",
		}),
		HooksDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "streamscribe_hooks_dropped_total",
			Help: "Segments dropped because the hook queue was full",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) AddSamples(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SamplesCaptured.Add(float64(n))
}

func (m *Metrics) ObserveTranscribe(d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.TranscribeFailures.Inc()
		return
	}
	m.WindowsTranscribed.Inc()
	m.TranscribeSeconds.Observe(d.Seconds())
}

func (m *Metrics) DropWindow() {
	if m == nil {
		return
	}
	m.WindowsDropped.Inc()
}

func (m *Metrics) Probe(triggered bool) {
	if m == nil {
		return
	}
	m.VADProbes.Inc()
	if triggered {
		m.VADTriggers.Inc()
	}
}

func (m *Metrics) Segment(partial bool) {
	if m == nil {
		return
	}
	kind := "final"
	if partial {
		kind = "partial"
	}
	m.Segments.WithLabelValues(kind).Inc()
}

func (m *Metrics) HookSent() {
	if m != nil {
		m.HooksSent.Inc()
	}
}

func (m *Metrics) HookSkipped() {
	if m != nil {
		m.HooksSkipped.Inc()
	}
}

func (m *Metrics) HookDropped() {
	if m != nil {
		m.HooksDropped.Inc()
	}
}
