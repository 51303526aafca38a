// Package stream turns a continuously filling capture ring into a sequence
// of transcription windows, either on a fixed cadence or gated by voice
// activity.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"streamscribe/internal/asr"
	"streamscribe/internal/audio"
	"streamscribe/internal/metrics"
	"streamscribe/internal/vad"
)

// ErrSessionUsed is returned when Run is called on a session that already ran.
var ErrSessionUsed = errors.New("stream: session already used")

// ErrSourceStart is returned when the capture source refuses to start.
var ErrSourceStart = errors.New("stream: capture source failed to start")

const (
	pollInterval = time.Millisecond
	vadWait      = 100 * time.Millisecond
)

// Source is the capture side of a session. *audio.Device satisfies it.
type Source interface {
	Read(ms int) []float32
	Buffered() int
	Clear() bool
	Resume() bool
	Pause() bool
	Running() bool
	SampleRate() int
	Close() error
}

// Session drives one streaming run. It owns the source for the duration of
// Run and releases it on exit.
type Session struct {
	src    Source
	tr     asr.Transcriber
	cfg    Config
	logger *logrus.Logger

	det     vad.Detector
	metrics *metrics.Metrics
	clock   Clock
	out     printer

	used atomic.Bool

	mu         sync.Mutex
	transcript []string
}

// Option customizes a Session.
type Option func(*Session)

// WithDetector sets the voice activity detector (default vad.Energy).
func WithDetector(d vad.Detector) Option { return func(s *Session) { s.det = d } }

// WithMetrics records loop activity on m.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Session) { s.metrics = m } }

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(s *Session) { s.clock = c } }

// WithOutput sends the live console rendering to w (default io.Discard).
func WithOutput(w io.Writer) Option { return func(s *Session) { s.out = printer{w: w} } }

// New creates a session reading from src and decoding with tr.
func New(src Source, tr asr.Transcriber, cfg Config, logger *logrus.Logger, opts ...Option) *Session {
	s := &Session{
		src:    src,
		tr:     tr,
		cfg:    cfg.normalized(),
		logger: logger,
		det:    vad.Energy{},
		clock:  realClock{},
		out:    printer{w: io.Discard},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Config returns the effective settings after clamping.
func (s *Session) Config() Config { return s.cfg }

// Transcript returns a copy of all segment texts decoded so far.
func (s *Session) Transcript() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.transcript...)
}

// Run captures and transcribes until ctx is cancelled or a transcription
// fails. Segments are sent on out when it is non-nil. Cancellation returns
// nil; a failed model call returns an error carrying *asr.Error and a source
// that cannot be started returns ErrSourceStart. Either way the source is
// paused and closed before Run returns.
func (s *Session) Run(ctx context.Context, out chan<- asr.Segment) error {
	if s.used.Swap(true) {
		return ErrSessionUsed
	}
	defer s.shutdown()

	rate := s.src.SampleRate()
	if rate <= 0 {
		return fmt.Errorf("stream: source not initialized")
	}
	s.checkLanguage()
	if !s.src.Resume() {
		if !s.src.Running() {
			s.logger.Error("stream: capture source did not start")
			return ErrSourceStart
		}
		s.logger.Debug("stream: source was already running")
	}

	var err error
	if s.cfg.VoiceActivity() {
		s.logger.Infof("stream: voice activity mode (length=%dms, probe=%dms, threshold=%.2f)",
			s.cfg.LengthMS, s.cfg.ProbeMS, s.cfg.VADEnergyThreshold)
		err = s.runVoiceActivity(ctx, rate, out)
	} else {
		s.logger.Infof("stream: fixed-step mode (step=%dms, length=%dms, keep=%dms, new line every %d windows)",
			s.cfg.StepMS, s.cfg.LengthMS, s.cfg.KeepMS, s.cfg.newLineEvery())
		err = s.runFixedStep(ctx, rate, out)
	}
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.logger.Info("stream: stopped")
		return nil
	}
	s.logger.Errorf("stream: %v", err)
	return err
}

// Segments runs the session and yields each segment. A failure is yielded
// once as the final element. Breaking out of the loop stops the session.
func (s *Session) Segments(ctx context.Context) iter.Seq2[asr.Segment, error] {
	return func(yield func(asr.Segment, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		ch := make(chan asr.Segment)
		errc := make(chan error, 1)
		go func() {
			errc <- s.Run(ctx, ch)
			close(ch)
		}()

		for seg := range ch {
			if !yield(seg, nil) {
				cancel()
				for range ch {
				}
				<-errc
				return
			}
		}
		if err := <-errc; err != nil {
			yield(asr.Segment{}, err)
		}
	}
}

func (s *Session) checkLanguage() {
	if s.tr.IsMultilingual() {
		return
	}
	if s.cfg.Language != "en" || s.cfg.Translate {
		s.logger.Warnf("stream: model is not multilingual, ignoring language %q and translation", s.cfg.Language)
		s.cfg.Language = "en"
		s.cfg.Translate = false
	}
}

func (s *Session) shutdown() {
	s.src.Pause()
	if tr, ok := s.tr.(asr.TimingReporter); ok {
		tr.PrintTimings()
	}
	if err := s.src.Close(); err != nil {
		s.logger.Warnf("stream: close source: %v", err)
	}
}

func (s *Session) runFixedStep(ctx context.Context, rate int, out chan<- asr.Segment) error {
	var (
		nStep    = rate * s.cfg.StepMS / 1000
		nLength  = rate * s.cfg.LengthMS / 1000
		nKeep    = rate * s.cfg.KeepMS / 1000
		newLine  = s.cfg.newLineEvery()
		carry    []float32
		prompt   []asr.Token
		captured []float32
	)

	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Wait for one step of fresh audio, discarding backlog when the
		// decoder has fallen behind.
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			buffered := s.src.Buffered()
			if buffered > 2*nStep {
				s.logger.Warnf("stream: cannot keep up, dropping %d buffered samples", buffered)
				s.metrics.DropWindow()
				s.src.Clear()
				continue
			}
			if buffered >= nStep {
				captured = s.src.Read(s.cfg.StepMS)
				s.src.Clear()
				if len(captured) > 0 {
					break
				}
			}
			if err := s.clock.Sleep(ctx, pollInterval); err != nil {
				return err
			}
		}

		window := carryOver(carry, captured, nKeep, nLength)
		carry = captured

		opts := s.options()
		opts.SingleSegment = true
		if !s.cfg.NoContext {
			opts.Prompt = prompt
		}
		segs, err := s.transcribe(ctx, window, rate, opts)
		if err != nil {
			return fmt.Errorf("window %d: %w", n, err)
		}

		boundary := (n+1)%newLine == 0
		for i := range segs {
			segs[i].Window = n
			segs[i].Partial = !boundary
		}
		s.out.line(segs, boundary)

		if boundary {
			carry = append([]float32(nil), window[len(window)-min(nKeep, len(window)):]...)
			if !s.cfg.NoContext {
				prompt = nil
				for _, seg := range segs {
					prompt = append(prompt, seg.Tokens...)
				}
			}
		}

		if err := s.emit(ctx, segs, out); err != nil {
			return err
		}
	}
}

func (s *Session) runVoiceActivity(ctx context.Context, rate int, out chan<- asr.Segment) error {
	start := s.clock.Now()
	last := start
	n := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := s.clock.Now()
		if now.Sub(last) < time.Duration(s.cfg.ProbeMS)*time.Millisecond {
			if err := s.clock.Sleep(ctx, vadWait); err != nil {
				return err
			}
			continue
		}

		probe := s.src.Read(s.cfg.ProbeMS)
		speech := s.det.HasSpeech(probe, rate, s.cfg.VADWindowMS, s.cfg.VADEnergyThreshold, s.cfg.VADFreqThresholdHz)
		s.metrics.Probe(speech)
		if !speech {
			if err := s.clock.Sleep(ctx, vadWait); err != nil {
				return err
			}
			continue
		}

		window := s.src.Read(s.cfg.LengthMS)
		opts := s.options()
		opts.SingleSegment = false
		opts.NoContext = true
		segs, err := s.transcribe(ctx, window, rate, opts)
		if err != nil {
			return fmt.Errorf("utterance %d: %w", n, err)
		}
		last = now

		for i := range segs {
			segs[i].Window = n
		}
		t1 := now.Sub(start)
		t0 := max(t1-time.Duration(len(window))*time.Second/time.Duration(rate), 0)
		s.out.block(n, t0, t1, segs, !s.cfg.NoTimestamps)
		n++

		if err := s.emit(ctx, segs, out); err != nil {
			return err
		}
	}
}

func (s *Session) options() asr.Options {
	return asr.Options{
		Language:   s.cfg.Language,
		Translate:  s.cfg.Translate,
		NoContext:  s.cfg.NoContext,
		MaxTokens:  s.cfg.MaxTokens,
		AudioCtx:   s.cfg.AudioCtx,
		Timestamps: !s.cfg.NoTimestamps,
		SpeedUp:    s.cfg.SpeedUp,
		Threads:    s.cfg.Threads,
	}
}

// transcribe converts window to the model rate and runs it. Any failure other
// than cancellation comes back as *asr.Error.
func (s *Session) transcribe(ctx context.Context, window []float32, rate int, opts asr.Options) ([]asr.Segment, error) {
	if rate != asr.SampleRate {
		window = audio.Resample(window, rate, asr.SampleRate)
	}
	began := s.clock.Now()
	segs, err := s.tr.Transcribe(ctx, window, opts)
	s.metrics.ObserveTranscribe(s.clock.Now().Sub(began), err)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		var ae *asr.Error
		if !errors.As(err, &ae) {
			err = &asr.Error{Reason: asr.ReasonUnknown, Err: err}
		}
		return nil, err
	}
	return segs, nil
}

func (s *Session) emit(ctx context.Context, segs []asr.Segment, out chan<- asr.Segment) error {
	s.mu.Lock()
	for _, seg := range segs {
		s.transcript = append(s.transcript, seg.Text)
	}
	s.mu.Unlock()

	for _, seg := range segs {
		s.metrics.Segment(seg.Partial)
		if out == nil {
			continue
		}
		// A ready receiver always gets the segment, even after cancellation.
		select {
		case out <- seg:
			continue
		default:
		}
		select {
		case out <- seg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// carryOver prepends the tail of the previous step to captured. The tail is
// bounded by the keep region plus whatever room the full window length leaves.
func carryOver(carry, captured []float32, nKeep, nLength int) []float32 {
	take := min(len(carry), max(0, nKeep+nLength-len(captured)))
	window := make([]float32, 0, take+len(captured))
	window = append(window, carry[len(carry)-take:]...)
	return append(window, captured...)
}
