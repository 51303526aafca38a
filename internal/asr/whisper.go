//go:build whisper

package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/sirupsen/logrus"

	"streamscribe/internal/config"
)

// Whisper runs windows through a whisper.cpp model. One decoding context is
// reused for the lifetime of the transcriber so timings accumulate.
type Whisper struct {
	logger  *logrus.Logger
	threads uint

	mu          sync.Mutex
	model       whisper.Model
	wctx        whisper.Context
	warnedSpeed bool
	warnedLang  map[string]bool
}

// New loads the model configured in cfg.
func New(cfg *config.Config, logger *logrus.Logger) (*Whisper, error) {
	model, err := whisper.New(cfg.ASR.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", cfg.ASR.ModelPath, err)
	}
	wctx, err := model.NewContext()
	if err != nil {
		_ = model.Close()
		return nil, fmt.Errorf("create context: %w", err)
	}
	threads := cfg.ASR.Threads
	if threads <= 0 {
		threads = 1
	}
	logger.Infof("asr: loaded %s (multilingual=%v, threads=%d)", cfg.ASR.ModelPath, model.IsMultilingual(), threads)
	return &Whisper{
		logger:     logger,
		threads:    uint(threads),
		model:      model,
		wctx:       wctx,
		warnedLang: map[string]bool{},
	}, nil
}

func (w *Whisper) IsMultilingual() bool { return w.model.IsMultilingual() }

func (w *Whisper) Transcribe(ctx context.Context, samples []float32, opts Options) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.configure(opts)
	if err := w.wctx.Process(samples, nil, nil, nil); err != nil {
		// The binding collapses whisper_full's status codes into one error.
		return nil, &Error{Reason: ReasonUnknown, Err: err}
	}

	var segs []Segment
	for {
		seg, err := w.wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &Error{Reason: ReasonDecode, Err: err}
		}
		out := Segment{Start: seg.Start, End: seg.End, Text: seg.Text}
		for _, t := range seg.Tokens {
			out.Tokens = append(out.Tokens, Token{ID: t.Id, Text: t.Text, P: t.P})
		}
		segs = append(segs, out)
	}
	if opts.SingleSegment {
		segs = Merge(segs)
	}
	return segs, nil
}

func (w *Whisper) configure(opts Options) {
	c := w.wctx
	threads := w.threads
	if opts.Threads > 0 {
		threads = uint(opts.Threads)
	}
	c.SetThreads(threads)
	c.SetTranslate(opts.Translate)
	c.SetTokenTimestamps(opts.Timestamps)
	c.SetMaxTokensPerSegment(uint(max(opts.MaxTokens, 0)))
	c.SetAudioCtx(uint(max(opts.AudioCtx, 0)))

	lang := strings.TrimSpace(opts.Language)
	if lang == "" {
		lang = "auto"
	}
	if err := c.SetLanguage(lang); err != nil {
		if !w.warnedLang[lang] {
			w.logger.Warnf("asr: language %q not supported (%v), using auto-detect", lang, err)
			w.warnedLang[lang] = true
		}
		_ = c.SetLanguage("auto")
	}

	if opts.NoContext {
		c.SetMaxContext(0)
		c.SetInitialPrompt("")
	} else {
		c.SetMaxContext(-1)
		c.SetInitialPrompt(PromptText(opts.Prompt))
	}

	if opts.SpeedUp && !w.warnedSpeed {
		w.logger.Warn("asr: speed_up is not supported by this model build, ignoring")
		w.warnedSpeed = true
	}
}

func (w *Whisper) PrintTimings() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.wctx.PrintTimings()
}

func (w *Whisper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.model.Close()
}
