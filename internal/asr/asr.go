// Package asr is the boundary to the speech-to-text model. The streaming
// loop hands it one window of 16 kHz mono audio at a time and gets back the
// decoded segments synchronously.
package asr

import (
	"context"
	"strings"
	"time"
)

// SampleRate is the only rate the model accepts.
const SampleRate = 16000

// Token is one decoded token. Tokens of a finished window are fed back as
// decoder context for the next one.
type Token struct {
	ID   int     `json:"id"`
	Text string  `json:"text"`
	P    float32 `json:"p"`
}

// Segment is a recognized piece of text. Start and End are offsets into the
// window that produced it.
type Segment struct {
	Start   time.Duration `json:"start"`
	End     time.Duration `json:"end"`
	Text    string        `json:"text"`
	Tokens  []Token       `json:"tokens,omitempty"`
	Window  int           `json:"window"`
	Partial bool          `json:"partial"`
}

// Options are the per-window decoding settings.
type Options struct {
	Language      string
	Translate     bool
	SingleSegment bool
	NoContext     bool
	Prompt        []Token
	MaxTokens     int
	AudioCtx      int
	Timestamps    bool
	SpeedUp       bool
	// Threads overrides the transcriber's own thread count when positive.
	Threads int
}

// Transcriber decodes one window. Implementations need not be safe for
// concurrent use; the session calls them from a single goroutine.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, opts Options) ([]Segment, error)
	IsMultilingual() bool
}

// TimingReporter is implemented by transcribers that can dump performance
// counters when a session ends.
type TimingReporter interface {
	PrintTimings()
}

// PromptText renders context tokens as plain text, skipping control tokens
// such as [_BEG_] or <|endoftext|>.
func PromptText(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		if strings.HasPrefix(t.Text, "[_") || strings.HasPrefix(t.Text, "<|") {
			continue
		}
		b.WriteString(t.Text)
	}
	return strings.TrimSpace(b.String())
}

// Join concatenates segment texts the way they are shown on one console line.
func Join(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Merge folds segs into a single segment spanning all of them.
func Merge(segs []Segment) []Segment {
	if len(segs) <= 1 {
		return segs
	}
	out := Segment{Start: segs[0].Start, End: segs[len(segs)-1].End, Window: segs[0].Window, Partial: segs[0].Partial}
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
		out.Tokens = append(out.Tokens, s.Tokens...)
	}
	out.Text = b.String()
	return []Segment{out}
}
