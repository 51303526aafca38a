package stream

import (
	"fmt"
	"io"
	"time"

	"streamscribe/internal/asr"
)

// printer renders live output the way a terminal user expects it: fixed-step
// windows rewrite the current line, VAD utterances print as blocks.
type printer struct {
	w io.Writer
}

func (p printer) line(segs []asr.Segment, boundary bool) {
	fmt.Fprintf(p.w, "\x1b[2K\r%s", asr.Join(segs))
	if boundary {
		fmt.Fprintln(p.w)
	}
}

func (p printer) block(n int, t0, t1 time.Duration, segs []asr.Segment, timestamps bool) {
	fmt.Fprintf(p.w, "\n### Transcription %d START | t0 = %d ms | t1 = %d ms\n\n", n, t0.Milliseconds(), t1.Milliseconds())
	for _, s := range segs {
		if timestamps {
			fmt.Fprintf(p.w, "[%s --> %s]  %s\n", stamp(s.Start), stamp(s.End), s.Text)
		} else {
			fmt.Fprint(p.w, s.Text)
		}
	}
	fmt.Fprintf(p.w, "\n### Transcription %d END\n", n)
}

// stamp formats d as mm:ss.mmm.
func stamp(d time.Duration) string {
	ms := max(d.Milliseconds(), 0)
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}
