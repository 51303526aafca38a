//go:build !whisper

package asr

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"streamscribe/internal/config"
)

// ErrUnavailable is returned when the binary was built without whisper.cpp.
var ErrUnavailable = errors.New("whisper support not built; rebuild with '-tags whisper'")

// Whisper is a placeholder in builds without the whisper tag.
type Whisper struct{}

func New(_ *config.Config, _ *logrus.Logger) (*Whisper, error) { return nil, ErrUnavailable }

func (*Whisper) IsMultilingual() bool { return false }

func (*Whisper) Transcribe(context.Context, []float32, Options) ([]Segment, error) {
	return nil, ErrUnavailable
}

func (*Whisper) PrintTimings() {}

func (*Whisper) Close() error { return nil }
