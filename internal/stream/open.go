package stream

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"streamscribe/internal/asr"
	"streamscribe/internal/audio"
	"streamscribe/internal/config"
	"streamscribe/internal/vad"
)

// ownedSource closes the backend together with the device.
type ownedSource struct {
	*audio.Device
	backend audio.Backend
}

func (o ownedSource) Close() error {
	return errors.Join(o.Device.Close(), o.backend.Close())
}

// Open builds a ready-to-run session from the application config: it opens
// the configured backend and device, selects the VAD engine and wires the
// capture counter. The caller keeps ownership of tr.
func Open(cfg *config.Config, tr asr.Transcriber, logger *logrus.Logger, opts ...Option) (*Session, error) {
	backend, err := audio.NewBackend(cfg.Audio.Backend, audio.BackendOptions{
		FilePath: cfg.Audio.FilePath,
		Realtime: cfg.Audio.Realtime,
	})
	if err != nil {
		return nil, err
	}

	id := cfg.Audio.DeviceIndex
	if cfg.Audio.DeviceName != "" {
		if id, err = audio.FindDevice(backend, cfg.Audio.DeviceName); err != nil {
			_ = backend.Close()
			return nil, err
		}
	}

	scfg := FromConfig(cfg)
	dev := audio.NewDevice(backend, bufferMS(scfg), logger)
	if !dev.Init(id, cfg.Audio.SampleRate) {
		_ = backend.Close()
		return nil, fmt.Errorf("open capture device %d on %s backend", id, cfg.Audio.Backend)
	}

	det, err := vad.New(cfg.VAD.Engine, cfg.VAD.Aggressiveness)
	if err != nil {
		_ = dev.Close()
		_ = backend.Close()
		return nil, err
	}

	s := New(ownedSource{Device: dev, backend: backend}, tr, scfg, logger, append([]Option{WithDetector(det)}, opts...)...)
	dev.OnAppend(s.metrics.AddSamples)
	return s, nil
}

// bufferMS sizes the capture ring. Fixed-step mode needs room for more than
// two steps so a decoder that falls behind is detected instead of silently
// overwritten.
func bufferMS(c Config) int {
	ms := max(c.LengthMS, c.ProbeMS)
	if !c.VoiceActivity() {
		ms = max(ms, 2*c.StepMS+1)
	}
	return ms
}
