//go:build whisper

package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

type miniaudioBackend struct {
	ctx *malgo.AllocatedContext
}

func newMiniaudioBackend() (Backend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("miniaudio init: %w", err)
	}
	return &miniaudioBackend{ctx: ctx}, nil
}

func (b *miniaudioBackend) Devices() ([]DeviceInfo, error) {
	devs, err := b.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	out := make([]DeviceInfo, 0, len(devs))
	for i, d := range devs {
		out = append(out, DeviceInfo{ID: i, Name: d.Name(), Channels: 1, Default: d.IsDefault != 0})
	}
	return out, nil
}

func (b *miniaudioBackend) Open(id int, sampleRate int, deliver DeliverFunc) (Stream, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(sampleRate)

	if id >= 0 {
		devs, err := b.ctx.Devices(malgo.Capture)
		if err != nil {
			return nil, fmt.Errorf("malgo devices: %w", err)
		}
		if id >= len(devs) {
			return nil, fmt.Errorf("%w with id %d", ErrNoDevice, id)
		}
		devID := devs[id].ID
		cfg.Capture.DeviceID = devID.Pointer()
	}

	var (
		mu      sync.Mutex
		scratch []float32
	)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, frames uint32) {
			mu.Lock()
			defer mu.Unlock()
			n := min(int(frames), len(in)/4)
			if cap(scratch) < n {
				scratch = make([]float32, n)
			}
			scratch = scratch[:n]
			for i := range scratch {
				scratch[i] = math.Float32frombits(binary.LittleEndian.Uint32(in[i*4:]))
			}
			deliver(scratch)
		},
	}
	dev, err := malgo.InitDevice(b.ctx.Context, cfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("malgo init device: %w", err)
	}
	rate := int(dev.SampleRate())
	if rate <= 0 {
		rate = sampleRate
	}
	return &miniaudioStream{dev: dev, rate: rate}, nil
}

func (b *miniaudioBackend) Close() error {
	_ = b.ctx.Uninit()
	b.ctx.Free()
	return nil
}

type miniaudioStream struct {
	dev  *malgo.Device
	rate int
}

func (s *miniaudioStream) SampleRate() int { return s.rate }
func (s *miniaudioStream) Start() error    { return s.dev.Start() }
func (s *miniaudioStream) Stop() error     { return s.dev.Stop() }

func (s *miniaudioStream) Close() error {
	s.dev.Uninit()
	return nil
}
