//go:build whisper

package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

type portAudioBackend struct{}

func newPortAudioBackend() (Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &portAudioBackend{}, nil
}

func (b *portAudioBackend) inputs() ([]*portaudio.DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var in []*portaudio.DeviceInfo
	for _, d := range devs {
		if d.MaxInputChannels > 0 {
			in = append(in, d)
		}
	}
	return in, nil
}

func (b *portAudioBackend) Devices() ([]DeviceInfo, error) {
	devs, err := b.inputs()
	if err != nil {
		return nil, err
	}
	def, _ := portaudio.DefaultInputDevice()
	out := make([]DeviceInfo, 0, len(devs))
	for i, d := range devs {
		out = append(out, DeviceInfo{
			ID:       i,
			Name:     d.Name,
			Channels: d.MaxInputChannels,
			Latency:  d.DefaultLowInputLatency,
			Default:  def != nil && def.Name == d.Name,
		})
	}
	return out, nil
}

func (b *portAudioBackend) Open(id int, sampleRate int, deliver DeliverFunc) (Stream, error) {
	var dev *portaudio.DeviceInfo
	if id < 0 {
		d, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input: %w", err)
		}
		dev = d
	} else {
		devs, err := b.inputs()
		if err != nil {
			return nil, fmt.Errorf("list devices: %w", err)
		}
		if id >= len(devs) {
			return nil, fmt.Errorf("%w with id %d", ErrNoDevice, id)
		}
		dev = devs[id]
	}
	if dev == nil {
		return nil, ErrNoDevice
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}, func(in []float32) { deliver(in) })
	if err != nil {
		return nil, fmt.Errorf("open stream on %q: %w", dev.Name, err)
	}
	rate := sampleRate
	if info := stream.Info(); info != nil && info.SampleRate > 0 {
		rate = int(info.SampleRate)
	}
	return &portAudioStream{stream: stream, rate: rate}, nil
}

func (b *portAudioBackend) Close() error { return portaudio.Terminate() }

type portAudioStream struct {
	stream *portaudio.Stream
	rate   int
}

func (s *portAudioStream) SampleRate() int { return s.rate }
func (s *portAudioStream) Start() error    { return s.stream.Start() }
func (s *portAudioStream) Stop() error     { return s.stream.Stop() }
func (s *portAudioStream) Close() error    { return s.stream.Close() }
