package audio

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoDevice is returned when no capture device matches the request.
	ErrNoDevice = errors.New("no input devices found")
	// ErrNativeUnavailable is returned by backends that need the native
	// audio libraries when the binary was built without them.
	ErrNativeUnavailable = errors.New("build with '-tags whisper' to enable native audio backends")
)

// DeliverFunc receives mono float32 samples from the capture driver. It runs
// on the driver's callback thread and must return quickly. The slice is only
// valid for the duration of the call.
type DeliverFunc func(samples []float32)

// DeviceInfo describes a capture device as reported by a backend.
type DeviceInfo struct {
	ID       int           `json:"index"`
	Name     string        `json:"name"`
	Channels int           `json:"channels"`
	Latency  time.Duration `json:"latency"`
	Default  bool          `json:"default"`
}

// Backend is the boundary to an audio driver.
type Backend interface {
	// Devices enumerates capture devices without opening any of them.
	Devices() ([]DeviceInfo, error)
	// Open opens device id (negative selects the system default) for mono
	// float32 capture at the requested rate. deliver is invoked for every
	// chunk once the stream is started.
	Open(id int, sampleRate int, deliver DeliverFunc) (Stream, error)
	// Close releases driver-level resources.
	Close() error
}

// Stream is an opened capture handle.
type Stream interface {
	// SampleRate is the rate the driver actually granted.
	SampleRate() int
	Start() error
	Stop() error
	Close() error
}

// BackendOptions carries settings for NewBackend.
type BackendOptions struct {
	FilePath string // file backend
	Realtime bool   // file backend pacing
}

// NewBackend returns the backend registered under name.
func NewBackend(name string, opts BackendOptions) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "portaudio":
		return newPortAudioBackend()
	case "miniaudio", "malgo":
		return newMiniaudioBackend()
	case "file", "wav":
		if opts.FilePath == "" {
			return nil, fmt.Errorf("file backend: audio.file_path not set")
		}
		return NewFileBackend(opts.FilePath, opts.Realtime), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q (want portaudio, miniaudio or file)", name)
	}
}

// FindDevice returns the id of the first input device whose name contains
// preferred (case-insensitive), or -1 to let the backend pick its default.
func FindDevice(b Backend, preferred string) (int, error) {
	preferred = strings.ToLower(strings.TrimSpace(preferred))
	if preferred == "" {
		return -1, nil
	}
	devs, err := b.Devices()
	if err != nil {
		return -1, fmt.Errorf("list devices: %w", err)
	}
	for _, d := range devs {
		if strings.Contains(strings.ToLower(d.Name), preferred) {
			return d.ID, nil
		}
	}
	return -1, fmt.Errorf("%w matching %q", ErrNoDevice, preferred)
}
