package audio

import (
	"fmt"
	"sync"
)

// PushBackend is a driverless backend: the embedding program hands samples
// to Push and they travel the same callback path a microphone would use.
type PushBackend struct {
	// Rate, when non-zero, overrides the requested sample rate the way real
	// hardware sometimes does.
	Rate int

	mu      sync.Mutex
	deliver DeliverFunc
	started bool
}

// NewPushBackend returns an empty push backend.
func NewPushBackend() *PushBackend { return &PushBackend{} }

func (p *PushBackend) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: 0, Name: "push", Channels: 1, Default: true}}, nil
}

func (p *PushBackend) Open(id int, sampleRate int, deliver DeliverFunc) (Stream, error) {
	if id > 0 {
		return nil, fmt.Errorf("push backend: %w with id %d", ErrNoDevice, id)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliver = deliver
	rate := sampleRate
	if p.Rate > 0 {
		rate = p.Rate
	}
	return &pushStream{owner: p, rate: rate}, nil
}

func (p *PushBackend) Close() error { return nil }

// Push delivers samples like a driver callback would. The callback fires
// even when the stream is stopped; the device decides what to keep.
func (p *PushBackend) Push(samples []float32) {
	p.mu.Lock()
	deliver := p.deliver
	p.mu.Unlock()
	if deliver != nil {
		deliver(samples)
	}
}

// Started reports whether the opened stream is currently started.
func (p *PushBackend) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

type pushStream struct {
	owner *PushBackend
	rate  int
}

func (s *pushStream) SampleRate() int { return s.rate }

func (s *pushStream) Start() error {
	s.owner.mu.Lock()
	s.owner.started = true
	s.owner.mu.Unlock()
	return nil
}

func (s *pushStream) Stop() error {
	s.owner.mu.Lock()
	s.owner.started = false
	s.owner.mu.Unlock()
	return nil
}

func (s *pushStream) Close() error {
	s.owner.mu.Lock()
	s.owner.deliver = nil
	s.owner.started = false
	s.owner.mu.Unlock()
	return nil
}
