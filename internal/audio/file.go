package audio

import (
	"fmt"
	"sync"
	"time"
)

const fileChunkFrames = 1024

// FileBackend replays a WAV file through the capture callback, either paced
// like a live microphone or as fast as the callback accepts it. After the
// file is exhausted it keeps delivering silence so downstream timing logic
// behaves as with a real device.
type FileBackend struct {
	path     string
	realtime bool
}

// NewFileBackend returns a backend that replays path.
func NewFileBackend(path string, realtime bool) *FileBackend {
	return &FileBackend{path: path, realtime: realtime}
}

func (f *FileBackend) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: 0, Name: "file:" + f.path, Channels: 1, Default: true}}, nil
}

// Open loads the whole file. The requested rate is ignored: the file's own
// rate is what the stream reports.
func (f *FileBackend) Open(id int, _ int, deliver DeliverFunc) (Stream, error) {
	if id > 0 {
		return nil, fmt.Errorf("file backend: %w with id %d", ErrNoDevice, id)
	}
	samples, rate, err := ReadWAV(f.path)
	if err != nil {
		return nil, err
	}
	if rate <= 0 {
		return nil, fmt.Errorf("file backend: %s has no sample rate", f.path)
	}
	return &fileStream{samples: samples, rate: rate, realtime: f.realtime, deliver: deliver}, nil
}

func (f *FileBackend) Close() error { return nil }

type fileStream struct {
	samples  []float32
	rate     int
	realtime bool
	deliver  DeliverFunc

	mu   sync.Mutex
	pos  int
	stop chan struct{}
	done chan struct{}
}

func (s *fileStream) SampleRate() int { return s.rate }

func (s *fileStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.feed(s.stop, s.done)
	return nil
}

func (s *fileStream) feed(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := time.Duration(fileChunkFrames) * time.Second / time.Duration(s.rate)
	silence := make([]float32, fileChunkFrames)
	pace := time.Millisecond
	if s.realtime {
		pace = interval
	}
	for {
		s.mu.Lock()
		start := s.pos
		end := min(start+fileChunkFrames, len(s.samples))
		s.pos = end
		s.mu.Unlock()

		if start < end {
			s.deliver(s.samples[start:end])
		} else {
			s.deliver(silence)
		}

		// Fast mode pushes the file in one go; pacing only applies to silence.
		if !s.realtime && start < end {
			select {
			case <-stop:
				return
			default:
			}
			continue
		}
		select {
		case <-stop:
			return
		case <-time.After(pace):
		}
	}
}

func (s *fileStream) Stop() error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

func (s *fileStream) Close() error { return s.Stop() }

