package audio

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Device owns one capture stream and the ring it feeds. Lifecycle methods
// report misuse through their boolean result instead of failing hard: a
// missing microphone is an expected condition for callers to handle.
type Device struct {
	backend  Backend
	lengthMS int
	logger   *logrus.Logger
	onAppend atomic.Pointer[func(n int)]

	mu         sync.Mutex // guards stream and sampleRate
	stream     Stream
	sampleRate int
	// The callback path touches only these two, never mu: drivers block in
	// Stop until the callback returns, and Stop is called under mu.
	ring    atomic.Pointer[Ring]
	running atomic.Bool
}

// NewDevice prepares a device that buffers the last lengthMS milliseconds of
// audio once opened.
func NewDevice(backend Backend, lengthMS int, logger *logrus.Logger) *Device {
	return &Device{backend: backend, lengthMS: lengthMS, logger: logger}
}

// OnAppend registers a hook called from the capture callback with the number
// of samples accepted. It must be cheap; metrics counters are the intended use.
// It may be swapped while capturing; nil removes the hook.
func (d *Device) OnAppend(fn func(n int)) {
	if fn == nil {
		d.onAppend.Store(nil)
		return
	}
	d.onAppend.Store(&fn)
}

// ListDevices enumerates capture devices. Failures are logged and yield an
// empty list.
func ListDevices(backend Backend, logger *logrus.Logger) []DeviceInfo {
	devs, err := backend.Devices()
	if err != nil {
		logger.Errorf("audio: list devices: %v", err)
		return []DeviceInfo{}
	}
	logger.Infof("audio: found %d capture devices", len(devs))
	for _, d := range devs {
		logger.Debugf("audio:   - device %d: %q", d.ID, d.Name)
	}
	return devs
}

// Init opens deviceID (negative for the system default) at sampleRate and
// sizes the ring from the rate the driver grants. Any previously opened
// stream is closed first.
func (d *Device) Init(deviceID, sampleRate int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stream != nil {
		d.logger.Warn("audio: device already open, reopening")
		_ = d.closeLocked()
	}

	if deviceID >= 0 {
		d.logger.Infof("audio: using device %d", deviceID)
	} else {
		d.logger.Info("audio: using default device")
	}

	stream, err := d.backend.Open(deviceID, sampleRate, d.deliver)
	if err != nil {
		d.logger.Errorf("audio: failed to open device: %v", err)
		return false
	}
	rate := stream.SampleRate()
	capacity := rate * d.lengthMS / 1000
	if capacity <= 0 {
		d.logger.Errorf("audio: unusable buffer (rate %d Hz, length %d ms)", rate, d.lengthMS)
		_ = stream.Close()
		return false
	}
	if rate != sampleRate {
		d.logger.Warnf("audio: requested %d Hz, driver granted %d Hz", sampleRate, rate)
	}
	d.logger.Infof("audio: opened device (sample_rate=%d, buffer=%d samples)", rate, capacity)

	d.ring.Store(NewRing(capacity))
	d.sampleRate = rate
	d.stream = stream
	return true
}

// Resume starts delivering captured audio into the ring.
func (d *Device) Resume() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		d.logger.Warn("audio: resume failed, no device open")
		return false
	}
	if d.running.Load() {
		d.logger.Debug("audio: already running")
		return false
	}
	if err := d.stream.Start(); err != nil {
		d.logger.Errorf("audio: start stream: %v", err)
		return false
	}
	d.running.Store(true)
	return true
}

// Pause stops accepting audio. Chunks delivered while paused are dropped at
// the callback boundary.
func (d *Device) Pause() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		d.logger.Warn("audio: pause failed, no device open")
		return false
	}
	if !d.running.Load() {
		d.logger.Debug("audio: already paused")
		return false
	}
	d.running.Store(false)
	if err := d.stream.Stop(); err != nil {
		d.logger.Warnf("audio: stop stream: %v", err)
	}
	return true
}

// Clear empties the ring. Only allowed while running.
func (d *Device) Clear() bool {
	ring, ok := d.activeRing("clear")
	if !ok {
		return false
	}
	ring.Clear()
	return true
}

// Read returns up to ms milliseconds of the most recent audio; ms <= 0
// means the whole buffer length. It returns nil when the device is not open
// or not running, so an empty result is not proof of silence.
func (d *Device) Read(ms int) []float32 {
	ring, ok := d.activeRing("read")
	if !ok {
		return nil
	}
	if ms <= 0 {
		ms = d.lengthMS
	}
	return ring.Read(d.SampleRate() * ms / 1000)
}

// Buffered reports how many samples are waiting in the ring.
func (d *Device) Buffered() int {
	ring := d.ring.Load()
	if ring == nil {
		return 0
	}
	return ring.Len()
}

// SampleRate is the granted rate, or 0 before Init.
func (d *Device) SampleRate() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampleRate
}

// Running reports whether captured audio is being buffered.
func (d *Device) Running() bool { return d.running.Load() }

// Close releases the stream if one is held. Safe to call repeatedly.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeLocked()
}

func (d *Device) closeLocked() error {
	if d.stream == nil {
		return nil
	}
	if d.running.Swap(false) {
		_ = d.stream.Stop()
	}
	err := d.stream.Close()
	d.stream = nil
	return err
}

func (d *Device) activeRing(op string) (*Ring, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		d.logger.Debugf("audio: %s failed, no device open", op)
		return nil, false
	}
	if !d.running.Load() {
		d.logger.Debugf("audio: %s failed, device not running", op)
		return nil, false
	}
	return d.ring.Load(), true
}

// deliver runs on the driver's callback thread.
func (d *Device) deliver(samples []float32) {
	if !d.running.Load() {
		return
	}
	ring := d.ring.Load()
	if ring == nil {
		return
	}
	ring.Append(samples)
	if fn := d.onAppend.Load(); fn != nil {
		(*fn)(len(samples))
	}
}
