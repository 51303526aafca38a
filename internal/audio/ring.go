package audio

import "sync"

// Ring is a fixed-capacity circular buffer of mono float32 samples. One
// producer appends from the capture callback while a consumer takes
// snapshots of the most recent audio. When full, the oldest samples are
// overwritten; Append never waits on the reader beyond the copy itself.
type Ring struct {
	mu  sync.Mutex
	buf []float32
	pos int // next slot to write, always in [0, len(buf))
	n   int // valid samples, saturates at len(buf)
}

// NewRing allocates a ring holding capacity samples.
func NewRing(capacity int) *Ring {
	if capacity < 0 {
		capacity = 0
	}
	return &Ring{buf: make([]float32, capacity)}
}

// Append copies samples into the ring, overwriting the oldest data when the
// chunk does not fit.
func (r *Ring) Append(samples []float32) {
	size := len(r.buf)
	if size == 0 || len(samples) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	total := len(samples)
	if total > size {
		// Only the newest size samples survive; skip the cursor past the rest
		// so it lands where it would have after writing everything.
		r.pos = (r.pos + total - size) % size
		samples = samples[total-size:]
	}

	n0 := copy(r.buf[r.pos:], samples)
	if n0 < len(samples) {
		copy(r.buf, samples[n0:])
	}
	r.pos = (r.pos + len(samples)) % size
	r.n = min(r.n+total, size)
}

// Read returns the most recent min(n, Len()) samples in chronological order.
// The result is a fresh slice owned by the caller.
func (r *Ring) Read(n int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	n = min(max(n, 0), r.n)
	out := make([]float32, n)
	if n == 0 {
		return out
	}

	size := len(r.buf)
	start := r.pos - n
	if start < 0 {
		start += size
	}
	if start+n > size {
		n0 := copy(out, r.buf[start:])
		copy(out[n0:], r.buf[:n-n0])
	} else {
		copy(out, r.buf[start:start+n])
	}
	return out
}

// Clear forgets all buffered samples without releasing storage.
func (r *Ring) Clear() {
	r.mu.Lock()
	r.pos = 0
	r.n = 0
	r.mu.Unlock()
}

// Len reports how many valid samples are buffered.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Cap reports the fixed capacity in samples.
func (r *Ring) Cap() int { return len(r.buf) }
