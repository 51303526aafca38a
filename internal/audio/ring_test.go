package audio

import (
	"sync"
	"testing"
)

func seq(from, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(from + i)
	}
	return out
}

func assertSeq(t *testing.T, got []float32, from int) {
	t.Helper()
	for i, v := range got {
		if v != float32(from+i) {
			t.Fatalf("sample %d = %v, want %v (all: %v)", i, v, from+i, got)
		}
	}
}

func TestRingReturnsMostRecentInOrder(t *testing.T) {
	r := NewRing(10)
	next := 0
	for _, chunk := range []int{3, 4, 5, 1, 9} {
		r.Append(seq(next, chunk))
		next += chunk
		for k := 0; k <= 12; k++ {
			got := r.Read(k)
			want := min(k, min(next, 10))
			if len(got) != want {
				t.Fatalf("after %d samples Read(%d) len=%d want %d", next, k, len(got), want)
			}
			assertSeq(t, got, next-want)
		}
	}
}

func TestRingReadStraddlesWrap(t *testing.T) {
	r := NewRing(8)
	r.Append(seq(0, 6))
	r.Append(seq(6, 5)) // wraps: write cursor ends at 3
	got := r.Read(7)
	if len(got) != 7 {
		t.Fatalf("len=%d", len(got))
	}
	assertSeq(t, got, 4)
}

func TestRingOversizeChunkKeepsTail(t *testing.T) {
	r := NewRing(4)
	r.Append(seq(0, 3))
	r.Append(seq(100, 11))
	if r.Len() != 4 {
		t.Fatalf("len=%d", r.Len())
	}
	assertSeq(t, r.Read(4), 107)

	// Cursor must be consistent with a sample-by-sample write.
	r.Append(seq(111, 2))
	assertSeq(t, r.Read(4), 109)
}

func TestRingClear(t *testing.T) {
	r := NewRing(5)
	r.Append(seq(0, 5))
	r.Clear()
	if got := r.Read(5); len(got) != 0 {
		t.Fatalf("read after clear: %v", got)
	}
	r.Append(seq(10, 2))
	got := r.Read(5)
	if len(got) != 2 {
		t.Fatalf("len=%d", len(got))
	}
	assertSeq(t, got, 10)
}

func TestRingReadIsCopy(t *testing.T) {
	r := NewRing(4)
	r.Append(seq(0, 4))
	got := r.Read(4)
	got[0] = -1
	assertSeq(t, r.Read(4), 0)
}

func TestRingZeroCapacity(t *testing.T) {
	r := NewRing(0)
	r.Append(seq(0, 3))
	if r.Len() != 0 || len(r.Read(3)) != 0 {
		t.Fatalf("zero-capacity ring stored data")
	}
}

func TestRingConcurrentReadsAreContiguous(t *testing.T) {
	r := NewRing(256)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		next := 0
		for i := 0; i < 2000; i++ {
			r.Append(seq(next, 37))
			next += 37
		}
	}()
	for i := 0; i < 2000; i++ {
		got := r.Read(100)
		for j := 1; j < len(got); j++ {
			if got[j] != got[j-1]+1 {
				t.Fatalf("torn read at %d: %v then %v", j, got[j-1], got[j])
			}
		}
	}
	wg.Wait()
}
