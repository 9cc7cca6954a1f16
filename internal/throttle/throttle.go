// Package throttle paces archive rewrite I/O to a configured byte rate.
//
// The limiter is advisory: it measures throughput over one-second windows and
// sleeps for the excess, never more than MaxWait per call, so a single large
// write cannot block a worker indefinitely.
package throttle

import (
	"io"
	"sync"
	"time"
)

// MaxWait bounds a single Throttle sleep.
const MaxWait = 100 * time.Millisecond

const window = time.Second

// Throttle caps sustained byte throughput. A nil or zero-rate Throttle is a no-op.
type Throttle struct {
	rate float64

	mu          sync.Mutex
	windowStart time.Time
	bytes       int64

	now   func() time.Time
	sleep func(time.Duration)
}

// New returns a limiter for bytesPerSecond. Zero or negative disables pacing.
func New(bytesPerSecond float64) *Throttle {
	return &Throttle{
		rate:  bytesPerSecond,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// NewMB returns a limiter for a rate expressed in megabytes per second.
func NewMB(mbPerSecond float64) *Throttle {
	return New(mbPerSecond * 1024 * 1024)
}

// Enabled reports whether the limiter paces anything.
func (t *Throttle) Enabled() bool {
	return t != nil && t.rate > 0
}

// Throttle records n bytes and sleeps when the finished window ran faster than the cap.
func (t *Throttle) Throttle(n int) {
	if !t.Enabled() || n <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.windowStart.IsZero() {
		t.windowStart = now
	}
	t.bytes += int64(n)

	elapsed := now.Sub(t.windowStart)
	if elapsed < window {
		return
	}

	actual := float64(t.bytes) / elapsed.Seconds()
	if actual > t.rate {
		excess := float64(t.bytes) - t.rate*elapsed.Seconds()
		wait := time.Duration(excess * float64(time.Second) / t.rate)
		if wait > MaxWait {
			wait = MaxWait
		}
		if wait > 0 {
			t.sleep(wait)
		}
	}
	t.bytes = 0
	t.windowStart = t.now()
}

// Writer wraps w so every write is accounted against the limiter.
func (t *Throttle) Writer(w io.Writer) io.Writer {
	if !t.Enabled() {
		return w
	}
	return &writer{w: w, t: t}
}

// Reader wraps r so every read is accounted against the limiter.
func (t *Throttle) Reader(r io.Reader) io.Reader {
	if !t.Enabled() {
		return r
	}
	return &reader{r: r, t: t}
}

type writer struct {
	w io.Writer
	t *Throttle
}

func (w *writer) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.t.Throttle(n)
	return n, err
}

type reader struct {
	r io.Reader
	t *Throttle
}

func (r *reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.t.Throttle(n)
	return n, err
}
