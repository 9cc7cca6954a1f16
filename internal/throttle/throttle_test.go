package throttle

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func newFake(rate float64) (*Throttle, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	t := New(rate)
	t.now = clock.Now
	t.sleep = clock.Sleep
	return t, clock
}

func TestZeroRateIsNoop(t *testing.T) {
	th, clock := newFake(0)
	th.Throttle(1 << 30)
	assert.Empty(t, clock.sleeps)
	assert.False(t, th.Enabled())

	var nilThrottle *Throttle
	nilThrottle.Throttle(10)
	buf := &bytes.Buffer{}
	assert.Same(t, buf, nilThrottle.Writer(buf))
}

func TestNoSleepWithinWindow(t *testing.T) {
	th, clock := newFake(100)
	th.Throttle(10_000)
	clock.now = clock.now.Add(500 * time.Millisecond)
	th.Throttle(10_000)
	assert.Empty(t, clock.sleeps, "sub-second windows are never paced")
}

func TestSleepIsCappedPerCall(t *testing.T) {
	th, clock := newFake(1000)
	th.Throttle(1)
	clock.now = clock.now.Add(time.Second)
	th.Throttle(100_000)

	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, MaxWait, clock.sleeps[0])
}

func TestSleepProportionalToExcess(t *testing.T) {
	th, clock := newFake(1000)
	th.Throttle(1000)
	clock.now = clock.now.Add(time.Second)
	th.Throttle(50) // 1050 bytes in 1s at 1000 B/s -> 50ms excess

	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 50*time.Millisecond, clock.sleeps[0])
}

func TestWindowResetsAfterMeasurement(t *testing.T) {
	th, clock := newFake(1000)
	th.Throttle(500)
	clock.now = clock.now.Add(time.Second)
	th.Throttle(400)
	assert.Empty(t, clock.sleeps, "under the cap")
	assert.Zero(t, th.bytes)

	th.Throttle(999)
	assert.Empty(t, clock.sleeps, "new window has not elapsed")
}

func TestEverySleepBounded(t *testing.T) {
	th, clock := newFake(10_000)
	for i := 0; i < 500; i++ {
		th.Throttle(1000)
		clock.now = clock.now.Add(10 * time.Millisecond)
	}
	require.NotEmpty(t, clock.sleeps)
	for _, s := range clock.sleeps {
		assert.LessOrEqual(t, s, MaxWait)
	}
}

func TestWriterAndReaderAccount(t *testing.T) {
	th, clock := newFake(10)
	var out bytes.Buffer
	w := th.Writer(&out)
	_, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	clock.now = clock.now.Add(time.Second)

	r := th.Reader(bytes.NewReader(make([]byte, 100)))
	n, err := io.Copy(io.Discard, r)
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)
	assert.Equal(t, "hello", out.String())
	assert.NotEmpty(t, clock.sleeps)
}
