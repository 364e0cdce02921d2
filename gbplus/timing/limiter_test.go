package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock advances a little on every Now so busy waits terminate.
type fakeClock struct {
	now    time.Time
	slept  time.Duration
	polled int
}

func (c *fakeClock) Now() time.Time {
	c.polled++
	c.now = c.now.Add(10 * time.Microsecond)
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept += d
	c.now = c.now.Add(d)
}

func TestFrameConstants(t *testing.T) {
	assert.InDelta(t, 59.7275, TargetFPS(), 0.0001)
	assert.InDelta(t, 16742706, FrameDuration().Nanoseconds(), 1)
}

func TestNoOpLimiter(t *testing.T) {
	l := NewNoOpLimiter()
	start := time.Now()
	for range 1000 {
		l.WaitForNextFrame()
	}
	l.Reset()
	assert.Less(t, time.Since(start), time.Second)
}

func TestAdaptiveLimiter_KeepsSchedule(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := NewAdaptiveLimiter(clock, nil)
	start := l.started

	for range 60 {
		l.WaitForNextFrame()
	}

	elapsed := clock.now.Sub(start)
	// the 60th wait returns once the 59th frame's deadline passed
	assert.InDelta(t, float64(59*FrameDuration()), float64(elapsed), float64(time.Millisecond))
	assert.Greater(t, clock.slept, 50*FrameDuration(), "most of the wait is spent sleeping")
	assert.InDelta(t, TargetFPS(), l.FPS(), 2)
}

func TestAdaptiveLimiter_ResetsAfterStall(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := NewAdaptiveLimiter(clock, nil)
	l.WaitForNextFrame()

	clock.now = clock.now.Add(time.Second)
	l.WaitForNextFrame()
	before := clock.slept
	l.WaitForNextFrame()

	// the next frame waits a full period instead of bursting to catch up
	assert.InDelta(t, float64(FrameDuration()), float64(clock.slept-before), float64(2*time.Millisecond))
}
