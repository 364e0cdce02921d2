package timing

import (
	"log/slog"
	"time"
)

const (
	// spinThreshold is the remaining wait below which the limiter stops
	// sleeping and polls the clock.
	spinThreshold = 2 * time.Millisecond
	// maxLag is how far behind schedule a frame may start before the
	// schedule is reset instead of catching up with a burst of frames.
	maxLag = 5 * time.Millisecond
)

// AdaptiveLimiter keeps a fixed frame schedule: it sleeps for most of the
// wait and polls for the rest. Missed deadlines within maxLag are caught up,
// larger stalls (a paused window, a debugger) restart the schedule.
type AdaptiveLimiter struct {
	clock           Clock
	logger          *slog.Logger
	targetFrameTime time.Duration
	nextFrameTime   time.Time
	frames          int64
	started         time.Time
}

// NewAdaptiveLimiter creates a limiter running at the Game Boy frame rate.
// A nil clock means the wall clock.
func NewAdaptiveLimiter(clock Clock, logger *slog.Logger) *AdaptiveLimiter {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &AdaptiveLimiter{
		clock:           clock,
		logger:          logger,
		targetFrameTime: FrameDuration(),
	}
	a.Reset()
	return a
}

func (a *AdaptiveLimiter) WaitForNextFrame() {
	now := a.clock.Now()
	wait := a.nextFrameTime.Sub(now)

	switch {
	case wait > spinThreshold:
		a.clock.Sleep(wait - time.Millisecond)
		fallthrough
	case wait > 0:
		for a.clock.Now().Before(a.nextFrameTime) {
		}
	case wait < -maxLag:
		a.logger.Debug("Frame schedule reset", "lag_ms", (-wait).Milliseconds())
		a.nextFrameTime = now
	}

	a.nextFrameTime = a.nextFrameTime.Add(a.targetFrameTime)
	a.frames++

	if a.frames%600 == 0 {
		a.logger.Debug("Frame pacing", "fps", a.FPS())
	}
}

// FPS returns the average frame rate since the last Reset.
func (a *AdaptiveLimiter) FPS() float64 {
	elapsed := a.clock.Now().Sub(a.started)
	if elapsed <= 0 {
		return 0
	}
	return float64(a.frames) / elapsed.Seconds()
}

func (a *AdaptiveLimiter) Reset() {
	a.started = a.clock.Now()
	a.nextFrameTime = a.started
	a.frames = 0
}
