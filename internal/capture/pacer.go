package capture

import (
	"sync"
	"time"
)

// lagFactor is how far past the frame interval a loop iteration may run
// before it is reported as lagging. No catch-up is attempted; overload is
// absorbed by the queue drop policy instead.
const lagFactor = 1.5

// Pacer computes how long a capture or processing loop should sleep after
// each iteration to hold a target frame rate.
type Pacer struct {
	interval time.Duration
}

// NewPacer creates a Pacer for the given target frames per second.
// Non-positive rates fall back to 30 FPS.
func NewPacer(targetFPS float64) *Pacer {
	if targetFPS <= 0 {
		targetFPS = 30
	}
	return &Pacer{interval: time.Duration(float64(time.Second) / targetFPS)}
}

// Interval returns the target period between iterations.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Remaining returns the sleep needed after an iteration that took elapsed.
// Zero or negative means the loop is already behind and must not sleep.
func (p *Pacer) Remaining(elapsed time.Duration) time.Duration {
	return p.interval - elapsed
}

// Lagging reports whether an iteration overran the interval badly enough
// to be worth logging.
func (p *Pacer) Lagging(elapsed time.Duration) bool {
	return float64(elapsed) > float64(p.interval)*lagFactor
}

// Wait sleeps out the remainder of the interval for an iteration that began
// at start, returning the elapsed work time.
func (p *Pacer) Wait(start time.Time) time.Duration {
	elapsed := time.Since(start)
	if rem := p.Remaining(elapsed); rem > 0 {
		time.Sleep(rem)
	}
	return elapsed
}

// RateCounter tracks a rolling frames-per-second figure over one-second
// windows, mirroring how the capture and processing rates are reported.
type RateCounter struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
	rate        float64
}

// NewRateCounter creates a RateCounter with an open window starting now.
func NewRateCounter() *RateCounter {
	return &RateCounter{windowStart: time.Now()}
}

// Tick records one frame and rolls the window if a second has passed.
func (c *RateCounter) Tick() {
	c.tickAt(time.Now())
}

func (c *RateCounter) tickAt(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.count++
	elapsed := now.Sub(c.windowStart)
	if elapsed >= time.Second {
		c.rate = float64(c.count) / elapsed.Seconds()
		c.count = 0
		c.windowStart = now
	}
}

// Rate returns the frames per second measured over the last completed window.
func (c *RateCounter) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// Reset zeroes the counter and starts a fresh window.
func (c *RateCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = 0
	c.rate = 0
	c.windowStart = time.Now()
}
