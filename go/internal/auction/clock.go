package auction

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// Countdown is the authoritative per-lot timer. It is owned by a single session
// goroutine and is not safe for concurrent use. Expiry is reported through fire
// with the generation that armed it, so the owner can discard stale fires.
type Countdown struct {
	clock  Clock
	window time.Duration
	fire   func(gen uint64)

	deadline  time.Time
	remaining time.Duration // authoritative while paused
	running   bool
	paused    bool

	gen   uint64
	timer clockwork.Timer
	stop  chan struct{}
}

// NewCountdown creates a stopped countdown with the given anti-snipe window.
func NewCountdown(clock Clock, window time.Duration, fire func(gen uint64)) *Countdown {
	return &Countdown{
		clock:  clock,
		window: window,
		fire:   fire,
	}
}

// Start arms the countdown for d and returns the timer generation.
func (c *Countdown) Start(d time.Duration) uint64 {
	c.running = true
	c.paused = false
	c.remaining = 0
	c.deadline = c.clock.Now().Add(d)
	return c.arm(d)
}

// Running reports whether the countdown is armed.
func (c *Countdown) Running() bool { return c.running }

// Paused reports whether the countdown holds a frozen remaining time.
func (c *Countdown) Paused() bool { return c.paused }

// Deadline returns the current expiry instant; zero when not running.
func (c *Countdown) Deadline() time.Time {
	if !c.running {
		return time.Time{}
	}
	return c.deadline
}

// Remaining returns the time left, never negative.
func (c *Countdown) Remaining() time.Duration {
	if c.paused {
		return c.remaining
	}
	if !c.running {
		return 0
	}
	left := c.deadline.Sub(c.clock.Now())
	if left < 0 {
		return 0
	}
	return left
}

// Checkpoint returns the remaining time rounded down to whole seconds.
func (c *Countdown) Checkpoint() time.Duration {
	return c.Remaining().Truncate(time.Second)
}

// OnBid applies the anti-snipe rule after an accepted bid. When less than the
// window is left the countdown is set to exactly the window.
func (c *Countdown) OnBid() bool {
	if !c.running || c.window <= 0 {
		return false
	}
	if c.Remaining() >= c.window {
		return false
	}
	c.deadline = c.clock.Now().Add(c.window)
	c.arm(c.window)
	return true
}

// Pause freezes the remaining time and stops the timer.
func (c *Countdown) Pause() time.Duration {
	if !c.running {
		return c.remaining
	}
	c.remaining = c.Remaining()
	c.running = false
	c.paused = true
	c.disarm()
	return c.remaining
}

// Resume re-arms a paused countdown with the frozen remaining time.
func (c *Countdown) Resume() time.Duration {
	if !c.paused {
		return c.Remaining()
	}
	d := c.remaining
	c.Start(d)
	return d
}

// Hold puts a stopped countdown into the paused state with d remaining.
func (c *Countdown) Hold(d time.Duration) {
	c.disarm()
	c.running = false
	c.paused = true
	c.remaining = max(d, 0)
}

// Retry re-arms the timer for d without moving the deadline.
func (c *Countdown) Retry(d time.Duration) uint64 {
	if !c.running {
		return c.gen
	}
	return c.arm(d)
}

// Expired reports whether a running countdown has reached its deadline.
func (c *Countdown) Expired() bool {
	return c.running && !c.clock.Now().Before(c.deadline)
}

// Stop cancels the countdown without firing.
func (c *Countdown) Stop() {
	c.running = false
	c.paused = false
	c.remaining = 0
	c.disarm()
}

// Due reports whether a fire for gen is current and the deadline has passed.
// A fire for the current generation that arrives early re-arms itself.
func (c *Countdown) Due(gen uint64) bool {
	if !c.running || gen != c.gen {
		return false
	}
	left := c.deadline.Sub(c.clock.Now())
	if left > 0 {
		c.arm(left)
		return false
	}
	return true
}

func (c *Countdown) arm(d time.Duration) uint64 {
	c.disarm()
	c.gen++
	gen := c.gen
	timer := c.clock.NewTimer(d)
	stop := make(chan struct{})
	c.timer = timer
	c.stop = stop

	go func() {
		select {
		case <-timer.Chan():
			if c.fire != nil {
				c.fire(gen)
			}
		case <-stop:
		}
	}()
	return gen
}

func (c *Countdown) disarm() {
	if c.timer != nil {
		stopAndDrainTimer(c.timer)
		c.timer = nil
	}
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel to prevent goroutine leaks.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
