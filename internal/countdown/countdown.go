// Package countdown implements a cancellable, resumable countdown that drives
// both a remaining-time counter and a 0..1 progress value from one duration.
package countdown

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateDone
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Countdown is safe for concurrent use. onComplete runs on the clock's
// goroutine, never while the countdown's lock is held.
type Countdown struct {
	clock clockwork.Clock

	mu         sync.Mutex
	state      State
	total      time.Duration
	remaining  time.Duration // as of resumedAt
	resumedAt  time.Time
	startedAt  time.Time
	gen        uint64
	timer      clockwork.Timer
	onComplete func()
}

func New(clock clockwork.Clock) *Countdown {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Countdown{clock: clock}
}

// Start resets elapsed time and schedules onComplete after d. A previous run
// is superseded and will not complete.
func (c *Countdown) Start(d time.Duration, onComplete func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	now := c.clock.Now()
	c.state = StateRunning
	c.total = d
	c.remaining = d
	c.startedAt = now
	c.resumedAt = now
	c.onComplete = onComplete
	c.scheduleLocked()
}

// Pause freezes remaining time and progress. It is a no-op unless running.
func (c *Countdown) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return
	}
	c.remaining = c.remainingLocked()
	c.stopLocked()
	c.state = StatePaused
}

// Resume continues from the frozen point using the remaining duration.
func (c *Countdown) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePaused {
		return
	}
	c.state = StateRunning
	c.resumedAt = c.clock.Now()
	c.scheduleLocked()
}

// Cancel guarantees onComplete never fires for the current run.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRunning || c.state == StatePaused {
		c.remaining = c.remainingLocked()
		c.state = StateCancelled
	}
	c.stopLocked()
	c.onComplete = nil
}

func (c *Countdown) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Countdown) Total() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *Countdown) StartedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startedAt
}

func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

// Progress is 0 at start and 1 once the countdown has completed.
func (c *Countdown) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progressLocked()
}

// Snapshot reads remaining time and progress at one instant.
func (c *Countdown) Snapshot() (remaining time.Duration, progress float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked(), c.progressLocked()
}

func (c *Countdown) progressLocked() float64 {
	if c.state == StateDone {
		return 1
	}
	if c.total <= 0 {
		return 0
	}
	p := 1 - float64(c.remainingLocked())/float64(c.total)
	return min(max(p, 0), 1)
}

func (c *Countdown) remainingLocked() time.Duration {
	switch c.state {
	case StateRunning:
		left := c.remaining - c.clock.Since(c.resumedAt)
		return max(left, 0)
	case StateDone:
		return 0
	default:
		return c.remaining
	}
}

func (c *Countdown) scheduleLocked() {
	c.gen++
	gen := c.gen
	c.timer = c.clock.AfterFunc(c.remaining, func() { c.fire(gen) })
}

// stopLocked releases the scheduled timer and invalidates any callback that
// is already on its way.
func (c *Countdown) stopLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Countdown) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	c.state = StateDone
	c.remaining = 0
	c.timer = nil
	cb := c.onComplete
	c.onComplete = nil
	c.mu.Unlock()

	if cb != nil {
		cb()
	}
}
