package sched_go

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClockAlreadyRunning and ErrClockNotRunning are returned by Clock.Run and
// Clock.Stop when called in the wrong state.
var (
	ErrClockAlreadyRunning = errors.New("clock already running")
	ErrClockNotRunning     = errors.New("clock not running")
)

// Clock is a tick source that drives a Scheduler from a single goroutine.
type Clock struct {
	scheduler *Scheduler
	interval  time.Duration
	now       func() time.Time

	seq atomic.Uint64

	mu      sync.Mutex // guards running and stopCh
	running bool
	stopCh  chan struct{}
}

// NewClock returns a Clock that calls s.ProcessTick every interval. An
// interval of zero ticks as fast as the units allow.
func NewClock(s *Scheduler, interval time.Duration) *Clock {
	return &Clock{scheduler: s, interval: interval, now: time.Now}
}

// Run ticks until ctx is done or Stop is called, which both return nil, or
// until a tick fails, which returns that tick's error. A tick whose units fail
// only because ctx ended counts as an orderly end. Delta is the wall time
// since the previous tick (or since Run started, for the first tick).
func (c *Clock) Run(ctx context.Context, state any) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrClockAlreadyRunning
	}
	c.running = true
	stop := make(chan struct{})
	c.stopCh = stop
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.stopCh = nil
		c.mu.Unlock()
	}()

	var tickC <-chan time.Time
	if c.interval > 0 {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	last := c.now()
	for {
		if tickC != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-stop:
				return nil
			case <-tickC:
			}
		} else {
			select {
			case <-ctx.Done():
				return nil
			case <-stop:
				return nil
			default:
			}
		}

		now := c.now()
		tick := Tick{Seq: c.seq.Add(1), Delta: now.Sub(last), Time: now}
		last = now

		if err := c.scheduler.ProcessTick(ctx, tick, state); err != nil {
			// units that honour ctx fail the tick in flight when ctx ends
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil
			}
			return err
		}
	}
}

// Stop ends a running Run after its current tick.
func (c *Clock) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.stopCh == nil {
		return ErrClockNotRunning
	}
	close(c.stopCh)
	c.stopCh = nil
	return nil
}

// Running reports whether Run is active.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Ticks returns the number of ticks issued so far.
func (c *Clock) Ticks() uint64 {
	return c.seq.Load()
}
