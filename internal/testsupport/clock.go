// Package testsupport provides shared test doubles and integration-test
// infrastructure: a manual clock/scheduler for deterministic timer tests,
// scripted network collaborators, and container helpers for the dev
// backend's Postgres and Redis dependencies.
package testsupport

import (
	"sort"
	"sync"
	"time"

	"github.com/muninn-io/muninn-go/internal/sched"
)

// ManualClock implements sched.Clock and sched.Scheduler over simulated
// time. Timers never fire from a background goroutine; Advance runs every
// due callback synchronously, in due order, so tests observe retry/TTL
// behavior exactly.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer

	// OnceDelays records every ScheduleOnce delay in scheduling order.
	// Tests assert the retry backoff sequence against it.
	OnceDelays []time.Duration
}

type manualTimer struct {
	at        time.Time
	interval  time.Duration // 0 for one-shot timers
	fn        func()
	cancelled bool
}

// Compile-time interface checks.
var (
	_ sched.Clock     = (*ManualClock)(nil)
	_ sched.Scheduler = (*ManualClock)(nil)
)

// NewManualClock creates a clock starting at the given instant.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now implements sched.Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// ScheduleOnce implements sched.Scheduler.
func (c *ManualClock) ScheduleOnce(delay time.Duration, fn func()) sched.CancelFunc {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.OnceDelays = append(c.OnceDelays, delay)
	t := &manualTimer{at: c.now.Add(delay), fn: fn}
	c.timers = append(c.timers, t)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		t.cancelled = true
	}
}

// ScheduleRepeating implements sched.Scheduler.
func (c *ManualClock) ScheduleRepeating(interval time.Duration, fn func()) sched.CancelFunc {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &manualTimer{at: c.now.Add(interval), interval: interval, fn: fn}
	c.timers = append(c.timers, t)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		t.cancelled = true
	}
}

// Advance moves simulated time forward, firing every due timer in order.
// Callbacks run on the caller's goroutine and may schedule further timers;
// those fire too if they fall within the advanced window.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		t := c.popDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	c.mu.Lock()
	if target.After(c.now) {
		c.now = target
	}
	c.mu.Unlock()
}

// popDue advances to and returns the earliest timer due at or before
// target, rescheduling repeating timers. Returns nil when nothing is due.
func (c *ManualClock) popDue(target time.Time) *manualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	c.timers = live

	sort.SliceStable(c.timers, func(i, j int) bool {
		return c.timers[i].at.Before(c.timers[j].at)
	})

	if len(c.timers) == 0 || c.timers[0].at.After(target) {
		return nil
	}

	t := c.timers[0]
	if t.at.After(c.now) {
		c.now = t.at
	}
	if t.interval > 0 {
		t.at = t.at.Add(t.interval)
	} else {
		c.timers = c.timers[1:]
	}
	return t
}
