// Package sched abstracts time for the SDK: a wall clock and a timer
// scheduler behind small interfaces, so retry backoff and TTL staleness
// logic are testable with a simulated clock instead of real sleeps.
package sched

import (
	"sync"
	"time"

	"github.com/muninn-io/muninn-go/internal/runloop"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// CancelFunc stops a scheduled callback. Calling it after the callback has
// fired (or more than once) is a no-op.
type CancelFunc func()

// Scheduler schedules callbacks for future execution. Implementations must
// deliver callbacks onto the SDK loop, never on an arbitrary goroutine.
type Scheduler interface {
	// ScheduleOnce runs fn once after delay.
	ScheduleOnce(delay time.Duration, fn func()) CancelFunc

	// ScheduleRepeating runs fn every interval until cancelled.
	ScheduleRepeating(interval time.Duration, fn func()) CancelFunc
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// TimerScheduler is the production Scheduler backed by runtime timers.
// Fired callbacks are re-posted onto the given executor (the SDK loop)
// before touching any shared state.
type TimerScheduler struct {
	exec runloop.Executor
}

// NewTimerScheduler creates a scheduler delivering callbacks to exec.
func NewTimerScheduler(exec runloop.Executor) *TimerScheduler {
	return &TimerScheduler{exec: exec}
}

// ScheduleOnce implements Scheduler.
func (s *TimerScheduler) ScheduleOnce(delay time.Duration, fn func()) CancelFunc {
	timer := time.AfterFunc(delay, func() {
		s.exec.Post(fn)
	})

	var once sync.Once
	return func() {
		once.Do(func() { timer.Stop() })
	}
}

// ScheduleRepeating implements Scheduler.
func (s *TimerScheduler) ScheduleRepeating(interval time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(interval)
	stop := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				s.exec.Post(fn)
			case <-stop:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(stop)
		})
	}
}
