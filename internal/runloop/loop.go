// Package runloop provides the SDK's confined serial execution context.
//
// One Loop owns all mutation of identity, tracker, queue, and config-cache
// state: public operations that mutate state are posted onto the loop and
// execute strictly in submission order. That ordering is what makes the
// enqueue -> threshold-check -> flush chain race-free and guarantees a
// consent change never interleaves mid-way through a track call.
package runloop

import "sync"

// Executor runs a function, either inline or on some other goroutine.
// Loop is the production implementation; Inline and Spawn exist so tests can
// execute deterministically and network calls can leave the loop.
type Executor interface {
	Post(fn func())
}

// Loop is a single-goroutine serial executor with an unbounded FIFO queue.
// Post never blocks the caller.
type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool
	done   chan struct{}
}

// New creates a Loop and starts its worker goroutine.
func New() *Loop {
	l := &Loop{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

// Post submits fn for execution in submission order. Tasks posted after
// Close are silently dropped; by then the owner is tearing down and has
// already performed its best-effort final flush.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.tasks = append(l.tasks, fn)
	l.cond.Signal()
	l.mu.Unlock()
}

// Close stops accepting tasks, drains everything already queued, and waits
// for the worker goroutine to exit.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	l.cond.Signal()
	l.mu.Unlock()
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.tasks) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.tasks) == 0 && l.closed {
			l.mu.Unlock()
			return
		}
		task := l.tasks[0]
		l.tasks = l.tasks[1:]
		l.mu.Unlock()

		task()
	}
}

// Inline executes tasks synchronously on the caller's goroutine. Used in
// tests, where the test goroutine plays the role of the SDK loop.
type Inline struct{}

func (Inline) Post(fn func()) { fn() }

// Spawn executes each task on a fresh goroutine. Used for network sends and
// fetches, which must not run on (or block) the serial loop.
type Spawn struct{}

func (Spawn) Post(fn func()) { go fn() }
