// Package dispatch owns event durability and delivery: a persisted pending
// queue drained in batches over the network, with bounded retry backoff and
// a recurring flush timer. All queue state is confined to the SDK loop.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/muninn-io/muninn-go/internal/envelope"
	"github.com/muninn-io/muninn-go/internal/eventstore"
	"github.com/muninn-io/muninn-go/internal/observability"
	"github.com/muninn-io/muninn-go/internal/runloop"
	"github.com/muninn-io/muninn-go/internal/sched"
	"github.com/muninn-io/muninn-go/internal/validation"
)

// Sender delivers one encoded batch to the backend. A nil error means the
// backend accepted the batch; any error means the batch must be retained.
type Sender interface {
	SendBatch(ctx context.Context, body []byte) error
}

// Config tunes batching and retry behavior.
type Config struct {
	// BatchSize is the number of events per upload. Zero or negative
	// sends everything pending in a single batch.
	BatchSize int

	// MaxRetries bounds consecutive failed delivery attempts before the
	// queue gives up until the next flush trigger.
	MaxRetries int

	// FlushInterval is the recurring flush cadence. Zero disables the
	// timer; flushes then happen only on thresholds and explicit calls.
	FlushInterval time.Duration

	// RetryDelays is the backoff schedule between failed attempts. The
	// last entry repeats if MaxRetries exceeds its length.
	RetryDelays []time.Duration
}

// DefaultRetryDelays is the standard exponential backoff schedule.
var DefaultRetryDelays = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Options carries the queue's collaborators.
type Options struct {
	Logger    *slog.Logger
	Store     eventstore.Store
	Sender    Sender
	Scheduler sched.Scheduler
	Loop      runloop.Executor
	Net       runloop.Executor
	Config    Config
}

// Queue is the delivery pipeline. Events enter through Enqueue, are
// persisted before anything else, and leave only after the backend accepts
// the batch that carried them. At most one batch is in flight at a time.
//
// Queue is not safe for direct concurrent use; callers reach it through the
// SDK loop.
type Queue struct {
	logger    *slog.Logger
	store     eventstore.Store
	sender    Sender
	scheduler sched.Scheduler
	loop      runloop.Executor
	net       runloop.Executor
	cfg       Config

	pending    []envelope.Envelope
	retryCount int
	inFlight   bool

	flushCancel sched.CancelFunc
	retryCancel sched.CancelFunc
	closed      bool
}

// New creates a queue, hydrates pending events from the store, and arms the
// recurring flush timer. It does not flush; the first delivery attempt
// happens on the first timer tick, threshold, or explicit Flush.
func New(opts Options) *Queue {
	validation.AssertNotNil(opts.Logger, "logger")
	validation.Assert(opts.Store != nil, "event store cannot be nil")
	validation.Assert(opts.Sender != nil, "sender cannot be nil")
	validation.Assert(opts.Scheduler != nil, "scheduler cannot be nil")
	validation.Assert(opts.Loop != nil, "loop executor cannot be nil")
	validation.Assert(opts.Net != nil, "net executor cannot be nil")

	if opts.Config.MaxRetries < 0 {
		opts.Config.MaxRetries = 0
	}
	if len(opts.Config.RetryDelays) == 0 {
		opts.Config.RetryDelays = DefaultRetryDelays
	}

	q := &Queue{
		logger:    opts.Logger,
		store:     opts.Store,
		sender:    opts.Sender,
		scheduler: opts.Scheduler,
		loop:      opts.Loop,
		net:       opts.Net,
		cfg:       opts.Config,
	}

	pending, err := q.store.LoadPending()
	if err != nil {
		q.logger.Error("failed to load pending events", "error", err)
	}
	q.pending = pending
	if len(pending) > 0 {
		q.logger.Info("recovered pending events", "count", len(pending))
	}

	if q.cfg.FlushInterval > 0 {
		q.flushCancel = q.scheduler.ScheduleRepeating(q.cfg.FlushInterval, func() {
			q.loop.Post(q.Flush)
		})
	}
	return q
}

// Enqueue persists the event and appends it to the pending queue. Reaching
// the batch threshold triggers an immediate flush.
func (q *Queue) Enqueue(e envelope.Envelope) {
	if q.closed {
		return
	}
	if err := q.store.Save([]envelope.Envelope{e}); err != nil {
		q.logger.Error("failed to persist event", "event", e.EventName, "error", err)
	}
	q.pending = append(q.pending, e)
	observability.EventsEnqueued.Inc()

	if q.cfg.BatchSize > 0 && len(q.pending) >= q.cfg.BatchSize {
		q.Flush()
	}
}

// Flush starts delivery of the next batch. It is a no-op when the queue is
// empty or a batch is already in flight.
func (q *Queue) Flush() {
	if q.closed || q.inFlight || len(q.pending) == 0 {
		return
	}

	n := len(q.pending)
	if q.cfg.BatchSize > 0 && n > q.cfg.BatchSize {
		n = q.cfg.BatchSize
	}
	batch := make([]envelope.Envelope, n)
	copy(batch, q.pending[:n])

	body, err := envelope.EncodeBatch(batch)
	if err != nil {
		q.logger.Error("failed to encode batch", "count", n, "error", err)
		return
	}

	q.inFlight = true
	q.net.Post(func() {
		sendErr := q.sender.SendBatch(context.Background(), body)
		q.loop.Post(func() {
			q.onSendResult(batch, sendErr)
		})
	})
}

// onSendResult settles an in-flight batch. Success removes the delivered
// events from memory and disk; failure schedules a retry until the backoff
// schedule is exhausted.
func (q *Queue) onSendResult(batch []envelope.Envelope, sendErr error) {
	q.inFlight = false

	if sendErr == nil {
		ids := make(map[string]struct{}, len(batch))
		for _, e := range batch {
			ids[e.EventID] = struct{}{}
		}
		kept := q.pending[:0]
		for _, e := range q.pending {
			if _, sent := ids[e.EventID]; !sent {
				kept = append(kept, e)
			}
		}
		q.pending = kept
		if err := q.store.RemoveSent(ids); err != nil {
			q.logger.Error("failed to remove sent events", "error", err)
		}
		q.retryCount = 0
		observability.BatchesSent.Inc()
		q.logger.Debug("batch delivered", "count", len(batch))

		// Keep draining if a backlog remains.
		if len(q.pending) > 0 {
			q.Flush()
		}
		return
	}

	observability.BatchesFailed.Inc()
	q.logger.Warn("batch delivery failed",
		"count", len(batch),
		"attempt", q.retryCount+1,
		"error", sendErr)

	if q.retryCount < q.cfg.MaxRetries {
		delay := q.cfg.RetryDelays[min(q.retryCount, len(q.cfg.RetryDelays)-1)]
		q.retryCount++
		observability.FlushRetries.Inc()
		q.retryCancel = q.scheduler.ScheduleOnce(delay, func() {
			q.loop.Post(q.Flush)
		})
		return
	}

	// Out of retries. Events stay persisted; the next flush trigger
	// starts a fresh attempt cycle.
	q.retryCount = 0
	q.logger.Warn("giving up on batch until next flush", "count", len(batch))
}

// Len reports the number of pending events.
func (q *Queue) Len() int {
	return len(q.pending)
}

// OnBackground forces an immediate flush so events are not stranded while
// the app is suspended.
func (q *Queue) OnBackground() {
	q.Flush()
}

// Close cancels timers and attempts one final flush. Pending events that
// cannot be delivered remain on disk for the next start.
func (q *Queue) Close() {
	if q.closed {
		return
	}
	if q.flushCancel != nil {
		q.flushCancel()
	}
	if q.retryCancel != nil {
		q.retryCancel()
	}
	q.Flush()
	q.closed = true
}
