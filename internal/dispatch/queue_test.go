package dispatch

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muninn-io/muninn-go/internal/envelope"
	"github.com/muninn-io/muninn-go/internal/eventstore"
	"github.com/muninn-io/muninn-go/internal/runloop"
	"github.com/muninn-io/muninn-go/internal/testsupport"
)

func testEnvelope(id, name string) envelope.Envelope {
	return envelope.Envelope{
		SchemaVersion: envelope.SchemaVersion,
		EventID:       id,
		EventName:     name,
		TsMs:          1700000000000,
	}
}

func newTestQueue(t *testing.T, sender Sender, store eventstore.Store, cfg Config) (*Queue, *testsupport.ManualClock) {
	t.Helper()
	clock := testsupport.NewManualClock(time.UnixMilli(1700000000000))
	q := New(Options{
		Logger:    slog.Default(),
		Store:     store,
		Sender:    sender,
		Scheduler: clock,
		Loop:      runloop.Inline{},
		Net:       runloop.Inline{},
		Config:    cfg,
	})
	return q, clock
}

func TestQueue_SuccessfulFlushPurgesStore(t *testing.T) {
	t.Parallel()

	sender := testsupport.NewScriptedSender(nil)
	store := eventstore.NewMemory(100, nil)
	q, _ := newTestQueue(t, sender, store, Config{BatchSize: 10, MaxRetries: 3})

	q.Enqueue(testEnvelope("e1", "purchase"))
	q.Enqueue(testEnvelope("e2", "screen_view"))
	require.Equal(t, 2, store.Len(), "events persist before delivery")

	q.Flush()

	assert.Equal(t, 1, sender.Attempts())
	assert.Zero(t, q.Len())
	assert.Zero(t, store.Len(), "delivered events leave the store")

	batch, err := envelope.DecodeBatch(sender.Bodies[0])
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "purchase", batch[0].EventName)
}

func TestQueue_ThresholdTriggersFlush(t *testing.T) {
	t.Parallel()

	sender := testsupport.NewScriptedSender(nil)
	q, _ := newTestQueue(t, sender, eventstore.NewMemory(100, nil), Config{BatchSize: 3, MaxRetries: 3})

	q.Enqueue(testEnvelope("e1", "a"))
	q.Enqueue(testEnvelope("e2", "b"))
	assert.Zero(t, sender.Attempts(), "below threshold nothing is sent")

	q.Enqueue(testEnvelope("e3", "c"))
	assert.Equal(t, 1, sender.Attempts())
	assert.Zero(t, q.Len())
}

func TestQueue_RetryBackoffSchedule(t *testing.T) {
	t.Parallel()

	sender := testsupport.FailTimes(3)
	store := eventstore.NewMemory(100, nil)
	q, clock := newTestQueue(t, sender, store, Config{BatchSize: 10, MaxRetries: 3})

	q.Enqueue(testEnvelope("e1", "purchase"))
	q.Flush()

	// First attempt failed; the remaining three run off scheduled retries.
	clock.Advance(10 * time.Second)

	assert.Equal(t, 4, sender.Attempts(), "initial attempt plus three retries")
	assert.Equal(t,
		[]time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		clock.OnceDelays)
	assert.Zero(t, q.Len(), "final retry succeeded")
	assert.Zero(t, store.Len())
}

func TestQueue_GiveUpKeepsEventsOnDisk(t *testing.T) {
	t.Parallel()

	sender := testsupport.FailTimes(100)
	store := eventstore.NewMemory(100, nil)
	q, clock := newTestQueue(t, sender, store, Config{BatchSize: 10, MaxRetries: 3})

	q.Enqueue(testEnvelope("e1", "purchase"))
	q.Flush()
	clock.Advance(time.Minute)

	assert.Equal(t, 4, sender.Attempts(), "backoff is bounded")
	assert.Equal(t, 1, q.Len(), "undelivered events stay pending")
	assert.Equal(t, 1, store.Len(), "and stay persisted")

	// The next explicit flush starts a fresh cycle from attempt one.
	q.Flush()
	clock.Advance(time.Minute)
	assert.Equal(t, 8, sender.Attempts())
}

func TestQueue_RecoversBacklogOnStartup(t *testing.T) {
	t.Parallel()

	store := eventstore.NewMemory(100, nil)
	require.NoError(t, store.Save([]envelope.Envelope{testEnvelope("old1", "purchase")}))
	require.NoError(t, store.Save([]envelope.Envelope{testEnvelope("old2", "screen_view")}))

	sender := testsupport.NewScriptedSender(nil)
	q, _ := newTestQueue(t, sender, store, Config{BatchSize: 10, MaxRetries: 3})

	assert.Equal(t, 2, q.Len(), "persisted backlog loads at startup")

	q.Flush()
	assert.Equal(t, 1, sender.Attempts())
	assert.Zero(t, store.Len())
}

func TestQueue_BatchSizeLimitsUploadAndDrains(t *testing.T) {
	t.Parallel()

	sender := testsupport.NewScriptedSender(nil)
	q, _ := newTestQueue(t, sender, eventstore.NewMemory(100, nil), Config{BatchSize: 2, MaxRetries: 3})

	// Load the queue without tripping the threshold flush mid-setup by
	// sizing enqueues to land exactly on boundaries.
	q.Enqueue(testEnvelope("e1", "a"))
	q.Enqueue(testEnvelope("e2", "b")) // threshold: sends e1,e2
	q.Enqueue(testEnvelope("e3", "c"))

	q.Flush()

	// The drain loop keeps flushing until the backlog is empty.
	require.Equal(t, 2, sender.Attempts())
	first, err := envelope.DecodeBatch(sender.Bodies[0])
	require.NoError(t, err)
	assert.Len(t, first, 2)
	second, err := envelope.DecodeBatch(sender.Bodies[1])
	require.NoError(t, err)
	assert.Len(t, second, 1)
}

func TestQueue_TimerFlushes(t *testing.T) {
	t.Parallel()

	sender := testsupport.NewScriptedSender(nil)
	q, clock := newTestQueue(t, sender, eventstore.NewMemory(100, nil),
		Config{BatchSize: 100, MaxRetries: 3, FlushInterval: 30 * time.Second})

	q.Enqueue(testEnvelope("e1", "a"))
	assert.Zero(t, sender.Attempts())

	clock.Advance(30 * time.Second)
	assert.Equal(t, 1, sender.Attempts())
}

func TestQueue_CloseFlushesAndStopsTimers(t *testing.T) {
	t.Parallel()

	sender := testsupport.NewScriptedSender(nil)
	q, clock := newTestQueue(t, sender, eventstore.NewMemory(100, nil),
		Config{BatchSize: 100, MaxRetries: 3, FlushInterval: 30 * time.Second})

	q.Enqueue(testEnvelope("e1", "a"))
	q.Close()
	assert.Equal(t, 1, sender.Attempts(), "close drains the queue")

	q.Enqueue(testEnvelope("e2", "b"))
	clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, sender.Attempts(), "closed queue accepts nothing")
}
