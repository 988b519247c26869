// Package tracker is the event capture entry point. It applies the consent
// gate, stamps identity and session context onto each event, and hands the
// finished envelope to the delivery queue.
package tracker

import (
	"log/slog"

	"github.com/muninn-io/muninn-go/internal/envelope"
	"github.com/muninn-io/muninn-go/internal/identity"
	"github.com/muninn-io/muninn-go/jsonval"
	"github.com/muninn-io/muninn-go/internal/observability"
	"github.com/muninn-io/muninn-go/internal/validation"
)

// Enqueuer accepts finished envelopes for delivery.
type Enqueuer interface {
	Enqueue(e envelope.Envelope)
}

// ExposureSource reports the experiment assignments observed so far in the
// current session, for stamping onto outgoing events.
type ExposureSource interface {
	Exposures() []envelope.Exposure
}

// Tracker builds and enqueues events. Not safe for direct concurrent use;
// callers reach it through the SDK loop.
type Tracker struct {
	logger    *slog.Logger
	builder   *envelope.Builder
	identity  *identity.Provider
	queue     Enqueuer
	session   func() string
	exposures ExposureSource

	consent bool
}

// New creates a tracker with analytics consent granted. session must return
// the current session id.
func New(logger *slog.Logger, builder *envelope.Builder, idp *identity.Provider, queue Enqueuer, session func() string) *Tracker {
	validation.AssertNotNil(logger, "logger")
	validation.AssertNotNil(builder, "envelope builder")
	validation.AssertNotNil(idp, "identity provider")
	validation.Assert(queue != nil, "enqueuer cannot be nil")
	validation.Assert(session != nil, "session source cannot be nil")

	return &Tracker{
		logger:   logger,
		builder:  builder,
		identity: idp,
		queue:    queue,
		session:  session,
		consent:  true,
	}
}

// SetExposureSource wires the experiment assignment source. Set after
// construction because the experiment manager emits its exposure events
// back through this tracker.
func (t *Tracker) SetExposureSource(src ExposureSource) {
	t.exposures = src
}

// SetConsent updates the analytics consent flag. While consent is revoked
// every tracked event is dropped before capture; nothing is buffered for
// later.
func (t *Tracker) SetConsent(granted bool) {
	t.consent = granted
	t.logger.Info("analytics consent updated", "granted", granted)
}

// Consent reports the current consent flag.
func (t *Tracker) Consent() bool {
	return t.consent
}

// Track captures one event. The consent gate runs before the envelope is
// built, so revoked-consent events never touch memory or disk.
func (t *Tracker) Track(eventName string, properties map[string]jsonval.Value) {
	if !t.consent {
		observability.EventsDroppedConsent.Inc()
		t.logger.Debug("event dropped, analytics consent revoked", "event", eventName)
		return
	}

	id := t.identity.Snapshot()
	var exposures []envelope.Exposure
	if t.exposures != nil {
		exposures = t.exposures.Exposures()
	}

	e := t.builder.Build(eventName, properties, id.AnonID, id.UserID, t.session(), exposures)
	t.queue.Enqueue(e)
}
