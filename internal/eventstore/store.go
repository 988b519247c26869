// Package eventstore provides the durable pending-event log: an append-only,
// bounded record of every envelope that has not yet been acknowledged by the
// backend. The on-disk log is always a superset of the in-memory unflushed
// set until a batch is acknowledged, so a crash between enqueue and flush
// never loses an event. A crash between a successful acknowledgement and the
// disk removal can at most replay a batch (at-least-once delivery).
package eventstore

import (
	"github.com/muninn-io/muninn-go/internal/envelope"
)

// DefaultMaxEvents caps the pending log. Insertion beyond the cap evicts the
// oldest entries first (ring-buffer semantics).
const DefaultMaxEvents = 10000

// Store is the durable log contract. Using an interface allows dependency
// injection and an in-memory double in dispatcher tests.
//
// Access must be externally serialized: implementations read-modify-write
// the entire log, so concurrent Save/LoadPending/RemoveSent calls corrupt
// it. The SDK loop is the single caller in production.
type Store interface {
	// Save appends events to the log, evicting oldest entries if the total
	// exceeds the configured cap.
	Save(events []envelope.Envelope) error

	// LoadPending returns the full current log. Called once, when the event
	// queue is constructed, so a prior process's backlog is treated exactly
	// like newly captured events.
	LoadPending() ([]envelope.Envelope, error)

	// RemoveSent deletes entries whose event id is in ids. Called only after
	// a positive network acknowledgement, never speculatively.
	RemoveSent(ids map[string]struct{}) error
}
