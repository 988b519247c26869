package eventstore

import (
	"log/slog"

	"github.com/muninn-io/muninn-go/internal/envelope"
	"github.com/muninn-io/muninn-go/internal/observability"
)

var _ Store = (*Memory)(nil)

// Memory is an in-memory Store with the same cap/eviction semantics as
// FileStore. Used by dispatcher tests and by hosts that explicitly opt out
// of durable event storage.
type Memory struct {
	maxEvents int
	logger    *slog.Logger
	events    []envelope.Envelope
}

// NewMemory creates an in-memory log. maxEvents <= 0 selects
// DefaultMaxEvents.
func NewMemory(maxEvents int, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &Memory{maxEvents: maxEvents, logger: logger}
}

// Save implements Store.
func (m *Memory) Save(events []envelope.Envelope) error {
	m.events = append(m.events, events...)
	if over := len(m.events) - m.maxEvents; over > 0 {
		m.events = m.events[over:]
		observability.EventsEvicted.Add(float64(over))
		m.logger.Warn("pending event log over capacity, evicted oldest entries",
			slog.Int("evicted", over),
			slog.Int("max_events", m.maxEvents),
		)
	}
	return nil
}

// LoadPending implements Store.
func (m *Memory) LoadPending() ([]envelope.Envelope, error) {
	out := make([]envelope.Envelope, len(m.events))
	copy(out, m.events)
	return out, nil
}

// RemoveSent implements Store.
func (m *Memory) RemoveSent(ids map[string]struct{}) error {
	kept := m.events[:0]
	for _, e := range m.events {
		if _, sent := ids[e.EventID]; !sent {
			kept = append(kept, e)
		}
	}
	m.events = kept
	return nil
}

// Len reports the current log size. Test helper.
func (m *Memory) Len() int { return len(m.events) }
