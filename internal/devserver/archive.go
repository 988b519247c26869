package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/muninn-io/muninn-go/internal/envelope"
)

// EventArchive is the persistence contract for ingested events. The archive
// is idempotent on event id, so a replayed batch (the SDK delivers
// at-least-once) never double-counts.
type EventArchive interface {
	// ArchiveBatch stores the events and returns how many were new.
	ArchiveBatch(ctx context.Context, events []envelope.Envelope) (int, error)
}

// Compile-time interface checks.
var (
	_ EventArchive = (*PostgresArchive)(nil)
	_ EventArchive = (*MemoryArchive)(nil)
)

// eventsSchema creates the archive table. Applied at startup; IF NOT EXISTS
// keeps restarts cheap.
const eventsSchema = `
CREATE TABLE IF NOT EXISTS events (
	event_id    TEXT PRIMARY KEY,
	event_name  TEXT NOT NULL,
	ts_ms       BIGINT NOT NULL,
	anon_id     TEXT NOT NULL,
	user_id     TEXT,
	session_id  TEXT,
	payload     JSONB NOT NULL,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresArchive stores events in PostgreSQL.
type PostgresArchive struct {
	db *pgxpool.Pool
}

// NewPostgresArchive creates an archive over an established pool and
// ensures the events table exists.
func NewPostgresArchive(ctx context.Context, db *pgxpool.Pool) (*PostgresArchive, error) {
	if db == nil {
		panic("devserver: database pool cannot be nil")
	}
	if _, err := db.Exec(ctx, eventsSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure events table: %w", err)
	}
	return &PostgresArchive{db: db}, nil
}

// ArchiveBatch implements EventArchive. ON CONFLICT DO NOTHING makes
// replayed events no-ops; the returned count reflects only new rows.
func (a *PostgresArchive) ArchiveBatch(ctx context.Context, events []envelope.Envelope) (int, error) {
	query := `
		INSERT INTO events (event_id, event_name, ts_ms, anon_id, user_id, session_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING
	`

	accepted := 0
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return accepted, fmt.Errorf("failed to encode event %q: %w", e.EventID, err)
		}

		tag, err := a.db.Exec(ctx, query,
			e.EventID,
			e.EventName,
			e.TsMs,
			e.User.AnonID,
			nullable(e.User.UserID),
			nullable(e.Context.SessionID),
			payload,
		)
		if err != nil {
			return accepted, fmt.Errorf("failed to insert event %q: %w", e.EventID, err)
		}
		accepted += int(tag.RowsAffected())
	}
	return accepted, nil
}

// nullable maps empty strings to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// PostgresChecker reports database health for the readiness probe.
type PostgresChecker struct {
	db *pgxpool.Pool
}

// NewPostgresChecker creates a health checker for the given pool.
func NewPostgresChecker(db *pgxpool.Pool) *PostgresChecker {
	return &PostgresChecker{db: db}
}

// Name identifies the dependency.
func (c *PostgresChecker) Name() string { return "postgres" }

// Check verifies the connection with a ping.
func (c *PostgresChecker) Check(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database pool is nil")
	}
	return c.db.Ping(ctx)
}

// MemoryArchive holds events in memory with the same idempotency contract
// as the Postgres archive.
type MemoryArchive struct {
	mu     sync.Mutex
	events map[string]envelope.Envelope
	order  []string
}

// NewMemoryArchive creates an empty archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{events: make(map[string]envelope.Envelope)}
}

// ArchiveBatch implements EventArchive.
func (a *MemoryArchive) ArchiveBatch(_ context.Context, events []envelope.Envelope) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	accepted := 0
	for _, e := range events {
		if _, seen := a.events[e.EventID]; seen {
			continue
		}
		a.events[e.EventID] = e
		a.order = append(a.order, e.EventID)
		accepted++
	}
	return accepted, nil
}

// Events returns the archived events in arrival order.
func (a *MemoryArchive) Events() []envelope.Envelope {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]envelope.Envelope, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.events[id])
	}
	return out
}
