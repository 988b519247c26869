package eventstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/muninn-io/muninn-go/internal/envelope"
	"github.com/muninn-io/muninn-go/internal/observability"
)

// Compile-time check that FileStore satisfies the log contract.
var _ Store = (*FileStore)(nil)

// FileStore persists the pending log as a single JSON-array file. The whole
// log is rewritten on every mutation through a temp-file rename, so a crash
// mid-write leaves the previous log intact rather than a torn file.
type FileStore struct {
	path      string
	maxEvents int
	logger    *slog.Logger
}

// OpenFile opens (or lazily creates) the pending log at path. maxEvents <= 0
// selects DefaultMaxEvents.
func OpenFile(path string, maxEvents int, logger *slog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("eventstore: path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("eventstore: failed to create directory: %w", err)
	}

	return &FileStore{
		path:      path,
		maxEvents: maxEvents,
		logger:    logger,
	}, nil
}

// Save implements Store. Eviction runs on every append: if the total logged
// count exceeds the cap, the oldest entries go first, with a warning
// carrying the evicted count.
func (s *FileStore) Save(events []envelope.Envelope) error {
	if len(events) == 0 {
		return nil
	}

	current := s.load()
	current = append(current, events...)

	if over := len(current) - s.maxEvents; over > 0 {
		current = current[over:]
		observability.EventsEvicted.Add(float64(over))
		s.logger.Warn("pending event log over capacity, evicted oldest entries",
			slog.Int("evicted", over),
			slog.Int("max_events", s.maxEvents),
		)
	}

	return s.write(current)
}

// LoadPending implements Store.
func (s *FileStore) LoadPending() ([]envelope.Envelope, error) {
	return s.load(), nil
}

// RemoveSent implements Store.
func (s *FileStore) RemoveSent(ids map[string]struct{}) error {
	if len(ids) == 0 {
		return nil
	}

	current := s.load()
	kept := current[:0]
	for _, e := range current {
		if _, sent := ids[e.EventID]; !sent {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(current) {
		return nil
	}
	return s.write(kept)
}

// load reads the full log. A missing file is an empty log; a corrupt file
// is logged at error level and treated as empty, so a damaged log never
// wedges the pipeline.
func (s *FileStore) load() []envelope.Envelope {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("failed to read pending event log",
				slog.String("path", s.path),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	var events []envelope.Envelope
	if err := json.Unmarshal(data, &events); err != nil {
		s.logger.Error("pending event log is corrupt, discarding",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return events
}

func (s *FileStore) write(events []envelope.Envelope) error {
	if events == nil {
		events = []envelope.Envelope{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("eventstore: failed to encode log: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("eventstore: failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("eventstore: failed to replace log file: %w", err)
	}
	return nil
}
