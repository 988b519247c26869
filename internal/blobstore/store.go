// Package blobstore provides the persistent key-value blob store backing
// the remote-config cache and the identity provider: raw JSON payloads keyed
// by name, plus a single "fetched at" timestamp shared by all of them.
package blobstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Store is the persistence contract. Callers must serialize access
// externally (the SDK loop owns all writes); implementations do whole-file
// read-modify-write and are not internally concurrent-safe.
type Store interface {
	// Get returns the stored blob for key, if present.
	Get(key string) ([]byte, bool)

	// Set stores the blob for key, replacing any previous value. The blob
	// must be valid JSON; the file layout embeds every blob verbatim in one
	// JSON document.
	Set(key string, raw []byte) error

	// Delete removes the blob for key. Deleting an absent key is a no-op.
	Delete(key string) error

	// FetchedAt returns the shared last-fetch timestamp, if one was recorded.
	FetchedAt() (time.Time, bool)

	// SetFetchedAt records the shared last-fetch timestamp.
	SetFetchedAt(t time.Time) error
}

// fileFormat is the on-disk layout: one JSON document holding every blob.
type fileFormat struct {
	Blobs       map[string]json.RawMessage `json:"blobs"`
	FetchedAtMs int64                      `json:"fetched_at_ms,omitempty"`
}

// Compile-time interface checks.
var (
	_ Store = (*FileStore)(nil)
	_ Store = (*Memory)(nil)
)

// FileStore persists blobs in a single JSON file, hydrated fully into memory
// on open. Writes go through a temp-file rename so a crash mid-write leaves
// the previous version intact rather than a torn file.
type FileStore struct {
	path      string
	logger    *slog.Logger
	blobs     map[string][]byte
	fetchedAt time.Time
	hasFetch  bool
}

// OpenFile opens (or creates) the blob store at path. A missing file is an
// empty store; an unreadable or corrupt file is logged and treated as empty,
// never surfaced as fatal.
func OpenFile(path string, logger *slog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("blobstore: path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("blobstore: failed to create directory: %w", err)
	}

	s := &FileStore{
		path:   path,
		logger: logger,
		blobs:  make(map[string][]byte),
	}
	s.hydrate()
	return s, nil
}

func (s *FileStore) hydrate() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("failed to read config blob file, starting empty",
				slog.String("path", s.path),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	var doc fileFormat
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Error("config blob file is corrupt, starting empty",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return
	}

	for k, v := range doc.Blobs {
		s.blobs[k] = []byte(v)
	}
	if doc.FetchedAtMs > 0 {
		s.fetchedAt = time.UnixMilli(doc.FetchedAtMs)
		s.hasFetch = true
	}
}

// Get implements Store.
func (s *FileStore) Get(key string) ([]byte, bool) {
	raw, ok := s.blobs[key]
	return raw, ok
}

// Set implements Store. Invalid JSON is rejected before the store is
// touched: accepting it would make every later persist fail, since the file
// layout embeds each blob verbatim.
func (s *FileStore) Set(key string, raw []byte) error {
	if !json.Valid(raw) {
		return fmt.Errorf("blobstore: blob for %q is not valid JSON", key)
	}
	s.blobs[key] = raw
	return s.persist()
}

// Delete implements Store.
func (s *FileStore) Delete(key string) error {
	if _, ok := s.blobs[key]; !ok {
		return nil
	}
	delete(s.blobs, key)
	return s.persist()
}

// FetchedAt implements Store.
func (s *FileStore) FetchedAt() (time.Time, bool) {
	return s.fetchedAt, s.hasFetch
}

// SetFetchedAt implements Store.
func (s *FileStore) SetFetchedAt(t time.Time) error {
	s.fetchedAt = t
	s.hasFetch = true
	return s.persist()
}

func (s *FileStore) persist() error {
	doc := fileFormat{Blobs: make(map[string]json.RawMessage, len(s.blobs))}
	for k, v := range s.blobs {
		doc.Blobs[k] = json.RawMessage(v)
	}
	if s.hasFetch {
		doc.FetchedAtMs = s.fetchedAt.UnixMilli()
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("blobstore: failed to encode: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("blobstore: failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("blobstore: failed to replace blob file: %w", err)
	}
	return nil
}

// Memory is an in-memory Store for tests and ephemeral SDK instances.
type Memory struct {
	blobs     map[string][]byte
	fetchedAt time.Time
	hasFetch  bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Get(key string) ([]byte, bool) {
	raw, ok := m.blobs[key]
	return raw, ok
}

func (m *Memory) Set(key string, raw []byte) error {
	if !json.Valid(raw) {
		return fmt.Errorf("blobstore: blob for %q is not valid JSON", key)
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	m.blobs[key] = cp
	return nil
}

func (m *Memory) Delete(key string) error {
	delete(m.blobs, key)
	return nil
}

func (m *Memory) FetchedAt() (time.Time, bool) {
	return m.fetchedAt, m.hasFetch
}

func (m *Memory) SetFetchedAt(t time.Time) error {
	m.fetchedAt = t
	m.hasFetch = true
	return nil
}
