package eventstore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muninn-io/muninn-go/internal/envelope"
)

func newTestStore(t *testing.T, maxEvents int) *FileStore {
	t.Helper()
	s, err := OpenFile(filepath.Join(t.TempDir(), "pending.json"), maxEvents, slog.Default())
	require.NoError(t, err)
	return s
}

func testEvent(id string) envelope.Envelope {
	return envelope.Envelope{
		SchemaVersion: envelope.SchemaVersion,
		EventID:       id,
		EventName:     "test_event",
		TsMs:          1700000000000,
		User:          envelope.User{AnonID: "anon"},
		Context:       envelope.Context{SessionID: "sess"},
		Privacy:       envelope.Privacy{Consent: envelope.Consent{Analytics: true}},
	}
}

func TestFileStore_SaveAndRemoveSent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 10)

	e1 := testEvent("e1")
	e2 := testEvent("e2")
	require.NoError(t, s.Save([]envelope.Envelope{e1, e2}))

	require.NoError(t, s.RemoveSent(map[string]struct{}{"e1": {}}))

	pending, err := s.LoadPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "e2", pending[0].EventID, "e1 must be gone, e2 must remain")
}

func TestFileStore_OverflowEvictsOldestFirst(t *testing.T) {
	t.Parallel()

	const maxEvents = 5
	s := newTestStore(t, maxEvents)

	for i := 0; i < 12; i++ {
		require.NoError(t, s.Save([]envelope.Envelope{testEvent(fmt.Sprintf("e%02d", i))}))
	}

	pending, err := s.LoadPending()
	require.NoError(t, err)
	require.Len(t, pending, maxEvents, "exactly maxEvents entries survive")

	// The survivors are the most recent ones, in insertion order.
	for i, e := range pending {
		assert.Equal(t, fmt.Sprintf("e%02d", 12-maxEvents+i), e.EventID)
	}
}

func TestFileStore_EmptyLog(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 10)

	pending, err := s.LoadPending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, s.Save(nil), "saving nothing is a no-op")
	require.NoError(t, s.RemoveSent(map[string]struct{}{"ghost": {}}))
}

func TestFileStore_CorruptLogDiscarded(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pending.json")
	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0o600))

	s, err := OpenFile(path, 10, slog.Default())
	require.NoError(t, err)

	pending, err := s.LoadPending()
	require.NoError(t, err, "corruption must not be fatal")
	assert.Empty(t, pending)

	// The store must recover: a fresh save works.
	require.NoError(t, s.Save([]envelope.Envelope{testEvent("e1")}))
	pending, err = s.LoadPending()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pending.json")
	s, err := OpenFile(path, 10, slog.Default())
	require.NoError(t, err)
	require.NoError(t, s.Save([]envelope.Envelope{testEvent("e1"), testEvent("e2")}))

	// Simulate a process restart.
	reopened, err := OpenFile(path, 10, slog.Default())
	require.NoError(t, err)

	pending, err := reopened.LoadPending()
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}
