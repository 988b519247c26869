package identity

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muninn-io/muninn-go/internal/blobstore"
)

func TestNew_GeneratesAndPersistsAnonID(t *testing.T) {
	t.Parallel()

	store := blobstore.NewMemory()
	p := New(store, slog.Default())

	id := p.Snapshot()
	require.NotEmpty(t, id.AnonID)
	_, err := uuid.Parse(id.AnonID)
	assert.NoError(t, err, "anon id must be a UUID")
	assert.Empty(t, id.UserID)

	// A second provider over the same store sees the same anon id.
	p2 := New(store, slog.Default())
	assert.Equal(t, id.AnonID, p2.Snapshot().AnonID)
}

func TestNew_AnonIDStableAcrossFileStoreReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "blobs.json")

	store, err := blobstore.OpenFile(path, slog.Default())
	require.NoError(t, err)
	first := New(store, slog.Default()).Snapshot().AnonID
	require.NotEmpty(t, first)

	// The anon id write must not wedge the store for other keys.
	require.NoError(t, store.Set("flags", []byte(`{"dark_mode":true}`)))

	reopened, err := blobstore.OpenFile(path, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, first, New(reopened, slog.Default()).Snapshot().AnonID)

	raw, ok := reopened.Get("flags")
	require.True(t, ok)
	assert.JSONEq(t, `{"dark_mode":true}`, string(raw))
}

func TestNew_CorruptAnonIDRegenerates(t *testing.T) {
	t.Parallel()

	store := blobstore.NewMemory()
	require.NoError(t, store.Set(anonIDKey, []byte(`{"not":"a string"}`)))

	id := New(store, slog.Default()).Snapshot()
	require.NotEmpty(t, id.AnonID)
	_, err := uuid.Parse(id.AnonID)
	assert.NoError(t, err)
}

func TestIdentifyAndReset(t *testing.T) {
	t.Parallel()

	p := New(blobstore.NewMemory(), slog.Default())
	anon := p.Snapshot().AnonID

	p.Identify("user-42")
	id := p.Snapshot()
	assert.Equal(t, "user-42", id.UserID)
	assert.Equal(t, anon, id.AnonID, "identify must not touch the anon id")

	p.Reset()
	id = p.Snapshot()
	assert.Empty(t, id.UserID)
	assert.Equal(t, anon, id.AnonID, "reset must not rotate the anon id")
}

func TestBucketingID(t *testing.T) {
	t.Parallel()

	id := Identity{AnonID: "anon-1"}
	assert.Equal(t, "anon-1", id.BucketingID())

	id.UserID = "user-1"
	assert.Equal(t, "user-1", id.BucketingID())
}
