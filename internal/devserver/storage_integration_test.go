//go:build integration

// Integration tests for the dev backend's storage layers, run against real
// PostgreSQL and Redis containers.
package devserver_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muninn-io/muninn-go/internal/configcache"
	"github.com/muninn-io/muninn-go/internal/devserver"
	"github.com/muninn-io/muninn-go/internal/envelope"
	"github.com/muninn-io/muninn-go/internal/testsupport"
)

func TestPostgresArchive_Integration(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := testsupport.StartPostgresContainer(ctx)
	require.NoError(t, err, "failed to start postgres container")
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	archive, err := devserver.NewPostgresArchive(ctx, pgContainer.DB)
	require.NoError(t, err)

	event := func(id string) envelope.Envelope {
		return envelope.Envelope{
			SchemaVersion: envelope.SchemaVersion,
			EventID:       id,
			EventName:     "purchase",
			TsMs:          1700000000000,
			User:          envelope.User{AnonID: "anon-1", UserID: "user-42"},
			Context:       envelope.Context{SessionID: "sess-1"},
		}
	}

	t.Run("archives a batch", func(t *testing.T) {
		accepted, err := archive.ArchiveBatch(ctx, []envelope.Envelope{event("it-e1"), event("it-e2")})
		require.NoError(t, err)
		assert.Equal(t, 2, accepted)

		var count int
		err = pgContainer.DB.QueryRow(ctx,
			"SELECT count(*) FROM events WHERE event_id IN ('it-e1','it-e2')").Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("replayed batch is idempotent", func(t *testing.T) {
		accepted, err := archive.ArchiveBatch(ctx, []envelope.Envelope{event("it-e1"), event("it-e3")})
		require.NoError(t, err)
		assert.Equal(t, 1, accepted, "only the unseen event counts")
	})

	t.Run("stores identity columns", func(t *testing.T) {
		var anonID, userID, sessionID string
		err := pgContainer.DB.QueryRow(ctx,
			"SELECT anon_id, user_id, session_id FROM events WHERE event_id = 'it-e1'").
			Scan(&anonID, &userID, &sessionID)
		require.NoError(t, err)
		assert.Equal(t, "anon-1", anonID)
		assert.Equal(t, "user-42", userID)
		assert.Equal(t, "sess-1", sessionID)
	})

	t.Run("health check passes", func(t *testing.T) {
		checker := devserver.NewPostgresChecker(pgContainer.DB)
		assert.Equal(t, "postgres", checker.Name())
		assert.NoError(t, checker.Check(ctx))
	})
}

func TestRedisDocStore_Integration(t *testing.T) {
	ctx := context.Background()

	redisContainer, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err, "failed to start redis container")
	defer func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	store := devserver.NewRedisDocStore(redisContainer.Client)

	t.Run("missing document", func(t *testing.T) {
		_, err := store.GetDocument(ctx, configcache.DocFlags)
		assert.ErrorIs(t, err, devserver.ErrDocumentNotFound)
	})

	t.Run("put then get round-trips", func(t *testing.T) {
		doc := []byte(`{"dark_mode":true}`)
		require.NoError(t, store.PutDocument(ctx, configcache.DocFlags, doc))

		got, err := store.GetDocument(ctx, configcache.DocFlags)
		require.NoError(t, err)
		assert.JSONEq(t, string(doc), string(got))
	})

	t.Run("documents are namespaced", func(t *testing.T) {
		for i, name := range []string{configcache.DocPaywalls, configcache.DocFlows} {
			doc := []byte(fmt.Sprintf(`{"doc_%d":true}`, i))
			require.NoError(t, store.PutDocument(ctx, name, doc))
		}
		got, err := store.GetDocument(ctx, configcache.DocPaywalls)
		require.NoError(t, err)
		assert.JSONEq(t, `{"doc_0":true}`, string(got))
	})

	t.Run("health check passes", func(t *testing.T) {
		checker := devserver.NewRedisChecker(redisContainer.Client)
		assert.Equal(t, "redis", checker.Name())
		assert.NoError(t, checker.Check(ctx))
	})
}
