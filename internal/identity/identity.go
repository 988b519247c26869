// Package identity supplies the stable anonymous identifier and the
// optional user identifier consumed by every event envelope and by the
// experiment bucketer.
package identity

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/muninn-io/muninn-go/internal/blobstore"
)

// anonIDKey is the blob store key holding the persisted anonymous id.
const anonIDKey = "anon_id"

// Identity is an immutable snapshot of the device identity. UserID is empty
// until Identify is called.
type Identity struct {
	AnonID string
	UserID string
}

// BucketingID returns the identifier used for experiment bucketing: the
// user id when known, else the anonymous id.
func (id Identity) BucketingID() string {
	if id.UserID != "" {
		return id.UserID
	}
	return id.AnonID
}

// Provider owns the device identity. Mutations (Identify, Reset) must run on
// the SDK loop; Snapshot is safe from any goroutine because it reads an
// atomically published copy.
type Provider struct {
	store blobstore.Store
	snap  atomic.Pointer[Identity]
}

// New creates a Provider, generating and persisting the anonymous id on
// first use. The anon id is stable for the app's installed lifetime; it is
// never rotated, not even on Reset.
func New(store blobstore.Store, logger *slog.Logger) *Provider {
	if store == nil {
		panic("identity: blob store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	anonID := ""
	if raw, ok := store.Get(anonIDKey); ok {
		if err := json.Unmarshal(raw, &anonID); err != nil {
			logger.Warn("stored anonymous id is corrupt, regenerating",
				slog.String("error", err.Error()))
		}
	}
	if anonID == "" {
		anonID = uuid.NewString()
		// The blob store holds raw JSON values, so the id is stored as a
		// JSON string, not as bare bytes.
		encoded, _ := json.Marshal(anonID)
		if err := store.Set(anonIDKey, encoded); err != nil {
			// Keep running with the in-memory id; next launch regenerates.
			logger.Warn("failed to persist anonymous id", slog.String("error", err.Error()))
		}
	}

	p := &Provider{store: store}
	p.snap.Store(&Identity{AnonID: anonID})
	return p
}

// Snapshot returns the current identity.
func (p *Provider) Snapshot() Identity {
	return *p.snap.Load()
}

// Identify associates a user id with the device. Must run on the SDK loop.
func (p *Provider) Identify(userID string) {
	current := p.Snapshot()
	p.snap.Store(&Identity{AnonID: current.AnonID, UserID: userID})
}

// Reset clears the user id, keeping the anonymous id. Must run on the SDK
// loop. Callers are responsible for also resetting session exposure state.
func (p *Provider) Reset() {
	current := p.Snapshot()
	p.snap.Store(&Identity{AnonID: current.AnonID})
}
