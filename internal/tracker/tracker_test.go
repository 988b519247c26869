package tracker

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muninn-io/muninn-go/internal/blobstore"
	"github.com/muninn-io/muninn-go/internal/envelope"
	"github.com/muninn-io/muninn-go/internal/identity"
	"github.com/muninn-io/muninn-go/jsonval"
)

type captureQueue struct {
	events []envelope.Envelope
}

func (q *captureQueue) Enqueue(e envelope.Envelope) {
	q.events = append(q.events, e)
}

type staticExposures struct {
	list []envelope.Exposure
}

func (s *staticExposures) Exposures() []envelope.Exposure { return s.list }

func newTestTracker(t *testing.T) (*Tracker, *captureQueue) {
	t.Helper()

	idp := identity.New(blobstore.NewMemory(), slog.Default())
	builder := envelope.NewBuilderWithSources(
		envelope.Device{Platform: "go", SDKVersion: "1.0.0"},
		func() string { return "evt-1" },
		func() time.Time { return time.UnixMilli(1700000000000) },
	)
	q := &captureQueue{}
	tr := New(slog.Default(), builder, idp, q, func() string { return "sess-1" })
	return tr, q
}

func TestTracker_StampsIdentityAndSession(t *testing.T) {
	t.Parallel()

	tr, q := newTestTracker(t)
	tr.Track("purchase", map[string]jsonval.Value{
		"price": jsonval.Number(9.99),
	})

	require.Len(t, q.events, 1)
	e := q.events[0]
	assert.Equal(t, "purchase", e.EventName)
	assert.Equal(t, "evt-1", e.EventID)
	assert.Equal(t, int64(1700000000000), e.TsMs)
	assert.NotEmpty(t, e.User.AnonID)
	assert.Empty(t, e.User.UserID)
	assert.Equal(t, "sess-1", e.Context.SessionID)
	assert.True(t, e.Privacy.Consent.Analytics)

	price, ok := e.Properties["price"]
	require.True(t, ok)
	f, _ := price.AsFloat()
	assert.InDelta(t, 9.99, f, 1e-9)
}

func TestTracker_ConsentGateDropsBeforeCapture(t *testing.T) {
	t.Parallel()

	tr, q := newTestTracker(t)
	tr.SetConsent(false)

	tr.Track("purchase", nil)
	tr.Track("screen_view", nil)
	assert.Empty(t, q.events, "revoked consent drops events before capture")
	assert.False(t, tr.Consent())

	// Re-granting resumes capture; nothing from the gap is replayed.
	tr.SetConsent(true)
	tr.Track("purchase", nil)
	require.Len(t, q.events, 1)
	assert.Equal(t, "purchase", q.events[0].EventName)
}

func TestTracker_StampsExposures(t *testing.T) {
	t.Parallel()

	tr, q := newTestTracker(t)
	tr.SetExposureSource(&staticExposures{list: []envelope.Exposure{
		{Experiment: "exp_paywall_v3", Variant: "variant_b"},
	}})

	tr.Track("purchase", nil)

	require.Len(t, q.events, 1)
	require.Len(t, q.events[0].Context.ExperimentExposures, 1)
	assert.Equal(t, "exp_paywall_v3", q.events[0].Context.ExperimentExposures[0].Experiment)
	assert.Equal(t, "variant_b", q.events[0].Context.ExperimentExposures[0].Variant)
}

func TestTracker_IdentifiedUser(t *testing.T) {
	t.Parallel()

	idp := identity.New(blobstore.NewMemory(), slog.Default())
	idp.Identify("user-42")

	q := &captureQueue{}
	tr := New(slog.Default(),
		envelope.NewBuilder(envelope.Device{Platform: "go", SDKVersion: "1.0.0"}),
		idp, q, func() string { return "sess-1" })

	tr.Track("purchase", nil)

	require.Len(t, q.events, 1)
	assert.Equal(t, "user-42", q.events[0].User.UserID)
	assert.NotEmpty(t, q.events[0].User.AnonID)
}
