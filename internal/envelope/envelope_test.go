package envelope

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muninn-io/muninn-go/jsonval"
)

var testDevice = Device{
	Platform:   "android",
	OSVersion:  "14",
	AppVersion: "3.2.1",
	SDKVersion: "1.0.0",
	Locale:     "de-DE",
	Country:    "DE",
}

func fixedBuilder() *Builder {
	ids := 0
	return NewBuilderWithSources(
		testDevice,
		func() string { ids++; return "id-" + string(rune('a'+ids-1)) },
		func() time.Time { return time.UnixMilli(1700000000000) },
	)
}

func TestBuilder_Build(t *testing.T) {
	t.Parallel()

	b := fixedBuilder()

	env := b.Build(
		"purchase_completed",
		map[string]jsonval.Value{"price": jsonval.Number(9.99)},
		"anon-1", "user-1", "session-1",
		[]Exposure{{Experiment: "exp_paywall_v3", Variant: "variant_b"}},
	)

	assert.Equal(t, SchemaVersion, env.SchemaVersion)
	assert.Equal(t, "purchase_completed", env.EventName)
	assert.Equal(t, int64(1700000000000), env.TsMs)
	assert.Equal(t, "anon-1", env.User.AnonID)
	assert.Equal(t, "user-1", env.User.UserID)
	assert.Equal(t, testDevice, env.Device)
	assert.Equal(t, "session-1", env.Context.SessionID)
	assert.True(t, env.Privacy.Consent.Analytics, "built envelopes always carry consent: the gate runs before Build")
}

func TestBuilder_UniqueEventIDs(t *testing.T) {
	t.Parallel()

	b := NewBuilder(testDevice)

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		env := b.Build("tap", nil, "anon", "", "s", nil)
		_, dup := seen[env.EventID]
		require.False(t, dup, "event id %q repeated", env.EventID)
		seen[env.EventID] = struct{}{}
	}
}

func TestWire_SnakeCaseKeys(t *testing.T) {
	t.Parallel()

	env := fixedBuilder().Build("screen_view", nil, "anon-1", "", "session-1", nil)

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))

	for _, key := range []string{"schema_version", "event_id", "event_name", "ts_ms", "user", "device", "context", "privacy"} {
		assert.Contains(t, raw, key)
	}

	var user map[string]any
	require.NoError(t, json.Unmarshal(raw["user"], &user))
	assert.Contains(t, user, "anon_id")
	assert.NotContains(t, user, "user_id", "empty user_id must be omitted")
}

func TestBatch_RoundTrip(t *testing.T) {
	t.Parallel()

	b := fixedBuilder()
	events := []Envelope{
		b.Build("a", map[string]jsonval.Value{
			"n":      jsonval.Number(1),
			"s":      jsonval.String("x"),
			"flag":   jsonval.Bool(true),
			"nested": jsonval.Object(map[string]jsonval.Value{"k": jsonval.Null()}),
		}, "anon", "user", "sess", []Exposure{{Experiment: "e1", Variant: "v1"}}),
		b.Build("b", nil, "anon", "", "sess", nil),
	}

	data, err := EncodeBatch(events)
	require.NoError(t, err)

	decoded, err := DecodeBatch(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	// Field-for-field equality across the wire.
	assert.Equal(t, events[0].EventID, decoded[0].EventID)
	assert.Equal(t, events[0].TsMs, decoded[0].TsMs)
	assert.Equal(t, events[0].User, decoded[0].User)
	assert.Equal(t, events[0].Device, decoded[0].Device)
	assert.Equal(t, events[0].Context, decoded[0].Context)
	assert.Equal(t, events[0].Privacy, decoded[0].Privacy)
	for k, v := range events[0].Properties {
		got, ok := decoded[0].Properties[k]
		require.True(t, ok, "property %q lost on the wire", k)
		assert.True(t, v.Equal(got), "property %q changed on the wire", k)
	}
	assert.Equal(t, events[1], decoded[1])
}

func TestDecodeBatch_Malformed(t *testing.T) {
	t.Parallel()

	_, err := DecodeBatch([]byte(`{"batch": "nope"}`))
	assert.Error(t, err)
}
