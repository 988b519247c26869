// Package envelope defines the immutable event record the SDK captures and
// transmits, and the exact JSON wire shape the backend ingests.
package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/muninn-io/muninn-go/jsonval"
)

// SchemaVersion is stamped into every envelope so the backend can route
// payloads from SDK generations with different field sets.
const SchemaVersion = 2

// Exposure records one experiment assignment observed in the session.
type Exposure struct {
	Experiment string `json:"exp"`
	Variant    string `json:"variant"`
}

// User carries the identity fields of the envelope.
type User struct {
	AnonID string `json:"anon_id"`
	UserID string `json:"user_id,omitempty"`
}

// Device describes the capturing device. Filled once at SDK construction.
type Device struct {
	Platform   string `json:"platform"`
	OSVersion  string `json:"os_version,omitempty"`
	AppVersion string `json:"app_version,omitempty"`
	SDKVersion string `json:"sdk_version"`
	Locale     string `json:"locale,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Context carries the session-scoped fields of the envelope.
type Context struct {
	SessionID           string     `json:"session_id"`
	Screen              string     `json:"screen,omitempty"`
	ExperimentExposures []Exposure `json:"experiment_exposures,omitempty"`
}

// Consent mirrors the user's privacy choices at capture time.
type Consent struct {
	Analytics bool `json:"analytics"`
}

// Privacy wraps consent for the wire shape.
type Privacy struct {
	Consent Consent `json:"consent"`
}

// Envelope is one fully-formed event record. Immutable once built: EventID
// is unique per capture and TsMs is capture time, not send time.
type Envelope struct {
	SchemaVersion int                      `json:"schema_version"`
	EventID       string                   `json:"event_id"`
	EventName     string                   `json:"event_name"`
	TsMs          int64                    `json:"ts_ms"`
	User          User                     `json:"user"`
	Device        Device                   `json:"device"`
	Context       Context                  `json:"context"`
	Properties    map[string]jsonval.Value `json:"properties,omitempty"`
	Privacy       Privacy                  `json:"privacy"`
}

// Batch is the wire body of an event upload: {"batch": [...]}.
type Batch struct {
	Batch []Envelope `json:"batch"`
}

// EncodeBatch serializes envelopes into the upload body.
func EncodeBatch(events []Envelope) ([]byte, error) {
	data, err := json.Marshal(Batch{Batch: events})
	if err != nil {
		return nil, fmt.Errorf("envelope: failed to encode batch: %w", err)
	}
	return data, nil
}

// DecodeBatch parses an upload body back into envelopes. Used by the dev
// backend and by round-trip tests.
func DecodeBatch(data []byte) ([]Envelope, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("envelope: failed to decode batch: %w", err)
	}
	return b.Batch, nil
}

// Builder constructs envelopes. It is pure apart from the injected id and
// clock sources: no I/O, no shared state, fully unit-testable by equality on
// everything except event_id and ts_ms.
type Builder struct {
	device Device
	newID  func() string
	now    func() time.Time
}

// NewBuilder creates a Builder stamping the given device metadata.
func NewBuilder(device Device) *Builder {
	return &Builder{
		device: device,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// NewBuilderWithSources creates a Builder with injected id and clock
// sources, for deterministic tests.
func NewBuilderWithSources(device Device, newID func() string, now func() time.Time) *Builder {
	return &Builder{device: device, newID: newID, now: now}
}

// Build produces one immutable envelope with a fresh event id and the
// current capture timestamp. The consent flag recorded here is always true:
// the tracker checks consent before calling Build, never after.
func (b *Builder) Build(
	eventName string,
	properties map[string]jsonval.Value,
	anonID, userID, sessionID string,
	exposures []Exposure,
) Envelope {
	return Envelope{
		SchemaVersion: SchemaVersion,
		EventID:       b.newID(),
		EventName:     eventName,
		TsMs:          b.now().UnixMilli(),
		User:          User{AnonID: anonID, UserID: userID},
		Device:        b.device,
		Context: Context{
			SessionID:           sessionID,
			ExperimentExposures: exposures,
		},
		Properties: properties,
		Privacy:    Privacy{Consent: Consent{Analytics: true}},
	}
}
