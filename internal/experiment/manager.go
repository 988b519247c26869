// Package experiment resolves deterministic variant assignments and records
// exposure events. Assignment is pure hashing over the cached experiments
// document; the only side effect is the once-per-session exposure event.
package experiment

import (
	"log/slog"

	"github.com/muninn-io/muninn-go/internal/bucket"
	"github.com/muninn-io/muninn-go/internal/configcache"
	"github.com/muninn-io/muninn-go/internal/envelope"
	"github.com/muninn-io/muninn-go/internal/identity"
	"github.com/muninn-io/muninn-go/jsonval"
	"github.com/muninn-io/muninn-go/internal/validation"
)

// ExposureEventName is the reserved event recorded on first assignment of
// an experiment in a session.
const ExposureEventName = "experiment_exposure"

// Emitter records exposure events. Implemented by the tracker; narrowed to
// an interface here because the tracker also consumes this package's
// assignments.
type Emitter interface {
	Track(eventName string, properties map[string]jsonval.Value)
}

// Manager resolves variants against the current config snapshot. Not safe
// for direct concurrent use; callers reach it through the SDK loop, which
// also confines the exposure bookkeeping.
type Manager struct {
	logger   *slog.Logger
	cache    *configcache.Cache
	identity *identity.Provider
	emitter  Emitter
	platform string

	exposed map[string]string
	order   []string
}

// New creates a manager. The emitter is wired separately because the
// tracker and the manager reference each other.
func New(logger *slog.Logger, cache *configcache.Cache, idp *identity.Provider, platform string) *Manager {
	validation.AssertNotNil(logger, "logger")
	validation.AssertNotNil(cache, "config cache")
	validation.AssertNotNil(idp, "identity provider")

	return &Manager{
		logger:   logger,
		cache:    cache,
		identity: idp,
		platform: platform,
		exposed:  make(map[string]string),
	}
}

// SetEmitter wires the exposure event sink.
func (m *Manager) SetEmitter(e Emitter) {
	m.emitter = e
}

// Variant resolves the caller's variant for an experiment. The same user
// sees the same variant on every call and every launch; ok is false when
// the experiment is unknown, not running, not targeting this platform, or
// has no variants. The first successful resolution per session records an
// exposure event.
func (m *Manager) Variant(experimentID string) (string, bool) {
	exp, found := m.cache.Experiment(experimentID)
	if !found {
		return "", false
	}
	if !exp.Eligible(m.platform) {
		return "", false
	}

	id := m.identity.Snapshot().BucketingID()
	variantID, ok := bucket.AssignVariant(exp.ID, id, exp.Salt, exp.Variants)
	if !ok {
		return "", false
	}

	m.recordExposure(exp.ID, variantID)
	return variantID, true
}

// Payload returns one key of the assigned variant's payload. Resolving the
// payload counts as an exposure like Variant does.
func (m *Manager) Payload(experimentID, key string) (jsonval.Value, bool) {
	variantID, ok := m.Variant(experimentID)
	if !ok {
		return jsonval.Null(), false
	}

	exp, _ := m.cache.Experiment(experimentID)
	for _, v := range exp.Variants {
		if v.ID != variantID {
			continue
		}
		val, ok := v.Payload[key]
		return val, ok
	}
	return jsonval.Null(), false
}

// recordExposure notes the assignment and emits the exposure event exactly
// once per experiment per session.
func (m *Manager) recordExposure(experimentID, variantID string) {
	if _, seen := m.exposed[experimentID]; seen {
		return
	}
	m.exposed[experimentID] = variantID
	m.order = append(m.order, experimentID)

	m.logger.Debug("experiment exposure",
		"experiment", experimentID,
		"variant", variantID)

	if m.emitter != nil {
		m.emitter.Track(ExposureEventName, map[string]jsonval.Value{
			"experiment_id": jsonval.String(experimentID),
			"variant":       jsonval.String(variantID),
			"source":        jsonval.String("local"),
		})
	}
}

// Exposures lists the session's assignments in first-exposure order, in the
// wire shape events carry.
func (m *Manager) Exposures() []envelope.Exposure {
	if len(m.order) == 0 {
		return nil
	}
	out := make([]envelope.Exposure, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, envelope.Exposure{Experiment: id, Variant: m.exposed[id]})
	}
	return out
}

// ResetExposures clears the session's exposure record. Called when a new
// session starts, so each session re-emits its exposures.
func (m *Manager) ResetExposures() {
	m.exposed = make(map[string]string)
	m.order = nil
}
