package configcache

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/muninn-io/muninn-go/internal/bucket"
	"github.com/muninn-io/muninn-go/jsonval"
)

// Config document names. The set is fixed: the backend serves exactly these,
// and the cache fetches and persists each one independently.
const (
	DocFlags       = "flags"
	DocExperiments = "experiments"
	DocPaywalls    = "paywalls"
	DocFlows       = "flows"
	DocOnboarding  = "onboarding"
	DocMessages    = "messages"
	DocSurveys     = "surveys"
)

// Documents lists every config document, in fetch order.
var Documents = []string{
	DocFlags,
	DocExperiments,
	DocPaywalls,
	DocFlows,
	DocOnboarding,
	DocMessages,
	DocSurveys,
}

// ExperimentStatus is the lifecycle state of an experiment.
type ExperimentStatus string

const (
	StatusRunning   ExperimentStatus = "running"
	StatusPaused    ExperimentStatus = "paused"
	StatusCompleted ExperimentStatus = "completed"
)

// ExperimentConfig is one entry of the experiments document.
type ExperimentConfig struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Status    ExperimentStatus `json:"status"`
	Salt      string           `json:"salt"`
	Platforms []string         `json:"platforms,omitempty"`
	Variants  []bucket.Variant `json:"variants"`
	Segments  []string         `json:"segments,omitempty"`
}

// Eligible reports whether the experiment may assign variants on the given
// platform: only running experiments targeting the platform qualify. An
// empty platform list targets every platform.
func (c ExperimentConfig) Eligible(platform string) bool {
	if c.Status != StatusRunning {
		return false
	}
	if len(c.Platforms) == 0 {
		return true
	}
	return slices.Contains(c.Platforms, platform)
}

// Message is one entry of the messages document.
type Message struct {
	ID      string        `json:"id"`
	Active  bool          `json:"active"`
	Payload jsonval.Value `json:"payload,omitempty"`
}

// Survey is one entry of the surveys document.
type Survey struct {
	ID      string        `json:"id"`
	Payload jsonval.Value `json:"payload,omitempty"`
}

// experimentsDoc is the wire wrapper of the experiments document.
type experimentsDoc struct {
	Experiments []ExperimentConfig `json:"experiments"`
}

// messagesDoc is the wire wrapper of the messages document.
type messagesDoc struct {
	Messages []Message `json:"messages"`
}

// surveysDoc is the wire wrapper of the surveys document.
type surveysDoc struct {
	Surveys []Survey `json:"surveys"`
}

// parseDocument parses one raw document into the snapshot slot for name.
// Parsing is strict enough to reject structurally wrong payloads: a document
// that fails here is skipped, leaving the previous version in place.
func (s *snapshot) parseDocument(name string, raw []byte) error {
	switch name {
	case DocFlags:
		var flags map[string]jsonval.Value
		if err := json.Unmarshal(raw, &flags); err != nil {
			return fmt.Errorf("configcache: bad flags document: %w", err)
		}
		s.flags = flags
	case DocExperiments:
		var doc experimentsDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("configcache: bad experiments document: %w", err)
		}
		exps := make(map[string]ExperimentConfig, len(doc.Experiments))
		for _, e := range doc.Experiments {
			exps[e.ID] = e
		}
		s.experiments = exps
	case DocPaywalls:
		m, err := parseObjectDoc(raw)
		if err != nil {
			return fmt.Errorf("configcache: bad paywalls document: %w", err)
		}
		s.paywalls = m
	case DocFlows:
		m, err := parseObjectDoc(raw)
		if err != nil {
			return fmt.Errorf("configcache: bad flows document: %w", err)
		}
		s.flows = m
	case DocOnboarding:
		m, err := parseObjectDoc(raw)
		if err != nil {
			return fmt.Errorf("configcache: bad onboarding document: %w", err)
		}
		s.onboarding = m
	case DocMessages:
		var doc messagesDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("configcache: bad messages document: %w", err)
		}
		s.messages = doc.Messages
	case DocSurveys:
		var doc surveysDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("configcache: bad surveys document: %w", err)
		}
		s.surveys = doc.Surveys
	default:
		return fmt.Errorf("configcache: unknown document %q", name)
	}

	s.raw[name] = json.RawMessage(raw)
	return nil
}

// parseObjectDoc parses an id-to-payload object document.
func parseObjectDoc(raw []byte) (map[string]jsonval.Value, error) {
	var m map[string]jsonval.Value
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
