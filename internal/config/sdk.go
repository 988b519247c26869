package config

import (
	"fmt"
	"time"
)

// SDKConfig contains the embedded SDK's settings: backend endpoint, delivery
// policy, config refresh policy, and local storage paths.
type SDKConfig struct {
	// BaseURL is the backend root the SDK talks to (batch ingest, config
	// documents, bootstrap).
	BaseURL string `envconfig:"BASE_URL" default:"http://localhost:8080"`

	// AppID and APIKey identify and authenticate the embedding application.
	AppID  string `envconfig:"APP_ID"`
	APIKey string `envconfig:"API_KEY"`

	// Platform identifies the current client platform for experiment
	// eligibility checks (e.g. "ios", "android", "web").
	Platform string `envconfig:"PLATFORM" default:"go"`

	// Delivery policy. A batch is flushed when BatchSize events are pending
	// or when FlushInterval elapses, whichever comes first. Failed sends are
	// retried up to MaxRetries times on the [1s, 2s, 4s] backoff schedule.
	BatchSize     int           `envconfig:"BATCH_SIZE" default:"20"`
	FlushInterval time.Duration `envconfig:"FLUSH_INTERVAL" default:"30s" validate:"gt=0"`
	MaxRetries    int           `envconfig:"MAX_RETRIES" default:"3" validate:"min=0"`

	// MaxPendingEvents caps the durable pending log; older entries are
	// evicted first beyond the cap.
	MaxPendingEvents int `envconfig:"MAX_PENDING_EVENTS" default:"10000" validate:"min=1"`

	// ConfigTTL is the staleness bound for cached remote config.
	ConfigTTL time.Duration `envconfig:"CONFIG_TTL" default:"5m" validate:"gt=0"`

	// Local storage paths for the pending event log and the config blob.
	EventLogPath   string `envconfig:"EVENT_LOG_PATH" default:"muninn/pending_events.json"`
	ConfigBlobPath string `envconfig:"CONFIG_BLOB_PATH" default:"muninn/config_cache.json"`

	// HTTPTimeout bounds each network request (batch send, document fetch).
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s" validate:"gt=0"`
}

// Validate checks the SDK configuration beyond struct tags.
func (c *SDKConfig) Validate() error {
	if _, err := parseAndValidateURL(c.BaseURL, []string{"http", "https"}); err != nil {
		return fmt.Errorf("invalid sdk base URL: %w", err)
	}
	if c.EventLogPath == "" {
		return fmt.Errorf("sdk event log path cannot be empty")
	}
	if c.ConfigBlobPath == "" {
		return fmt.Errorf("sdk config blob path cannot be empty")
	}
	return nil
}
