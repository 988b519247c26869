// Package muninn is a client-side analytics and remote configuration SDK:
// durable event capture with batched at-least-once delivery, cached remote
// config with stale-while-revalidate semantics, and deterministic experiment
// bucketing. All state lives behind an explicit Client handle.
package muninn

import (
	"fmt"
	"log/slog"
	"time"
)

// SDKVersion is stamped into every event's device block.
const SDKVersion = "1.0.0"

// Config tunes a Client. Zero values select the documented defaults; only
// BaseURL and AppID are required.
type Config struct {
	// BaseURL is the backend root (batch ingest, config documents,
	// bootstrap).
	BaseURL string

	// AppID and APIKey identify and authenticate the embedding
	// application.
	AppID  string
	APIKey string

	// Platform names the client platform for experiment eligibility
	// ("ios", "android", "web"). Defaults to "go".
	Platform string

	// Device metadata stamped into every event. All optional.
	OSVersion  string
	AppVersion string
	Locale     string
	Country    string

	// BatchSize is the number of events that triggers a flush and the
	// maximum events per upload. Defaults to 20.
	BatchSize int

	// FlushInterval is the recurring flush cadence. Defaults to 30s.
	FlushInterval time.Duration

	// MaxRetries bounds consecutive failed delivery attempts per flush
	// cycle. Defaults to 3, on a 1s/2s/4s backoff schedule.
	MaxRetries int

	// MaxPendingEvents caps the durable pending log; oldest entries are
	// evicted beyond the cap. Defaults to 10000.
	MaxPendingEvents int

	// ConfigTTL is the staleness bound for cached remote config.
	// Defaults to 5m.
	ConfigTTL time.Duration

	// EventLogPath and ConfigStorePath locate the SDK's local files.
	// When empty the corresponding store is kept in memory only, which
	// sacrifices crash durability.
	EventLogPath    string
	ConfigStorePath string

	// HTTPTimeout bounds each network request. Defaults to 10s.
	HTTPTimeout time.Duration

	// Logger receives the SDK's structured logs. Defaults to
	// slog.Default(). The SDK never writes to stdout.
	Logger *slog.Logger
}

// withDefaults returns a copy with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.Platform == "" {
		c.Platform = "go"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 20
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.MaxPendingEvents == 0 {
		c.MaxPendingEvents = 10000
	}
	if c.ConfigTTL == 0 {
		c.ConfigTTL = 5 * time.Minute
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// validate checks the required fields.
func (c Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("muninn: BaseURL is required")
	}
	if c.AppID == "" {
		return fmt.Errorf("muninn: AppID is required")
	}
	return nil
}
