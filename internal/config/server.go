package config

import "time"

// ServerConfig holds the dev backend's HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s" validate:"gt=0"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s" validate:"gt=0"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s" validate:"gt=0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s" validate:"gt=0"`

	// DocumentCacheSize and DocumentCacheTTL tune the hot in-memory cache in
	// front of the document store.
	DocumentCacheSize int           `envconfig:"DOC_CACHE_SIZE" default:"128" validate:"min=1"`
	DocumentCacheTTL  time.Duration `envconfig:"DOC_CACHE_TTL" default:"10s" validate:"gt=0"`
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	return validatePort(c.Port, "server")
}
