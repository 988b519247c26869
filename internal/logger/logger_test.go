package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muninn-io/muninn-go/internal/config"
)

func TestNewWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.AppConfig{
		Name:        "muninn",
		Version:     "test",
		Environment: "development",
		LogLevel:    "info",
		LogFormat:   "json",
	}, &buf)

	log.Info("hello", slog.String("k", "v"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "muninn", record["service"])
	assert.Equal(t, "v", record["k"])
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.AppConfig{
		Name: "muninn", LogLevel: "warn", LogFormat: "text",
	}, &buf)

	log.Debug("suppressed")
	log.Info("suppressed too")
	assert.Empty(t, buf.String())

	log.Warn("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNewWithWriter_NilConfigPanics(t *testing.T) {
	assert.Panics(t, func() { NewWithWriter(nil, &bytes.Buffer{}) })
}

func TestFromContext_Fallback(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()), "must never return nil")

	var buf bytes.Buffer
	injected := NewWithWriter(&config.AppConfig{Name: "muninn", LogFormat: "text", LogLevel: "info"}, &buf)
	ctx := WithContext(context.Background(), injected)
	assert.Same(t, injected, FromContext(ctx))
}
