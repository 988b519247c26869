// Package transport implements the SDK's HTTP wire protocol: gzip-encoded
// event uploads, per-document config fetches, and the bootstrap handshake.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/muninn-io/muninn-go/jsonval"
	"github.com/muninn-io/muninn-go/internal/validation"
)

// ErrNotFound marks a config document the backend does not serve.
var ErrNotFound = errors.New("transport: document not found")

const (
	headerAppID  = "X-Muninn-App-Id"
	headerAPIKey = "X-Muninn-Api-Key"
)

// Bootstrap is the backend's session handshake response.
type Bootstrap struct {
	OrgID      string                   `json:"org_id"`
	AppID      string                   `json:"app_id"`
	ConfigPath string                   `json:"config_path"`
	Settings   map[string]jsonval.Value `json:"settings,omitempty"`
}

// HTTP talks to the ingestion and config endpoints of one backend. Safe for
// concurrent use.
type HTTP struct {
	logger  *slog.Logger
	client  *http.Client
	baseURL string
	appID   string
	apiKey  string
}

// New creates a transport against baseURL. A zero timeout selects 10s.
func New(logger *slog.Logger, baseURL, appID, apiKey string, timeout time.Duration) *HTTP {
	validation.AssertNotNil(logger, "logger")
	validation.Assert(baseURL != "", "base URL cannot be empty")

	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{
		logger:  logger,
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		appID:   appID,
		apiKey:  apiKey,
	}
}

// SendBatch uploads one encoded event batch. The body is gzip-compressed on
// the wire; any non-2xx status is a delivery failure and the caller retains
// the batch.
func (h *HTTP) SendBatch(ctx context.Context, body []byte) error {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return fmt.Errorf("transport: failed to compress batch: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("transport: failed to compress batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/v1/events/batch", &buf)
	if err != nil {
		return fmt.Errorf("transport: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	h.auth(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: batch upload failed: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("transport: batch upload rejected with status %d", resp.StatusCode)
	}
	return nil
}

// FetchDocument downloads one raw config document. Returns ErrNotFound for
// a 404 so callers can distinguish an unknown document from an outage.
func (h *HTTP) FetchDocument(ctx context.Context, name string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/v1/config/"+name, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to build request: %w", err)
	}
	h.auth(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: config fetch failed: %w", err)
	}
	defer drainAndClose(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("transport: config fetch for %q returned status %d", name, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to read config body: %w", err)
	}
	return raw, nil
}

// FetchBootstrap performs the session handshake.
func (h *HTTP) FetchBootstrap(ctx context.Context) (Bootstrap, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/v1/bootstrap", nil)
	if err != nil {
		return Bootstrap{}, fmt.Errorf("transport: failed to build request: %w", err)
	}
	h.auth(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return Bootstrap{}, fmt.Errorf("transport: bootstrap failed: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Bootstrap{}, fmt.Errorf("transport: bootstrap returned status %d", resp.StatusCode)
	}

	var b Bootstrap
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		return Bootstrap{}, fmt.Errorf("transport: failed to decode bootstrap: %w", err)
	}
	return b, nil
}

func (h *HTTP) auth(req *http.Request) {
	if h.appID != "" {
		req.Header.Set(headerAppID, h.appID)
	}
	if h.apiKey != "" {
		req.Header.Set(headerAPIKey, h.apiKey)
	}
}

// drainAndClose consumes the remaining body so the connection can be
// reused.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
