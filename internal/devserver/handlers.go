package devserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/klauspost/compress/gzip"

	"github.com/muninn-io/muninn-go/internal/configcache"
	"github.com/muninn-io/muninn-go/internal/envelope"
	"github.com/muninn-io/muninn-go/internal/observability"
)

// maxBatchBytes bounds a decompressed upload body. Generous for a client
// SDK batch, small enough to shrug off a zip bomb.
const maxBatchBytes = 8 << 20

// ErrorResponse is the standard structured API error.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// IngestResponse reports the outcome of a batch upload.
type IngestResponse struct {
	// Accepted counts events newly archived by this upload.
	Accepted int `json:"accepted"`

	// Duplicates counts replayed events already archived earlier.
	Duplicates int `json:"duplicates"`
}

// BootstrapResponse is the session handshake payload.
type BootstrapResponse struct {
	OrgID      string         `json:"org_id"`
	AppID      string         `json:"app_id"`
	ConfigPath string         `json:"config_path"`
	Settings   map[string]any `json:"settings,omitempty"`
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Code: "ERR_INVALID_INPUT", Message: msg})
}

// authenticate enforces the API key on /v1 routes when one is configured.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.apiKey != "" && r.Header.Get("X-Muninn-Api-Key") != a.apiKey {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, ErrorResponse{Code: "ERR_UNAUTHORIZED", Message: "Invalid or missing API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// handleIngestBatch accepts one event batch, transparently decompressing
// gzip bodies. Events failing basic shape checks reject the whole batch
// with 400 so SDK bugs surface during development instead of dropping data
// silently.
func (a *API) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	body := io.LimitReader(r.Body, maxBatchBytes)

	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(body)
		if err != nil {
			badRequest(w, r, "Body is not valid gzip")
			return
		}
		defer zr.Close()
		body = io.LimitReader(zr, maxBatchBytes)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		badRequest(w, r, "Failed to read request body")
		return
	}

	events, err := envelope.DecodeBatch(raw)
	if err != nil {
		badRequest(w, r, "Body is not a valid event batch")
		return
	}
	if len(events) == 0 {
		badRequest(w, r, "Batch must contain at least one event")
		return
	}

	for _, e := range events {
		if e.EventID == "" || e.EventName == "" {
			badRequest(w, r, "Every event requires event_id and event_name")
			return
		}
		if e.SchemaVersion != envelope.SchemaVersion {
			badRequest(w, r, "Unsupported schema_version")
			return
		}
	}

	accepted, err := a.archive.ArchiveBatch(r.Context(), events)
	if err != nil {
		a.logger.Error("failed to archive batch", "count", len(events), "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Code: "ERR_INTERNAL", Message: "Failed to archive events"})
		return
	}

	observability.ServerIngestBatchSize.Observe(float64(len(events)))

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, IngestResponse{
		Accepted:   accepted,
		Duplicates: len(events) - accepted,
	})
}

// handleGetDocument serves one raw config document, via the response cache.
func (a *API) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "document")
	if !slices.Contains(configcache.Documents, name) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{Code: "ERR_NOT_FOUND", Message: "Unknown config document"})
		return
	}

	if raw, ok := a.respCache.Get(name); ok {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
		return
	}

	raw, err := a.docs.GetDocument(r.Context(), name)
	if errors.Is(err, ErrDocumentNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{Code: "ERR_NOT_FOUND", Message: "Document has no content"})
		return
	}
	if err != nil {
		a.logger.Error("failed to load document", "document", name, "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Code: "ERR_INTERNAL", Message: "Failed to load document"})
		return
	}

	a.respCache.Set(name, raw)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// handlePutDocument replaces one config document and invalidates the
// response cache entry so the new version is served immediately.
func (a *API) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "document")
	if !slices.Contains(configcache.Documents, name) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{Code: "ERR_NOT_FOUND", Message: "Unknown config document"})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBytes))
	if err != nil {
		badRequest(w, r, "Failed to read request body")
		return
	}
	if !isJSONObject(raw) {
		badRequest(w, r, "Document body must be a JSON object")
		return
	}

	if err := a.docs.PutDocument(r.Context(), name, raw); err != nil {
		a.logger.Error("failed to store document", "document", name, "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Code: "ERR_INTERNAL", Message: "Failed to store document"})
		return
	}
	a.respCache.Delete(name)

	a.logger.Info("config document updated", "document", name, "bytes", len(raw))
	render.Status(r, http.StatusNoContent)
	render.NoContent(w, r)
}

// isJSONObject reports whether raw parses as a JSON object. Every config
// document is object-shaped at the top level.
func isJSONObject(raw []byte) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal(raw, &obj) == nil
}

// handleBootstrap answers the SDK's session handshake. The dev backend is
// single-tenant, so the identifiers are fixed.
func (a *API) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, BootstrapResponse{
		OrgID:      "org_dev",
		AppID:      "app_dev",
		ConfigPath: "/v1/config",
		Settings: map[string]any{
			"flush_interval_s": 30,
			"batch_size":       20,
		},
	})
}
