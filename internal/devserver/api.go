// Package devserver implements the local development backend the SDK talks
// to: event batch ingestion, the per-document config API, and the bootstrap
// handshake. It mirrors the production wire contract closely enough for
// end-to-end SDK testing.
package devserver

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/maypok86/otter"
)

// API holds the dev backend's dependencies and router.
type API struct {
	// Router is the chi multiplexer serving all endpoints.
	Router *chi.Mux

	logger  *slog.Logger
	docs    DocStore
	archive EventArchive

	// respCache short-circuits repeated document reads. Config documents
	// change rarely; a short TTL keeps PUTs visible quickly without a
	// cross-instance invalidation channel.
	respCache otter.Cache[string, []byte]

	// apiKey, when non-empty, must match the X-Muninn-Api-Key header on
	// every /v1 request. Empty disables authentication (local runs).
	apiKey string
}

// NewAPI creates the dev backend API.
func NewAPI(logger *slog.Logger, docs DocStore, archive EventArchive, apiKey string, cacheSize int, cacheTTL time.Duration) (*API, error) {
	if logger == nil {
		panic("devserver: logger cannot be nil")
	}
	if docs == nil {
		panic("devserver: doc store cannot be nil")
	}
	if archive == nil {
		panic("devserver: event archive cannot be nil")
	}

	if cacheSize <= 0 {
		cacheSize = 128
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Second
	}
	respCache, err := otter.MustBuilder[string, []byte](cacheSize).
		WithTTL(cacheTTL).
		Build()
	if err != nil {
		return nil, err
	}

	a := &API{
		Router:    chi.NewRouter(),
		logger:    logger,
		docs:      docs,
		archive:   archive,
		respCache: respCache,
		apiKey:    apiKey,
	}

	a.configureRoutes()
	return a, nil
}

// configureRoutes registers the middleware stack and endpoints.
func (a *API) configureRoutes() {
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(RequestLogger)
	a.Router.Use(RequestMetrics)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	a.Router.Get("/health", a.handleHealth)

	a.Router.Route("/v1", func(r chi.Router) {
		r.Use(a.authenticate)

		r.Post("/events/batch", a.handleIngestBatch)
		r.Get("/bootstrap", a.handleBootstrap)
		r.Route("/config/{document}", func(r chi.Router) {
			r.Get("/", a.handleGetDocument)
			r.Put("/", a.handlePutDocument)
		})
	})
}

// Close releases the response cache's background resources.
func (a *API) Close() {
	a.respCache.Close()
}
