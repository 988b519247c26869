package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NOTE: All metrics are defined globally here, for both the SDK and the dev
// backend. Embedding the SDK therefore initializes backend metrics with zero
// values; that side effect is harmless.

// namespace is the global prefix for all metrics (muninn_...).
const namespace = "muninn"

// ingestBatchBuckets sizes the batch histogram around the default BatchSize
// of 20; the top buckets catch startup backlogs flushed after a crash.
var ingestBatchBuckets = []float64{1, 5, 10, 20, 50, 100, 500, 1000}

var (
	// -------------------------------------------------------------------------
	// SDK: EVENT PIPELINE
	// -------------------------------------------------------------------------

	// EventsEnqueued counts envelopes accepted into the pending queue.
	EventsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "enqueued_total",
		Help:      "Envelopes accepted into the pending event queue",
	})

	// EventsDroppedConsent counts track calls dropped by the consent gate
	// before any envelope was constructed.
	EventsDroppedConsent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "dropped_consent_total",
		Help:      "Track calls dropped because analytics consent was off",
	})

	// EventsEvicted counts envelopes evicted from the durable log because
	// the pending cap was exceeded (oldest-first ring-buffer eviction).
	EventsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "evicted_total",
		Help:      "Envelopes evicted from the durable log by the size cap",
	})

	// BatchesSent counts successfully acknowledged batch uploads.
	BatchesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "delivery",
		Name:      "batches_sent_total",
		Help:      "Event batches acknowledged by the backend",
	})

	// BatchesFailed counts failed batch upload attempts (any non-2xx or
	// transport error; the dispatcher treats them uniformly).
	BatchesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "delivery",
		Name:      "batches_failed_total",
		Help:      "Event batch upload attempts that failed",
	})

	// FlushRetries counts backoff retries scheduled after failed sends.
	FlushRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "delivery",
		Name:      "flush_retries_total",
		Help:      "Retries scheduled by the flush backoff policy",
	})

	// -------------------------------------------------------------------------
	// SDK: REMOTE CONFIG
	// -------------------------------------------------------------------------

	// ConfigFetches counts per-document fetch outcomes.
	// outcome is one of: ok, fetch_error, parse_error.
	ConfigFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "config",
		Name:      "fetches_total",
		Help:      "Config document fetch outcomes",
	}, []string{"document", "outcome"})

	// -------------------------------------------------------------------------
	// DEV BACKEND (HTTP)
	// -------------------------------------------------------------------------

	// ServerReqDuration measures dev backend HTTP handling latency.
	ServerReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests in the dev backend",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	// ServerReqTotal counts dev backend HTTP requests.
	ServerReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests handled by the dev backend",
	}, []string{"method", "path", "code"})

	// ServerIngestBatchSize observes the envelope count per ingested batch.
	ServerIngestBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "ingest_batch_size",
		Help:      "Envelopes per ingested batch",
		Buckets:   ingestBatchBuckets,
	})
)
