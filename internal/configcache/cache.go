// Package configcache holds the latest fetched remote configuration
// (feature flags, experiments, paywalls, flows, onboarding, messages,
// surveys), backed by the persistent blob store, with a stale-while-
// revalidate refresh policy.
//
// Freshness is background-driven, never read-driven: reads are synchronous
// snapshot lookups that return whatever is cached (possibly stale, possibly
// empty) and never trigger a fetch. Writers build a whole new snapshot and
// publish it atomically, so readers on any goroutine always see a complete,
// consistent view.
package configcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/muninn-io/muninn-go/internal/blobstore"
	"github.com/muninn-io/muninn-go/jsonval"
	"github.com/muninn-io/muninn-go/internal/observability"
	"github.com/muninn-io/muninn-go/internal/runloop"
	"github.com/muninn-io/muninn-go/internal/sched"
)

// Fetcher retrieves one config document from the backend. Implementations
// own their timeouts; any error is treated uniformly as "this document is
// unavailable right now".
type Fetcher interface {
	FetchDocument(ctx context.Context, name string) ([]byte, error)
}

// snapshot is the immutable published state. Replaced wholesale on fetch
// completion, never mutated in place.
type snapshot struct {
	raw         map[string]json.RawMessage
	flags       map[string]jsonval.Value
	experiments map[string]ExperimentConfig
	paywalls    map[string]jsonval.Value
	flows       map[string]jsonval.Value
	onboarding  map[string]jsonval.Value
	messages    []Message
	surveys     []Survey
	fetchedAt   time.Time
	hasFetch    bool
}

func emptySnapshot() *snapshot {
	return &snapshot{raw: make(map[string]json.RawMessage)}
}

// clone copies the snapshot so apply can layer changes before publishing.
func (s *snapshot) clone() *snapshot {
	cp := *s
	cp.raw = make(map[string]json.RawMessage, len(s.raw))
	for k, v := range s.raw {
		cp.raw[k] = v
	}
	return &cp
}

// Options configures a Cache. Logger, Store, Fetcher, Scheduler, Clock, and
// Loop are mandatory; Net defaults to spawning a goroutine per refresh.
type Options struct {
	Logger    *slog.Logger
	Store     blobstore.Store
	Fetcher   Fetcher
	Scheduler sched.Scheduler
	Clock     sched.Clock
	Loop      runloop.Executor
	Net       runloop.Executor
	TTL       time.Duration
}

// Cache is the remote-config cache. Mutating entry points (Refresh,
// observer registration) must run on the SDK loop; all reads are safe from
// any goroutine.
type Cache struct {
	logger    *slog.Logger
	store     blobstore.Store
	fetcher   Fetcher
	scheduler sched.Scheduler
	clock     sched.Clock
	loop      runloop.Executor
	net       runloop.Executor
	ttl       time.Duration

	snap atomic.Pointer[snapshot]

	obsSeq atomic.Int64

	// Loop-confined state.
	fetching  bool
	observers map[int64]func()
	ttlCancel sched.CancelFunc
}

// New creates a Cache and synchronously hydrates every document from the
// blob store, so reads work immediately after construction (possibly with
// stale data) and never wait for the network.
func New(opts Options) *Cache {
	if opts.Store == nil {
		panic("configcache: blob store cannot be nil")
	}
	if opts.Fetcher == nil {
		panic("configcache: fetcher cannot be nil")
	}
	if opts.Scheduler == nil {
		panic("configcache: scheduler cannot be nil")
	}
	if opts.Clock == nil {
		panic("configcache: clock cannot be nil")
	}
	if opts.Loop == nil {
		panic("configcache: loop executor cannot be nil")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Net == nil {
		opts.Net = runloop.Spawn{}
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}

	c := &Cache{
		logger:    opts.Logger,
		store:     opts.Store,
		fetcher:   opts.Fetcher,
		scheduler: opts.Scheduler,
		clock:     opts.Clock,
		loop:      opts.Loop,
		net:       opts.Net,
		ttl:       opts.TTL,
		observers: make(map[int64]func()),
	}
	c.snap.Store(c.hydrate())

	// Hydrated config that is still fresh gets a recheck for the remaining
	// TTL window; without it nothing would ever schedule a refresh. Stale or
	// never-fetched state is refreshed by the owner's startup task instead.
	if s := c.snap.Load(); s.hasFetch {
		if remaining := c.ttl - c.clock.Now().Sub(s.fetchedAt); remaining > 0 {
			c.armRecheckAfter(remaining)
		}
	}
	return c
}

// hydrate loads every persisted document. Documents that fail to parse are
// skipped; persistence corruption must never block startup.
func (c *Cache) hydrate() *snapshot {
	s := emptySnapshot()
	for _, name := range Documents {
		raw, ok := c.store.Get(name)
		if !ok {
			continue
		}
		if err := s.parseDocument(name, raw); err != nil {
			c.logger.Error("skipping persisted config document",
				slog.String("document", name),
				slog.String("error", err.Error()),
			)
		}
	}
	if t, ok := c.store.FetchedAt(); ok {
		s.fetchedAt = t
		s.hasFetch = true
	}
	return s
}

// fetchResult is the outcome of one document fetch.
type fetchResult struct {
	name string
	data []byte
	err  error
}

// Refresh fetches all documents and merges the successful ones. Must run on
// the SDK loop; returns immediately, completion is signalled through the
// ConfigFetched observers. A refresh already in flight makes this a no-op.
func (c *Cache) Refresh() {
	if c.fetching {
		return
	}
	c.fetching = true

	c.net.Post(func() {
		results := c.fetchAll(context.Background())
		c.loop.Post(func() { c.apply(results) })
	})
}

// fetchAll issues one fetch per document. Fetches are independent and
// concurrent: a failure or slow response on one document does not block or
// discard the others.
func (c *Cache) fetchAll(ctx context.Context) []fetchResult {
	results := make([]fetchResult, len(Documents))
	var wg sync.WaitGroup
	for i, name := range Documents {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			data, err := c.fetcher.FetchDocument(ctx, name)
			results[i] = fetchResult{name: name, data: data, err: err}
		}(i, name)
	}
	wg.Wait()
	return results
}

// apply merges fetch results into a new snapshot, persists the updated
// documents, stamps the shared fetch timestamp, publishes, notifies
// observers, and arms the TTL staleness recheck. Runs on the SDK loop.
func (c *Cache) apply(results []fetchResult) {
	next := c.snap.Load().clone()

	for _, r := range results {
		if r.err != nil {
			observability.ConfigFetches.WithLabelValues(r.name, "fetch_error").Inc()
			c.logger.Warn("config document fetch failed",
				slog.String("document", r.name),
				slog.String("error", r.err.Error()),
			)
			continue
		}
		if err := next.parseDocument(r.name, r.data); err != nil {
			observability.ConfigFetches.WithLabelValues(r.name, "parse_error").Inc()
			c.logger.Error("config document failed to parse, keeping previous version",
				slog.String("document", r.name),
				slog.String("error", err.Error()),
			)
			continue
		}
		observability.ConfigFetches.WithLabelValues(r.name, "ok").Inc()
		if err := c.store.Set(r.name, r.data); err != nil {
			c.logger.Warn("failed to persist config document",
				slog.String("document", r.name),
				slog.String("error", err.Error()),
			)
		}
	}

	// One shared timestamp for all documents, stamped after all fetches
	// settle, even when some failed: the TTL tick retries soon enough.
	now := c.clock.Now()
	next.fetchedAt = now
	next.hasFetch = true
	if err := c.store.SetFetchedAt(now); err != nil {
		c.logger.Warn("failed to persist fetch timestamp", slog.String("error", err.Error()))
	}

	c.snap.Store(next)
	c.fetching = false

	for _, fn := range c.observers {
		fn()
	}

	c.armTTLRecheck()
}

// armTTLRecheck schedules the staleness recheck ttl from now. If the cache
// is still stale when it fires (no refresh happened meanwhile), it
// re-fetches automatically.
func (c *Cache) armTTLRecheck() {
	c.armRecheckAfter(c.ttl)
}

func (c *Cache) armRecheckAfter(delay time.Duration) {
	if c.ttlCancel != nil {
		c.ttlCancel()
	}
	c.ttlCancel = c.scheduler.ScheduleOnce(delay, func() {
		if c.IsStale() {
			c.Refresh()
		}
	})
}

// Stop cancels the pending TTL recheck. Must run on the SDK loop.
func (c *Cache) Stop() {
	if c.ttlCancel != nil {
		c.ttlCancel()
		c.ttlCancel = nil
	}
}

// IsStale reports whether the cached configuration has reached the TTL.
// A cache that has never fetched is stale by definition.
func (c *Cache) IsStale() bool {
	s := c.snap.Load()
	if !s.hasFetch {
		return true
	}
	return c.clock.Now().Sub(s.fetchedAt) >= c.ttl
}

// FetchedAt returns the shared fetch timestamp.
func (c *Cache) FetchedAt() (time.Time, bool) {
	s := c.snap.Load()
	return s.fetchedAt, s.hasFetch
}

// OnConfigFetched registers an observer notified (on the SDK loop) after
// every refresh settles. The returned function cancels the registration;
// both registration and cancellation are posted onto the loop, so they are
// safe from any goroutine.
func (c *Cache) OnConfigFetched(fn func()) func() {
	id := c.obsSeq.Add(1)
	c.loop.Post(func() { c.observers[id] = fn })

	var once sync.Once
	return func() {
		once.Do(func() {
			c.loop.Post(func() { delete(c.observers, id) })
		})
	}
}

// -----------------------------------------------------------------------------
// Reads. All synchronous, all snapshot-backed, none trigger fetches.
// -----------------------------------------------------------------------------

// Document returns the raw cached payload of one document.
func (c *Cache) Document(name string) (json.RawMessage, bool) {
	raw, ok := c.snap.Load().raw[name]
	return raw, ok
}

// FlagValue returns the raw value of one feature flag.
func (c *Cache) FlagValue(key string) (jsonval.Value, bool) {
	v, ok := c.snap.Load().flags[key]
	return v, ok
}

// Experiment returns the configuration of one experiment.
func (c *Cache) Experiment(id string) (ExperimentConfig, bool) {
	e, ok := c.snap.Load().experiments[id]
	return e, ok
}

// PaywallConfig returns the payload of one paywall.
func (c *Cache) PaywallConfig(id string) (jsonval.Value, bool) {
	v, ok := c.snap.Load().paywalls[id]
	return v, ok
}

// Flow returns the payload of one flow.
func (c *Cache) Flow(id string) (jsonval.Value, bool) {
	v, ok := c.snap.Load().flows[id]
	return v, ok
}

// OnboardingFlow returns the payload of one onboarding flow.
func (c *Cache) OnboardingFlow(id string) (jsonval.Value, bool) {
	v, ok := c.snap.Load().onboarding[id]
	return v, ok
}

// ActiveMessages returns the currently active messages.
func (c *Cache) ActiveMessages() []Message {
	var active []Message
	for _, m := range c.snap.Load().messages {
		if m.Active {
			active = append(active, m)
		}
	}
	return active
}

// SurveyConfigs returns all configured surveys.
func (c *Cache) SurveyConfigs() []Survey {
	s := c.snap.Load().surveys
	out := make([]Survey, len(s))
	copy(out, s)
	return out
}
