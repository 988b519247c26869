package muninn

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/muninn-io/muninn-go/internal/blobstore"
	"github.com/muninn-io/muninn-go/internal/configcache"
	"github.com/muninn-io/muninn-go/internal/dispatch"
	"github.com/muninn-io/muninn-go/internal/envelope"
	"github.com/muninn-io/muninn-go/internal/eventstore"
	"github.com/muninn-io/muninn-go/internal/experiment"
	"github.com/muninn-io/muninn-go/internal/flags"
	"github.com/muninn-io/muninn-go/internal/identity"
	"github.com/muninn-io/muninn-go/internal/runloop"
	"github.com/muninn-io/muninn-go/internal/sched"
	"github.com/muninn-io/muninn-go/internal/tracker"
	"github.com/muninn-io/muninn-go/internal/transport"
	"github.com/muninn-io/muninn-go/jsonval"
)

// Message is one in-app message from the remote configuration.
type Message struct {
	ID      string
	Payload jsonval.Value
}

// Survey is one survey definition from the remote configuration.
type Survey struct {
	ID      string
	Payload jsonval.Value
}

// Client is the SDK handle. All methods are safe for concurrent use: state
// changes are serialized on an internal run loop, reads are answered from
// atomic snapshots and never touch the network.
type Client struct {
	cfg    Config
	loop   *runloop.Loop
	queue  *dispatch.Queue
	cache  *configcache.Cache
	flags  *flags.Reader
	track  *tracker.Tracker
	exps   *experiment.Manager
	ids    *identity.Provider
	closed atomic.Bool

	// session is the current session id. Written only on the loop after
	// construction.
	session string
}

// New creates and starts a Client. The constructor performs local I/O only
// (hydrating the event log and config store); the first network activity is
// the initial config refresh, which happens in the background.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger

	loop := runloop.New()
	scheduler := sched.NewTimerScheduler(loop)

	var blob blobstore.Store
	if cfg.ConfigStorePath != "" {
		fs, err := blobstore.OpenFile(cfg.ConfigStorePath, logger)
		if err != nil {
			loop.Close()
			return nil, err
		}
		blob = fs
	} else {
		blob = blobstore.NewMemory()
	}

	var events eventstore.Store
	if cfg.EventLogPath != "" {
		fs, err := eventstore.OpenFile(cfg.EventLogPath, cfg.MaxPendingEvents, logger)
		if err != nil {
			loop.Close()
			return nil, err
		}
		events = fs
	} else {
		events = eventstore.NewMemory(cfg.MaxPendingEvents, logger)
	}

	ids := identity.New(blob, logger)
	net := transport.New(logger, cfg.BaseURL, cfg.AppID, cfg.APIKey, cfg.HTTPTimeout)

	queue := dispatch.New(dispatch.Options{
		Logger:    logger,
		Store:     events,
		Sender:    net,
		Scheduler: scheduler,
		Loop:      loop,
		Net:       runloop.Spawn{},
		Config: dispatch.Config{
			BatchSize:     cfg.BatchSize,
			MaxRetries:    cfg.MaxRetries,
			FlushInterval: cfg.FlushInterval,
			RetryDelays:   dispatch.DefaultRetryDelays,
		},
	})

	cache := configcache.New(configcache.Options{
		Logger:    logger,
		Store:     blob,
		Fetcher:   net,
		Scheduler: scheduler,
		Clock:     sched.SystemClock{},
		Loop:      loop,
		Net:       runloop.Spawn{},
		TTL:       cfg.ConfigTTL,
	})

	builder := envelope.NewBuilder(envelope.Device{
		Platform:   cfg.Platform,
		OSVersion:  cfg.OSVersion,
		AppVersion: cfg.AppVersion,
		SDKVersion: SDKVersion,
		Locale:     cfg.Locale,
		Country:    cfg.Country,
	})

	c := &Client{
		cfg:     cfg,
		loop:    loop,
		queue:   queue,
		cache:   cache,
		flags:   flags.NewReader(cache),
		ids:     ids,
		session: uuid.NewString(),
	}

	trk := tracker.New(logger, builder, ids, queue, func() string { return c.session })
	mgr := experiment.New(logger, cache, ids, cfg.Platform)
	mgr.SetEmitter(trk)
	trk.SetExposureSource(mgr)
	c.track = trk
	c.exps = mgr

	// Drain any recovered backlog and pick up fresh config in the
	// background.
	loop.Post(func() {
		queue.Flush()
		if cache.IsStale() {
			cache.Refresh()
		}
	})

	logger.Info("muninn client started",
		"app_id", cfg.AppID,
		"platform", cfg.Platform,
		"sdk_version", SDKVersion)
	return c, nil
}

// post runs fn on the loop without waiting.
func (c *Client) post(fn func()) {
	if c.closed.Load() {
		return
	}
	c.loop.Post(fn)
}

// call runs fn on the loop and waits for it, for reads that touch
// loop-confined state.
func (c *Client) call(fn func()) {
	if c.closed.Load() {
		return
	}
	done := make(chan struct{})
	c.loop.Post(func() {
		defer close(done)
		fn()
	})
	<-done
}

// Track captures one event. Property values must be JSON-shaped (bool,
// number, string, nil, []any, map[string]any); unconvertible values are
// dropped with a debug log, never an error.
func (c *Client) Track(event string, properties map[string]any) {
	props, dropped := jsonval.FromAnyMap(properties)
	if len(dropped) > 0 {
		c.cfg.Logger.Debug("dropped unconvertible event properties",
			"event", event, "keys", dropped)
	}
	c.post(func() { c.track.Track(event, props) })
}

// Flush triggers delivery of pending events without waiting for the
// recurring timer.
func (c *Client) Flush() {
	c.post(c.queue.Flush)
}

// Identify attaches a user id to the identity. Subsequent events and
// experiment assignments use it.
func (c *Client) Identify(userID string) {
	c.post(func() { c.ids.Identify(userID) })
}

// Reset detaches the user id (logout), keeping the anonymous id, and clears
// the session's experiment exposures.
func (c *Client) Reset() {
	c.post(func() {
		c.ids.Reset()
		c.exps.ResetExposures()
	})
}

// SetConsent updates analytics consent. While revoked, tracked events are
// dropped before capture.
func (c *Client) SetConsent(granted bool) {
	c.post(func() { c.track.SetConsent(granted) })
}

// StartNewSession rotates the session id and clears experiment exposures,
// so assignments re-emit their exposure events.
func (c *Client) StartNewSession() {
	c.post(func() {
		c.session = uuid.NewString()
		c.exps.ResetExposures()
	})
}

// OnBackground should be called when the host app is suspended; it forces a
// flush so pending events are not stranded.
func (c *Client) OnBackground() {
	c.post(c.queue.OnBackground)
}

// OnForeground should be called when the host app resumes; stale config is
// refreshed in the background.
func (c *Client) OnForeground() {
	c.post(func() {
		if c.cache.IsStale() {
			c.cache.Refresh()
		}
	})
}

// Config returns one remote config value by key.
func (c *Client) Config(key string) (jsonval.Value, bool) {
	return c.cache.FlagValue(key)
}

// IsFeatureEnabled reports whether a feature flag is on. Boolean true and
// numeric 1 count as on.
func (c *Client) IsFeatureEnabled(flag string) bool {
	return c.flags.IsEnabled(flag)
}

// ExperimentVariant resolves the caller's variant for an experiment. The
// first resolution per session records an exposure event.
func (c *Client) ExperimentVariant(experimentID string) (string, bool) {
	var (
		variant string
		ok      bool
	)
	c.call(func() { variant, ok = c.exps.Variant(experimentID) })
	return variant, ok
}

// ExperimentConfig returns one key of the assigned variant's payload.
func (c *Client) ExperimentConfig(experimentID, key string) (jsonval.Value, bool) {
	var (
		v  jsonval.Value
		ok bool
	)
	c.call(func() { v, ok = c.exps.Payload(experimentID, key) })
	return v, ok
}

// PaywallConfig returns one paywall definition.
func (c *Client) PaywallConfig(id string) (jsonval.Value, bool) {
	return c.cache.PaywallConfig(id)
}

// Flow returns one flow definition.
func (c *Client) Flow(id string) (jsonval.Value, bool) {
	return c.cache.Flow(id)
}

// OnboardingFlow returns one onboarding flow definition.
func (c *Client) OnboardingFlow(id string) (jsonval.Value, bool) {
	return c.cache.OnboardingFlow(id)
}

// ActiveMessages lists the currently active in-app messages.
func (c *Client) ActiveMessages() []Message {
	cached := c.cache.ActiveMessages()
	out := make([]Message, 0, len(cached))
	for _, m := range cached {
		out = append(out, Message{ID: m.ID, Payload: m.Payload})
	}
	return out
}

// SurveyConfigs lists the configured surveys.
func (c *Client) SurveyConfigs() []Survey {
	cached := c.cache.SurveyConfigs()
	out := make([]Survey, 0, len(cached))
	for _, s := range cached {
		out = append(out, Survey{ID: s.ID, Payload: s.Payload})
	}
	return out
}

// OnConfigFetched registers an observer notified after every config refresh
// settles. The observer runs on the SDK's internal loop, so it must not
// block. The returned function cancels the registration.
func (c *Client) OnConfigFetched(fn func()) func() {
	var cancel func()
	c.call(func() { cancel = c.cache.OnConfigFetched(fn) })
	if cancel == nil {
		return func() {}
	}
	return func() { c.post(cancel) }
}

// Close flushes pending events, stops timers, and shuts the loop down. The
// context bounds the wait; events that cannot be delivered in time remain
// on disk for the next start.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	done := make(chan struct{})
	c.loop.Post(func() {
		defer close(done)
		c.cache.Stop()
		c.queue.Close()
	})
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		c.loop.Close()
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.cfg.Logger.Info("muninn client closed")
	return nil
}
