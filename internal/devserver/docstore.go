package devserver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/muninn-io/muninn-go/internal/configcache"
)

// ErrDocumentNotFound marks a config document the backend does not hold.
var ErrDocumentNotFound = errors.New("devserver: document not found")

// docKeyPrefix namespaces config documents in Redis.
const docKeyPrefix = "muninn:config:"

// DocStore is the persistence contract for config documents. Using an
// interface allows the Redis-backed store in deployments and an in-memory
// seeded store for local runs and unit tests.
type DocStore interface {
	// GetDocument returns the raw JSON of one document, or
	// ErrDocumentNotFound.
	GetDocument(ctx context.Context, name string) ([]byte, error)

	// PutDocument stores or replaces one document.
	PutDocument(ctx context.Context, name string, raw []byte) error
}

// Compile-time interface checks.
var (
	_ DocStore = (*RedisDocStore)(nil)
	_ DocStore = (*MemoryDocStore)(nil)
)

// RedisDocStore persists config documents in Redis, one key per document.
type RedisDocStore struct {
	client *redis.Client
}

// NewRedisDocStore creates a store over an established Redis client.
func NewRedisDocStore(client *redis.Client) *RedisDocStore {
	if client == nil {
		panic("devserver: redis client cannot be nil")
	}
	return &RedisDocStore{client: client}
}

// GetDocument implements DocStore.
func (s *RedisDocStore) GetDocument(ctx context.Context, name string) ([]byte, error) {
	raw, err := s.client.Get(ctx, docKeyPrefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %q: %w", name, err)
	}
	return raw, nil
}

// PutDocument implements DocStore. Documents have no expiry; they live
// until replaced.
func (s *RedisDocStore) PutDocument(ctx context.Context, name string, raw []byte) error {
	if err := s.client.Set(ctx, docKeyPrefix+name, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to store document %q: %w", name, err)
	}
	return nil
}

// RedisChecker reports Redis health for the readiness probe.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a health checker for the given client.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// Name identifies the dependency.
func (c *RedisChecker) Name() string { return "redis" }

// Check verifies the connection with a ping.
func (c *RedisChecker) Check(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return c.client.Ping(ctx).Err()
}

// MemoryDocStore holds config documents in memory. New stores come seeded
// with a small demo configuration so a freshly started backend serves
// something useful.
type MemoryDocStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryDocStore creates a seeded in-memory store.
func NewMemoryDocStore() *MemoryDocStore {
	s := &MemoryDocStore{docs: make(map[string][]byte)}
	for name, raw := range seedDocuments {
		s.docs[name] = []byte(raw)
	}
	return s
}

// GetDocument implements DocStore.
func (s *MemoryDocStore) GetDocument(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.docs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return cp, nil
}

// PutDocument implements DocStore.
func (s *MemoryDocStore) PutDocument(_ context.Context, name string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(raw))
	copy(cp, raw)
	s.docs[name] = cp
	return nil
}

// seedDocuments is the demo configuration served by a fresh in-memory
// store: one flag of each value shape, one running 50/50 experiment, and
// one entry per remaining document.
var seedDocuments = map[string]string{
	configcache.DocFlags: `{
		"dark_mode": true,
		"max_upload_mb": 25,
		"welcome_banner": "Welcome to the dev backend"
	}`,
	configcache.DocExperiments: `{"experiments":[
		{"id":"exp_paywall_v3","name":"Paywall v3","status":"running","salt":"a8f3c9d2",
		 "variants":[
			{"id":"control","weight":0.5,"payload":{"cta":"Subscribe"}},
			{"id":"variant_b","weight":0.5,"payload":{"cta":"Try free"}}]}
	]}`,
	configcache.DocPaywalls:   `{"pw_main":{"title":"Go Pro","products":["monthly","yearly"]}}`,
	configcache.DocFlows:      `{"flow_checkout":{"steps":["cart","payment","done"]}}`,
	configcache.DocOnboarding: `{"ob_default":{"screens":["welcome","permissions"]}}`,
	configcache.DocMessages:   `{"messages":[{"id":"msg_release","active":true,"payload":{"title":"New release"}}]}`,
	configcache.DocSurveys:    `{"surveys":[{"id":"sv_nps","payload":{"question":"How likely are you to recommend us?"}}]}`,
}
