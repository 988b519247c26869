package testsupport

import (
	"context"
	"errors"
	"sync"
)

// ScriptedSender is a fake batch sender that replays a scripted sequence of
// outcomes. Once the script is exhausted it keeps returning the last
// outcome; an empty script always succeeds.
type ScriptedSender struct {
	mu      sync.Mutex
	script  []error
	attempt int

	// Bodies records every batch body handed to the sender, in order.
	Bodies [][]byte
}

// NewScriptedSender creates a sender replaying the given outcomes.
// Use nil entries for success.
func NewScriptedSender(script ...error) *ScriptedSender {
	return &ScriptedSender{script: script}
}

// FailTimes is shorthand for a sender that fails the first n attempts and
// then succeeds forever.
func FailTimes(n int) *ScriptedSender {
	script := make([]error, n+1)
	for i := 0; i < n; i++ {
		script[i] = errors.New("simulated network failure")
	}
	return &ScriptedSender{script: script}
}

// SendBatch implements the dispatch sender contract.
func (s *ScriptedSender) SendBatch(_ context.Context, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(body))
	copy(cp, body)
	s.Bodies = append(s.Bodies, cp)

	if len(s.script) == 0 {
		return nil
	}
	idx := s.attempt
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	s.attempt++
	return s.script[idx]
}

// Attempts reports how many sends were attempted.
func (s *ScriptedSender) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// StaticFetcher is a fake config fetcher serving documents from a map.
// Documents absent from the map (or listed in Errs) fail to fetch.
type StaticFetcher struct {
	mu      sync.Mutex
	Docs    map[string][]byte
	Errs    map[string]error
	fetched map[string]int
}

// NewStaticFetcher creates a fetcher serving the given documents. The map is
// copied so that SetDocument never mutates the caller's map, which may be
// shared across parallel tests.
func NewStaticFetcher(docs map[string][]byte) *StaticFetcher {
	cp := make(map[string][]byte, len(docs))
	for name, doc := range docs {
		cp[name] = doc
	}
	return &StaticFetcher{Docs: cp, Errs: map[string]error{}, fetched: map[string]int{}}
}

// FetchDocument implements the configcache fetcher contract.
func (f *StaticFetcher) FetchDocument(_ context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetched[name]++
	if err, ok := f.Errs[name]; ok {
		return nil, err
	}
	doc, ok := f.Docs[name]
	if !ok {
		return nil, errors.New("document not found: " + name)
	}
	cp := make([]byte, len(doc))
	copy(cp, doc)
	return cp, nil
}

// FetchCount reports how many times a document was requested.
func (f *StaticFetcher) FetchCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetched[name]
}

// SetDocument replaces one document under lock.
func (f *StaticFetcher) SetDocument(name string, raw []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Docs[name] = raw
}

// SetError makes one document fail to fetch.
func (f *StaticFetcher) SetError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Errs, name)
		return
	}
	f.Errs[name] = err
}
