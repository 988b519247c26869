// Package flags reads feature flags out of the cached configuration.
package flags

import (
	"github.com/muninn-io/muninn-go/internal/configcache"
	"github.com/muninn-io/muninn-go/jsonval"
	"github.com/muninn-io/muninn-go/internal/validation"
)

// Reader answers flag lookups from the current config snapshot. Lookups are
// pure reads; a missing or non-boolean-shaped flag is simply disabled.
type Reader struct {
	cache *configcache.Cache
}

// NewReader creates a flag reader over the cache.
func NewReader(cache *configcache.Cache) *Reader {
	validation.AssertNotNil(cache, "config cache")
	return &Reader{cache: cache}
}

// IsEnabled reports whether a flag is on. Boolean true and numeric 1 count
// as on; everything else, including an absent flag, is off.
func (r *Reader) IsEnabled(flag string) bool {
	v, ok := r.cache.FlagValue(flag)
	if !ok {
		return false
	}
	return v.Truthy()
}

// Value returns the raw flag value, or Null when the flag is absent.
func (r *Reader) Value(flag string) jsonval.Value {
	v, ok := r.cache.FlagValue(flag)
	if !ok {
		return jsonval.Null()
	}
	return v
}
