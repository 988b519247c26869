package flags

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/muninn-io/muninn-go/internal/blobstore"
	"github.com/muninn-io/muninn-go/internal/configcache"
	"github.com/muninn-io/muninn-go/jsonval"
	"github.com/muninn-io/muninn-go/internal/runloop"
	"github.com/muninn-io/muninn-go/internal/testsupport"
)

func newTestReader(t *testing.T, flagsDoc string) *Reader {
	t.Helper()

	clock := testsupport.NewManualClock(time.UnixMilli(1700000000000))
	cache := configcache.New(configcache.Options{
		Logger: slog.Default(),
		Store:  blobstore.NewMemory(),
		Fetcher: testsupport.NewStaticFetcher(map[string][]byte{
			configcache.DocFlags: []byte(flagsDoc),
		}),
		Scheduler: clock,
		Clock:     clock,
		Loop:      runloop.Inline{},
		Net:       runloop.Inline{},
		TTL:       time.Hour,
	})
	cache.Refresh()
	return NewReader(cache)
}

func TestReader_IsEnabled(t *testing.T) {
	t.Parallel()

	r := newTestReader(t, `{
		"bool_on": true,
		"bool_off": false,
		"num_one": 1,
		"num_zero": 0,
		"num_other": 2,
		"str": "yes",
		"nothing": null
	}`)

	tests := []struct {
		flag string
		want bool
	}{
		{flag: "bool_on", want: true},
		{flag: "bool_off", want: false},
		{flag: "num_one", want: true},
		{flag: "num_zero", want: false},
		{flag: "num_other", want: false},
		{flag: "str", want: false},
		{flag: "nothing", want: false},
		{flag: "absent", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.flag, func(t *testing.T) {
			assert.Equal(t, tc.want, r.IsEnabled(tc.flag))
		})
	}
}

func TestReader_Value(t *testing.T) {
	t.Parallel()

	r := newTestReader(t, `{"limit": 25, "label": "beta"}`)

	f, ok := r.Value("limit").AsFloat()
	assert.True(t, ok)
	assert.Equal(t, 25.0, f)

	s, ok := r.Value("label").AsString()
	assert.True(t, ok)
	assert.Equal(t, "beta", s)

	assert.Equal(t, jsonval.Null(), r.Value("absent"))
}
