package jsonval

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsBool_Coercion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		value     Value
		wantValue bool
		wantOK    bool
	}{
		{"bool true", Bool(true), true, true},
		{"bool false", Bool(false), false, true},
		{"number one", Number(1), true, true},
		{"number zero", Number(0), false, true},
		{"number other", Number(2), false, false},
		{"string", String("true"), false, false},
		{"null", Null(), false, false},
		{"array", Array(Bool(true)), false, false},
		{"object", Object(map[string]Value{"on": Bool(true)}), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.value.AsBool()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantValue, got)
		})
	}
}

func TestTruthy(t *testing.T) {
	t.Parallel()

	assert.True(t, Bool(true).Truthy())
	assert.True(t, Number(1).Truthy())
	assert.False(t, Bool(false).Truthy())
	assert.False(t, Number(0).Truthy())
	assert.False(t, Number(0.5).Truthy())
	assert.False(t, String("1").Truthy())
	assert.False(t, Null().Truthy())
}

func TestFromAny(t *testing.T) {
	t.Parallel()

	t.Run("scalars and containers", func(t *testing.T) {
		v, ok := FromAny(map[string]any{
			"name":  "checkout",
			"count": 3,
			"ratio": 0.25,
			"on":    true,
			"none":  nil,
			"tags":  []any{"a", "b"},
		})
		require.True(t, ok)
		assert.Equal(t, KindObject, v.Kind())

		name, _ := v.Get("name")
		s, ok := name.AsString()
		require.True(t, ok)
		assert.Equal(t, "checkout", s)

		count, _ := v.Get("count")
		f, ok := count.AsFloat()
		require.True(t, ok)
		assert.Equal(t, 3.0, f)

		tags, _ := v.Get("tags")
		assert.Equal(t, 2, tags.Len())
	})

	t.Run("unrepresentable values are rejected", func(t *testing.T) {
		_, ok := FromAny(func() {})
		assert.False(t, ok)

		_, ok = FromAny(make(chan int))
		assert.False(t, ok)
	})

	t.Run("map conversion reports dropped keys", func(t *testing.T) {
		out, dropped := FromAnyMap(map[string]any{
			"good": 1,
			"bad":  func() {},
		})
		assert.Len(t, out, 1)
		assert.Equal(t, []string{"bad"}, dropped)
	})
}

func TestValue_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	original := Object(map[string]Value{
		"plan":   String("pro"),
		"seats":  Number(5),
		"active": Bool(true),
		"none":   Null(),
		"nested": Object(map[string]Value{"list": Array(Number(1), Number(2))}),
	})

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Value
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.True(t, original.Equal(decoded), "round trip must preserve structure")
}

func TestValue_Equal(t *testing.T) {
	t.Parallel()

	assert.True(t, Number(1).Equal(Number(1)))
	assert.False(t, Number(1).Equal(Bool(true)))
	assert.False(t, Array(Number(1)).Equal(Array(Number(2))))
	assert.True(t, Null().Equal(Value{}))
}
