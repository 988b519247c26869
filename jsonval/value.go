// Package jsonval provides a tagged-union JSON value type used uniformly for
// event properties and remote-config payloads.
//
// Using a closed set of kinds instead of raw `any` keeps coercion rules in one
// place and makes the permissive boolean/number conversions of the flag reader
// explicit and testable.
package jsonval

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind identifies the JSON type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the lowercase JSON type name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "invalid"
	}
}

// Value is an immutable JSON value. The zero value is JSON null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	a    []Value
	o    map[string]Value
}

// Null returns the JSON null value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float64. All JSON numbers are represented as float64,
// matching encoding/json's default decoding.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array wraps a list of values.
func Array(items ...Value) Value { return Value{kind: KindArray, a: items} }

// Object wraps a map of values. The map is used as-is; callers must not
// mutate it afterwards.
func Object(fields map[string]Value) Value { return Value{kind: KindObject, o: fields} }

// Kind reports which JSON type this value holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is JSON null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool applies the permissive boolean coercion used by the feature flag
// reader: boolean values convert directly, and numbers equal to 1 are treated
// as true (0 as false). Any other kind is not coercible.
func (v Value) AsBool() (value bool, ok bool) {
	switch v.kind {
	case KindBool:
		return v.b, true
	case KindNumber:
		if v.n == 1 {
			return true, true
		}
		if v.n == 0 {
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}

// Truthy reports whether the value is boolean true or a numeric 1-equivalent.
// This is the flag-enabled rule: everything else (strings, arrays, objects,
// null, other numbers) is false.
func (v Value) Truthy() bool {
	b, ok := v.AsBool()
	return ok && b
}

// AsFloat returns the numeric value. Only number kinds are coercible.
func (v Value) AsFloat() (value float64, ok bool) {
	if v.kind == KindNumber {
		return v.n, true
	}
	return 0, false
}

// AsString returns the string value. Only string kinds are coercible.
func (v Value) AsString() (value string, ok bool) {
	if v.kind == KindString {
		return v.s, true
	}
	return "", false
}

// Items returns the array elements, or nil for non-arrays.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.a
}

// Get returns the named field of an object value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Null(), false
	}
	val, ok := v.o[key]
	return val, ok
}

// Keys returns the sorted field names of an object value.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.o))
	for k := range v.o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the element count for arrays and objects, 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.a)
	case KindObject:
		return len(v.o)
	default:
		return 0
	}
}

// Equal reports deep structural equality.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindArray:
		if len(v.a) != len(other.a) {
			return false
		}
		for i := range v.a {
			if !v.a[i].Equal(other.a[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.o) != len(other.o) {
			return false
		}
		for k, val := range v.o {
			otherVal, ok := other.o[k]
			if !ok || !val.Equal(otherVal) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FromAny converts a dynamically typed Go value (the shapes produced by
// encoding/json and the ones host applications naturally pass as event
// properties) into a Value. The second return is false for values with no
// JSON representation (funcs, channels, NaN, ...), which callers should drop.
func FromAny(raw any) (Value, bool) {
	switch t := raw.(type) {
	case nil:
		return Null(), true
	case Value:
		return t, true
	case bool:
		return Bool(t), true
	case string:
		return String(t), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return Null(), false
		}
		return Number(t), true
	case float32:
		return FromAny(float64(t))
	case int:
		return Number(float64(t)), true
	case int8:
		return Number(float64(t)), true
	case int16:
		return Number(float64(t)), true
	case int32:
		return Number(float64(t)), true
	case int64:
		return Number(float64(t)), true
	case uint:
		return Number(float64(t)), true
	case uint8:
		return Number(float64(t)), true
	case uint16:
		return Number(float64(t)), true
	case uint32:
		return Number(float64(t)), true
	case uint64:
		return Number(float64(t)), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Null(), false
		}
		return Number(f), true
	case []any:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			v, ok := FromAny(item)
			if !ok {
				return Null(), false
			}
			items = append(items, v)
		}
		return Array(items...), true
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			v, ok := FromAny(item)
			if !ok {
				return Null(), false
			}
			fields[k] = v
		}
		return Object(fields), true
	case map[string]Value:
		return Object(t), true
	default:
		return Null(), false
	}
}

// FromAnyMap converts a property map, returning the converted map and the
// keys whose values could not be represented (dropped from the result).
func FromAnyMap(raw map[string]any) (map[string]Value, []string) {
	if raw == nil {
		return nil, nil
	}
	out := make(map[string]Value, len(raw))
	var dropped []string
	for k, item := range raw {
		v, ok := FromAny(item)
		if !ok {
			dropped = append(dropped, k)
			continue
		}
		out[k] = v
	}
	sort.Strings(dropped)
	return out, dropped
}

// String renders the value as compact JSON for logs and debugging.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "<invalid>"
	}
	return string(b)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	case KindNumber:
		return json.Marshal(v.n)
	case KindString:
		return json.Marshal(v.s)
	case KindArray:
		if v.a == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.a)
	case KindObject:
		if v.o == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.o)
	default:
		return nil, fmt.Errorf("jsonval: cannot marshal kind %d", v.kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, ok := FromAny(raw)
	if !ok {
		return fmt.Errorf("jsonval: unsupported value %T", raw)
	}
	*v = parsed
	return nil
}
