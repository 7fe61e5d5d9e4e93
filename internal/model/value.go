package model

import (
	"fmt"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the attribute value types.
// Only String, Int, Bool, List, and Map implement it.
// There is deliberately no float variant: remote attribute comparison must be
// exact, and float round-tripping through JSON is not.
type Value interface {
	value() // sealed
}

// String is a string attribute value.
type String string

func (String) value() {}

// Int is an integer attribute value. Always int64.
type Int int64

func (Int) value() {}

// Bool is a boolean attribute value.
type Bool bool

func (Bool) value() {}

// List is an ordered sequence of attribute values.
type List []Value

func (List) value() {}

// Map is a string-keyed collection of attribute values.
// Use SortedKeys for deterministic iteration.
type Map map[string]Value

func (Map) value() {}

// Attributes is the attribute set of a single resource node.
// It is a Map at the type level so fingerprinting and diffing share one
// canonical serialization path.
type Attributes = Map

// SortedKeys returns keys in canonical order (UTF-16 code units, RFC 8785).
// Go's sort.Strings compares UTF-8 bytes, which orders some key sets
// differently; fingerprints must not depend on that.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// compareUTF16 compares two strings by UTF-16 code units as RFC 8785
// requires. utf16.Encode handles surrogate pairs correctly.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// Equal reports whether two values are structurally equal.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, present := bv[k]
			if !present || !Equal(v, w) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FromGo converts a plain Go value (as produced by YAML/CUE decoding) into a
// Value. Floats and nulls are rejected.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null attribute values are not allowed")
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case bool:
		return Bool(val), nil
	case float64, float32:
		return nil, fmt.Errorf("float attribute values are not allowed: %v", val)
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			converted, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = converted
		}
		return list, nil
	case map[string]any:
		m := make(Map, len(val))
		for k, elem := range val {
			converted, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			m[k] = converted
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported attribute type: %T", v)
	}
}

// GoString renders a Value as its underlying string, or "" if it is not a
// String. Convenience for attribute lookups where only strings make sense.
func GoString(v Value) string {
	if s, ok := v.(String); ok {
		return string(s)
	}
	return ""
}
