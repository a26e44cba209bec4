package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"
)

// IRValue is a sealed interface representing document values.
// Only IRNull, IRBool, IRInt, IRFloat, IRString, IRArray, and IRObject implement it.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents a null value.
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value.
// Integers and floats are distinct: IRInt(1) and IRFloat(1) never compare equal.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat represents a finite floating point value.
// NaN and infinities are rejected at decode time.
type IRFloat float64

func (IRFloat) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an ordered sequence of values.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a mapping of string keys to values.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// IRPair represents a key-value pair for IRObject construction.
type IRPair struct {
	Key   string
	Value IRValue
}

// O is a shorthand for IRPair for ergonomic construction.
// Example: NewIRObjectFromPairs(O("method", IRString("GET")), O("path", IRString("/x")))
func O(key string, value IRValue) IRPair {
	return IRPair{Key: key, Value: value}
}

// NewIRObjectFromPairs creates an IRObject from key-value pairs.
func NewIRObjectFromPairs(pairs ...IRPair) IRObject {
	obj := make(IRObject, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's default string ordering is UTF-8 byte order, which differs for
// characters outside the BMP.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// Without returns a shallow copy of obj with the named keys removed.
func (obj IRObject) Without(keys ...string) IRObject {
	out := make(IRObject, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
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
	}
	return 0
}

// Clone returns a deep copy of v.
func Clone(v IRValue) IRValue {
	switch val := v.(type) {
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case IRObject:
		return CloneObject(val)
	default:
		return v
	}
}

// CloneObject returns a deep copy of obj. A nil object stays nil.
func CloneObject(obj IRObject) IRObject {
	if obj == nil {
		return nil
	}
	out := make(IRObject, len(obj))
	for k, elem := range obj {
		out[k] = Clone(elem)
	}
	return out
}

// Equal reports whether a and b have the same canonical encoding.
func Equal(a, b IRValue) bool {
	ab, err := MarshalCanonical(a)
	if err != nil {
		return false
	}
	bb, err := MarshalCanonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// MarshalJSON implements json.Marshaler for IRObject with sorted keys.
// NOTE: This is NOT canonical marshaling - strings are HTML escaped and not
// NFC normalized. Use MarshalCanonical for identity computation.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalIRValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler for IRArray.
func (arr IRArray) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalIRValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalIRValue marshals an IRValue to JSON bytes.
func MarshalIRValue(v IRValue) ([]byte, error) {
	switch val := v.(type) {
	case nil, IRNull:
		return []byte("null"), nil
	case IRString:
		return json.Marshal(string(val))
	case IRInt:
		return strconv.AppendInt(nil, int64(val), 10), nil
	case IRFloat:
		return formatFloat(float64(val))
	case IRBool:
		return strconv.AppendBool(nil, bool(val)), nil
	case IRArray:
		return val.MarshalJSON()
	case IRObject:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown IRValue type: %T", v)
	}
}

// formatFloat renders f in shortest round-trip form, always carrying a
// decimal point or exponent so it cannot be mistaken for an integer.
func formatFloat(f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float is not representable: %v", f)
	}
	b := strconv.AppendFloat(nil, f, 'g', -1, 64)
	if !bytes.ContainsAny(b, ".eE") {
		b = append(b, '.', '0')
	}
	return b, nil
}

// ToNative converts v into plain Go values (nil, bool, int64, float64,
// string, []any, map[string]any).
func ToNative(v IRValue) any {
	switch val := v.(type) {
	case IRString:
		return string(val)
	case IRInt:
		return int64(val)
	case IRFloat:
		return float64(val)
	case IRBool:
		return bool(val)
	case IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToNative(elem)
		}
		return out
	case IRObject:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToNative(elem)
		}
		return out
	default:
		return nil
	}
}

// FromNative converts plain Go values into an IRValue.
// Accepts the shapes produced by encoding/json, yaml.v3 and ToNative.
func FromNative(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case int:
		return IRInt(val), nil
	case int8:
		return IRInt(val), nil
	case int16:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint8:
		return IRInt(val), nil
	case uint16:
		return IRInt(val), nil
	case uint32:
		return IRInt(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("integer out of int64 range: %d", val)
		}
		return IRInt(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer out of int64 range: %d", val)
		}
		return IRInt(val), nil
	case float32:
		return fromFloat(float64(val))
	case float64:
		return fromFloat(val)
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return IRInt(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %s: %w", val, err)
		}
		return fromFloat(f)
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromNative(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromNative(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func fromFloat(f float64) (IRValue, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float is not representable: %v", f)
	}
	return IRFloat(f), nil
}

// UnmarshalIRValue decodes JSON into an IRValue.
// Integral numbers without a fraction or exponent become IRInt; others IRFloat.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return fromJSON(raw)
}

func fromJSON(v any) (IRValue, error) {
	switch val := v.(type) {
	case json.Number:
		s := string(val)
		if bytes.ContainsAny([]byte(s), ".eE") {
			f, err := val.Float64()
			if err != nil {
				return nil, fmt.Errorf("invalid number %s: %w", s, err)
			}
			return fromFloat(f)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return IRInt(n), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return FromNative(val)
	}
}
