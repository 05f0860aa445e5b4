package ir

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Value is a sealed interface over the parameter value types.
// Only String, Int, Float, Bool, Array and Object implement it.
type Value interface {
	irValue()
}

// String is a string parameter value.
type String string

func (String) irValue() {}

// Int is an integer parameter value.
type Int int64

func (Int) irValue() {}

// Float is a floating point parameter value.
type Float float64

func (Float) irValue() {}

// Bool is a boolean parameter value.
type Bool bool

func (Bool) irValue() {}

// Array is an ordered sequence of values.
type Array []Value

func (Array) irValue() {}

// Object maps string keys to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) irValue() {}

// SortedKeys returns the object's keys in lexicographic byte order.
func (obj Object) SortedKeys() []string {
	return slices.Sorted(maps.Keys(obj))
}

// Clone returns a deep copy of obj.
func (obj Object) Clone() Object {
	if obj == nil {
		return nil
	}
	out := make(Object, len(obj))
	for k, v := range obj {
		out[k] = DeepCopy(v)
	}
	return out
}

// DeepCopy copies the containers inside v. Scalars are returned as-is.
func DeepCopy(v Value) Value {
	switch val := v.(type) {
	case Object:
		return val.Clone()
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = DeepCopy(elem)
		}
		return out
	default:
		return v
	}
}

// IsScalar reports whether v is a String, Int, Float or Bool.
func IsScalar(v Value) bool {
	switch v.(type) {
	case String, Int, Float, Bool:
		return true
	default:
		return false
	}
}

// Format renders a scalar the way it appears inside an output directory name.
//
// Floats always carry a decimal point or exponent so that 1 and 1.0 stay
// distinguishable. Containers cannot be formatted.
func Format(v Value) (string, error) {
	switch val := v.(type) {
	case String:
		return string(val), nil
	case Int:
		return strconv.FormatInt(int64(val), 10), nil
	case Bool:
		return strconv.FormatBool(bool(val)), nil
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", fmt.Errorf("cannot format non-finite float %v", f)
		}
		return formatFloat(f), nil
	default:
		return "", fmt.Errorf("cannot format %T as a scalar", v)
	}
}

// formatFloat prints the shortest round-tripping digits of f. Decimal
// exponents from -4 through 15 are written in fixed notation (1000000.0,
// 0.0001); anything outside uses an exponent (1e+16, 1e-05).
func formatFloat(f float64) string {
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err == nil && (exp < -4 || exp >= 16) {
		return sci
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FromAny converts a decoded YAML or JSON document into a Value.
// Rejects null and any type outside the sealed set.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is not a valid parameter value")
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d out of int64 range", val)
		}
		return Int(val), nil
	case float64:
		return Float(val), nil
	case float32:
		return Float(val), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			irElem, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			irElem, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	case map[any]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v (%T)", k, k)
			}
			irElem, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			obj[key] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToAny converts v into plain Go values (string, int64, float64, bool,
// []any, map[string]any) for encoders that do not know about ir.
func ToAny(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}
