// Package keypath flattens nested parameter objects into dot-joined keys and
// back again.
//
// Flatten and Unflatten are inverses for any object whose keys are non-empty,
// contain no Separator, and whose leaves are not themselves objects. Keys that
// break that precondition are rejected instead of being silently mis-split.
// Empty sub-objects have no leaves and disappear when flattened.
package keypath

import (
	"fmt"
	"strings"

	"github.com/roach88/sweep/internal/ir"
)

// Separator joins nested keys into a flat key.
const Separator = "."

// placeholderSeparator replaces Separator inside template placeholder names,
// where a dot is not a legal identifier character.
const placeholderSeparator = "_"

// AmbiguousKeyError reports a key that cannot round-trip through a flat key.
type AmbiguousKeyError struct {
	// Path is the flat path of the object holding Key ("" at the top level).
	Path   string
	Key    string
	Reason string
}

func (e *AmbiguousKeyError) Error() string {
	where := "top level"
	if e.Path != "" {
		where = fmt.Sprintf("%q", e.Path)
	}
	return fmt.Sprintf("ambiguous key %q under %s: %s", e.Key, where, e.Reason)
}

// CollisionError reports flat keys that cannot coexist in one nested object,
// e.g. "a" and "a.b".
type CollisionError struct {
	Key string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("flat key %q collides with a value at a shorter path", e.Key)
}

// Flatten turns a nested object into a single-level map keyed by dot-joined
// paths. Traversal is depth-first in sorted key order.
//
//	Flatten({"a": {"b": 1}}) == {"a.b": 1}
func Flatten(nested ir.Object) (map[string]ir.Value, error) {
	out := make(map[string]ir.Value)
	if err := flattenInto(out, "", nested); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(out map[string]ir.Value, prefix string, obj ir.Object) error {
	for _, key := range obj.SortedKeys() {
		if err := checkSegment(prefix, key); err != nil {
			return err
		}
		path := key
		if prefix != "" {
			path = prefix + Separator + key
		}
		if child, ok := obj[key].(ir.Object); ok {
			if err := flattenInto(out, path, child); err != nil {
				return err
			}
			continue
		}
		out[path] = obj[key]
	}
	return nil
}

func checkSegment(prefix, key string) error {
	if key == "" {
		return &AmbiguousKeyError{Path: prefix, Key: key, Reason: "empty keys cannot be joined"}
	}
	if strings.Contains(key, Separator) {
		return &AmbiguousKeyError{Path: prefix, Key: key, Reason: fmt.Sprintf("key contains the path separator %q", Separator)}
	}
	return nil
}

// Unflatten performs the opposite operation to Flatten. Flat keys sharing a
// prefix are merged into one subtree rather than overwriting each other.
//
//	Unflatten({"a.b": 1, "a.c": 2}) == {"a": {"b": 1, "c": 2}}
func Unflatten(flat map[string]ir.Value) (ir.Object, error) {
	out := make(ir.Object)
	// Sorted so the reported collision is the same on every run.
	for _, key := range ir.Object(flat).SortedKeys() {
		parts, err := Split(key)
		if err != nil {
			return nil, err
		}

		cur := out
		for _, part := range parts[:len(parts)-1] {
			next, exists := cur[part]
			if !exists {
				child := make(ir.Object)
				cur[part] = child
				cur = child
				continue
			}
			child, ok := next.(ir.Object)
			if !ok {
				return nil, &CollisionError{Key: key}
			}
			cur = child
		}

		last := parts[len(parts)-1]
		if _, exists := cur[last]; exists {
			return nil, &CollisionError{Key: key}
		}
		cur[last] = ir.DeepCopy(flat[key])
	}
	return out, nil
}

// Split breaks a flat key into its segments, rejecting empty segments.
func Split(flatKey string) ([]string, error) {
	parts := strings.Split(flatKey, Separator)
	prefix := ""
	for _, part := range parts {
		if part == "" {
			return nil, &AmbiguousKeyError{Path: prefix, Key: flatKey, Reason: "flat key has an empty segment"}
		}
		if prefix == "" {
			prefix = part
		} else {
			prefix += Separator + part
		}
	}
	return parts, nil
}

// Nest builds the single-path object that sets value at flatKey.
//
//	Nest("core.out_path", "x") == {"core": {"out_path": "x"}}
func Nest(flatKey string, value ir.Value) (ir.Object, error) {
	return Unflatten(map[string]ir.Value{flatKey: value})
}

// Placeholder returns the template placeholder name for a flat key.
//
//	Placeholder("b.c.param") == "b_c_param"
func Placeholder(flatKey string) string {
	return strings.ReplaceAll(flatKey, Separator, placeholderSeparator)
}
