// Package grid enumerates every combination of a parameter grid.
//
// A Grid is a union of sub-grids. Each sub-grid maps a flat key to a
// non-empty list of candidate values. Combinations are produced sub-grid by
// sub-grid; inside a sub-grid keys are sorted and the last key varies
// fastest, so the order depends only on key names and the given value order.
//
// All streams combinations lazily. At resolves a single index with mixed-radix
// arithmetic over the per-key value arrays, without materializing the rest.
package grid

import (
	"fmt"
	"iter"
	"math"

	"github.com/roach88/sweep/internal/ir"
)

// Combination assigns exactly one value to every key of a sub-grid.
type Combination map[string]ir.Value

// Grid is an immutable, index-addressable parameter grid.
// Safe for concurrent use once constructed.
type Grid struct {
	subs []subGrid
	size int
}

type subGrid struct {
	keys   []string     // sorted
	values [][]ir.Value // values[i] are the candidates for keys[i]
	size   int          // product of candidate counts, 1 when keys is empty
}

// New validates the sub-grids and builds a Grid.
//
// Every value must be an ir.Array with at least one scalar element. A bare
// scalar or string is rejected rather than treated as a sequence, and arrays
// of arrays or objects are rejected as multi-dimensional.
func New(subGrids ...map[string]ir.Value) (*Grid, error) {
	g := &Grid{subs: make([]subGrid, 0, len(subGrids))}

	for i, raw := range subGrids {
		sub, err := newSubGrid(raw)
		if err != nil {
			if len(subGrids) > 1 {
				return nil, fmt.Errorf("sub-grid %d: %w", i, err)
			}
			return nil, err
		}
		if g.size > math.MaxInt-sub.size {
			return nil, &MalformedGridError{Reason: "grid has more combinations than fit in an int"}
		}
		g.size += sub.size
		g.subs = append(g.subs, sub)
	}

	return g, nil
}

func newSubGrid(raw map[string]ir.Value) (subGrid, error) {
	keys := ir.Object(raw).SortedKeys()
	sub := subGrid{
		keys:   keys,
		values: make([][]ir.Value, len(keys)),
		size:   1,
	}

	for i, key := range keys {
		values, err := candidates(key, raw[key])
		if err != nil {
			return subGrid{}, err
		}
		if sub.size > math.MaxInt/len(values) {
			return subGrid{}, &MalformedGridError{Key: key, Reason: "grid has more combinations than fit in an int"}
		}
		sub.size *= len(values)
		sub.values[i] = values
	}

	return sub, nil
}

// candidates checks a single grid leaf and returns a private copy of it.
func candidates(key string, v ir.Value) ([]ir.Value, error) {
	arr, ok := v.(ir.Array)
	if !ok {
		switch v.(type) {
		case ir.String:
			return nil, &MalformedGridError{Key: key, Reason: "strings are not sequences; wrap a single value in a one-element list"}
		case ir.Object:
			return nil, &MalformedGridError{Key: key, Reason: "expected a list of values, got a mapping"}
		default:
			return nil, &MalformedGridError{Key: key, Reason: fmt.Sprintf("expected a list of values, got %T; wrap a single value in a one-element list", v)}
		}
	}
	if len(arr) == 0 {
		return nil, &MalformedGridError{Key: key, Reason: "needs to be a non-empty list"}
	}
	for i, elem := range arr {
		switch elem.(type) {
		case ir.Array:
			return nil, &MalformedGridError{Key: key, Reason: fmt.Sprintf("element %d is a list; parameter lists must be one-dimensional", i)}
		case ir.Object:
			return nil, &MalformedGridError{Key: key, Reason: fmt.Sprintf("element %d is a mapping; parameter values must be scalars", i)}
		case nil:
			return nil, &MalformedGridError{Key: key, Reason: fmt.Sprintf("element %d is missing", i)}
		}
	}
	return append([]ir.Value(nil), arr...), nil
}

// Len returns the total number of combinations across all sub-grids.
// An empty sub-grid contributes exactly one (empty) combination.
func (g *Grid) Len() int {
	return g.size
}

// SubGrids returns the number of sub-grids.
func (g *Grid) SubGrids() int {
	return len(g.subs)
}

// Keys returns the sorted keys of sub-grid i.
func (g *Grid) Keys(i int) []string {
	return append([]string(nil), g.subs[i].keys...)
}

// All yields every combination with its index, in enumeration order.
// Each yielded Combination is freshly allocated and owned by the caller.
func (g *Grid) All() iter.Seq2[int, Combination] {
	return func(yield func(int, Combination) bool) {
		idx := 0
		for _, sub := range g.subs {
			// Odometer over candidate offsets; the last key turns fastest.
			offsets := make([]int, len(sub.keys))
			for range sub.size {
				if !yield(idx, sub.combination(offsets)) {
					return
				}
				idx++
				for k := len(offsets) - 1; k >= 0; k-- {
					offsets[k]++
					if offsets[k] < len(sub.values[k]) {
						break
					}
					offsets[k] = 0
				}
			}
		}
	}
}

// At returns the combination All would yield at index.
func (g *Grid) At(index int) (Combination, error) {
	if index < 0 || index >= g.size {
		return nil, &IndexOutOfRangeError{Index: index, Len: g.size}
	}

	for _, sub := range g.subs {
		if index >= sub.size {
			index -= sub.size
			continue
		}

		// Walk keys in reverse so the fastest-varying key takes the low digit.
		offsets := make([]int, len(sub.keys))
		for k := len(sub.keys) - 1; k >= 0; k-- {
			n := len(sub.values[k])
			offsets[k] = index % n
			index /= n
		}
		return sub.combination(offsets), nil
	}

	// Unreachable: index < g.size guarantees a sub-grid matched.
	return nil, &IndexOutOfRangeError{Index: index, Len: g.size}
}

func (s subGrid) combination(offsets []int) Combination {
	c := make(Combination, len(s.keys))
	for k, key := range s.keys {
		c[key] = s.values[k][offsets[k]]
	}
	return c
}

// MalformedGridError reports a grid leaf that is not a usable value list.
type MalformedGridError struct {
	Key    string
	Reason string
}

func (e *MalformedGridError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("malformed parameter grid: %s", e.Reason)
	}
	return fmt.Sprintf("malformed parameter grid: %q: %s", e.Key, e.Reason)
}

// IndexOutOfRangeError reports an At index outside [0, Len).
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("grid index %d out of range (len %d)", e.Index, e.Len)
}
