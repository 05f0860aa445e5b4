// Package merge recursively combines nested parameter objects.
//
// Sub-objects present on both sides are merged key by key so sibling
// settings survive. Any other key present on both sides is a conflict: the
// value from b is kept, and the dotted path is reported so the caller can
// refuse the result.
package merge

import (
	"slices"

	"github.com/roach88/sweep/internal/ir"
	"github.com/roach88/sweep/internal/keypath"
)

// Merge merges b into a copy of a. Neither input is modified.
//
// Returns the merged object and the sorted dotted paths of every conflicting
// key (nil when there are none).
//
//	Merge({"core": {"b": 1}}, {"core": {"out": "X"}})
//	  == {"core": {"b": 1, "out": "X"}}, nil
func Merge(a, b ir.Object) (ir.Object, []string) {
	merged := a.Clone()
	if merged == nil {
		merged = make(ir.Object, len(b))
	}

	var conflicts []string
	mergeInto(merged, b, "", &conflicts)
	slices.Sort(conflicts)
	return merged, conflicts
}

func mergeInto(dst, src ir.Object, prefix string, conflicts *[]string) {
	for _, key := range src.SortedKeys() {
		path := key
		if prefix != "" {
			path = prefix + keypath.Separator + key
		}

		existing, exists := dst[key]
		if !exists {
			dst[key] = ir.DeepCopy(src[key])
			continue
		}

		dstChild, dstIsObj := existing.(ir.Object)
		srcChild, srcIsObj := src[key].(ir.Object)
		if dstIsObj && srcIsObj {
			mergeInto(dstChild, srcChild, path, conflicts)
			continue
		}

		*conflicts = append(*conflicts, path)
		dst[key] = ir.DeepCopy(src[key])
	}
}
