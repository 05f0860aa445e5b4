package experiment

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/sweep/internal/grid"
	"github.com/roach88/sweep/internal/ir"
	"github.com/roach88/sweep/internal/keypath"
)

// Template lays out one directory level per swept parameter under a root:
//
//	{root}/{key1}_{placeholder1}/{key2}_{placeholder2}/...
//
// Keys are sorted. The literal prefix keeps the dotted key; the placeholder
// uses underscores (see keypath.Placeholder).
type Template struct {
	root string
	keys []string
}

// NewTemplate builds a template for the given flat keys.
func NewTemplate(root string, keys []string) Template {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	return Template{root: filepath.Clean(root), keys: sorted}
}

// Root returns the cleaned output root.
func (t Template) Root() string {
	return t.root
}

// Keys returns the sorted flat keys, one per directory level.
func (t Template) Keys() []string {
	return slices.Clone(t.keys)
}

// String returns the path with {placeholder} wildcards for scheduler rules.
func (t Template) String() string {
	parts := make([]string, 0, len(t.keys)+1)
	parts = append(parts, t.root)
	for _, key := range t.keys {
		parts = append(parts, key+"_{"+keypath.Placeholder(key)+"}")
	}
	return filepath.Join(parts...)
}

// Render substitutes a combination's values into the template. Every
// template key must be present in c.
//
// A value whose formatted form is empty or contains a path separator would
// change the directory depth, so it is rejected.
func (t Template) Render(c grid.Combination) (string, error) {
	parts := make([]string, 0, len(t.keys)+1)
	parts = append(parts, t.root)
	for _, key := range t.keys {
		v, ok := c[key]
		if !ok {
			return "", fmt.Errorf("combination has no value for %q", key)
		}
		s, err := ir.Format(v)
		if err != nil {
			return "", &grid.MalformedGridError{Key: key, Reason: err.Error()}
		}
		if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
			return "", &grid.MalformedGridError{Key: key, Reason: fmt.Sprintf("value %q cannot be used in a directory name", s)}
		}
		parts = append(parts, key+"_"+s)
	}
	return filepath.Join(parts...), nil
}
