// Package sqlgen compiles a validated queryast.Query plus a target
// dialect.Dialect into a parameterised SQL statement. All user literal
// values become bound parameters; no value is interpolated textually.
// Identifiers pass a conservative allow-list before being quoted for the
// dialect (§4.2, §9).
package sqlgen

import (
	"fmt"

	"github.com/unioslo/squril/internal/dialect"
	"github.com/unioslo/squril/internal/pathmodel"
)

// wildcardSpec describes the terminal selector of a path that needs
// subquery expansion: either "[*]"/"[*|sub]" or "[N|sub]". A bare "[N]"
// with no subpath is not terminal; it continues as an ordinary path
// segment, matching the source grammar (ArraySpecific without "|" behaves
// like a plain index hop, not a leaf selector).
type wildcardSpec struct {
	isWildcard bool // false means a fixed index with a subpath
	index      int
	key        string // the array-valued key this selector hangs off
	subPaths   []string
}

// splitPath separates a Path into the plain navigation prefix and, if
// present, its terminal wildcard/indexed-subpath selector. A selector
// (wildcard, or fixed-index-with-subpath) must be the last component.
func splitPath(p pathmodel.Path) (prefix []dialect.PathSegment, wc *wildcardSpec, err error) {
	for i, c := range p.Components {
		terminal := c.Selector == pathmodel.SelectorWildcard || (c.Selector == pathmodel.SelectorIndex && c.HasSubPath())
		if terminal {
			if i != len(p.Components)-1 {
				return nil, nil, fmt.Errorf("path %q: wildcard/subpath selector must be the last component", p.Raw)
			}
			return prefix, &wildcardSpec{
				isWildcard: c.Selector == pathmodel.SelectorWildcard,
				index:      c.Index,
				key:        c.Key,
				subPaths:   c.SubPaths,
			}, nil
		}
		switch c.Selector {
		case pathmodel.SelectorNone:
			prefix = append(prefix, dialect.Key(c.Key))
		case pathmodel.SelectorIndex:
			prefix = append(prefix, dialect.Key(c.Key), dialect.Idx(c.Index))
		}
	}
	return prefix, nil, nil
}

// subPathSegments converts a selector's comma-separated subpath keys into
// a dialect path: a single key yields a one-segment path, an empty key a nil
// path. Nothing in this package calls it; pathExpr resolves subpaths through
// relativeSegments instead.
func subPathSegments(key string) []dialect.PathSegment {
	if key == "" {
		return nil
	}
	return []dialect.PathSegment{dialect.Key(key)}
}
