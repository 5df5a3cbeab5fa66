package sqlgen

import (
	"fmt"

	"github.com/unioslo/squril/internal/dialect"
	"github.com/unioslo/squril/internal/pathmodel"
)

// PathExpr compiles p against column for d. Exported so callers outside this
// package (the driver's primary-key index DDL, restore's primary-key
// lookup) can reuse
// the same path compilation the generator uses for select/where/group_by,
// rather than re-deriving dialect JSON syntax.
func PathExpr(d dialect.Dialect, column string, p pathmodel.Path) (string, error) {
	return pathExpr(d, column, p)
}

// pathExpr compiles a single path into a SQL expression against column,
// using d. A path with no terminal selector yields a plain extraction; one
// ending in a wildcard yields an aggregated-array subquery; one ending in an
// indexed subpath yields a plain extraction of that element's subpath field.
func pathExpr(d dialect.Dialect, column string, p pathmodel.Path) (string, error) {
	prefix, wc, err := splitPath(p)
	if err != nil {
		return "", err
	}
	if wc == nil {
		return d.ExtractScalar(column, prefix), nil
	}

	arrayPath := append(append([]dialect.PathSegment{}, prefix...), dialect.Key(wc.key))
	if !wc.isWildcard {
		// Fixed index with a subpath: extract the subpath field from that
		// element directly - no aggregation needed.
		elemPath := append(append([]dialect.PathSegment{}, arrayPath...), dialect.Idx(wc.index))
		return indexedSubExpr(d, column, elemPath, wc.subPaths)
	}

	switch len(wc.subPaths) {
	case 0:
		return d.IterateArray(column, arrayPath, nil), nil
	case 1:
		subPath, err := relativeSegments(wc.subPaths[0])
		if err != nil {
			return "", err
		}
		return d.IterateArray(column, arrayPath, subPath), nil
	default:
		fields := make(map[string][]dialect.PathSegment, len(wc.subPaths))
		for _, raw := range wc.subPaths {
			segs, err := relativeSegments(raw)
			if err != nil {
				return "", err
			}
			fields[raw] = segs
		}
		return d.IterateArrayObject(column, arrayPath, fields), nil
	}
}

// indexedSubExpr handles "x[N|sub]": a fixed element, so no aggregation,
// just a scalar extraction of the subpath field. A fixed index with more
// than one subpath field ("x[N|sub1,sub2]") is rejected with an error.
func indexedSubExpr(d dialect.Dialect, column string, elemPath []dialect.PathSegment, subPaths []string) (string, error) {
	if len(subPaths) == 1 {
		rel, err := relativeSegments(subPaths[0])
		if err != nil {
			return "", err
		}
		return d.ExtractScalar(column, append(append([]dialect.PathSegment{}, elemPath...), rel...)), nil
	}
	return "", fmt.Errorf("path with a fixed index and multiple subpath fields (%v) is not supported", subPaths)
}

// relativeSegments parses a subpath string (one element of a "|a,b" list)
// as a dotted path relative to an array element, rejecting any further
// wildcard (multiple wildcards in one path are not supported, §4.2).
func relativeSegments(raw string) ([]dialect.PathSegment, error) {
	p, err := pathmodel.Parse(raw)
	if err != nil {
		return nil, err
	}
	segs, wc, err := splitPath(p)
	if err != nil {
		return nil, err
	}
	if wc != nil {
		return nil, fmt.Errorf("subpath %q: multiple wildcards in one path are not supported", raw)
	}
	return segs, nil
}
