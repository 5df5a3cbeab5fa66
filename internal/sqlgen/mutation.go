package sqlgen

import (
	"fmt"
	"strings"

	"github.com/unioslo/squril/internal/queryast"
)

// CompileUpdate compiles q (which must carry a non-empty Set clause) plus a
// caller-supplied JSON patch parameter into an UPDATE statement that writes
// only the listed top-level keys (§4.2 mutation shapes).
func (c Compiler) CompileUpdate(q *queryast.Query, patchJSON string) (string, []any, error) {
	if err := queryast.Validate(q); err != nil {
		return "", nil, err
	}
	if len(q.Set) == 0 {
		return "", nil, squrilerrMissingSet()
	}
	table, err := c.qualifiedTable()
	if err != nil {
		return "", nil, err
	}
	p := &params{d: c.Dialect}
	patchPlaceholders := make([]string, len(q.Set))
	for i := range q.Set {
		patchPlaceholders[i] = p.bind(patchJSON)
	}
	setExpr := c.Dialect.MergePatch("data", q.Set, patchPlaceholders)

	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s SET data = %s", table, setExpr)
	if q.Where != nil {
		whereSQL, err := compilePredicate(c.Dialect, "data", q.Where, p)
		if err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&b, " WHERE %s", whereSQL)
	}
	return b.String(), p.values, nil
}

// CompileDelete compiles q into a DELETE statement. requireWhere enforces
// §4.2: "where clause is required unless the call site explicitly confirms
// mass-delete".
func (c Compiler) CompileDelete(q *queryast.Query, requireWhere bool) (string, []any, error) {
	if err := queryast.Validate(q); err != nil {
		return "", nil, err
	}
	if requireWhere && q.Where == nil {
		return "", nil, squrilerrMassDelete()
	}
	table, err := c.qualifiedTable()
	if err != nil {
		return "", nil, err
	}
	p := &params{d: c.Dialect}
	var b strings.Builder
	fmt.Fprintf(&b, "DELETE FROM %s", table)
	if q.Where != nil {
		whereSQL, err := compilePredicate(c.Dialect, "data", q.Where, p)
		if err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&b, " WHERE %s", whereSQL)
	}
	return b.String(), p.values, nil
}
