package sqlgen

import (
	"fmt"
	"strings"

	"github.com/unioslo/squril/internal/dialect"
	"github.com/unioslo/squril/internal/docval"
	"github.com/unioslo/squril/internal/queryast"
)

// params accumulates bound parameter values and hands out dialect-correct
// placeholders as they're consumed.
type params struct {
	d      dialect.Dialect
	values []any
}

func (p *params) bind(v any) string {
	p.values = append(p.values, v)
	return p.d.Placeholder(len(p.values))
}

// LiteralToGo converts a parsed literal to its Go value, for callers outside
// this package that compile their own predicates against the same grammar
// (store's restore where= compiler compiles against audit columns rather
// than document paths, but shares this literal conversion).
func LiteralToGo(lit queryast.Literal) any { return literalToGo(lit) }

// GlobToLike converts this grammar's "*" wildcard into an escaped SQL LIKE
// pattern; see globToLike.
func GlobToLike(v any) any { return globToLike(v) }

func literalToGo(lit queryast.Literal) any {
	switch v := lit.(type) {
	case queryast.LitNull:
		return nil
	case queryast.LitString:
		return string(v)
	case queryast.LitInt:
		return int64(v)
	case queryast.LitFloat:
		return float64(v)
	case queryast.LitBool:
		return bool(v)
	default:
		return nil
	}
}

// compilePredicate renders a WhereExpr as "(<left> AND|OR <right>)" /
// a leaf comparison, left-associated exactly as parsed (§9: no implicit
// precedence).
func compilePredicate(d dialect.Dialect, column string, expr queryast.WhereExpr, p *params) (string, error) {
	switch e := expr.(type) {
	case queryast.Leaf:
		return compileLeaf(d, column, e, p)
	case queryast.Conj:
		left, err := compilePredicate(d, column, e.Left, p)
		if err != nil {
			return "", err
		}
		right, err := compilePredicate(d, column, e.Right, p)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s AND %s)", left, right), nil
	case queryast.Disj:
		left, err := compilePredicate(d, column, e.Left, p)
		if err != nil {
			return "", err
		}
		right, err := compilePredicate(d, column, e.Right, p)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s OR %s)", left, right), nil
	default:
		return "", fmt.Errorf("unknown predicate node %T", expr)
	}
}

func compileLeaf(d dialect.Dialect, column string, leaf queryast.Leaf, p *params) (string, error) {
	expr, err := pathExpr(d, column, leaf.Path)
	if err != nil {
		return "", err
	}

	var sql string
	switch leaf.Op {
	case queryast.OpEq:
		sql = fmt.Sprintf("%s = %s", expr, p.bind(literalToGo(leaf.Value)))
	case queryast.OpNeq:
		sql = fmt.Sprintf("%s != %s", expr, p.bind(literalToGo(leaf.Value)))
	case queryast.OpGt:
		sql = fmt.Sprintf("%s > %s", expr, p.bind(literalToGo(leaf.Value)))
	case queryast.OpGte:
		sql = fmt.Sprintf("%s >= %s", expr, p.bind(literalToGo(leaf.Value)))
	case queryast.OpLt:
		sql = fmt.Sprintf("%s < %s", expr, p.bind(literalToGo(leaf.Value)))
	case queryast.OpLte:
		sql = fmt.Sprintf("%s <= %s", expr, p.bind(literalToGo(leaf.Value)))
	case queryast.OpLike:
		sql = fmt.Sprintf("%s LIKE %s ESCAPE '\\'", expr, p.bind(globToLike(literalToGo(leaf.Value))))
	case queryast.OpIlike:
		// SQL LOWER() only folds ASCII case on both backends, so the pattern
		// side is additionally NFC-normalized and case-folded in Go before
		// binding. Documents are stored byte-for-byte (insert.go), so this
		// only resolves composed/decomposed mismatches when the stored text
		// itself happens to already be NFC, which is the common case for
		// text typed through normal input methods.
		sql = fmt.Sprintf("LOWER(%s) LIKE %s ESCAPE '\\'", expr, p.bind(globToLike(normalizeIlikeLiteral(leaf.Value))))
	case queryast.OpIn:
		list, ok := leaf.Value.(queryast.LitList)
		if !ok {
			return "", fmt.Errorf("in. requires a bracketed list literal")
		}
		placeholders := make([]string, len(list))
		for i, lit := range list {
			placeholders[i] = p.bind(literalToGo(lit))
		}
		sql = fmt.Sprintf("%s IN (%s)", expr, strings.Join(placeholders, ", "))
	case queryast.OpIs:
		sql = fmt.Sprintf("%s IS NULL", expr)
	default:
		return "", fmt.Errorf("unknown operator %q", leaf.Op)
	}

	if leaf.Not {
		sql = fmt.Sprintf("NOT (%s)", sql)
	}
	return sql, nil
}

// normalizeIlikeLiteral converts an ilike literal to its Go form, NFC-
// normalizing and case-folding string values.
func normalizeIlikeLiteral(lit queryast.Literal) any {
	v := literalToGo(lit)
	s, ok := v.(string)
	if !ok {
		return v
	}
	return docval.NormalizeForCompare(s)
}

// globToLike converts this grammar's "*" wildcard into a SQL LIKE pattern,
// backslash-escaping any literal "%", "_", or "\" already present in the
// value so they match themselves rather than being interpreted as LIKE
// metacharacters (compileLeaf pairs every LIKE/ILIKE it produces with an
// ESCAPE '\' clause).
func globToLike(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '%', '_':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '*':
			b.WriteByte('%')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
