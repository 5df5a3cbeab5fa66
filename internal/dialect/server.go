package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// Server implements Dialect for the networked server backend, using
// PostgreSQL's jsonb operators (#>, #>>, jsonb_array_elements, jsonb_set).
type Server struct{}

var _ Dialect = Server{}

func (Server) Name() string { return "server" }

func (Server) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Server) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

// QualifyTable joins a real SQL schema and table name, or returns the bare
// table name when schema is empty (the connection's search_path applies).
func (s Server) QualifyTable(schema, table string) string {
	if schema == "" {
		return s.QuoteIdent(table)
	}
	return s.QuoteIdent(schema) + "." + s.QuoteIdent(table)
}

// EnsureSchema returns DDL to create the tenant schema if it doesn't
// already exist, or "" when schema is empty (the connection's search_path
// applies and no schema DDL is needed).
func (s Server) EnsureSchema(schema string) string {
	if schema == "" {
		return ""
	}
	return fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", s.QuoteIdent(schema))
}

// arrayLiteralElement quotes s as a PostgreSQL array-literal element,
// escaping backslash and double-quote per the array literal's own quoting
// rules (a document key can contain a comma, brace, or space, any of which
// would otherwise be parsed as array-literal structure rather than key
// text).
func arrayLiteralElement(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func jsonPathArrayLiteral(path []PathSegment) string {
	parts := make([]string, len(path))
	for i, seg := range path {
		if seg.IsIndex {
			parts[i] = strconv.Itoa(seg.Index)
		} else {
			parts[i] = arrayLiteralElement(seg.Key)
		}
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func (Server) ExtractScalar(column string, path []PathSegment) string {
	if len(path) == 0 {
		return column
	}
	return fmt.Sprintf("%s#>>'%s'", column, sqlStringLiteral(jsonPathArrayLiteral(path)))
}

func (Server) ExtractJSON(column string, path []PathSegment) string {
	if len(path) == 0 {
		return column
	}
	return fmt.Sprintf("%s#>'%s'", column, sqlStringLiteral(jsonPathArrayLiteral(path)))
}

func (Server) IterateArray(column string, arrayPath []PathSegment, elemPath []PathSegment) string {
	arrExpr := Server{}.ExtractJSON(column, arrayPath)
	var elemExpr string
	if len(elemPath) == 0 {
		elemExpr = "elem"
	} else {
		elemExpr = fmt.Sprintf("elem#>'%s'", sqlStringLiteral(jsonPathArrayLiteral(elemPath)))
	}
	return fmt.Sprintf(
		"(CASE WHEN %s IS NULL THEN NULL ELSE (SELECT jsonb_agg(%s) FROM jsonb_array_elements(%s) elem) END)",
		arrExpr, elemExpr, arrExpr,
	)
}

func (Server) IterateArrayObject(column string, arrayPath []PathSegment, fields map[string][]PathSegment) string {
	arrExpr := Server{}.ExtractJSON(column, arrayPath)
	names := sortedFieldNames(fields)
	var args strings.Builder
	for _, name := range names {
		fmt.Fprintf(&args, ", '%s', elem#>'%s'", sqlStringLiteral(name), sqlStringLiteral(jsonPathArrayLiteral(fields[name])))
	}
	return fmt.Sprintf(
		"(CASE WHEN %s IS NULL THEN NULL ELSE (SELECT jsonb_agg(jsonb_build_object(%s)) FROM jsonb_array_elements(%s) elem) END)",
		arrExpr, strings.TrimPrefix(args.String(), ", "), arrExpr,
	)
}

func (Server) CastTimestamp(expr string) string {
	return fmt.Sprintf("(%s)::timestamptz", expr)
}

// TablesNamedQuery finds every schema's instance of table via information_schema,
// returning each as an already-quoted, schema-qualified reference.
func (Server) TablesNamedQuery(table string) (string, []any) {
	sql := `SELECT quote_ident(table_schema) || '.' || quote_ident(table_name) ` +
		`FROM information_schema.tables WHERE table_name = $1`
	return sql, []any{table}
}

func (Server) AllViewName(table string) string {
	return Server{}.QuoteIdent("all") + "." + Server{}.QuoteIdent(table)
}

func (Server) EnsureViewNamespace() string {
	return `CREATE SCHEMA IF NOT EXISTS "all"`
}

func (Server) CreateOrReplaceView(viewName, selectSQL string) []string {
	return []string{fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s", viewName, selectSQL)}
}

func (Server) MergePatch(column string, setKeys []string, patchPlaceholders []string) string {
	if len(setKeys) == 0 {
		return column
	}
	expr := column
	for i, k := range setKeys {
		pathLit := sqlStringLiteral("{" + arrayLiteralElement(k) + "}")
		keyLit := sqlStringLiteral(k)
		expr = fmt.Sprintf("jsonb_set(%s, '%s', (%s->'%s'), true)", expr, pathLit, patchPlaceholders[i], keyLit)
	}
	return expr
}

// RemoveKeys chains jsonb's "-" key-delete operator, one key per step.
func (Server) RemoveKeys(expr string, keys []string) string {
	out := expr
	for _, k := range keys {
		out = fmt.Sprintf("(%s - '%s')", out, sqlStringLiteral(k))
	}
	return out
}

// MatchingTableNames matches table_name against likePattern within a real
// SQL schema, returning bare table names.
func (Server) MatchingTableNames(schema, likePattern string) (string, []any) {
	if schema == "" {
		schema = "public"
	}
	sql := `SELECT table_name FROM information_schema.tables ` +
		`WHERE table_schema = $1 AND table_name LIKE $2 ESCAPE '\'`
	return sql, []any{schema, likePattern}
}
