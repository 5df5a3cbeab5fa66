package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// Embedded implements Dialect for the embedded single-file store, using
// SQLite's json1 extension (json_extract, json_each, json_set).
type Embedded struct{}

var _ Dialect = Embedded{}

func (Embedded) Name() string { return "embedded" }

func (Embedded) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Embedded) Placeholder(int) string { return "?" }

// QualifyTable folds schema into a name prefix since a single SQLite file
// has no real multi-schema support: "<schema>_<table>", or bare "<table>"
// when schema is empty.
func (e Embedded) QualifyTable(schema, table string) string {
	if schema == "" {
		return e.QuoteIdent(table)
	}
	return e.QuoteIdent(schema + "_" + table)
}

// EnsureSchema is a no-op: a single SQLite file has no real schema to
// create, since QualifyTable already folded schema into the table name.
func (Embedded) EnsureSchema(schema string) string { return "" }

// jsonKeyLiteral escapes key for embedding inside json1's own quoted
// bracket-name syntax ($."key"): the path mini-language, unlike SQL string
// literals, escapes an embedded " (and \ itself) with a backslash rather
// than by doubling it, so a doubled quote silently fails to match instead
// of erroring.
func jsonKeyLiteral(key string) string {
	key = strings.ReplaceAll(key, `\`, `\\`)
	return strings.ReplaceAll(key, `"`, `\"`)
}

// jsonPathExpr builds a json1 path expression. Keys are always emitted in
// double-quoted bracket form ($."key") rather than bare ($.key): a document
// key is arbitrary caller-controlled text (pathmodel's bare-key grammar
// only excludes "[" and "]"), and bare form would both break on keys
// containing "." and, unescaped, let a key break out of the single-quoted
// SQL literal this path is embedded in.
func jsonPathExpr(path []PathSegment) string {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range path {
		if seg.IsIndex {
			b.WriteString("[")
			b.WriteString(strconv.Itoa(seg.Index))
			b.WriteString("]")
		} else {
			b.WriteString(`."`)
			b.WriteString(jsonKeyLiteral(seg.Key))
			b.WriteString(`"`)
		}
	}
	return b.String()
}

func (Embedded) ExtractScalar(column string, path []PathSegment) string {
	if len(path) == 0 {
		return column
	}
	return fmt.Sprintf("json_extract(%s, '%s')", column, sqlStringLiteral(jsonPathExpr(path)))
}

func (Embedded) ExtractJSON(column string, path []PathSegment) string {
	return Embedded{}.ExtractScalar(column, path)
}

func (Embedded) IterateArray(column string, arrayPath []PathSegment, elemPath []PathSegment) string {
	arrExpr := Embedded{}.ExtractJSON(column, arrayPath)
	var elemExpr string
	if len(elemPath) == 0 {
		elemExpr = "je.value"
	} else {
		elemExpr = fmt.Sprintf("json_extract(je.value, '%s')", sqlStringLiteral(jsonPathExpr(elemPath)))
	}
	return fmt.Sprintf(
		"(CASE WHEN %s IS NULL THEN NULL ELSE (SELECT json_group_array(%s) FROM json_each(%s) je) END)",
		arrExpr, elemExpr, arrExpr,
	)
}

func (Embedded) IterateArrayObject(column string, arrayPath []PathSegment, fields map[string][]PathSegment) string {
	arrExpr := Embedded{}.ExtractJSON(column, arrayPath)
	names := sortedFieldNames(fields)
	var args strings.Builder
	for _, name := range names {
		fmt.Fprintf(&args, ", '%s', json_extract(je.value, '%s')", sqlStringLiteral(name), sqlStringLiteral(jsonPathExpr(fields[name])))
	}
	return fmt.Sprintf(
		"(CASE WHEN %s IS NULL THEN NULL ELSE (SELECT json_group_array(json_object(%s)) FROM json_each(%s) je) END)",
		arrExpr, strings.TrimPrefix(args.String(), ", "), arrExpr,
	)
}

func (Embedded) CastTimestamp(expr string) string {
	return fmt.Sprintf("datetime(%s)", expr)
}

// likeEscapeLiteral backslash-escapes "%", "_", and "\" so s can be embedded
// verbatim inside a LIKE pattern (paired with ESCAPE '\') and match only
// itself, with none of its own characters read as wildcards.
func likeEscapeLiteral(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '%', '_':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TablesNamedQuery finds every table in this single SQLite file whose name
// is either exactly table (the unschemaed case) or ends in "_"+table (the
// "<schema>_<table>" naming convention QualifyTable uses), returning each as
// an already-quoted identifier. table is escaped before being embedded in
// the LIKE pattern so an underscore already present in the table name (e.g.
// "orders_jan") is matched literally rather than read as a single-character
// wildcard, which would otherwise let an unrelated table with a different
// character in that position leak into the match.
func (Embedded) TablesNamedQuery(table string) (string, []any) {
	sql := `SELECT '"' || replace(name, '"', '""') || '"' FROM sqlite_master ` +
		`WHERE type = 'table' AND (name = ? OR name LIKE ? ESCAPE '\')`
	return sql, []any{table, "%\\_" + likeEscapeLiteral(table)}
}

func (Embedded) AllViewName(table string) string {
	return Embedded{}.QuoteIdent("all_" + table)
}

func (Embedded) EnsureViewNamespace() string { return "" }

func (Embedded) CreateOrReplaceView(viewName, selectSQL string) []string {
	return []string{
		fmt.Sprintf("DROP VIEW IF EXISTS %s", viewName),
		fmt.Sprintf("CREATE VIEW %s AS %s", viewName, selectSQL),
	}
}

func (Embedded) MergePatch(column string, setKeys []string, patchPlaceholders []string) string {
	if len(setKeys) == 0 {
		return column
	}
	var b strings.Builder
	b.WriteString("json_set(")
	b.WriteString(column)
	for i, k := range setKeys {
		p := jsonKeyPathLiteral(k)
		fmt.Fprintf(&b, ", '%s', json_extract(%s, '%s')", p, patchPlaceholders[i], p)
	}
	b.WriteString(")")
	return b.String()
}

// RemoveKeys chains json1's json_remove, one path argument per key.
func (Embedded) RemoveKeys(expr string, keys []string) string {
	if len(keys) == 0 {
		return expr
	}
	var b strings.Builder
	b.WriteString("json_remove(")
	b.WriteString(expr)
	for _, k := range keys {
		fmt.Fprintf(&b, ", '%s'", jsonKeyPathLiteral(k))
	}
	b.WriteString(")")
	return b.String()
}

// MatchingTableNames matches against the single SQLite file's flat table
// namespace, folding schema into the same "<schema>_" prefix QualifyTable
// uses, then strips that prefix back off in SQL so the returned name is the
// bare table name the caller asked for, not the schema-folded storage name.
func (Embedded) MatchingTableNames(schema, likePattern string) (string, []any) {
	if schema == "" {
		return `SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE ? ESCAPE '\'`, []any{likePattern}
	}
	prefix := schema + "_"
	sql := `SELECT substr(name, ?) FROM sqlite_master WHERE type = 'table' AND name LIKE ? ESCAPE '\'`
	return sql, []any{len(prefix) + 1, prefix + likePattern}
}
