// Package dialect hides the JSON-operator differences between the two
// supported backends behind one strategy interface, so the SQL generator
// (package sqlgen) never branches on backend identity directly (§9: "all
// dialect-specific SQL snippets live behind an interface with named
// methods").
package dialect

import "strings"

// PathSegment is one step of a navigation path used to build an extraction
// expression: either an object key or a numeric array index.
type PathSegment struct {
	Key      string // object key; empty when Index is set
	IsIndex  bool
	Index    int
}

// sqlStringLiteral escapes s for embedding inside a single-quoted SQL
// string literal, shared by both dialects' path-expression builders since
// a document key is caller-controlled text that may itself contain a
// single quote.
func sqlStringLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// jsonKeyPathLiteral returns a single-segment json1 path addressing key,
// already escaped for direct embedding inside a single-quoted SQL string
// literal. Used by MergePatch, which patches named top-level keys rather
// than a full PathSegment chain.
func jsonKeyPathLiteral(key string) string {
	return sqlStringLiteral(`$."` + jsonKeyLiteral(key) + `"`)
}

// Key builds a bare-key PathSegment.
func Key(k string) PathSegment { return PathSegment{Key: k} }

// Idx builds an array-index PathSegment.
func Idx(i int) PathSegment { return PathSegment{IsIndex: true, Index: i} }

// sortedFieldNames returns the keys of fields in stable ascending order, so
// object-building SQL is deterministic across runs.
func sortedFieldNames(fields map[string][]PathSegment) []string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}

// Dialect is the strategy type implemented once per backend. The generator
// is otherwise dialect-free: every JSON-shaped SQL fragment it needs comes
// from one of these methods.
type Dialect interface {
	// Name identifies the dialect ("embedded" or "server").
	Name() string

	// QuoteIdent quotes a validated identifier (table, schema, column) for
	// this dialect.
	QuoteIdent(name string) string

	// QualifyTable joins an already-validated schema and table name into one
	// quoted table reference. The embedded dialect has no real multi-schema
	// support in a single file, so it folds schema into a name prefix; the
	// server dialect uses a genuine SQL schema.
	QualifyTable(schema, table string) string

	// EnsureSchema returns DDL (or "" if none is needed) to create schema
	// before QualifyTable's reference into it is used. The embedded dialect
	// never needs real schema DDL since QualifyTable only prefixes the table
	// name.
	EnsureSchema(schema string) string

	// Placeholder returns the bound-parameter placeholder for the n-th
	// parameter (1-indexed): "?" for the embedded dialect, "$n" for server.
	Placeholder(n int) string

	// ExtractScalar returns a SQL expression yielding the text value at
	// path (no wildcard) inside column, or SQL NULL if the path is absent.
	ExtractScalar(column string, path []PathSegment) string

	// ExtractJSON returns a SQL expression yielding the JSON-typed value at
	// path (no wildcard) inside column, used when the extracted value may
	// itself be an object/array (e.g. to test IS NULL before iterating).
	ExtractJSON(column string, path []PathSegment) string

	// IterateArray returns a SQL expression that iterates the JSON array at
	// arrayPath inside column, extracting elemPath (relative to each
	// element; nil/empty means the whole element) and aggregating the
	// results back into a single JSON array value, or SQL NULL if arrayPath
	// does not resolve to an array.
	IterateArray(column string, arrayPath []PathSegment, elemPath []PathSegment) string

	// IterateArrayObject is IterateArray for the "[*|sub1,sub2]" form: each
	// element contributes a JSON object keyed by the given field names, each
	// built from its own (already-dotted) relative path.
	IterateArrayObject(column string, arrayPath []PathSegment, fields map[string][]PathSegment) string

	// CastTimestamp wraps expr so it compares as a timestamp rather than
	// text, used for min_ts/max_ts and for ISO-8601 ordering.
	CastTimestamp(expr string) string

	// MergePatch returns a SQL expression to compute the new value of
	// column after merging the bound JSON patch parameter into it, writing
	// only the listed top-level keys. patchPlaceholders has exactly one
	// placeholder per setKeys entry (even though every one of them is bound
	// to the same patch value) so a positional dialect like the embedded
	// one, which can't reference one bound parameter twice by name, still
	// gets one placeholder per occurrence in the generated SQL.
	MergePatch(column string, setKeys []string, patchPlaceholders []string) string

	// RemoveKeys returns a SQL expression that drops the given top-level
	// keys from expr's JSON value. Used by table_restore to bring a row back
	// to a target state that lacks keys the current row has gained since
	// (§8 invariant: table_restore must reproduce the target document
	// exactly, not just patch the keys the target and current share).
	RemoveKeys(expr string, keys []string) string

	// TablesNamedQuery returns a query (plus its bound arguments) that yields
	// one already-quoted, already-qualified table reference per row, for
	// every existing instance of table across every schema. Used to maintain
	// the cross-schema "all" view (§9 supplemented feature).
	TablesNamedQuery(table string) (sql string, args []any)

	// AllViewName returns the qualified, quoted name of the cross-schema
	// view for table.
	AllViewName(table string) string

	// EnsureViewNamespace returns DDL (or "" if none is needed) to create
	// whatever namespace AllViewName's view lives in.
	EnsureViewNamespace() string

	// CreateOrReplaceView returns DDL that (re)defines viewName as selectSQL.
	CreateOrReplaceView(viewName, selectSQL string) []string

	// MatchingTableNames returns a query (plus its bound arguments) that
	// yields the bare (unqualified, unquoted) name of every table in schema
	// whose name matches the SQL LIKE pattern likePattern. Used by
	// TableSelectMany to resolve a "prefix_*" glob against the tables that
	// actually exist (§9 supplemented feature, grounded on
	// backends.py:table_select's "*"-branch).
	MatchingTableNames(schema, likePattern string) (sql string, args []any)
}
