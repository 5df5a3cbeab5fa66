package store

import (
	"encoding/json"
	"fmt"

	"github.com/mattn/go-sqlite3"

	pqdriver "github.com/lib/pq"

	"github.com/unioslo/squril/internal/docval"
	"github.com/unioslo/squril/internal/pathmodel"
)

// toText coerces a scanned driver value for a TEXT/JSONB column into its
// string form. database/sql drivers disagree on the concrete type returned
// for *any destinations: go-sqlite3 yields string, lib/pq yields []byte.
func toText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// primaryKeyOf extracts the primary-key scalar from a document's raw JSON
// text, returning a string key stable enough for map-based deduplication
// plus the native Go value for parameter binding.
func primaryKeyOf(raw string, path pathmodel.Path) (key string, native any, err error) {
	val, err := docval.UnmarshalValue([]byte(raw))
	if err != nil {
		return "", nil, fmt.Errorf("primary key: %w", err)
	}
	pk := pathmodel.Eval(path, val)
	native = docval.AsGo(pk)
	if n, ok := native.(json.Number); ok {
		if i, ierr := n.Int64(); ierr == nil {
			native = i
		} else if f, ferr := n.Float64(); ferr == nil {
			native = f
		}
	}
	if s, ok := native.(string); ok {
		return docval.NormalizeNFC(s), native, nil
	}
	return fmt.Sprintf("%v", native), native, nil
}

// isUniqueViolation reports whether err is a primary-key/unique-index
// violation from either reference connection provider (§7 IntegrityError).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if asSqlite(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	var pqErr *pqdriver.Error
	if asPQ(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func asSqlite(err error, target *sqlite3.Error) bool {
	if e, ok := err.(sqlite3.Error); ok {
		*target = e
		return true
	}
	return false
}

func asPQ(err error, target **pqdriver.Error) bool {
	if e, ok := err.(*pqdriver.Error); ok {
		*target = e
		return true
	}
	return false
}
