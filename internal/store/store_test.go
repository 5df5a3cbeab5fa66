package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unioslo/squril/internal/conn"
	"github.com/unioslo/squril/internal/dialect"
	"github.com/unioslo/squril/internal/pathmodel"
	"github.com/unioslo/squril/internal/squrilerr"
)

// fiveDocuments is the dataset used throughout pysquril's own query
// catalogue: a mix of scalars, arrays, nested objects, and one document
// with no "a" key at all.
var fiveDocuments = []string{
	`{"a": 1, "b": "yo", "c": [1, 2], "when": "2024-05-20T08:30:01.307111"}`,
	`{"a": 11, "b": "man", "c": [3, 3, 9], "when": "2024-05-21T10:49:31.227735"}`,
	`{"a": 9, "b": "yo", "d": {"e": 4}, "when": "2024-05-22T05:10:11.106601"}`,
	`{"x": [{"a": 0, "b": 1, "c": "meh"}, {"a": 77, "b": 99}], "when": "2024-05-22T09:29:01.307735"}`,
	`{"a": 0, "b": "y'all"}`,
}

func newTestDriver(t *testing.T, cfg Config, ids IDGenerator, clock Clock) (*Driver, *conn.SQLiteProvider) {
	t.Helper()
	provider, err := conn.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })
	return NewDriver(provider, dialect.Embedded{}, cfg, ids, clock), provider
}

func collectValues(t *testing.T, r *Result) [][]any {
	t.Helper()
	var out [][]any
	for r.Next() {
		vals := r.Values()
		cp := make([]any, len(vals))
		copy(cp, vals)
		out = append(out, cp)
	}
	require.NoError(t, r.Err())
	require.NoError(t, r.Close())
	return out
}

func TestTableInsertAndSelectWholeDocuments(t *testing.T) {
	d, _ := newTestDriver(t, Config{}, nil, nil)
	ctx := context.Background()
	require.NoError(t, d.TableInsert(ctx, "items", fiveDocuments, nil))

	res, err := d.TableSelect(ctx, "items", "")
	require.NoError(t, err)
	rows := collectValues(t, res)
	assert.Len(t, rows, 5)
}

func TestTableSelectFilterByEquality(t *testing.T) {
	d, _ := newTestDriver(t, Config{}, nil, nil)
	ctx := context.Background()
	require.NoError(t, d.TableInsert(ctx, "items", fiveDocuments, nil))

	res, err := d.TableSelect(ctx, "items", "select=a&where=b=eq.yo")
	require.NoError(t, err)
	rows := collectValues(t, res)
	require.Len(t, rows, 2)
	var as []any
	for _, r := range rows {
		as = append(as, toText(r[0]))
	}
	assert.ElementsMatch(t, []any{"1", "9"}, as)
}

func TestTableSelectGroupByCount(t *testing.T) {
	d, _ := newTestDriver(t, Config{}, nil, nil)
	ctx := context.Background()
	require.NoError(t, d.TableInsert(ctx, "items", fiveDocuments, nil))

	res, err := d.TableSelect(ctx, "items", "select=b,count(*)&group_by=b")
	require.NoError(t, err)
	rows := collectValues(t, res)
	counts := map[string]string{}
	for _, r := range rows {
		counts[toText(r[0])] = toText(r[1])
	}
	assert.Equal(t, "2", counts["yo"])
	assert.Equal(t, "1", counts["man"])
}

func TestTableSelectOrderDescending(t *testing.T) {
	d, _ := newTestDriver(t, Config{}, nil, nil)
	ctx := context.Background()
	require.NoError(t, d.TableInsert(ctx, "items", fiveDocuments, nil))

	res, err := d.TableSelect(ctx, "items", "select=a&where=a=gt.0&order=a.desc")
	require.NoError(t, err)
	rows := collectValues(t, res)
	require.Len(t, rows, 3)
	assert.Equal(t, "11", toText(rows[0][0]))
	assert.Equal(t, "9", toText(rows[1][0]))
	assert.Equal(t, "1", toText(rows[2][0]))
}

func TestTableSelectRangePagination(t *testing.T) {
	d, _ := newTestDriver(t, Config{}, nil, nil)
	ctx := context.Background()
	require.NoError(t, d.TableInsert(ctx, "items", fiveDocuments, nil))

	res, err := d.TableSelect(ctx, "items", "select=a&order=a.asc&range=0.1")
	require.NoError(t, err)
	rows := collectValues(t, res)
	require.Len(t, rows, 2)
}

func TestTableSelectWildcardSubpathProjection(t *testing.T) {
	d, _ := newTestDriver(t, Config{}, nil, nil)
	ctx := context.Background()
	require.NoError(t, d.TableInsert(ctx, "items", fiveDocuments, nil))

	res, err := d.TableSelect(ctx, "items", "select=x[*|a]&where=x=not.is.null")
	require.NoError(t, err)
	rows := collectValues(t, res)
	require.Len(t, rows, 1)
	assert.Equal(t, "[0,77]", toText(rows[0][0]))
}

func TestTableInsertRejectsInvalidJSON(t *testing.T) {
	d, _ := newTestDriver(t, Config{}, nil, nil)
	err := d.TableInsert(context.Background(), "items", []string{"not json"}, nil)
	require.Error(t, err)
	assert.True(t, squrilerr.IsValidationError(err))
}

func TestTableInsertEmptyDocsIsNoop(t *testing.T) {
	d, _ := newTestDriver(t, Config{}, nil, nil)
	require.NoError(t, d.TableInsert(context.Background(), "items", nil, nil))
}

func TestTableInsertWritesAuditRowWhenEnabled(t *testing.T) {
	fixedNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d, provider := newTestDriver(t, Config{AuditCreate: true, Requestor: "alice"},
		NewFixedGenerator("txn-1"), FixedClock{At: fixedNow})
	ctx := context.Background()
	require.NoError(t, d.TableInsert(ctx, "items", []string{`{"id": 1}`}, nil))

	var event, identity, txnID string
	row := provider.DB().QueryRow(`SELECT event, identity, transaction_id FROM "items_audit"`)
	require.NoError(t, row.Scan(&event, &identity, &txnID))
	assert.Equal(t, "create", event)
	assert.Equal(t, "alice", identity)
	assert.Equal(t, "txn-1", txnID)
}

func TestTableUpdateAppliesOnlySetKeysAndWritesDiff(t *testing.T) {
	d, provider := newTestDriver(t, Config{}, NewFixedGenerator("ins", "upd"), nil)
	ctx := context.Background()
	pk, err := pathmodel.Parse("id")
	require.NoError(t, err)
	require.NoError(t, d.TableInsert(ctx, "items", []string{`{"id": 1, "saying": "hi", "untouched": true}`}, &pk))

	require.NoError(t, d.TableUpdate(ctx, "items", "set=saying&where=id=eq.1", `{"saying": "bye", "untouched": false}`))

	res, err := d.TableSelect(ctx, "items", "where=id=eq.1")
	require.NoError(t, err)
	rows := collectValues(t, res)
	require.Len(t, rows, 1)
	assert.JSONEq(t, `{"id": 1, "saying": "bye", "untouched": true}`, toText(rows[0][0]))

	var diff, previous string
	row := provider.DB().QueryRow(`SELECT diff, previous FROM "items_audit" WHERE event = 'update'`)
	require.NoError(t, row.Scan(&diff, &previous))
	assert.JSONEq(t, `{"saying": "bye"}`, diff)
	assert.JSONEq(t, `{"id": 1, "saying": "hi", "untouched": true}`, previous)
}

func TestTableUpdateWithoutSetIsValidationError(t *testing.T) {
	d, _ := newTestDriver(t, Config{}, nil, nil)
	err := d.TableUpdate(context.Background(), "items", "where=id=eq.1", `{}`)
	require.Error(t, err)
	assert.True(t, squrilerr.IsValidationError(err))
}

func TestTableDeleteWithoutWhereRequiresConfirmation(t *testing.T) {
	d, _ := newTestDriver(t, Config{}, nil, nil)
	ctx := context.Background()
	require.NoError(t, d.TableInsert(ctx, "items", []string{`{"id": 1}`}, nil))
	err := d.TableDelete(ctx, "items", "", true)
	require.Error(t, err)
	assert.True(t, squrilerr.IsValidationError(err))
}

func TestTableDeleteRemovesMatchingRowsAndWritesAudit(t *testing.T) {
	d, provider := newTestDriver(t, Config{}, NewFixedGenerator("ins", "del"), nil)
	ctx := context.Background()
	require.NoError(t, d.TableInsert(ctx, "items", []string{`{"id": 1}`, `{"id": 2}`}, nil))

	require.NoError(t, d.TableDelete(ctx, "items", "where=id=eq.1", true))

	res, err := d.TableSelect(ctx, "items", "")
	require.NoError(t, err)
	rows := collectValues(t, res)
	assert.Len(t, rows, 1)

	var count int
	row := provider.DB().QueryRow(`SELECT COUNT(*) FROM "items_audit" WHERE event = 'delete'`)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)
}

func TestTableRestoreRoundTripAfterDelete(t *testing.T) {
	d, provider := newTestDriver(t, Config{}, NewFixedGenerator("ins", "del", "restore"), nil)
	ctx := context.Background()
	pk, err := pathmodel.Parse("id")
	require.NoError(t, err)
	require.NoError(t, d.TableInsert(ctx, "items", []string{`{"id": 1, "saying": "hi"}`}, &pk))
	require.NoError(t, d.TableDelete(ctx, "items", "where=id=eq.1", true))

	res, err := d.TableSelect(ctx, "items", "")
	require.NoError(t, err)
	assert.Empty(t, collectValues(t, res))

	require.NoError(t, d.TableRestore(ctx, "items", "restore&primary_key=id"))

	res, err = d.TableSelect(ctx, "items", "where=id=eq.1")
	require.NoError(t, err)
	rows := collectValues(t, res)
	require.Len(t, rows, 1)
	assert.JSONEq(t, `{"id": 1, "saying": "hi"}`, toText(rows[0][0]))

	var count int
	row := provider.DB().QueryRow(`SELECT COUNT(*) FROM "items_audit" WHERE event = 'create' AND transaction_id = 'restore'`)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)
}

func TestTableRestoreWithoutRestoreFlagIsValidationError(t *testing.T) {
	d, _ := newTestDriver(t, Config{}, nil, nil)
	err := d.TableRestore(context.Background(), "items", "primary_key=id")
	require.Error(t, err)
	assert.True(t, squrilerr.IsValidationError(err))
}

func TestTableRestoreWithoutMatchingAuditRowsIsAuditMissingError(t *testing.T) {
	d, _ := newTestDriver(t, Config{}, nil, nil)
	ctx := context.Background()
	require.NoError(t, d.TableInsert(ctx, "items", []string{`{"id": 1}`}, nil))
	err := d.TableRestore(ctx, "items", "restore&primary_key=id")
	require.Error(t, err)
	assert.True(t, squrilerr.IsAuditMissingError(err))
}

func TestTableSelectMixedAggregateWithoutGroupByIsValidationError(t *testing.T) {
	d, _ := newTestDriver(t, Config{}, nil, nil)
	_, err := d.TableSelect(context.Background(), "items", "select=sum(a),b")
	require.Error(t, err)
	assert.True(t, squrilerr.IsValidationError(err))
}

func TestTableSelectMissingLiteralIsParseError(t *testing.T) {
	d, _ := newTestDriver(t, Config{}, nil, nil)
	_, err := d.TableSelect(context.Background(), "items", "where=a=gt.")
	require.Error(t, err)
	assert.True(t, squrilerr.IsParseError(err))
}

func TestTableSelectInvertedRangeIsValidationError(t *testing.T) {
	d, _ := newTestDriver(t, Config{}, nil, nil)
	_, err := d.TableSelect(context.Background(), "items", "range=5.2")
	require.Error(t, err)
	assert.True(t, squrilerr.IsValidationError(err))
}
