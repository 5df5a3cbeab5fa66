package store

import (
	"context"
	"fmt"

	"github.com/unioslo/squril/internal/conn"
	"github.com/unioslo/squril/internal/docval"
	"github.com/unioslo/squril/internal/queryast"
	"github.com/unioslo/squril/internal/queryparse"
	"github.com/unioslo/squril/internal/squrilerr"
)

// Result is the lazy row sequence returned by TableSelect. It owns the
// cursor and the transaction it was acquired from; the caller must call
// Close when done, including on early abandonment, to release the
// connection (§5).
type Result struct {
	ctx         context.Context
	cursor      conn.Cursor
	tx          conn.Tx
	driver      *Driver
	table       string
	query       *queryast.Query
	rawQuery    string
	columnCount int
	txnID       string
	closed      bool
	current     []any
	err         error
}

// Next advances to the next row, returning false at end of the sequence or
// on error (check Err after a false return).
func (r *Result) Next() bool {
	if r.closed {
		return false
	}
	if !r.cursor.Next() {
		return false
	}
	dest := make([]any, r.columnCount)
	ptrs := make([]any, r.columnCount)
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := r.cursor.Scan(ptrs...); err != nil {
		r.current = nil
		r.err = fmt.Errorf("table_select %s: scan: %w", r.table, err)
		return false
	}
	r.current = dest
	if r.driver.Config.AuditRead && len(r.query.Select) == 0 {
		row := auditRow{
			Event:         EventRead,
			Timestamp:     r.driver.Clock.Now(),
			Identity:      r.driver.Config.Requestor,
			IdentityName:  r.driver.Config.RequestorName,
			Reason:        r.query.Message,
			TransactionID: r.txnID,
			Query:         r.rawQuery,
		}
		if err := r.driver.writeAuditRows(r.ctx, r.tx, r.table, []auditRow{row}); err != nil {
			r.current = nil
			r.err = err
			return false
		}
	}
	return true
}

// Values returns the columns scanned by the most recent Next call.
func (r *Result) Values() []any { return r.current }

// Document decodes the current row as a full document. Valid only for
// queries with no select= clause (where the projection is the raw data
// column).
func (r *Result) Document() (docval.Value, error) {
	if len(r.query.Select) != 0 {
		return nil, fmt.Errorf("table_select %s: Document called on a projected query", r.table)
	}
	raw := toText(r.current[0])
	return docval.UnmarshalValue([]byte(raw))
}

// Err returns the first error encountered during iteration, if any,
// including a row-scan failure or a failed read-audit write, neither of
// which the underlying cursor's own Err reflects since they don't abort the
// cursor itself.
func (r *Result) Err() error {
	if r.err != nil {
		return r.err
	}
	if err := r.cursor.Err(); err != nil {
		return squrilerr.NewBackendError(fmt.Sprintf("table_select %s", r.table), err)
	}
	return nil
}

// Close releases the cursor and commits the transaction (a no-op mutation
// as far as the database is concerned, but required to release any audit
// rows written during iteration). Safe to call multiple times.
func (r *Result) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	cerr := r.cursor.Close()
	if err := r.tx.Commit(); err != nil && cerr == nil {
		cerr = fmt.Errorf("table_select %s: commit: %w", r.table, err)
	}
	return cerr
}

// TableSelect parses rawQuery, compiles it to SELECT, and returns a lazy
// result over the matching rows (§4.3). The caller owns the returned
// Result and must Close it.
func (d *Driver) TableSelect(ctx context.Context, table string, rawQuery string) (*Result, error) {
	q, err := queryparse.Parse(rawQuery)
	if err != nil {
		return nil, err
	}
	sql, params, err := d.compiler(table).CompileSelect(q)
	if err != nil {
		return nil, err
	}

	tx, err := d.Provider.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("table_select %s: begin: %w", table, err)
	}
	cursor, err := tx.Cursor(ctx, sql, params)
	if err != nil {
		tx.Rollback()
		return nil, squrilerr.NewBackendError(fmt.Sprintf("table_select %s", table), err)
	}

	columnCount := len(q.Select)
	if columnCount == 0 {
		columnCount = 1
	}

	var txnID string
	if d.Config.AuditRead {
		txnID = d.IDs.Generate()
	}

	return &Result{
		ctx:         ctx,
		cursor:      cursor,
		tx:          tx,
		driver:      d,
		table:       table,
		query:       q,
		rawQuery:    rawQuery,
		columnCount: columnCount,
		txnID:       txnID,
	}, nil
}
