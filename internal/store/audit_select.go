package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/unioslo/squril/internal/conn"
	"github.com/unioslo/squril/internal/queryparse"
	"github.com/unioslo/squril/internal/sqlgen"
	"github.com/unioslo/squril/internal/squrilerr"
)

// auditSelectColumns is the fixed column list of an audit row (§3), in the
// order TableSelectAudit projects and scans them.
var auditSelectColumns = []string{
	"event", "timestamp", "identity", "identity_name", "reason",
	"previous", "diff", "transaction_id", "query",
}

// AuditRow is one decoded row of an audit table, as returned by AuditResult.
type AuditRow struct {
	Event         string
	Timestamp     string
	Identity      string
	IdentityName  string
	Reason        string
	Previous      *string // raw JSON text, nil for create events
	Diff          *string // raw JSON text, nil for delete events
	TransactionID string
	Query         string
}

// AuditResult is the lazy row sequence returned by TableSelectAudit.
type AuditResult struct {
	cursor  conn.Cursor
	tx      conn.Tx
	table   string
	closed  bool
	current AuditRow
	err     error
}

// Next advances to the next audit row, returning false at end of sequence
// or on error (check Err after a false return).
func (r *AuditResult) Next() bool {
	if r.closed || !r.cursor.Next() {
		return false
	}
	var event, timestamp, identity, identityName, reason, previous, diff, txnID, query any
	if err := r.cursor.Scan(&event, &timestamp, &identity, &identityName, &reason, &previous, &diff, &txnID, &query); err != nil {
		r.err = fmt.Errorf("table_select_audit %s: scan: %w", r.table, err)
		return false
	}
	r.current = AuditRow{
		Event:         toText(event),
		Timestamp:     toText(timestamp),
		Identity:      toText(identity),
		IdentityName:  toText(identityName),
		Reason:        toText(reason),
		Previous:      toTextPtr(previous),
		Diff:          toTextPtr(diff),
		TransactionID: toText(txnID),
		Query:         toText(query),
	}
	return true
}

// Row returns the audit row scanned by the most recent Next call.
func (r *AuditResult) Row() AuditRow { return r.current }

// Err returns the first error encountered during iteration, if any,
// including a row-scan failure that the underlying cursor's own Err doesn't
// reflect since it doesn't abort the cursor itself.
func (r *AuditResult) Err() error {
	if r.err != nil {
		return r.err
	}
	if err := r.cursor.Err(); err != nil {
		return squrilerr.NewBackendError(fmt.Sprintf("table_select_audit %s", r.table), err)
	}
	return nil
}

// Close releases the cursor and commits the (read-only) transaction. Safe
// to call multiple times.
func (r *AuditResult) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	cerr := r.cursor.Close()
	if err := r.tx.Commit(); err != nil && cerr == nil {
		cerr = fmt.Errorf("table_select_audit %s: commit: %w", r.table, err)
	}
	return cerr
}

func toTextPtr(v any) *string {
	if v == nil {
		return nil
	}
	s := toText(v)
	return &s
}

// TableSelectAudit queries table's audit log (the "<table>_audit" table),
// filtering on audit columns via the same where= grammar TableRestore uses
// (§4.5, §9 supplemented feature). When table's own document table no
// longer exists and Config.BackupDays is set, rows older than
// now - BackupDays are implicitly excluded, mirroring pysquril's
// backup-cutoff pruning of orphaned audit tables
// (backends.py:_query_for_select, _audit_source_exists).
func (d *Driver) TableSelectAudit(ctx context.Context, table string, rawQuery string) (*AuditResult, error) {
	q, err := queryparse.Parse(rawQuery)
	if err != nil {
		return nil, err
	}

	auditTable := d.auditTable(table)
	qualifiedAudit, err := sqlgen.QualifiedTable(d.Dialect, d.Config.Schema, auditTable)
	if err != nil {
		return nil, err
	}

	ap := &auditParams{d: d.Dialect}
	var clauses []string
	if q.Where != nil {
		whereSQL, werr := compileAuditWhere(d.Dialect, q.Where, ap)
		if werr != nil {
			return nil, werr
		}
		clauses = append(clauses, whereSQL)
	}

	if d.Config.BackupDays != nil {
		exists, eerr := d.tableExistsStandalone(ctx, table)
		if eerr != nil {
			return nil, squrilerr.NewBackendError(fmt.Sprintf("table_select_audit %s: check source table", table), eerr)
		}
		if !exists {
			cutoff := d.Clock.Now().UTC().AddDate(0, 0, -*d.Config.BackupDays).Format("2006-01-02")
			clauses = append(clauses, fmt.Sprintf("timestamp >= %s", ap.bind(cutoff)))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(auditSelectColumns, ", "), qualifiedAudit)
	if len(clauses) > 0 {
		fmt.Fprintf(&b, " WHERE %s", strings.Join(clauses, " AND "))
	}
	b.WriteString(" ORDER BY timestamp ASC")

	tx, err := d.Provider.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("table_select_audit %s: begin: %w", table, err)
	}
	cursor, err := tx.Cursor(ctx, b.String(), ap.values)
	if err != nil {
		tx.Rollback()
		return nil, squrilerr.NewBackendError(fmt.Sprintf("table_select_audit %s", table), err)
	}
	return &AuditResult{cursor: cursor, tx: tx, table: auditTable}, nil
}
