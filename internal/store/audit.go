package store

import (
	"context"
	"fmt"
	"time"

	"github.com/unioslo/squril/internal/conn"
	"github.com/unioslo/squril/internal/sqlgen"
)

// Event names the kind of mutation an audit row records (§3).
type Event string

const (
	EventCreate Event = "create"
	EventRead   Event = "read"
	EventUpdate Event = "update"
	EventDelete Event = "delete"
)

// auditRow is one row to be inserted into "<table>_audit".
type auditRow struct {
	Event         Event
	Timestamp     time.Time
	Identity      string
	IdentityName  string
	Reason        string
	Previous      *string // raw JSON text, nil for create/read
	Diff          *string // raw JSON text; nil for plain create/delete/read, populated for update and for table_restore's create-branch (the full restored document)
	TransactionID string
	Query         string
}

// writeAuditRows inserts one row per entry, all sharing TransactionID,
// inside the same transaction as the mutation that produced them (§4.4:
// "audit rows for one call are committed atomically with the mutation").
func (d *Driver) writeAuditRows(ctx context.Context, tx conn.Tx, table string, rows []auditRow) error {
	if len(rows) == 0 {
		return nil
	}
	qualifiedAudit, err := sqlgen.QualifiedTable(d.Dialect, d.Config.Schema, d.auditTable(table))
	if err != nil {
		return err
	}
	for _, r := range rows {
		sql := fmt.Sprintf(
			`INSERT INTO %s (event, timestamp, identity, identity_name, reason, previous, diff, transaction_id, query) VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)`,
			qualifiedAudit,
			d.Dialect.Placeholder(1), d.Dialect.Placeholder(2), d.Dialect.Placeholder(3),
			d.Dialect.Placeholder(4), d.Dialect.Placeholder(5), d.Dialect.Placeholder(6),
			d.Dialect.Placeholder(7), d.Dialect.Placeholder(8), d.Dialect.Placeholder(9),
		)
		params := []any{
			string(r.Event),
			r.Timestamp,
			r.Identity,
			nullableString(r.IdentityName),
			nullableString(r.Reason),
			r.Previous,
			r.Diff,
			r.TransactionID,
			r.Query,
		}
		if _, err := tx.Execute(ctx, sql, params); err != nil {
			return fmt.Errorf("write audit row for %s: %w", table, err)
		}
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
