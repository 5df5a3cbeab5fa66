package store

import (
	"context"
	"fmt"

	"github.com/unioslo/squril/internal/docval"
	"github.com/unioslo/squril/internal/pathmodel"
	"github.com/unioslo/squril/internal/sqlgen"
	"github.com/unioslo/squril/internal/squrilerr"
)

// TableInsert inserts docs (each a raw JSON document, preserved byte-for-
// byte) into table, creating the table and its audit table on first use.
// All docs in one call run inside a single transaction; any failure rolls
// back the whole batch (§4.3). primaryKey, when non-nil, is enforced as a
// unique index and is required for the document to later participate in
// table_restore.
func (d *Driver) TableInsert(ctx context.Context, table string, docs []string, primaryKey *pathmodel.Path) (err error) {
	if len(docs) == 0 {
		return nil
	}
	for _, doc := range docs {
		if _, verr := docval.UnmarshalValue([]byte(doc)); verr != nil {
			return squrilerr.NewValidationError(fmt.Sprintf("document is not valid JSON: %v", verr), "data", "")
		}
	}

	tx, err := d.Provider.Begin(ctx)
	if err != nil {
		return fmt.Errorf("table_insert %s: begin: %w", table, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = d.ensureTables(ctx, tx, table, primaryKey); err != nil {
		return err
	}

	qualified, err := sqlgen.QualifiedTable(d.Dialect, d.Config.Schema, table)
	if err != nil {
		return err
	}

	insertSQL := fmt.Sprintf("INSERT INTO %s (data) VALUES (%s)", qualified, d.Dialect.Placeholder(1))
	if d.Config.IdempotentInsert && primaryKey != nil {
		insertSQL = fmt.Sprintf(
			"INSERT INTO %s (data) VALUES (%s) ON CONFLICT DO NOTHING",
			qualified, d.Dialect.Placeholder(1),
		)
	}

	txnID := d.IDs.Generate()
	now := d.Clock.Now()
	var auditRows []auditRow

	for _, doc := range docs {
		affected, execErr := tx.Execute(ctx, insertSQL, []any{doc})
		if execErr != nil {
			if isUniqueViolation(execErr) {
				err = squrilerr.NewIntegrityError("primary key collision on insert", "")
			} else {
				err = squrilerr.NewBackendError(fmt.Sprintf("table_insert %s", table), execErr)
			}
			return err
		}
		if affected == 0 {
			// IdempotentInsert: conflicting document silently skipped.
			continue
		}
		if d.Config.AuditCreate {
			auditRows = append(auditRows, auditRow{
				Event:         EventCreate,
				Timestamp:     now,
				Identity:      d.Config.Requestor,
				IdentityName:  d.Config.RequestorName,
				TransactionID: txnID,
				Query:         "table_insert",
			})
		}
	}

	if err = d.writeAuditRows(ctx, tx, table, auditRows); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("table_insert %s: commit: %w", table, err)
		return err
	}
	return nil
}
