package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/unioslo/squril/internal/dialect"
	"github.com/unioslo/squril/internal/sqlgen"
	"github.com/unioslo/squril/internal/squrilerr"
)

// renameTarget validates newName and returns the identifier an ALTER TABLE
// ... RENAME TO clause expects: the embedded dialect folds schema into the
// stored table name, so its rename target must carry the same folded
// prefix; the server dialect keeps tables and schemas separate, and RENAME
// TO only ever takes a bare (unqualified) name.
func renameTarget(d dialect.Dialect, schema, newName string) (string, error) {
	if _, err := sqlgen.QuoteIdent(d, newName); err != nil {
		return "", err
	}
	if d.Name() == "server" {
		return d.QuoteIdent(newName), nil
	}
	return d.QualifyTable(schema, newName), nil
}

// TableAlter renames table, and its "<table>_audit" counterpart if one
// exists, to newName (§9 supplemented feature, grounded on
// pysquril's GenericBackend.table_alter). Renaming an audit table directly
// is rejected, matching backends.py's OperationNotPermittedError.
func (d *Driver) TableAlter(ctx context.Context, table, newName string) (err error) {
	if strings.HasSuffix(table, "_audit") {
		return squrilerr.NewIntegrityError("audit tables cannot be altered directly", table)
	}
	if strings.HasSuffix(newName, "_audit") {
		return squrilerr.NewIntegrityError("tables cannot be renamed to an audit-table name", newName)
	}

	qualified, err := sqlgen.QualifiedTable(d.Dialect, d.Config.Schema, table)
	if err != nil {
		return err
	}
	newTarget, err := renameTarget(d.Dialect, d.Config.Schema, newName)
	if err != nil {
		return err
	}
	qualifiedAudit, err := sqlgen.QualifiedTable(d.Dialect, d.Config.Schema, d.auditTable(table))
	if err != nil {
		return err
	}
	newAuditTarget, err := renameTarget(d.Dialect, d.Config.Schema, d.auditTable(newName))
	if err != nil {
		return err
	}

	// The audit table is only created once the document table is first
	// written to (§3 Lifecycle); check it separately, before the mutating
	// transaction, since a failed ALTER TABLE on a backend that aborts the
	// whole transaction on any statement error (the server dialect) would
	// otherwise take the document table's rename down with it.
	hasAudit, err := d.tableExistsStandalone(ctx, d.auditTable(table))
	if err != nil {
		return err
	}

	tx, err := d.Provider.Begin(ctx)
	if err != nil {
		return fmt.Errorf("table_alter %s: begin: %w", table, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	renameSQL := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", qualified, newTarget)
	if _, execErr := tx.Execute(ctx, renameSQL, nil); execErr != nil {
		err = squrilerr.NewBackendError(fmt.Sprintf("table_alter %s: rename", table), execErr)
		return err
	}

	if hasAudit {
		renameAuditSQL := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", qualifiedAudit, newAuditTarget)
		if _, execErr := tx.Execute(ctx, renameAuditSQL, nil); execErr != nil {
			err = squrilerr.NewBackendError(fmt.Sprintf("table_alter %s: rename audit table", table), execErr)
			return err
		}
	}

	// Refresh both the old and new table name's "all.<table>" view: the old
	// view may now union zero, fewer, or (if another schema still has a
	// same-named table) the same instances, and the new name needs a view
	// of its own if none existed yet for it.
	if rerr := d.refreshAllView(ctx, tx, table); rerr != nil {
		err = rerr
		return err
	}
	if rerr := d.refreshAllView(ctx, tx, newName); rerr != nil {
		err = rerr
		return err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("table_alter %s: commit: %w", table, err)
		return err
	}
	return nil
}
