package store

import (
	"context"
	"fmt"
)

// tableExistsStandalone reports whether table currently exists, using its
// own short-lived transaction so a negative result (which on some backends
// can only be observed by a failed catalog probe) never interferes with a
// separate, subsequent write transaction. Grounded on pysquril's pattern of
// probing for a table's existence by trying an operation against it and
// treating a "no such table"/"undefined table" failure as a plain false
// (backends.py:_audit_source_exists, table_restore's table_exists probe).
func (d *Driver) tableExistsStandalone(ctx context.Context, table string) (bool, error) {
	tx, err := d.Provider.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("check table %s exists: begin: %w", table, err)
	}
	defer tx.Rollback()

	query, args := d.Dialect.TablesNamedQuery(table)
	cur, err := tx.Cursor(ctx, query, args)
	if err != nil {
		return false, fmt.Errorf("check table %s exists: %w", table, err)
	}
	defer cur.Close()

	exists := cur.Next()
	if err := cur.Err(); err != nil {
		return false, fmt.Errorf("check table %s exists: %w", table, err)
	}
	return exists, nil
}
