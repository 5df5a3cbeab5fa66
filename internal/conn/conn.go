// Package conn defines the connection-provider contract the store driver
// consumes (§6) and ships minimal sqlite3/lib/pq-backed implementations used
// by this module's own tests. Acquiring/pooling connections in production is
// explicitly out of scope (§1); these implementations exist to exercise the
// dialect-strategy code end to end, not as a supported deployment path.
package conn

import "context"

// Row is the narrow row-scanning surface a Cursor exposes, matching
// database/sql.Rows closely enough that both backing implementations below
// can satisfy it directly.
type Row interface {
	Scan(dest ...any) error
}

// Cursor is a lazy row iterator. The caller must call Close when done,
// including on early abandonment; Next returning false also closes the row
// set. The underlying connection stays held by the Tx until it is committed
// or rolled back.
type Cursor interface {
	Next() bool
	Row
	Err() error
	Close() error
}

// Tx is a transactional handle acquired from a Provider. All generated SQL
// for one public driver call runs against a single Tx.
type Tx interface {
	// Execute runs a non-row-returning statement, returning the number of
	// affected rows.
	Execute(ctx context.Context, sql string, params []any) (rowsAffected int64, err error)

	// Cursor runs a row-returning statement and returns a lazy iterator.
	Cursor(ctx context.Context, sql string, params []any) (Cursor, error)

	Commit() error
	Rollback() error
}

// Provider yields transactional handles. The core treats it as opaque;
// dialect selection is a separate constructor argument to the store driver.
type Provider interface {
	Begin(ctx context.Context) (Tx, error)
}
