package conn

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresProvider is a reference Provider for the server dialect, backed by
// database/sql over lib/pq. Like SQLiteProvider, it is a default test
// implementation, not production pooling (§1): a real deployment brings its
// own Provider, typically wrapping pgxpool.
type PostgresProvider struct {
	db *sql.DB
}

var _ Provider = (*PostgresProvider)(nil)

// OpenPostgres opens a connection pool against dsn (a libpq connection
// string).
func OpenPostgres(dsn string) (*PostgresProvider, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresProvider{db: db}, nil
}

// Close closes the underlying connection pool.
func (p *PostgresProvider) Close() error { return p.db.Close() }

// DB exposes the underlying handle for schema-creation DDL.
func (p *PostgresProvider) DB() *sql.DB { return p.db }

// Begin acquires a serializable transaction.
func (p *PostgresProvider) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &sqlTx{tx: tx}, nil
}
