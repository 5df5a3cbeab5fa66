package conn

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteProvider is a reference Provider for the embedded dialect, backed by
// a single-writer *sql.DB. It is a default implementation for testing, not a
// production pooling strategy (§1).
type SQLiteProvider struct {
	db *sql.DB
}

var _ Provider = (*SQLiteProvider)(nil)

// OpenSQLite opens (creating if absent) a SQLite database at path, applying
// the pragmas needed for single-writer durability: WAL, NORMAL synchronous,
// a busy timeout, and foreign keys on.
func OpenSQLite(path string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return &SQLiteProvider{db: db}, nil
}

// Close closes the underlying database handle.
func (p *SQLiteProvider) Close() error { return p.db.Close() }

// DB exposes the underlying handle for schema-creation DDL, which runs
// outside the per-call transaction model.
func (p *SQLiteProvider) DB() *sql.DB { return p.db }

// Begin acquires a serializable-or-stronger transaction (SQLite's default
// isolation under a single writer already satisfies this).
func (p *SQLiteProvider) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &sqlTx{tx: tx}, nil
}

// sqlTx adapts *sql.Tx to the Tx interface, shared between the sqlite and
// postgres providers since both ride on database/sql.
type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Execute(ctx context.Context, query string, params []any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *sqlTx) Cursor(ctx context.Context, query string, params []any) (Cursor, error) {
	rows, err := t.tx.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	return &sqlCursor{rows: rows}, nil
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

type sqlCursor struct {
	rows *sql.Rows
}

func (c *sqlCursor) Next() bool             { return c.rows.Next() }
func (c *sqlCursor) Scan(dest ...any) error { return c.rows.Scan(dest...) }
func (c *sqlCursor) Err() error             { return c.rows.Err() }
func (c *sqlCursor) Close() error           { return c.rows.Close() }
