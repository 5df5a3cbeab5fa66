// Package squril turns a compact URI-style query string into SQL against a
// single-column JSON document table, and journals every mutation to a
// companion audit table so prior document states can be reconstructed and
// selectively restored.
//
// Two dialects are supported: Embedded, for a single-file SQLite/json1
// store, and Server, for a networked PostgreSQL/jsonb store. Callers supply
// their own connection Provider; acquiring and pooling connections is the
// caller's responsibility.
package squril

import (
	"context"

	"github.com/unioslo/squril/internal/conn"
	"github.com/unioslo/squril/internal/dialect"
	"github.com/unioslo/squril/internal/pathmodel"
	"github.com/unioslo/squril/internal/squrilerr"
	"github.com/unioslo/squril/internal/store"
)

// Provider yields transactional handles for the store to run generated SQL
// against. Acquiring/pooling connections is outside this library's scope; a
// production caller typically wraps a real pool (e.g. pgxpool) behind this
// interface. SQLiteProvider and PostgresProvider are minimal reference
// implementations over database/sql, used by this module's tests and not
// a supported deployment path.
type Provider = conn.Provider

// Tx is a transactional handle acquired from a Provider.
type Tx = conn.Tx

// Cursor is a lazy row iterator returned by Tx.Cursor.
type Cursor = conn.Cursor

// SQLiteProvider is the reference Provider for the Embedded dialect.
type SQLiteProvider = conn.SQLiteProvider

// PostgresProvider is the reference Provider for the Server dialect.
type PostgresProvider = conn.PostgresProvider

// OpenSQLite opens (creating if absent) a SQLite database at path.
func OpenSQLite(path string) (*SQLiteProvider, error) { return conn.OpenSQLite(path) }

// OpenPostgres opens a connection pool against dsn, a libpq connection string.
func OpenPostgres(dsn string) (*PostgresProvider, error) { return conn.OpenPostgres(dsn) }

// Dialect hides the JSON-operator differences between backends. Pass
// Embedded() or Server() to New; a caller never needs to touch the
// interface's methods directly.
type Dialect = dialect.Dialect

// Embedded selects the SQLite/json1 dialect.
func Embedded() Dialect { return dialect.Embedded{} }

// Server selects the PostgreSQL/jsonb dialect.
func Server() Dialect { return dialect.Server{} }

// Config is a Store's per-instance configuration: the tenant schema, the
// opaque caller identity recorded on every audit row, and the
// auditing/maintenance toggles.
type Config = store.Config

// Path is a parsed document path, as produced by ParsePath or accepted as
// the optional primary_key argument to TableInsert.
type Path = pathmodel.Path

// ParsePath parses a dotted path string such as "a.b[0]" or "x[*|a,b]".
func ParsePath(raw string) (Path, error) { return pathmodel.Parse(raw) }

// Result is the lazy row sequence returned by TableSelect. The caller must
// call Close when done, including on early abandonment, to release the
// underlying connection.
type Result = store.Result

// IDGenerator allocates opaque identifiers for transaction and audit rows.
type IDGenerator = store.IDGenerator

// Clock supplies the wall-clock timestamp recorded on audit rows.
type Clock = store.Clock

// FixedClock and FixedGenerator let a caller pin the Store's notion of time
// and identity allocation, for reproducible tests.
type (
	FixedClock     = store.FixedClock
	FixedGenerator = store.FixedGenerator
)

// NewFixedGenerator builds a FixedGenerator that yields tokens in order.
func NewFixedGenerator(tokens ...string) *FixedGenerator { return store.NewFixedGenerator(tokens...) }

// Option customizes a Store at construction time.
type Option func(*store.Driver)

// WithIDGenerator overrides the default UUIDv7 transaction-id allocator.
func WithIDGenerator(g IDGenerator) Option {
	return func(d *store.Driver) { d.IDs = g }
}

// WithClock overrides the default system clock used to timestamp audit rows.
func WithClock(c Clock) Option {
	return func(d *store.Driver) { d.Clock = c }
}

// Store is one tenant's handle onto a document table family: every public
// method parses its query argument, compiles it against d, and runs it
// inside a transaction acquired from provider.
type Store struct {
	driver *store.Driver
}

// New constructs a Store bound to provider and dialect d, configured by cfg.
func New(provider Provider, d Dialect, cfg Config, opts ...Option) *Store {
	driver := store.NewDriver(provider, d, cfg, nil, nil)
	for _, opt := range opts {
		opt(driver)
	}
	return &Store{driver: driver}
}

// TableInsert inserts docs, each a raw JSON document, into table, creating
// the table and its audit table on first use. All docs run inside a single
// transaction; any failure rolls back the whole batch. primaryKey, when
// non-nil, is enforced as a unique index and required for the document to
// later participate in TableRestore.
func (s *Store) TableInsert(ctx context.Context, table string, docs []string, primaryKey *Path) error {
	return s.driver.TableInsert(ctx, table, docs, primaryKey)
}

// TableSelect parses query, compiles it to SELECT, and returns a lazy
// Result over the matching rows. The caller owns the returned Result and
// must Close it.
func (s *Store) TableSelect(ctx context.Context, table, query string) (*Result, error) {
	return s.driver.TableSelect(ctx, table, query)
}

// TableUpdate parses query (which must carry a non-empty set= clause),
// applies patch to every matching row, and writes one update audit row per
// affected document.
func (s *Store) TableUpdate(ctx context.Context, table, query, patch string) error {
	return s.driver.TableUpdate(ctx, table, query, patch)
}

// TableDelete deletes rows matching query and writes one delete audit row
// per removed document. requireWhere rejects a query with no where= clause,
// protecting against an accidental mass delete.
func (s *Store) TableDelete(ctx context.Context, table, query string, requireWhere bool) error {
	return s.driver.TableDelete(ctx, table, query, requireWhere)
}

// TableRestore reverses audit events for table. query must carry the bare
// restore flag and a primary_key= clause, optionally narrowed by a where=
// clause matching audit columns (identity, timestamp, transaction_id, ...).
func (s *Store) TableRestore(ctx context.Context, table, query string) error {
	return s.driver.TableRestore(ctx, table, query)
}

// TableAlter renames table, and its audit counterpart if one exists, to
// newName. Renaming an audit table directly, or onto an audit-table-shaped
// name, is rejected.
func (s *Store) TableAlter(ctx context.Context, table, newName string) error {
	return s.driver.TableAlter(ctx, table, newName)
}

// ManyResult is the lazy row sequence returned by TableSelectMany, unioning
// each matched table's rows in turn.
type ManyResult = store.ManyResult

// TableSelectMany resolves tableSpec against a "prefix_*" glob or a
// comma-joined explicit list of table names, and runs query against the
// union of their rows.
func (s *Store) TableSelectMany(ctx context.Context, tableSpec, query string) (*ManyResult, error) {
	return s.driver.TableSelectMany(ctx, tableSpec, query)
}

// AuditResult is the lazy row sequence returned by TableSelectAudit.
type AuditResult = store.AuditResult

// AuditRow is one decoded row of an audit table.
type AuditRow = store.AuditRow

// TableSelectAudit queries table's audit log directly, filtered by the same
// where= grammar TableRestore accepts against audit columns.
func (s *Store) TableSelectAudit(ctx context.Context, table, query string) (*AuditResult, error) {
	return s.driver.TableSelectAudit(ctx, table, query)
}

// QueryError is the single error type returned by this package's public API.
type QueryError = squrilerr.QueryError

// ErrorKind categorizes a QueryError.
type ErrorKind = squrilerr.Kind

// Error kind constants, mirroring squrilerr.Kind.
const (
	KindParse        = squrilerr.KindParse
	KindValidation   = squrilerr.KindValidation
	KindBackend      = squrilerr.KindBackend
	KindAuditMissing = squrilerr.KindAuditMissing
	KindIntegrity    = squrilerr.KindIntegrity
)

// IsParseError reports whether err is (or wraps) a parse error.
func IsParseError(err error) bool { return squrilerr.IsParseError(err) }

// IsValidationError reports whether err is (or wraps) a validation error.
func IsValidationError(err error) bool { return squrilerr.IsValidationError(err) }

// IsBackendError reports whether err is (or wraps) a backend error.
func IsBackendError(err error) bool { return squrilerr.IsBackendError(err) }

// IsAuditMissingError reports whether err is (or wraps) an audit-missing error.
func IsAuditMissingError(err error) bool { return squrilerr.IsAuditMissingError(err) }

// IsIntegrityError reports whether err is (or wraps) an integrity error.
func IsIntegrityError(err error) bool { return squrilerr.IsIntegrityError(err) }
