// Package store is the backend driver: it owns the connection source,
// executes SQL compiled by sqlgen, creates tables on demand, and coordinates
// the audit/restore subsystem as one transaction per public call (§4.3-§4.5).
package store

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unioslo/squril/internal/conn"
	"github.com/unioslo/squril/internal/dialect"
	"github.com/unioslo/squril/internal/pathmodel"
	"github.com/unioslo/squril/internal/sqlgen"
)

//go:embed schema_embedded.sql
var schemaEmbeddedTemplate string

//go:embed schema_server.sql
var schemaServerTemplate string

// Config is the driver's per-instance configuration (§6): the tenant
// schema, the opaque caller identity recorded on every audit row, and the
// auditing/maintenance toggles. There is no ambient or global state; every
// Driver call carries these fields explicitly.
type Config struct {
	Schema        string
	Requestor     string
	RequestorName string

	// AuditCreate and AuditRead enable audit rows for table_insert and
	// table_select respectively. Off by default (§6).
	AuditCreate bool
	AuditRead   bool

	// IdempotentInsert, when true, turns a primary-key collision on insert
	// into a silent no-op instead of an IntegrityError. Off by default: the
	// spec's stricter behaviour is preserved unless a caller opts in.
	IdempotentInsert bool

	// MaintainAllView, when true, keeps a cross-schema view named
	// "all.<table>" (embedded: "all_<table>") up to date after every
	// table_insert, unioning every schema's instance of that table name so a
	// caller can table_select("all.<table>", ...) across tenants at once.
	MaintainAllView bool

	// BackupDays, when set, prunes TableSelectAudit results to rows newer
	// than now - BackupDays once the audit table's own source (document)
	// table no longer exists — an orphaned audit table is implicitly
	// treated as a time-boxed backup rather than queried in full (§9
	// supplemented feature, grounded on pysquril's
	// GenericBackend._audit_source_exists / _query_for_select).
	BackupDays *int
}

// IDGenerator allocates opaque identifiers for transaction and event rows.
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator generates RFC 4122 UUIDv7 identifiers: time-sortable, so
// transaction_id ordering in the audit table roughly tracks wall-clock order
// even before the timestamp column is consulted.
type UUIDGenerator struct{}

func (UUIDGenerator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined identifiers for deterministic tests.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator builds a FixedGenerator that yields tokens in order.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.tokens) {
		panic("store: FixedGenerator: all tokens exhausted")
	}
	tok := g.tokens[g.idx]
	g.idx++
	return tok
}

// Clock supplies the wall-clock timestamp recorded on audit rows.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, returning UTC wall-clock time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock returns the same instant on every call, for deterministic
// audit-row assertions in tests.
type FixedClock struct{ At time.Time }

func (c FixedClock) Now() time.Time { return c.At }

// Driver is the backend driver described by §4.3. One Driver serves one
// tenant schema against one dialect over one connection provider.
type Driver struct {
	Provider conn.Provider
	Dialect  dialect.Dialect
	Config   Config
	IDs      IDGenerator
	Clock    Clock
}

// NewDriver constructs a Driver. ids and clock default to UUIDGenerator and
// SystemClock respectively when nil, so production callers can omit them.
func NewDriver(provider conn.Provider, d dialect.Dialect, cfg Config, ids IDGenerator, clock Clock) *Driver {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Driver{Provider: provider, Dialect: d, Config: cfg, IDs: ids, Clock: clock}
}

func (d *Driver) auditTable(table string) string {
	return table + "_audit"
}

// compiler returns the sqlgen.Compiler for table, bound to this driver's
// schema and dialect.
func (d *Driver) compiler(table string) sqlgen.Compiler {
	return sqlgen.Compiler{Dialect: d.Dialect, Schema: d.Config.Schema, Table: table}
}

// ensureTables creates the document table and its audit table if they do
// not already exist, applying a unique index on primaryKey when supplied.
// Tables are created on first write demand (§3 Lifecycle).
func (d *Driver) ensureTables(ctx context.Context, tx conn.Tx, table string, primaryKey *pathmodel.Path) error {
	if schemaDDL := d.Dialect.EnsureSchema(d.Config.Schema); schemaDDL != "" {
		if _, err := tx.Execute(ctx, schemaDDL, nil); err != nil {
			return fmt.Errorf("ensure schema %s: %w", d.Config.Schema, err)
		}
	}

	qualified, err := sqlgen.QualifiedTable(d.Dialect, d.Config.Schema, table)
	if err != nil {
		return err
	}
	qualifiedAudit, err := sqlgen.QualifiedTable(d.Dialect, d.Config.Schema, d.auditTable(table))
	if err != nil {
		return err
	}

	indexName := fmt.Sprintf("%s_audit_ts_idx", table)
	tmpl := schemaEmbeddedTemplate
	if d.Dialect.Name() == "server" {
		tmpl = schemaServerTemplate
	}
	ddl := fmt.Sprintf(tmpl, qualified, qualifiedAudit, indexName)
	if _, err := tx.Execute(ctx, ddl, nil); err != nil {
		return fmt.Errorf("ensure tables %s: %w", table, err)
	}

	if primaryKey != nil {
		pkExpr, err := sqlgen.PathExpr(d.Dialect, "data", *primaryKey)
		if err != nil {
			return err
		}
		pkIndexName := fmt.Sprintf("%s_pk_idx", table)
		uniqueDDL := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s ((%s))", pkIndexName, qualified, pkExpr)
		if _, err := tx.Execute(ctx, uniqueDDL, nil); err != nil {
			return fmt.Errorf("ensure primary key index %s: %w", table, err)
		}

		// spec.md §6 requires the audit table indexed on "(previous->>primary_key)
		// when a primary key is configured". The restore scan (restore.go)
		// currently groups matching audit rows by primary key in Go rather
		// than filtering on this extraction in SQL, so this index isn't yet
		// on the restore scan's own hot path; it is kept as the documented
		// schema invariant and is available to any caller that does query
		// the audit table by primary key directly (e.g. via TableSelectAudit
		// with a where= clause naming it through the audit row's own
		// columns is not possible today, but a future direct lookup is).
		auditPkExpr, err := sqlgen.PathExpr(d.Dialect, "previous", *primaryKey)
		if err != nil {
			return err
		}
		auditPkIndexName := fmt.Sprintf("%s_audit_pk_idx", table)
		auditPkDDL := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s ((%s))", auditPkIndexName, qualifiedAudit, auditPkExpr)
		if _, err := tx.Execute(ctx, auditPkDDL, nil); err != nil {
			return fmt.Errorf("ensure audit primary key index %s: %w", table, err)
		}
	}

	// The restore scan (restore.go) filters on event and orders by
	// timestamp/transaction_id; index those, the columns it actually uses,
	// regardless of whether a primary key is configured (restore's
	// primary_key= comes from the call's own query, not from ensureTables'
	// declared primaryKey).
	auditEventIdxName := fmt.Sprintf("%s_audit_event_ts_idx", table)
	auditEventDDL := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (event, timestamp)", auditEventIdxName, qualifiedAudit)
	if _, err := tx.Execute(ctx, auditEventDDL, nil); err != nil {
		return fmt.Errorf("ensure audit event index %s: %w", table, err)
	}

	return d.refreshAllView(ctx, tx, table)
}

// refreshAllView recomputes the cross-schema "all.<table>" view (embedded:
// "all_<table>") as the union of every schema's instance of table, when
// Config.MaintainAllView is set (§9 supplemented feature, grounded on
// pysquril's GenericBackend._define_all_view).
func (d *Driver) refreshAllView(ctx context.Context, tx conn.Tx, table string) error {
	if !d.Config.MaintainAllView {
		return nil
	}
	query, args := d.Dialect.TablesNamedQuery(table)
	cur, err := tx.Cursor(ctx, query, args)
	if err != nil {
		return fmt.Errorf("refresh all view %s: list tables: %w", table, err)
	}
	var refs []string
	for cur.Next() {
		var ref string
		if serr := cur.Scan(&ref); serr != nil {
			cur.Close()
			return fmt.Errorf("refresh all view %s: scan: %w", table, serr)
		}
		refs = append(refs, ref)
	}
	cerr := cur.Err()
	cur.Close()
	if cerr != nil {
		return fmt.Errorf("refresh all view %s: iterate: %w", table, cerr)
	}
	if len(refs) == 0 {
		// No schema has an instance of table left (e.g. the last one was
		// just renamed away by TableAlter): drop the stale view rather than
		// leaving it pointing at a table that no longer exists under this
		// name. DROP VIEW IF EXISTS is standard SQL, valid on both dialects.
		dropSQL := fmt.Sprintf("DROP VIEW IF EXISTS %s", d.Dialect.AllViewName(table))
		if _, err := tx.Execute(ctx, dropSQL, nil); err != nil {
			return fmt.Errorf("refresh all view %s: drop stale: %w", table, err)
		}
		return nil
	}

	if ns := d.Dialect.EnsureViewNamespace(); ns != "" {
		if _, err := tx.Execute(ctx, ns, nil); err != nil {
			return fmt.Errorf("refresh all view %s: namespace: %w", table, err)
		}
	}
	selects := make([]string, len(refs))
	for i, ref := range refs {
		selects[i] = "SELECT * FROM " + ref
	}
	union := strings.Join(selects, " UNION ALL ")
	viewName := d.Dialect.AllViewName(table)
	for _, stmt := range d.Dialect.CreateOrReplaceView(viewName, union) {
		if _, err := tx.Execute(ctx, stmt, nil); err != nil {
			return fmt.Errorf("refresh all view %s: %w", table, err)
		}
	}
	return nil
}
