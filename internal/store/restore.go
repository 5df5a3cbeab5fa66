package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/unioslo/squril/internal/conn"
	"github.com/unioslo/squril/internal/dialect"
	"github.com/unioslo/squril/internal/docval"
	"github.com/unioslo/squril/internal/pathmodel"
	"github.com/unioslo/squril/internal/queryast"
	"github.com/unioslo/squril/internal/queryparse"
	"github.com/unioslo/squril/internal/sqlgen"
	"github.com/unioslo/squril/internal/squrilerr"
)

// auditColumns are the audit-row fields a restore where= clause may filter
// on (§4.5, §9 open question: restore where addresses audit content, not
// document fields).
var auditColumns = map[string]string{
	"identity":       "identity",
	"identity_name":  "identity_name",
	"reason":         "reason",
	"event":          "event",
	"transaction_id": "transaction_id",
	"timestamp":      "timestamp",
	"query":          "query",
}

type auditParams struct {
	d      dialect.Dialect
	values []any
}

func (p *auditParams) bind(v any) string {
	p.values = append(p.values, v)
	return p.d.Placeholder(len(p.values))
}

// compileAuditWhere compiles a where expression against the audit table's
// own columns (identity, timestamp, transaction_id, ...), rejecting any
// path that doesn't name one of them.
func compileAuditWhere(d dialect.Dialect, expr queryast.WhereExpr, p *auditParams) (string, error) {
	switch e := expr.(type) {
	case queryast.Leaf:
		return compileAuditLeaf(e, p)
	case queryast.Conj:
		left, err := compileAuditWhere(d, e.Left, p)
		if err != nil {
			return "", err
		}
		right, err := compileAuditWhere(d, e.Right, p)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s AND %s)", left, right), nil
	case queryast.Disj:
		left, err := compileAuditWhere(d, e.Left, p)
		if err != nil {
			return "", err
		}
		right, err := compileAuditWhere(d, e.Right, p)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s OR %s)", left, right), nil
	default:
		return "", fmt.Errorf("restore where: unknown node %T", expr)
	}
}

func compileAuditLeaf(leaf queryast.Leaf, p *auditParams) (string, error) {
	if len(leaf.Path.Components) != 1 || leaf.Path.Components[0].Selector != pathmodel.SelectorNone {
		return "", squrilerr.NewValidationError(fmt.Sprintf("restore where: %q is not a valid audit column", leaf.Path.String()), "where", leaf.Path.String())
	}
	column, ok := auditColumns[leaf.Path.Components[0].Key]
	if !ok {
		return "", squrilerr.NewValidationError(fmt.Sprintf("restore where: %q is not a valid audit column", leaf.Path.String()), "where", leaf.Path.String())
	}
	expr, err := auditLeafExpr(column, leaf, p)
	if err != nil {
		return "", err
	}
	if leaf.Not {
		return fmt.Sprintf("NOT (%s)", expr), nil
	}
	return expr, nil
}

func auditLeafExpr(column string, leaf queryast.Leaf, p *auditParams) (string, error) {
	lit := sqlgen.LiteralToGo(leaf.Value)
	switch leaf.Op {
	case queryast.OpEq:
		return fmt.Sprintf("%s = %s", column, p.bind(lit)), nil
	case queryast.OpNeq:
		return fmt.Sprintf("%s != %s", column, p.bind(lit)), nil
	case queryast.OpGt:
		return fmt.Sprintf("%s > %s", column, p.bind(lit)), nil
	case queryast.OpGte:
		return fmt.Sprintf("%s >= %s", column, p.bind(lit)), nil
	case queryast.OpLt:
		return fmt.Sprintf("%s < %s", column, p.bind(lit)), nil
	case queryast.OpLte:
		return fmt.Sprintf("%s <= %s", column, p.bind(lit)), nil
	case queryast.OpLike:
		return fmt.Sprintf("%s LIKE %s ESCAPE '\\'", column, p.bind(sqlgen.GlobToLike(lit))), nil
	case queryast.OpIlike:
		// Normalizes only the pattern side; see predicate.go's OpIlike comment.
		normalized := lit
		if s, ok := lit.(string); ok {
			normalized = docval.NormalizeForCompare(s)
		}
		return fmt.Sprintf("LOWER(%s) LIKE %s ESCAPE '\\'", column, p.bind(sqlgen.GlobToLike(normalized))), nil
	case queryast.OpIs:
		return fmt.Sprintf("%s IS NULL", column), nil
	case queryast.OpIn:
		list, ok := leaf.Value.(queryast.LitList)
		if !ok {
			return "", squrilerr.NewValidationError("restore where: in. requires a list literal", "where", column)
		}
		placeholders := make([]string, len(list))
		for i, el := range list {
			placeholders[i] = p.bind(sqlgen.LiteralToGo(el))
		}
		return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")), nil
	default:
		return "", fmt.Errorf("restore where: unsupported op %q", leaf.Op)
	}
}

// candidateAudit is one audit row eligible to restore a primary key.
type candidateAudit struct {
	previous      string
	transactionID string
}

// TableRestore reverses audit events for table, per §4.5:
//
//   - restore&primary_key=p (no where): every document whose current state
//     differs from (or is missing relative to) the most recent matching
//     previous is overwritten/re-inserted.
//   - restore&primary_key=p&where=...: the same, but the audit rows
//     considered are first filtered by where (matching audit columns).
//
// The restore itself is journalled: each row it touches gets a new audit
// row whose previous is the value just replaced, sharing one transaction_id
// across the whole call. Tie-break among audit rows for one primary key:
// greatest timestamp, then greatest transaction_id.
func (d *Driver) TableRestore(ctx context.Context, table string, rawQuery string) (err error) {
	q, perr := queryparse.Parse(rawQuery)
	if perr != nil {
		return perr
	}
	if !q.Restore {
		return squrilerr.NewValidationError("table_restore requires the restore flag", "restore", "")
	}
	if q.PrimaryKey == nil {
		return squrilerr.NewValidationError("table_restore requires primary_key=", "primary_key", "")
	}
	pkPath := *q.PrimaryKey

	tx, err := d.Provider.Begin(ctx)
	if err != nil {
		return fmt.Errorf("table_restore %s: begin: %w", table, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	qualifiedAudit, qerr := sqlgen.QualifiedTable(d.Dialect, d.Config.Schema, d.auditTable(table))
	if qerr != nil {
		err = qerr
		return err
	}

	auditSQL := fmt.Sprintf(
		"SELECT previous, transaction_id, timestamp FROM %s WHERE event IN ('update','delete') AND previous IS NOT NULL",
		qualifiedAudit,
	)
	ap := &auditParams{d: d.Dialect}
	if q.Where != nil {
		whereSQL, werr := compileAuditWhere(d.Dialect, q.Where, ap)
		if werr != nil {
			err = werr
			return err
		}
		auditSQL += " AND " + whereSQL
	}
	auditSQL += " ORDER BY timestamp DESC, transaction_id DESC"

	cursor, cerr := tx.Cursor(ctx, auditSQL, ap.values)
	if cerr != nil {
		err = squrilerr.NewBackendError(fmt.Sprintf("table_restore %s: read audit", table), cerr)
		return err
	}

	winners := map[string]candidateAudit{}
	var order []string
	for cursor.Next() {
		var previous, txnID, ts any
		if serr := cursor.Scan(&previous, &txnID, &ts); serr != nil {
			cursor.Close()
			err = squrilerr.NewBackendError(fmt.Sprintf("table_restore %s: scan audit", table), serr)
			return err
		}
		previousText := toText(previous)
		key, _, perr := primaryKeyOf(previousText, pkPath)
		if perr != nil {
			continue
		}
		if _, seen := winners[key]; seen {
			continue // already has the newest-timestamp winner (ORDER BY DESC)
		}
		winners[key] = candidateAudit{previous: previousText, transactionID: toText(txnID)}
		order = append(order, key)
	}
	if cerrf := cursor.Err(); cerrf != nil {
		cursor.Close()
		err = squrilerr.NewBackendError(fmt.Sprintf("table_restore %s: iterate audit", table), cerrf)
		return err
	}
	cursor.Close()

	if len(winners) == 0 {
		err = squrilerr.NewAuditMissingError("no audit rows match this restore request", pkPath.String())
		return err
	}

	sort.Strings(order) // deterministic processing order independent of map iteration

	qualified, qerr := sqlgen.QualifiedTable(d.Dialect, d.Config.Schema, table)
	if qerr != nil {
		err = qerr
		return err
	}
	pkExpr, perr2 := sqlgen.PathExpr(d.Dialect, "data", pkPath)
	if perr2 != nil {
		err = perr2
		return err
	}

	txnID := d.IDs.Generate()
	now := d.Clock.Now()
	var auditRows []auditRow

	for _, key := range order {
		cand := winners[key]
		_, pkNative, kerr := primaryKeyOf(cand.previous, pkPath)
		if kerr != nil {
			err = fmt.Errorf("table_restore %s: primary key: %w", table, kerr)
			return err
		}

		currentRaw, exists, ferr := fetchCurrentByPrimaryKey(ctx, tx, d.Dialect, qualified, pkExpr, pkNative)
		if ferr != nil {
			err = squrilerr.NewBackendError(fmt.Sprintf("table_restore %s: lookup primary key %s", table, key), ferr)
			return err
		}

		if !exists {
			insertSQL := fmt.Sprintf("INSERT INTO %s (data) VALUES (%s)", qualified, d.Dialect.Placeholder(1))
			if _, execErr := tx.Execute(ctx, insertSQL, []any{cand.previous}); execErr != nil {
				if isUniqueViolation(execErr) {
					err = squrilerr.NewIntegrityError(fmt.Sprintf("table_restore %s: primary key collision restoring %s", table, key), pkPath.String())
				} else {
					err = squrilerr.NewBackendError(fmt.Sprintf("table_restore %s: insert", table), execErr)
				}
				return err
			}
			restored := cand.previous
			auditRows = append(auditRows, auditRow{
				Event:         EventCreate,
				Timestamp:     now,
				Identity:      d.Config.Requestor,
				IdentityName:  d.Config.RequestorName,
				Reason:        q.Message,
				Diff:          &restored,
				TransactionID: txnID,
				Query:         rawQuery,
			})
			continue
		}

		diff, removedKeys, derr := diffEntries(currentRaw, cand.previous)
		if derr != nil {
			err = fmt.Errorf("table_restore %s: diff primary key %s: %w", table, key, derr)
			return err
		}
		if len(diff) == 0 && len(removedKeys) == 0 {
			continue // current state already matches the target; nothing to do
		}
		setKeys := make([]string, 0, len(diff))
		for k := range diff {
			setKeys = append(setKeys, k)
		}
		sort.Strings(setKeys)

		p := &auditParams{d: d.Dialect}
		dataExpr := d.Dialect.RemoveKeys("data", removedKeys)
		if len(setKeys) > 0 {
			diffJSON, merr := docval.MarshalValue(diff)
			if merr != nil {
				err = fmt.Errorf("table_restore %s: marshal diff for %s: %w", table, key, merr)
				return err
			}
			placeholders := make([]string, len(setKeys))
			for i := range setKeys {
				placeholders[i] = p.bind(string(diffJSON))
			}
			dataExpr = d.Dialect.MergePatch(dataExpr, setKeys, placeholders)
		}
		wherePlaceholder := p.bind(pkNative)
		updateSQL := fmt.Sprintf("UPDATE %s SET data = %s WHERE %s = %s", qualified, dataExpr, pkExpr, wherePlaceholder)
		if _, execErr := tx.Execute(ctx, updateSQL, p.values); execErr != nil {
			err = squrilerr.NewBackendError(fmt.Sprintf("table_restore %s: update", table), execErr)
			return err
		}
		replaced := currentRaw
		auditDiff := docval.Object{}
		for k, v := range diff {
			auditDiff[k] = v
		}
		for _, k := range removedKeys {
			auditDiff[k] = docval.Null{}
		}
		auditDiffJSON, amerr := docval.MarshalValue(auditDiff)
		if amerr != nil {
			err = fmt.Errorf("table_restore %s: marshal audit diff for %s: %w", table, key, amerr)
			return err
		}
		diffText := string(auditDiffJSON)
		auditRows = append(auditRows, auditRow{
			Event:         EventUpdate,
			Timestamp:     now,
			Identity:      d.Config.Requestor,
			IdentityName:  d.Config.RequestorName,
			Reason:        q.Message,
			Previous:      &replaced,
			Diff:          &diffText,
			TransactionID: txnID,
			Query:         rawQuery,
		})
	}

	if err = d.writeAuditRows(ctx, tx, table, auditRows); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("table_restore %s: commit: %w", table, err)
		return err
	}
	return nil
}

// fetchCurrentByPrimaryKey looks up the current row whose primary-key
// extraction equals pkNative, returning its raw data text and whether a
// row was found.
func fetchCurrentByPrimaryKey(ctx context.Context, tx conn.Tx, d dialect.Dialect, qualified, pkExpr string, pkNative any) (string, bool, error) {
	sql := fmt.Sprintf("SELECT data FROM %s WHERE %s = %s", qualified, pkExpr, d.Placeholder(1))
	cursor, err := tx.Cursor(ctx, sql, []any{pkNative})
	if err != nil {
		return "", false, err
	}
	defer cursor.Close()
	if !cursor.Next() {
		return "", false, cursor.Err()
	}
	var raw any
	if err := cursor.Scan(&raw); err != nil {
		return "", false, err
	}
	return toText(raw), true, nil
}

// diffEntries compares the top-level keys of the current and target
// document JSON. diff holds the target's keys whose value differs from (or
// is absent in) the current document; removed holds the current document's
// keys absent from the target entirely. Adapted from pysquril's
// GenericBackend._diff_entries (which only computed diff, patching the keys
// that changed rather than overwriting the whole document): removed is
// added here so a restored row can also shed keys a later mutation added
// that the target never had (§8 invariant: table_restore must reproduce
// the target document exactly, not just the keys it shares with the
// current one).
func diffEntries(currentRaw, targetRaw string) (diff docval.Object, removed []string, err error) {
	if currentRaw == targetRaw {
		return docval.Object{}, nil, nil
	}
	currentVal, err := docval.UnmarshalValue([]byte(currentRaw))
	if err != nil {
		return nil, nil, fmt.Errorf("decode current document: %w", err)
	}
	targetVal, err := docval.UnmarshalValue([]byte(targetRaw))
	if err != nil {
		return nil, nil, fmt.Errorf("decode target document: %w", err)
	}
	current, ok := currentVal.(docval.Object)
	if !ok {
		return nil, nil, fmt.Errorf("current document is not an object")
	}
	target, ok := targetVal.(docval.Object)
	if !ok {
		return nil, nil, fmt.Errorf("target document is not an object")
	}

	diff = docval.Object{}
	for k, v := range target {
		cur, exists := current[k]
		if !exists || !reflect.DeepEqual(cur, v) {
			diff[k] = v
		}
	}
	for k := range current {
		if _, exists := target[k]; !exists {
			removed = append(removed, k)
		}
	}
	sort.Strings(removed)
	return diff, removed, nil
}
