package store

import (
	"context"
	"fmt"

	"github.com/unioslo/squril/internal/conn"
	"github.com/unioslo/squril/internal/docval"
	"github.com/unioslo/squril/internal/queryast"
	"github.com/unioslo/squril/internal/queryparse"
	"github.com/unioslo/squril/internal/squrilerr"
)

// collectPrevious runs a full-document SELECT under where against table,
// returning the raw JSON text of every matching row. It is always run
// before a mutation, inside the same transaction, so "previous" audit
// values reflect the exact pre-mutation state (§4.4).
func (d *Driver) collectPrevious(ctx context.Context, tx conn.Tx, table string, where queryast.WhereExpr) ([]string, error) {
	selectQ := &queryast.Query{Where: where}
	sql, params, err := d.compiler(table).CompileSelect(selectQ)
	if err != nil {
		return nil, err
	}
	cursor, err := tx.Cursor(ctx, sql, params)
	if err != nil {
		return nil, squrilerr.NewBackendError(fmt.Sprintf("table %s: select previous", table), err)
	}
	defer cursor.Close()

	var docs []string
	for cursor.Next() {
		var raw any
		if err := cursor.Scan(&raw); err != nil {
			return nil, squrilerr.NewBackendError(fmt.Sprintf("table %s: scan previous", table), err)
		}
		docs = append(docs, toText(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, squrilerr.NewBackendError(fmt.Sprintf("table %s: iterate previous", table), err)
	}
	return docs, nil
}

// TableUpdate parses rawQuery (which must carry a non-empty set= clause),
// SELECTs the affected rows, applies patch to them, and writes one update
// audit row per affected document, all inside one transaction (§4.3, §4.4).
func (d *Driver) TableUpdate(ctx context.Context, table string, rawQuery string, patch string) (err error) {
	q, perr := queryparse.Parse(rawQuery)
	if perr != nil {
		return perr
	}
	if verr := queryast.Validate(q); verr != nil {
		return verr
	}
	if len(q.Set) == 0 {
		return squrilerr.NewValidationError("update requires a non-empty set= clause", "set", "")
	}

	patchVal, perr2 := docval.UnmarshalValue([]byte(patch))
	if perr2 != nil {
		return squrilerr.NewValidationError(fmt.Sprintf("patch is not valid JSON: %v", perr2), "set", "")
	}
	patchObj, ok := patchVal.(docval.Object)
	if !ok {
		return squrilerr.NewValidationError("patch must be a JSON object", "set", "")
	}
	diffObj := docval.Object{}
	for _, k := range q.Set {
		if v, present := patchObj[k]; present {
			diffObj[k] = v
		}
	}
	diffJSON, jerr := docval.MarshalValue(diffObj)
	if jerr != nil {
		return fmt.Errorf("table_update %s: marshal diff: %w", table, jerr)
	}
	diffText := string(diffJSON)

	tx, err := d.Provider.Begin(ctx)
	if err != nil {
		return fmt.Errorf("table_update %s: begin: %w", table, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	previousDocs, err := d.collectPrevious(ctx, tx, table, q.Where)
	if err != nil {
		return err
	}

	updateSQL, updateParams, cerr := d.compiler(table).CompileUpdate(q, patch)
	if cerr != nil {
		err = cerr
		return err
	}
	if _, execErr := tx.Execute(ctx, updateSQL, updateParams); execErr != nil {
		err = squrilerr.NewBackendError(fmt.Sprintf("table_update %s", table), execErr)
		return err
	}

	txnID := d.IDs.Generate()
	now := d.Clock.Now()
	rows := make([]auditRow, 0, len(previousDocs))
	for i := range previousDocs {
		prev := previousDocs[i]
		diff := diffText
		rows = append(rows, auditRow{
			Event:         EventUpdate,
			Timestamp:     now,
			Identity:      d.Config.Requestor,
			IdentityName:  d.Config.RequestorName,
			Reason:        q.Message,
			Previous:      &prev,
			Diff:          &diff,
			TransactionID: txnID,
			Query:         rawQuery,
		})
	}
	if err = d.writeAuditRows(ctx, tx, table, rows); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("table_update %s: commit: %w", table, err)
		return err
	}
	return nil
}

// TableDelete parses rawQuery, SELECTs the affected rows, deletes them, and
// writes one delete audit row per removed document carrying its previous
// state (§4.3, §4.4). requireWhere mirrors the call site's mass-delete
// confirmation (§4.2): when true, a query with no where= clause is rejected.
func (d *Driver) TableDelete(ctx context.Context, table string, rawQuery string, requireWhere bool) (err error) {
	q, perr := queryparse.Parse(rawQuery)
	if perr != nil {
		return perr
	}
	if verr := queryast.Validate(q); verr != nil {
		return verr
	}
	if requireWhere && q.Where == nil {
		return squrilerr.NewValidationError("delete without where= requires explicit mass-delete confirmation", "where", "")
	}

	tx, err := d.Provider.Begin(ctx)
	if err != nil {
		return fmt.Errorf("table_delete %s: begin: %w", table, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	previousDocs, err := d.collectPrevious(ctx, tx, table, q.Where)
	if err != nil {
		return err
	}

	deleteSQL, deleteParams, cerr := d.compiler(table).CompileDelete(q, requireWhere)
	if cerr != nil {
		err = cerr
		return err
	}
	if _, execErr := tx.Execute(ctx, deleteSQL, deleteParams); execErr != nil {
		err = squrilerr.NewBackendError(fmt.Sprintf("table_delete %s", table), execErr)
		return err
	}

	txnID := d.IDs.Generate()
	now := d.Clock.Now()
	rows := make([]auditRow, 0, len(previousDocs))
	for i := range previousDocs {
		prev := previousDocs[i]
		rows = append(rows, auditRow{
			Event:         EventDelete,
			Timestamp:     now,
			Identity:      d.Config.Requestor,
			IdentityName:  d.Config.RequestorName,
			Reason:        q.Message,
			Previous:      &prev,
			TransactionID: txnID,
			Query:         rawQuery,
		})
	}
	if err = d.writeAuditRows(ctx, tx, table, rows); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("table_delete %s: commit: %w", table, err)
		return err
	}
	return nil
}
