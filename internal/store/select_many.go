package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/unioslo/squril/internal/docval"
	"github.com/unioslo/squril/internal/sqlgen"
	"github.com/unioslo/squril/internal/squrilerr"
)

// ManyResult unions the row sequences of several TableSelect results,
// exhausting each table's sequence in turn and reporting which table the
// current row came from (§9 supplemented feature, grounded on
// backends.py:table_select's "*"/","-branch union behaviour).
type ManyResult struct {
	results []*Result
	tables  []string
	idx     int
}

// Next advances to the next row, moving on to the next table's sequence
// once the current one is exhausted.
func (m *ManyResult) Next() bool {
	for m.idx < len(m.results) {
		if m.results[m.idx].Next() {
			return true
		}
		m.idx++
	}
	return false
}

// Table returns the table the current row came from.
func (m *ManyResult) Table() string { return m.tables[m.idx] }

// Values returns the columns scanned by the most recent Next call.
func (m *ManyResult) Values() []any { return m.results[m.idx].Values() }

// Document decodes the current row as a full document, as Result.Document does.
func (m *ManyResult) Document() (docval.Value, error) { return m.results[m.idx].Document() }

// Err returns the first error encountered across any underlying table.
func (m *ManyResult) Err() error {
	for _, r := range m.results {
		if err := r.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every underlying Result, returning the first error.
func (m *ManyResult) Close() error {
	var first error
	for _, r := range m.results {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// TableSelectMany resolves tableSpec against either a "prefix_*" glob or a
// comma-joined explicit list of table names, and unions the matching
// tables' row sequences for rawQuery (§9 supplemented feature, grounded on
// backends.py:table_select branching on "*"/"," in table_name).
func (d *Driver) TableSelectMany(ctx context.Context, tableSpec string, rawQuery string) (*ManyResult, error) {
	tables, err := d.resolveTableSpec(ctx, tableSpec)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return &ManyResult{}, nil
	}

	results := make([]*Result, 0, len(tables))
	for _, t := range tables {
		res, serr := d.TableSelect(ctx, t, rawQuery)
		if serr != nil {
			for _, opened := range results {
				opened.Close()
			}
			return nil, serr
		}
		results = append(results, res)
	}
	return &ManyResult{results: results, tables: tables}, nil
}

func (d *Driver) resolveTableSpec(ctx context.Context, tableSpec string) ([]string, error) {
	switch {
	case strings.Contains(tableSpec, "*"):
		likePattern, _ := sqlgen.GlobToLike(tableSpec).(string)
		return d.matchingTableNames(ctx, likePattern)
	case strings.Contains(tableSpec, ","):
		return strings.Split(tableSpec, ","), nil
	default:
		return []string{tableSpec}, nil
	}
}

func (d *Driver) matchingTableNames(ctx context.Context, likePattern string) ([]string, error) {
	tx, err := d.Provider.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve table pattern %s: begin: %w", likePattern, err)
	}
	defer tx.Rollback()

	query, args := d.Dialect.MatchingTableNames(d.Config.Schema, likePattern)
	cur, err := tx.Cursor(ctx, query, args)
	if err != nil {
		return nil, squrilerr.NewBackendError(fmt.Sprintf("resolve table pattern %s", likePattern), err)
	}
	defer cur.Close()

	var names []string
	for cur.Next() {
		var name string
		if serr := cur.Scan(&name); serr != nil {
			return nil, squrilerr.NewBackendError(fmt.Sprintf("resolve table pattern %s: scan", likePattern), serr)
		}
		if strings.HasSuffix(name, "_audit") {
			continue
		}
		names = append(names, name)
	}
	if cerr := cur.Err(); cerr != nil {
		return nil, squrilerr.NewBackendError(fmt.Sprintf("resolve table pattern %s: iterate", likePattern), cerr)
	}
	return names, nil
}
