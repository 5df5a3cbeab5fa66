package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unioslo/squril/internal/dialect"
	"github.com/unioslo/squril/internal/squrilerr"
)

func TestTableAlterRenamesDocumentTable(t *testing.T) {
	d, provider := newTestDriver(t, Config{}, nil, nil)
	ctx := context.Background()
	require.NoError(t, d.TableInsert(ctx, "items", []string{`{"id": 1}`}, nil))

	require.NoError(t, d.TableAlter(ctx, "items", "things"))

	res, err := d.TableSelect(ctx, "things", "")
	require.NoError(t, err)
	assert.Len(t, collectValues(t, res), 1)

	var count int
	row := provider.DB().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'items'`)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 0, count)
}

func TestTableAlterAlsoRenamesAuditTableWhenPresent(t *testing.T) {
	d, provider := newTestDriver(t, Config{AuditCreate: true}, nil, nil)
	ctx := context.Background()
	require.NoError(t, d.TableInsert(ctx, "items", []string{`{"id": 1}`}, nil))

	require.NoError(t, d.TableAlter(ctx, "items", "things"))

	var count int
	row := provider.DB().QueryRow(`SELECT COUNT(*) FROM "things_audit"`)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)
}

func TestTableAlterWithoutAuditTableSucceeds(t *testing.T) {
	d, provider := newTestDriver(t, Config{}, nil, nil)
	ctx := context.Background()
	// A table created outside this library's own lifecycle (ensureTables
	// always creates the "<table>_audit" counterpart alongside it) has no
	// audit table at all; TableAlter must not require one.
	_, err := provider.DB().Exec(`CREATE TABLE "orphan" (data TEXT)`)
	require.NoError(t, err)

	require.NoError(t, d.TableAlter(ctx, "orphan", "things"))
}

func TestTableAlterRefreshesAllViewForOldAndNewName(t *testing.T) {
	d, provider := newTestDriver(t, Config{MaintainAllView: true}, nil, nil)
	ctx := context.Background()
	require.NoError(t, d.TableInsert(ctx, "items", []string{`{"id": 1}`}, nil))

	var beforeCount int
	row := provider.DB().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'view' AND name = 'all_items'`)
	require.NoError(t, row.Scan(&beforeCount))
	require.Equal(t, 1, beforeCount)

	require.NoError(t, d.TableAlter(ctx, "items", "things"))

	var staleViewCount int
	row = provider.DB().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'view' AND name = 'all_items'`)
	require.NoError(t, row.Scan(&staleViewCount))
	assert.Equal(t, 0, staleViewCount, "renaming away the only instance of items should drop the now-stale all_items view")

	allViewDriver := NewDriver(provider, dialect.Embedded{}, Config{Schema: "all"}, nil, nil)
	res, err := allViewDriver.TableSelect(ctx, "things", "")
	require.NoError(t, err)
	assert.Len(t, collectValues(t, res), 1)
}

func TestTableAlterRejectsRenamingAnAuditTableDirectly(t *testing.T) {
	d, _ := newTestDriver(t, Config{}, nil, nil)
	err := d.TableAlter(context.Background(), "items_audit", "things")
	require.Error(t, err)
	assert.True(t, squrilerr.IsIntegrityError(err))
}

func TestTableAlterRejectsRenamingOntoAnAuditTableName(t *testing.T) {
	d, _ := newTestDriver(t, Config{}, nil, nil)
	ctx := context.Background()
	require.NoError(t, d.TableInsert(ctx, "items", []string{`{"id": 1}`}, nil))

	err := d.TableAlter(ctx, "items", "things_audit")
	require.Error(t, err)
	assert.True(t, squrilerr.IsIntegrityError(err))
}
