package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tablature/models"
)

func openTestDB(t *testing.T) context.Context {
	t.Helper()
	require.NoError(t, InitDB(filepath.Join(t.TempDir(), "nested", "test.db")))
	t.Cleanup(func() { _ = CloseDB() })
	return context.Background()
}

func TestInitDBAppliesMigrations(t *testing.T) {
	ctx := openTestDB(t)

	for _, table := range []string{"app_settings", "import_log"} {
		cols, err := TableColumns(ctx, table)
		require.NoError(t, err, table)
		require.NotEmpty(t, cols, table)
	}

	_, err := TableColumns(ctx, "nope")
	require.ErrorIs(t, err, ErrUnknownSource)
}

func TestInitDBIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "again.db")
	require.NoError(t, InitDB(path))
	require.NoError(t, CloseDB())
	require.NoError(t, InitDB(path))
	require.NoError(t, CloseDB())
}

func TestRowQuerySQL(t *testing.T) {
	q := RowQuery{
		Source:  "people",
		Columns: []string{"name", "order"},
		Where:   []string{`"name" = ?`},
		Args:    []interface{}{"x"},
		OrderBy: []OrderTerm{{Column: "order", Descending: true}, {Column: "name"}},
		Limit:   10,
		Offset:  20,
	}
	require.Equal(t,
		`SELECT DISTINCT "name", "order" FROM "people" WHERE "name" = ? ORDER BY "order" DESC, "name" ASC LIMIT 10 OFFSET 20`,
		q.SQL())
	require.Equal(t,
		`SELECT COUNT(*) FROM (SELECT DISTINCT "name", "order" FROM "people" WHERE "name" = ?)`,
		q.CountSQL())

	require.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
}

func TestQueryRowsStringifiesCells(t *testing.T) {
	ctx := openTestDB(t)
	_, err := DB.ExecContext(ctx, `CREATE TABLE cells (t TEXT, i INTEGER, r REAL, b BLOB, n TEXT)`)
	require.NoError(t, err)
	_, err = DB.ExecContext(ctx, `INSERT INTO cells VALUES ('txt', 42, 1.25, X'6869', NULL), ('txt', 42, 1.25, X'6869', NULL)`)
	require.NoError(t, err)

	q := RowQuery{Source: "cells", Columns: []string{"t", "i", "r", "b", "n"}}
	rows, err := QueryRows(ctx, q)
	require.NoError(t, err)
	require.Equal(t, [][]string{{"txt", "42", "1.25", "hi", ""}}, rows)

	count, err := CountRows(ctx, q)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestCellString(t *testing.T) {
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.Equal(t, "", cellString(nil))
	require.Equal(t, "true", cellString(true))
	require.Equal(t, "0.1", cellString(0.1))
	require.Equal(t, "2024-05-01T12:00:00Z", cellString(when))
}

func TestFilterOptions(t *testing.T) {
	ctx := openTestDB(t)
	_, err := DB.ExecContext(ctx, `CREATE TABLE s (code TEXT, label TEXT)`)
	require.NoError(t, err)
	_, err = DB.ExecContext(ctx, `INSERT INTO s VALUES ('a', 'Active'), ('i', 'Inactive')`)
	require.NoError(t, err)

	opts, err := FilterOptions(ctx, `SELECT code, label FROM s ORDER BY code`)
	require.NoError(t, err)
	require.Equal(t, []models.FilterOption{{Value: "a", Label: "Active"}, {Value: "i", Label: "Inactive"}}, opts)

	_, err = FilterOptions(ctx, `SELECT code FROM s`)
	require.Error(t, err)
}

func TestInsertRowsRecordsImport(t *testing.T) {
	ctx := openTestDB(t)
	require.NoError(t, EnsureTable(ctx, "items", []string{"sku", "qty"}))
	require.NoError(t, EnsureTable(ctx, "items", []string{"sku", "qty"}))

	n, err := InsertRows(ctx, "items", "items.json", []string{"sku", "qty"}, [][]interface{}{
		{"a", "1"},
		{"b", nil},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	records, err := ListImports(ctx, "items")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "items.json", records[0].SourceName)
	require.False(t, records[0].ImportedAt.IsZero())

	// a failing row rolls back the whole import
	_, err = InsertRows(ctx, "items", "bad.json", []string{"sku", "missing"}, [][]interface{}{{"c", "1"}})
	require.Error(t, err)
	records, err = ListImports(ctx, "items")
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestTableLayoutSettings(t *testing.T) {
	ctx := openTestDB(t)

	layouts, err := GetTableLayouts(ctx)
	require.NoError(t, err)
	require.Empty(t, layouts)

	_, ok, err := GetTableLayout(ctx, "people")
	require.NoError(t, err)
	require.False(t, ok)

	want := models.AllTableLayouts{
		"people": {Columns: map[string]models.ColumnConfig{"name": {Width: "12em"}, "city": {Hidden: true}}, PageSize: 30},
	}
	require.NoError(t, SetTableLayouts(ctx, want))

	layout, ok, err := GetTableLayout(ctx, "people")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want["people"], layout)

	require.NoError(t, ResetTableLayouts(ctx))
	layouts, err = GetTableLayouts(ctx)
	require.NoError(t, err)
	require.Empty(t, layouts)

	require.NoError(t, SetSetting(ctx, models.TableLayoutsKey, "{broken"))
	_, err = GetTableLayouts(ctx)
	require.Error(t, err)
}

func TestSetTableLayoutConcurrentTables(t *testing.T) {
	ctx := openTestDB(t)

	const tables = 8
	var wg sync.WaitGroup
	errs := make(chan error, tables)
	for i := 0; i < tables; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- SetTableLayout(ctx, fmt.Sprintf("t%d", i), models.TableLayoutConfig{PageSize: i + 1})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	layouts, err := GetTableLayouts(ctx)
	require.NoError(t, err)
	require.Len(t, layouts, tables)
	for i := 0; i < tables; i++ {
		require.Equal(t, i+1, layouts[fmt.Sprintf("t%d", i)].PageSize)
	}

	require.NoError(t, SetSetting(ctx, models.TableLayoutsKey, "{broken"))
	require.Error(t, SetTableLayout(ctx, "t0", models.TableLayoutConfig{}))
}
