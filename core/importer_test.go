package core

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"tablature/config"
	"tablature/database"
)

func TestImportJSONCreatesTable(t *testing.T) {
	ctx := openTestDB(t)
	doc := []byte(`{"data": {"items": [
		{"sku": "A-1", "price": 9.5, "stock": 3, "active": true, "tags": ["x", "y"]},
		{"sku": "B-2", "price": 12, "stock": null, "active": false, "tags": []}
	]}}`)
	def := config.TableDefinition{Name: "products", Source: "products", ResultsPerPage: 10}

	n, err := ImportJSON(ctx, def, doc, ImportOptions{ArrayPath: "data.items", SourceName: "products.json"})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	cols, err := database.TableColumns(ctx, "products")
	require.NoError(t, err)
	require.Equal(t, []string{"active", "price", "sku", "stock", "tags"}, cols)

	data, err := NewTableService(nil).Data(ctx, def, dataQuery(t, url.Values{"orderings": {"0,0,1"}}), nil)
	require.NoError(t, err)
	require.EqualValues(t, 2, data.Count)
	require.Equal(t, [][]string{
		{"true", "9.5", "A-1", "3", `["x","y"]`},
		{"false", "12", "B-2", "", "[]"},
	}, data.Results)

	records, err := database.ListImports(ctx, "products")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "products.json", records[0].SourceName)
	require.EqualValues(t, 2, records[0].RowsImported)
}

func TestImportJSONConfiguredColumnsAndFields(t *testing.T) {
	ctx := openTestDB(t)
	def := config.TableDefinition{
		Name:   "people",
		Source: "people_import",
		Columns: []config.ColumnDefinition{
			{Name: "name"},
			{Name: "city"},
		},
		ResultsPerPage: 10,
	}
	doc := []byte(`[{"name": "Ann", "address": {"city": "Oslo"}, "ignored": 1}, {"name": "Ben"}]`)

	n, err := ImportJSON(ctx, def, doc, ImportOptions{Fields: map[string]string{"city": "address.city"}})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	data, err := NewTableService(nil).Data(ctx, def, dataQuery(t, url.Values{"orderings": {"1"}}), nil)
	require.NoError(t, err)
	require.Equal(t, [][]string{{"Ann", "Oslo"}, {"Ben", ""}}, data.Results)

	// a second import appends to the same table
	n, err = ImportJSON(ctx, def, []byte(`[{"name": "Cy"}]`), ImportOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	records, err := database.ListImports(ctx, "people_import")
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestImportJSONArrayPathFallsBackToRoot(t *testing.T) {
	ctx := openTestDB(t)
	def := config.TableDefinition{Name: "t", Source: "t", ResultsPerPage: 10}

	n, err := ImportJSON(ctx, def, []byte(`[{"a": "1"}]`), ImportOptions{ArrayPath: "rows"})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestImportJSONErrors(t *testing.T) {
	ctx := openTestDB(t)
	def := config.TableDefinition{Name: "t", Source: "t", ResultsPerPage: 10}

	_, err := ImportJSON(ctx, def, []byte(`{not json`), ImportOptions{})
	require.Error(t, err)

	_, err = ImportJSON(ctx, def, []byte(`{"rows": 3}`), ImportOptions{})
	require.ErrorIs(t, err, ErrNotAnArray)

	_, err = ImportJSON(ctx, def, []byte(`{"rows": 3}`), ImportOptions{ArrayPath: "rows"})
	require.ErrorIs(t, err, ErrNotAnArray)

	_, err = ImportJSON(ctx, def, []byte(`[1, 2]`), ImportOptions{})
	require.Error(t, err)
}
