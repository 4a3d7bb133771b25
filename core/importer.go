package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"tablature/config"
	"tablature/database"
	"tablature/logger"

	"github.com/tidwall/gjson"
)

var ErrNotAnArray = errors.New("import document has no array at the given path")

// ImportOptions says where the rows live in a JSON document and how to read each column.
// Fields maps a column name to a gjson path relative to one array element;
// a missing entry reads the key named like the column.
type ImportOptions struct {
	ArrayPath  string
	Fields     map[string]string
	SourceName string
}

// ImportJSON loads the rows of data into the source table of def, creating the
// table with TEXT columns when it does not exist. It returns the number of rows inserted.
func ImportJSON(ctx context.Context, def config.TableDefinition, data []byte, opts ImportOptions) (int64, error) {
	if !gjson.ValidBytes(data) {
		return 0, fmt.Errorf("import into %s: document is not valid JSON", def.Name)
	}

	arrayPath := opts.ArrayPath
	if arrayPath == "" {
		arrayPath = "@this"
	}
	result := gjson.GetBytes(data, arrayPath)
	if !result.IsArray() {
		logger.Error("ImportJSON: expected an array at path '%s', got %s", arrayPath, result.Type.String())
		if opts.ArrayPath == "" {
			return 0, fmt.Errorf("%w: %s", ErrNotAnArray, arrayPath)
		}
		root := gjson.ParseBytes(data)
		if !root.IsArray() {
			return 0, fmt.Errorf("%w: %s", ErrNotAnArray, arrayPath)
		}
		logger.Info("ImportJSON: falling back to the document root for %s", def.Name)
		result = root
	}

	columns := importColumns(def, result)
	if len(columns) == 0 {
		return 0, fmt.Errorf("import into %s: no columns to import", def.Name)
	}
	if err := database.EnsureTable(ctx, def.Source, columns); err != nil {
		return 0, err
	}

	var rows [][]interface{}
	result.ForEach(func(_, element gjson.Result) bool {
		row := make([]interface{}, len(columns))
		for i, col := range columns {
			path := col
			if p, ok := opts.Fields[col]; ok && p != "" {
				path = p
			}
			row[i] = cellValue(element.Get(path))
		}
		rows = append(rows, row)
		return true
	})

	n, err := database.InsertRows(ctx, def.Source, opts.SourceName, columns, rows)
	if err != nil {
		return 0, err
	}
	logger.Info("ImportJSON: imported %d row(s) into %s", n, def.Source)
	return n, nil
}

// importColumns uses the configured columns, or the keys of the first element
// (sorted) when the table has none configured.
func importColumns(def config.TableDefinition, array gjson.Result) []string {
	if len(def.Columns) > 0 {
		cols := make([]string, len(def.Columns))
		for i, c := range def.Columns {
			cols[i] = c.Name
		}
		return cols
	}
	first := array.Get("0")
	if !first.IsObject() {
		return nil
	}
	var cols []string
	first.ForEach(func(key, _ gjson.Result) bool {
		cols = append(cols, key.String())
		return true
	})
	sort.Strings(cols)
	return cols
}

func cellValue(r gjson.Result) interface{} {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return "false"
	case gjson.True:
		return "true"
	case gjson.Number:
		return r.Raw
	case gjson.String:
		return r.Str
	default:
		// objects and arrays are stored as compact JSON
		var buf json.RawMessage = []byte(r.Raw)
		if compact, err := json.Marshal(buf); err == nil {
			return string(compact)
		}
		return r.Raw
	}
}
