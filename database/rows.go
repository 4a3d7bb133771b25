package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"tablature/models"
	"time"
)

// RowQuery is a validated SELECT over one source. Identifiers in Columns and
// OrderBy must already be checked against TableColumns.
type RowQuery struct {
	Source  string
	Columns []string
	Where   []string // SQL fragments joined with AND, using ? placeholders
	Args    []interface{}
	OrderBy []OrderTerm
	Limit   int
	Offset  int
}

// OrderTerm orders by one column.
type OrderTerm struct {
	Column     string
	Descending bool
}

func (q RowQuery) selectList() string {
	cols := make([]string, len(q.Columns))
	for i, c := range q.Columns {
		cols[i] = QuoteIdent(c)
	}
	return strings.Join(cols, ", ")
}

func (q RowQuery) whereClause() string {
	if len(q.Where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.Where, " AND ")
}

// SQL renders the DISTINCT page query.
func (q RowQuery) SQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT DISTINCT %s FROM %s%s", q.selectList(), QuoteIdent(q.Source), q.whereClause())
	if len(q.OrderBy) > 0 {
		terms := make([]string, len(q.OrderBy))
		for i, t := range q.OrderBy {
			dir := "ASC"
			if t.Descending {
				dir = "DESC"
			}
			terms[i] = QuoteIdent(t.Column) + " " + dir
		}
		b.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", q.Limit, q.Offset)
	}
	return b.String()
}

// CountSQL renders the query counting distinct matching rows.
func (q RowQuery) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM (SELECT DISTINCT %s FROM %s%s)", q.selectList(), QuoteIdent(q.Source), q.whereClause())
}

// QueryRows runs q and stringifies every cell. NULL becomes the empty string.
func QueryRows(ctx context.Context, q RowQuery) ([][]string, error) {
	rows, err := DB.QueryContext(ctx, q.SQL(), q.Args...)
	if err != nil {
		return nil, fmt.Errorf("querying rows of %s: %w", q.Source, err)
	}
	defer rows.Close()

	results := [][]string{}
	values := make([]interface{}, len(q.Columns))
	ptrs := make([]interface{}, len(q.Columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row of %s: %w", q.Source, err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = cellString(v)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows of %s: %w", q.Source, err)
	}
	return results, nil
}

// CountRows counts the distinct rows matched by q, ignoring paging and ordering.
func CountRows(ctx context.Context, q RowQuery) (int64, error) {
	var n int64
	if err := DB.QueryRowContext(ctx, q.CountSQL(), q.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rows of %s: %w", q.Source, err)
	}
	return n, nil
}

func cellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

// FilterOptions runs a two-column query and returns its rows as (value, label) pairs.
func FilterOptions(ctx context.Context, query string) ([]models.FilterOption, error) {
	rows, err := DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying filter options: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading filter option columns: %w", err)
	}
	if len(cols) != 2 {
		return nil, fmt.Errorf("filter query must return a value/label pair, got %d columns", len(cols))
	}

	var options []models.FilterOption
	for rows.Next() {
		var value, label interface{}
		if err := rows.Scan(&value, &label); err != nil {
			return nil, fmt.Errorf("scanning filter option: %w", err)
		}
		options = append(options, models.FilterOption{Value: cellString(value), Label: cellString(label)})
	}
	return options, rows.Err()
}

// InsertRows inserts rows into tableName inside one transaction and records
// the import in import_log.
func InsertRows(ctx context.Context, tableName, sourceName string, columns []string, rows [][]interface{}) (int64, error) {
	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting import transaction: %w", err)
	}
	defer tx.Rollback()

	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdent(c)
		marks[i] = "?"
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(tableName), strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return 0, fmt.Errorf("preparing insert into %s: %w", tableName, err)
	}
	defer stmt.Close()

	var inserted int64
	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("inserting row %d into %s: %w", i, tableName, err)
		}
		inserted++
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO import_log (table_name, source_name, rows_imported) VALUES (?, ?, ?)",
		tableName, sourceName, inserted); err != nil {
		return 0, fmt.Errorf("recording import into %s: %w", tableName, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import into %s: %w", tableName, err)
	}
	return inserted, nil
}

// ImportRecord is one row of import_log.
type ImportRecord struct {
	ID           int64     `json:"id"`
	TableName    string    `json:"table_name"`
	SourceName   string    `json:"source_name"`
	RowsImported int64     `json:"rows_imported"`
	ImportedAt   time.Time `json:"imported_at"`
}

// ListImports returns the import history of a table, newest first.
func ListImports(ctx context.Context, tableName string) ([]ImportRecord, error) {
	rows, err := DB.QueryContext(ctx,
		"SELECT id, table_name, source_name, rows_imported, imported_at FROM import_log WHERE table_name = ? ORDER BY id DESC",
		tableName)
	if err != nil {
		return nil, fmt.Errorf("querying import log for %s: %w", tableName, err)
	}
	defer rows.Close()

	var records []ImportRecord
	for rows.Next() {
		var r ImportRecord
		var importedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.TableName, &r.SourceName, &r.RowsImported, &importedAt); err != nil {
			return nil, fmt.Errorf("scanning import log row: %w", err)
		}
		r.ImportedAt = importedAt.Time
		records = append(records, r)
	}
	return records, rows.Err()
}
