package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"tablature/config"
	"tablature/database"
	"tablature/logger"
	"tablature/models"
	"unicode"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrUnknownColumn = errors.New("unknown column")
	ErrBadQuery      = errors.New("bad table query")
)

var metricDataRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tablature_data_requests_total",
		Help: "Row and config requests served, by kind",
	}, []string{"kind"})

// TableService answers config and data requests for configured tables.
type TableService struct {
	definitions []config.TableDefinition
}

func NewTableService(definitions []config.TableDefinition) *TableService {
	return &TableService{definitions: definitions}
}

// Definition looks a table up by name.
func (s *TableService) Definition(name string) (config.TableDefinition, error) {
	for _, d := range s.definitions {
		if d.Name == name {
			return d, nil
		}
	}
	return config.TableDefinition{}, fmt.Errorf("%w: %q", config.ErrUnknownTable, name)
}

// Summaries lists every defined table in config order.
func (s *TableService) Summaries() []models.TableSummary {
	out := make([]models.TableSummary, 0, len(s.definitions))
	for _, d := range s.definitions {
		cols := make([]string, len(d.Columns))
		for i, c := range d.Columns {
			cols[i] = c.Name
		}
		out = append(out, models.TableSummary{Name: d.Name, Title: d.Title, Source: d.Source, Columns: cols})
	}
	return out
}

// resolvedTable is a definition checked against the live schema, with the
// layout override applied.
type resolvedTable struct {
	def     config.TableDefinition
	columns []config.ColumnDefinition
	source  map[string]bool
	layout  models.TableLayoutConfig
}

func (s *TableService) resolve(ctx context.Context, def config.TableDefinition, layout *models.TableLayoutConfig) (*resolvedTable, error) {
	sourceCols, err := database.TableColumns(ctx, def.Source)
	if err != nil {
		return nil, err
	}
	rt := &resolvedTable{def: def, source: make(map[string]bool, len(sourceCols))}
	for _, c := range sourceCols {
		rt.source[c] = true
	}
	if layout != nil {
		rt.layout = *layout
	}

	columns := def.Columns
	if len(columns) == 0 {
		columns = make([]config.ColumnDefinition, len(sourceCols))
		for i, c := range sourceCols {
			columns[i] = config.ColumnDefinition{Name: c}
		}
	}
	for _, c := range columns {
		if !rt.source[c.Name] {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, def.Source, c.Name)
		}
		if override, ok := rt.layout.Columns[c.Name]; ok && override.Hidden {
			continue
		}
		rt.columns = append(rt.columns, c)
	}
	for _, lookup := range def.Search {
		if !rt.source[lookup] {
			return nil, fmt.Errorf("%w: search lookup %s.%s", ErrUnknownColumn, def.Source, lookup)
		}
	}
	return rt, nil
}

func (rt *resolvedTable) resultsPerPage() int {
	if rt.layout.PageSize > 0 {
		return rt.layout.PageSize
	}
	if rt.def.ResultsPerPage > 0 {
		return rt.def.ResultsPerPage
	}
	return config.DefaultResultsPerPage
}

// VerboseColumn is the header shown for a column: its label, or its name with
// underscores as spaces and the first letter upper-cased.
func VerboseColumn(col config.ColumnDefinition) string {
	if col.Label != "" {
		return col.Label
	}
	return capFirst(strings.ReplaceAll(col.Name, "_", " "))
}

func capFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func (rt *resolvedTable) columnWidth(col config.ColumnDefinition) string {
	if override, ok := rt.layout.Columns[col.Name]; ok && override.Width != "" {
		return override.Width
	}
	if col.Width != "" {
		return col.Width
	}
	return config.DefaultColumnWidth
}

// orderingFor returns the ORDER BY terms for a column and a direction of -1, 0 or 1.
// Lookups prefixed with '-' sort descending; direction -1 inverts every lookup.
func (rt *resolvedTable) orderingFor(col config.ColumnDefinition, direction int) ([]database.OrderTerm, error) {
	if direction == 0 {
		return nil, nil
	}
	if col.Sortable != nil && !*col.Sortable {
		return nil, nil
	}
	lookups := col.Ordering
	if len(lookups) == 0 {
		lookups = []string{col.Name}
	}
	terms := make([]database.OrderTerm, 0, len(lookups))
	for _, lookup := range lookups {
		desc := strings.HasPrefix(lookup, "-")
		name := strings.TrimPrefix(lookup, "-")
		if !rt.source[name] {
			return nil, fmt.Errorf("%w: ordering %s.%s", ErrUnknownColumn, rt.def.Source, name)
		}
		if direction < 0 {
			desc = !desc
		}
		terms = append(terms, database.OrderTerm{Column: name, Descending: desc})
	}
	return terms, nil
}

func (rt *resolvedTable) filterFor(ctx context.Context, col config.ColumnDefinition) (models.Filter, error) {
	if col.FilterQuery != "" {
		options, err := database.FilterOptions(ctx, col.FilterQuery)
		if err != nil {
			return nil, fmt.Errorf("filter for %s: %w", col.Name, err)
		}
		return models.Filter(options), nil
	}
	filter := make(models.Filter, 0, len(col.Filter))
	for _, choice := range col.Filter {
		filter = append(filter, models.FilterOption{Value: choice.Value, Label: choice.Label})
	}
	return filter, nil
}

// Config builds the get_config payload.
func (s *TableService) Config(ctx context.Context, def config.TableDefinition, layout *models.TableLayoutConfig) (models.TableConfig, error) {
	rt, err := s.resolve(ctx, def, layout)
	if err != nil {
		return models.TableConfig{}, err
	}
	metricDataRequests.WithLabelValues("config").Inc()

	cfg := models.TableConfig{
		Columns:        make([]string, 0, len(rt.columns)),
		ColumnsWidths:  make([]string, 0, len(rt.columns)),
		SearchEnabled:  len(def.Search) > 0,
		Sortables:      make([]bool, 0, len(rt.columns)),
		Filters:        make([]models.Filter, 0, len(rt.columns)),
		ResultsPerPage: rt.resultsPerPage(),
	}
	for _, col := range rt.columns {
		ordering, err := rt.orderingFor(col, 1)
		if err != nil {
			return models.TableConfig{}, err
		}
		filter, err := rt.filterFor(ctx, col)
		if err != nil {
			return models.TableConfig{}, err
		}
		cfg.Columns = append(cfg.Columns, VerboseColumn(col))
		cfg.ColumnsWidths = append(cfg.ColumnsWidths, rt.columnWidth(col))
		cfg.Sortables = append(cfg.Sortables, len(ordering) > 0)
		cfg.Filters = append(cfg.Filters, filter)
	}
	return cfg, nil
}

// Init is the emitter input for a table.
func (s *TableService) Init(ctx context.Context, def config.TableDefinition, layout *models.TableLayoutConfig) (models.TableInit, error) {
	cfg, err := s.Config(ctx, def, layout)
	if err != nil {
		return models.TableInit{}, err
	}
	return cfg.Init(), nil
}

// MaxPage bounds the page index so the row offset cannot overflow.
const MaxPage = 1 << 20

// ParseDataQuery reads q, choices, orderings and page from the widget's request.
// choices and q are unquoted a second time because the widget encodes each
// choice before joining them with commas.
func ParseDataQuery(values url.Values) (models.DataQuery, error) {
	var dq models.DataQuery

	dq.Q = strings.TrimSpace(unquote(values.Get("q")))

	if raw := values.Get("choices"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			dq.Choices = append(dq.Choices, unquote(part))
		}
	}

	if values.Has("orderings") {
		dq.HasOrderings = true
		if raw := values.Get("orderings"); raw != "" {
			for _, part := range strings.Split(raw, ",") {
				direction, err := strconv.Atoi(strings.TrimSpace(part))
				if err != nil || direction < -1 || direction > 1 {
					return dq, fmt.Errorf("%w: ordering %q must be -1, 0 or 1", ErrBadQuery, part)
				}
				dq.Orderings = append(dq.Orderings, direction)
			}
		}
	}

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 0 || page > MaxPage {
			return dq, fmt.Errorf("%w: page %q", ErrBadQuery, raw)
		}
		dq.Page = page
	}
	return dq, nil
}

// unquote decodes %XX escapes and leaves malformed ones as they are, so a bare
// "50%" survives.
func unquote(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if hi, ok := unhex(s[i+1]); ok {
				if lo, ok := unhex(s[i+2]); ok {
					b.WriteByte(hi<<4 | lo)
					i += 2
					continue
				}
			}
		}
		b.WriteByte(s[i])
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD")
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Data returns one page of rows plus the total count of matching rows.
func (s *TableService) Data(ctx context.Context, def config.TableDefinition, dq models.DataQuery, layout *models.TableLayoutConfig) (models.TableData, error) {
	rt, err := s.resolve(ctx, def, layout)
	if err != nil {
		return models.TableData{}, err
	}
	metricDataRequests.WithLabelValues("data").Inc()

	policy, err := CellPolicy(def.CellPolicy)
	if err != nil {
		return models.TableData{}, err
	}

	perPage := rt.resultsPerPage()
	if dq.Page > math.MaxInt32/perPage {
		return models.TableData{}, fmt.Errorf("%w: page %d is out of range", ErrBadQuery, dq.Page)
	}
	q := database.RowQuery{
		Source: def.Source,
		Limit:  perPage,
		Offset: dq.Page * perPage,
	}
	for _, col := range rt.columns {
		q.Columns = append(q.Columns, col.Name)
	}
	if len(q.Columns) == 0 {
		return models.TableData{Results: [][]string{}}, nil
	}

	if dq.Q != "" {
		if len(def.Search) == 0 {
			logger.Debug("Data: search %q on %s, which has no search lookups", dq.Q, def.Name)
			return models.TableData{Results: [][]string{}}, nil
		}
		ors := make([]string, len(def.Search))
		for i, lookup := range def.Search {
			ors[i] = database.QuoteIdent(lookup) + ` LIKE ? ESCAPE '\'`
			q.Args = append(q.Args, "%"+likeEscaper.Replace(dq.Q)+"%")
		}
		q.Where = append(q.Where, "("+strings.Join(ors, " OR ")+")")
	}

	for i, col := range rt.columns {
		if i >= len(dq.Choices) {
			break
		}
		if dq.Choices[i] == "" {
			continue
		}
		q.Where = append(q.Where, database.QuoteIdent(col.Name)+" = ?")
		q.Args = append(q.Args, dq.Choices[i])
	}

	if dq.HasOrderings {
		for i, col := range rt.columns {
			if i >= len(dq.Orderings) {
				break
			}
			terms, err := rt.orderingFor(col, dq.Orderings[i])
			if err != nil {
				return models.TableData{}, err
			}
			q.OrderBy = append(q.OrderBy, terms...)
		}
	}

	count, err := database.CountRows(ctx, q)
	if err != nil {
		return models.TableData{}, err
	}
	rows, err := database.QueryRows(ctx, q)
	if err != nil {
		return models.TableData{}, err
	}

	labels := displayLabels(rt.columns)
	for _, row := range rows {
		for i, cell := range row {
			if m := labels[i]; m != nil {
				if label, ok := m[cell]; ok {
					cell = label
				}
			}
			row[i] = policy.Sanitize(cell)
		}
	}
	return models.TableData{Results: rows, Count: count}, nil
}

// displayLabels maps stored values to their filter labels for columns with display_labels set.
func displayLabels(columns []config.ColumnDefinition) []map[string]string {
	out := make([]map[string]string, len(columns))
	for i, col := range columns {
		if !col.DisplayLabels || len(col.Filter) == 0 {
			continue
		}
		m := make(map[string]string, len(col.Filter))
		for _, choice := range col.Filter {
			m[choice.Value] = choice.Label
		}
		out[i] = m
	}
	return out
}
