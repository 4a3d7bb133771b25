package models

import "encoding/json"

// FilterOption is one selectable (value, label) pair of a column filter.
type FilterOption struct {
	Value string
	Label string
}

// MarshalJSON encodes the option as a two-element array, the shape the widget reads.
func (o FilterOption) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{o.Value, o.Label})
}

// UnmarshalJSON accepts the two-element array form.
func (o *FilterOption) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	o.Value, o.Label = pair[0], pair[1]
	return nil
}

// Filter holds the options for one column. An empty Filter means the column is not filterable.
type Filter []FilterOption

// TableInit is everything the table widget constructor needs apart from its labels.
// Columns, ColumnsWidths, Sortables and Filters are index-aligned.
type TableInit struct {
	Columns        []string
	ColumnsWidths  []string
	Sortables      []bool
	Filters        []Filter
	ResultsPerPage int
}

// TableLabels are the four translated UI strings passed to the widget.
type TableLabels struct {
	Results        string
	SortTooltip    string
	FilterTooltip  string
	ClearSelection string
}

// TableConfig is the payload returned for ?get_config.
type TableConfig struct {
	Columns        []string `json:"columns" example:"Name,Age"`
	ColumnsWidths  []string `json:"columns_widths" example:"200px,initial"`
	SearchEnabled  bool     `json:"search_enabled"`
	Sortables      []bool   `json:"sortables"`
	Filters        []Filter `json:"filters"`
	ResultsPerPage int      `json:"results_per_page" example:"15"`
}

// Init drops the fields the widget constructor does not take.
func (c TableConfig) Init() TableInit {
	return TableInit{
		Columns:        c.Columns,
		ColumnsWidths:  c.ColumnsWidths,
		Sortables:      c.Sortables,
		Filters:        c.Filters,
		ResultsPerPage: c.ResultsPerPage,
	}
}

// TableData is one page of stringified rows plus the total match count.
type TableData struct {
	Results [][]string `json:"results"`
	Count   int64      `json:"count"`
}

// TableSummary is used when listing the defined tables.
type TableSummary struct {
	Name    string   `json:"name"`
	Title   string   `json:"title"`
	Source  string   `json:"source"`
	Columns []string `json:"columns"`
}
