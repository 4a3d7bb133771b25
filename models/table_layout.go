package models

// ColumnConfig defines the structure for a single column's configuration within a table layout.
type ColumnConfig struct {
	Width  string `json:"width,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
}

// TableLayoutConfig defines the structure for a single table's layout configuration.
type TableLayoutConfig struct {
	Columns  map[string]ColumnConfig `json:"columns"`            // keyed by column name
	PageSize int                     `json:"pageSize,omitempty"` // 0 keeps the table default
}

// AllTableLayouts maps a table name to its layout override.
type AllTableLayouts map[string]TableLayoutConfig

// TableLayoutsKey is the app_settings key the layouts are stored under.
const TableLayoutsKey = "table_layouts"
