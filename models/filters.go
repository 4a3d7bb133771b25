package models

// DataQuery is the parsed set of parameters sent by the widget when it asks for rows.
// Choices and Orderings are positional: the i-th entry applies to the i-th column.
type DataQuery struct {
	Q            string   `json:"q,omitempty"`
	Choices      []string `json:"choices,omitempty"`
	Orderings    []int    `json:"orderings,omitempty"`
	HasOrderings bool     `json:"-"`
	Page         int      `json:"page"`
}
