package core

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer cleans one cell value before it is sent to the widget.
type Sanitizer interface {
	Sanitize(s string) string
}

type passthrough struct{}

func (passthrough) Sanitize(s string) string { return s }

var (
	strictPolicy = bluemonday.StrictPolicy()
	ugcPolicy    = newUGCPolicy()
)

func newUGCPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowStandardURLs()
	p.AllowAttrs("class").OnElements("span")
	return p
}

// CellPolicy maps a table's cell_policy setting to a sanitizer:
// "" or "none" keeps values as stored, "strict" strips all markup,
// "ugc" keeps basic formatting and links.
func CellPolicy(name string) (Sanitizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return passthrough{}, nil
	case "strict":
		return strictPolicy, nil
	case "ugc":
		return ugcPolicy, nil
	default:
		return nil, fmt.Errorf("unknown cell policy %q", name)
	}
}
