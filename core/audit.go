package core

import (
	"errors"
	"fmt"
	"tablature/models"

	"github.com/BishopFox/jsluice"
)

var ErrScriptMismatch = errors.New("emitted script does not decode to its inputs")

// AuditScript parses script and returns every string literal, decoded, in source order.
func AuditScript(script []byte) []string {
	analyzer := jsluice.NewAnalyzer(script)
	var literals []string
	analyzer.Query("(string) @str", func(n *jsluice.Node) {
		if n == nil {
			return
		}
		literals = append(literals, n.DecodedString())
	})
	return literals
}

// expectedLiterals mirrors the order Emit writes string literals in.
func (e *TableConfigEmitter) expectedLiterals(in models.TableInit) []string {
	var out []string
	for _, f := range in.Filters {
		for _, opt := range f {
			out = append(out, opt.Value, opt.Label)
		}
	}
	out = append(out, e.selector)
	out = append(out, in.Columns...)
	out = append(out, in.ColumnsWidths...)
	labels := e.Labels()
	out = append(out, labels.Results, labels.SortTooltip, labels.FilterTooltip, labels.ClearSelection)
	if e.hook == HookDOMContentLoaded {
		out = append(out, "loading", "DOMContentLoaded")
	}
	return out
}

// VerifyScript re-parses a script emitted for init and checks that every
// string literal decodes back to the value it was built from.
func (e *TableConfigEmitter) VerifyScript(script string, in models.TableInit) error {
	got := AuditScript([]byte(script))
	want := e.expectedLiterals(in)
	if len(got) != len(want) {
		return fmt.Errorf("%w: %d literals, expected %d", ErrScriptMismatch, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("%w: literal %d is %q, expected %q", ErrScriptMismatch, i, truncate(got[i]), truncate(want[i]))
		}
	}
	return nil
}

func truncate(s string) string {
	if len(s) <= 60 {
		return s
	}
	return s[:57] + "..."
}
