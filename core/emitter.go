package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"tablature/models"
	"unicode"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Source-language phrases the widget labels are looked up by.
const (
	PhraseResults        = "results"
	PhraseSortColumn     = "Sort by this column"
	PhraseFilterColumn   = "Filter by this column"
	PhraseClearSelection = "Clear selection"
)

const DefaultSelector = "#table"

var (
	ErrColumnWidthMismatch = errors.New("columns and column widths differ in length")
	ErrSortableMismatch    = errors.New("sortables and columns differ in length")
	ErrFilterMismatch      = errors.New("more filters than columns")
	ErrInvalidPageSize     = errors.New("results per page must be positive")
)

var (
	metricScriptsEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tablature_scripts_emitted_total",
			Help: "Table init scripts emitted",
		})

	metricScriptsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tablature_scripts_rejected_total",
			Help: "Table init scripts rejected by input validation",
		})
)

// Localizer resolves a source-language phrase to the active language.
type Localizer interface {
	Translate(phrase string) string
}

// IdentityLocalizer returns every phrase untranslated.
type IdentityLocalizer struct{}

func (IdentityLocalizer) Translate(phrase string) string { return phrase }

// ReadyHook selects how the emitted script defers construction until the page is ready.
type ReadyHook int

const (
	HookJQueryReady ReadyHook = iota
	HookDOMContentLoaded
)

// ParseReadyHook maps the config value to a hook. Empty means jQuery.
func ParseReadyHook(s string) (ReadyHook, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jquery":
		return HookJQueryReady, nil
	case "domcontentloaded", "dom":
		return HookDOMContentLoaded, nil
	default:
		return HookJQueryReady, fmt.Errorf("unknown ready hook %q", s)
	}
}

func (h ReadyHook) String() string {
	if h == HookDOMContentLoaded {
		return "domcontentloaded"
	}
	return "jquery"
}

// TableConfigEmitter writes the script that constructs one Table widget.
// It holds no per-render state and can be shared.
type TableConfigEmitter struct {
	localizer Localizer
	selector  string
	hook      ReadyHook
}

type EmitterOption func(*TableConfigEmitter)

func WithSelector(selector string) EmitterOption {
	return func(e *TableConfigEmitter) {
		if selector != "" {
			e.selector = selector
		}
	}
}

func WithReadyHook(h ReadyHook) EmitterOption {
	return func(e *TableConfigEmitter) { e.hook = h }
}

func NewTableConfigEmitter(l Localizer, opts ...EmitterOption) *TableConfigEmitter {
	if l == nil {
		l = IdentityLocalizer{}
	}
	e := &TableConfigEmitter{localizer: l, selector: DefaultSelector, hook: HookJQueryReady}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Labels resolves the four widget labels through the localizer.
func (e *TableConfigEmitter) Labels() models.TableLabels {
	return models.TableLabels{
		Results:        e.localizer.Translate(PhraseResults),
		SortTooltip:    e.localizer.Translate(PhraseSortColumn),
		FilterTooltip:  e.localizer.Translate(PhraseFilterColumn),
		ClearSelection: e.localizer.Translate(PhraseClearSelection),
	}
}

// ValidateInit checks index alignment. Empty sortables are allowed. Filters may
// be shorter than columns; trailing columns without an entry are not filterable.
func ValidateInit(in models.TableInit) error {
	if len(in.Columns) != len(in.ColumnsWidths) {
		return fmt.Errorf("%w: %d columns, %d widths", ErrColumnWidthMismatch, len(in.Columns), len(in.ColumnsWidths))
	}
	if len(in.Sortables) != 0 && len(in.Sortables) != len(in.Columns) {
		return fmt.Errorf("%w: %d columns, %d sortables", ErrSortableMismatch, len(in.Columns), len(in.Sortables))
	}
	if len(in.Filters) > len(in.Columns) {
		return fmt.Errorf("%w: %d columns, %d filters", ErrFilterMismatch, len(in.Columns), len(in.Filters))
	}
	if in.ResultsPerPage <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidPageSize, in.ResultsPerPage)
	}
	return nil
}

// Emit returns the script text. Every string goes through quoteJS.
func (e *TableConfigEmitter) Emit(in models.TableInit) (string, error) {
	if err := ValidateInit(in); err != nil {
		metricScriptsRejected.Inc()
		return "", err
	}
	labels := e.Labels()

	var b strings.Builder
	switch e.hook {
	case HookDOMContentLoaded:
		b.WriteString("(function () {\n  var init = function () {\n")
	default:
		b.WriteString("$(function () {\n")
	}

	b.WriteString("  var filters = ")
	writeFilters(&b, in.Filters)
	b.WriteString(";\n")

	b.WriteString("  new Table(\n")
	fmt.Fprintf(&b, "    $(%s), ", quoteJS(e.selector))
	writeStrings(&b, in.Columns)
	b.WriteString(",\n    ")
	writeStrings(&b, in.ColumnsWidths)
	b.WriteString(",\n    ")
	writeBools(&b, in.Sortables)
	b.WriteString(", filters,\n    ")
	fmt.Fprintf(&b, "%s, %s,\n", strconv.Itoa(in.ResultsPerPage), quoteJS(labels.Results))
	fmt.Fprintf(&b, "    %s,\n", quoteJS(labels.SortTooltip))
	fmt.Fprintf(&b, "    %s,\n", quoteJS(labels.FilterTooltip))
	fmt.Fprintf(&b, "    %s\n", quoteJS(labels.ClearSelection))
	b.WriteString("  );\n")

	switch e.hook {
	case HookDOMContentLoaded:
		// the event has already fired when the script loads async or late
		b.WriteString("  };\n")
		b.WriteString("  if (document.readyState !== 'loading') {\n    init();\n  } else {\n")
		b.WriteString("    document.addEventListener('DOMContentLoaded', init, { once: true });\n  }\n")
		b.WriteString("})();\n")
	default:
		b.WriteString("});\n")
	}

	metricScriptsEmitted.Inc()
	return b.String(), nil
}

// quoteJS returns s as a single-quoted JS string literal. Quotes, backslashes,
// angle brackets, ampersands, equals signs and non-printable runes (line
// separators included) are escaped, so the literal is also safe inside a
// <script> element. Runes above U+FFFF are written as \u{...}; a hex digit
// right after one is escaped too, since some decoders read it as part of the
// code point.
func quoteJS(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	braced := false
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		afterBrace := braced
		braced = false
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\'':
			b.WriteString(`\'`)
		case r == '"':
			b.WriteString(`\"`)
		case r == '<', r == '>', r == '&', r == '=':
			fmt.Fprintf(&b, `\u%04X`, r)
		case afterBrace && isHexDigit(r):
			fmt.Fprintf(&b, `\u%04X`, r)
		case r == utf8.RuneError && size == 1:
			b.WriteString(`\uFFFD`)
		case r < ' ' || !unicode.IsPrint(r):
			if r > 0xFFFF {
				fmt.Fprintf(&b, `\u{%X}`, r)
				braced = true
			} else {
				fmt.Fprintf(&b, `\u%04X`, r)
			}
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func isHexDigit(r rune) bool {
	return ('0' <= r && r <= '9') || ('a' <= r && r <= 'f') || ('A' <= r && r <= 'F')
}

func writeStrings(b *strings.Builder, values []string) {
	b.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quoteJS(v))
	}
	b.WriteByte(']')
}

func writeBools(b *strings.Builder, values []bool) {
	b.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatBool(v))
	}
	b.WriteByte(']')
}

func writeFilters(b *strings.Builder, filters []models.Filter) {
	b.WriteByte('[')
	for i, f := range filters {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		for j, opt := range f {
			if j > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(b, "[%s,%s]", quoteJS(opt.Value), quoteJS(opt.Label))
		}
		b.WriteByte(']')
	}
	b.WriteByte(']')
}
