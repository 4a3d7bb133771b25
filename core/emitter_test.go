package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"tablature/models"
)

func sampleInit() models.TableInit {
	return models.TableInit{
		Columns:        []string{"Name", "Age"},
		ColumnsWidths:  []string{"200px", "50px"},
		Sortables:      []bool{true, false},
		Filters:        []models.Filter{{}},
		ResultsPerPage: 25,
	}
}

type mapLocalizer map[string]string

func (m mapLocalizer) Translate(phrase string) string {
	if s, ok := m[phrase]; ok {
		return s
	}
	return phrase
}

func TestEmitPositionalArguments(t *testing.T) {
	out, err := NewTableConfigEmitter(nil).Emit(sampleInit())
	require.NoError(t, err)

	require.Contains(t, out, "['Name','Age']")
	require.Contains(t, out, "['200px','50px']")
	require.Contains(t, out, "[true,false]")
	require.Contains(t, out, "var filters = [[]];")
	require.Contains(t, out, "25, 'results'")
	require.True(t, strings.HasPrefix(out, "$(function () {\n"))
	require.True(t, strings.HasSuffix(out, "});\n"))

	// selector, names, widths, sortables, filters, page size, then the four labels
	order := []string{"$('#table')", "['Name','Age']", "['200px','50px']", "[true,false]", "filters,", "25,",
		"'results'", "'Sort by this column'", "'Filter by this column'", "'Clear selection'"}
	last := -1
	for _, part := range order {
		idx := strings.Index(out, part)
		require.Greater(t, idx, last, "expected %q after previous argument", part)
		last = idx
	}
}

func TestEmitFilterRoundTrip(t *testing.T) {
	in := sampleInit()
	in.Filters = []models.Filter{
		{{Value: "O'Brien", Label: `A\B`}, {Value: `"quoted"`, Label: "line\nbreak"}},
		{},
	}
	e := NewTableConfigEmitter(nil)
	out, err := e.Emit(in)
	require.NoError(t, err)

	require.Contains(t, out, `'O\'Brien'`)
	require.Contains(t, out, `'A\\B'`)
	require.NotContains(t, out, "line\nbreak")

	literals := AuditScript([]byte(out))
	require.Contains(t, literals, "O'Brien")
	require.Contains(t, literals, `A\B`)
	require.Contains(t, literals, `"quoted"`)
	require.Contains(t, literals, "line\nbreak")
	require.NoError(t, e.VerifyScript(out, in))
}

func TestEmitEscapesEveryInterpolation(t *testing.T) {
	hostile := "</script><script>alert('x')</script>"
	in := models.TableInit{
		Columns:        []string{hostile, `back\slash`},
		ColumnsWidths:  []string{"calc(100% - 2em)", "10em"},
		Sortables:      []bool{false, true},
		Filters:        []models.Filter{{{Value: hostile, Label: "\u2028sep"}}, {}},
		ResultsPerPage: 10,
	}
	e := NewTableConfigEmitter(mapLocalizer{PhraseResults: "r'sultats"}, WithSelector("#t'x"))
	out, err := e.Emit(in)
	require.NoError(t, err)

	require.NotContains(t, strings.ToLower(out), "</script")
	require.NotContains(t, out, "\u2028")
	require.NotContains(t, out, "alert('x')")
	require.NoError(t, e.VerifyScript(out, in))
}

func TestEmitEscapesSupplementaryRunes(t *testing.T) {
	scotland := "\U0001F3F4\U000E0067\U000E0062\U000E0073\U000E0063\U000E0074\U000E007F"
	in := models.TableInit{
		Columns:       []string{"Flag", "\U000F0000beef"},
		ColumnsWidths: []string{"1em", "2em"},
		Filters: []models.Filter{{
			{Value: scotland, Label: "priv\U000F0000"},
		}},
		ResultsPerPage: 5,
	}
	e := NewTableConfigEmitter(nil)
	out, err := e.Emit(in)
	require.NoError(t, err)

	require.Contains(t, out, "'\U0001F3F4"+`\u{E0067}\u{E0062}\u{E0073}\u{E0063}\u{E0074}\u{E007F}'`)
	require.Contains(t, out, `'priv\u{F0000}'`)
	require.Contains(t, out, `'\u{F0000}\u0062eef'`)
	require.NotContains(t, out, `\uE0067`)
	require.NoError(t, e.VerifyScript(out, in))
}

func TestEmitAlignmentPreserved(t *testing.T) {
	cols := []string{"a", "b", "c", "d"}
	widths := []string{"1px", "2px", "3px", "4px"}
	sortables := []bool{true, false, false, true}
	out, err := NewTableConfigEmitter(nil).Emit(models.TableInit{
		Columns: cols, ColumnsWidths: widths, Sortables: sortables, ResultsPerPage: 5,
	})
	require.NoError(t, err)
	require.Contains(t, out, "['a','b','c','d'],\n    ['1px','2px','3px','4px'],\n    [true,false,false,true], filters,")

	literals := AuditScript([]byte(out))
	// selector first, then names, then widths
	require.Equal(t, cols, literals[1:5])
	require.Equal(t, widths, literals[5:9])
}

func TestEmitEmptyInputs(t *testing.T) {
	out, err := NewTableConfigEmitter(nil).Emit(models.TableInit{ResultsPerPage: 15})
	require.NoError(t, err)
	require.Contains(t, out, "var filters = [];")
	require.Contains(t, out, "$('#table'), [],\n    [],\n    [], filters,")
	require.Contains(t, out, "15, 'results'")
}

func TestEmitRejectsMisalignedInput(t *testing.T) {
	e := NewTableConfigEmitter(nil)
	tests := []struct {
		name string
		in   models.TableInit
		want error
	}{
		{
			name: "widths shorter than columns",
			in:   models.TableInit{Columns: []string{"a", "b"}, ColumnsWidths: []string{"1px"}, ResultsPerPage: 1},
			want: ErrColumnWidthMismatch,
		},
		{
			name: "widths without columns",
			in:   models.TableInit{ColumnsWidths: []string{"1px"}, ResultsPerPage: 1},
			want: ErrColumnWidthMismatch,
		},
		{
			name: "sortables misaligned",
			in:   models.TableInit{Columns: []string{"a"}, ColumnsWidths: []string{"1px"}, Sortables: []bool{true, true}, ResultsPerPage: 1},
			want: ErrSortableMismatch,
		},
		{
			name: "more filters than columns",
			in:   models.TableInit{Columns: []string{"a"}, ColumnsWidths: []string{"1px"}, Filters: []models.Filter{{}, {}}, ResultsPerPage: 1},
			want: ErrFilterMismatch,
		},
		{
			name: "zero page size",
			in:   models.TableInit{Columns: []string{"a"}, ColumnsWidths: []string{"1px"}},
			want: ErrInvalidPageSize,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Emit(tt.in)
			require.ErrorIs(t, err, tt.want)
			require.Empty(t, out)
		})
	}
}

func TestEmitLocalizedLabels(t *testing.T) {
	l := mapLocalizer{
		PhraseResults:        "résultats",
		PhraseSortColumn:     "Trier par cette colonne",
		PhraseFilterColumn:   "Filtrer par cette colonne",
		PhraseClearSelection: "Effacer la sélection",
	}
	e := NewTableConfigEmitter(l)
	out, err := e.Emit(sampleInit())
	require.NoError(t, err)
	require.Contains(t, out, "'résultats'")
	require.Contains(t, out, "'Trier par cette colonne'")
	require.Contains(t, out, "'Effacer la sélection'")
	require.Equal(t, "Filtrer par cette colonne", e.Labels().FilterTooltip)
}

func TestEmitDOMContentLoadedHook(t *testing.T) {
	e := NewTableConfigEmitter(nil, WithReadyHook(HookDOMContentLoaded), WithSelector("#people"))
	in := sampleInit()
	out, err := e.Emit(in)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "(function () {\n  var init = function () {\n"))
	require.Contains(t, out, "if (document.readyState !== 'loading') {\n    init();\n  }")
	require.Contains(t, out, "document.addEventListener('DOMContentLoaded', init, { once: true });")
	require.True(t, strings.HasSuffix(out, "})();\n"))
	require.Equal(t, 1, strings.Count(out, "new Table("))
	require.Contains(t, out, "$('#people')")
	require.NoError(t, e.VerifyScript(out, in))
}

func TestVerifyScriptDetectsTampering(t *testing.T) {
	e := NewTableConfigEmitter(nil)
	in := sampleInit()
	out, err := e.Emit(in)
	require.NoError(t, err)

	tampered := strings.Replace(out, "'Age'", "'Agé'", 1)
	require.ErrorIs(t, e.VerifyScript(tampered, in), ErrScriptMismatch)

	dropped := strings.Replace(out, ",'Age'", "", 1)
	require.ErrorIs(t, e.VerifyScript(dropped, in), ErrScriptMismatch)
}

func TestParseReadyHook(t *testing.T) {
	for in, want := range map[string]ReadyHook{
		"":                 HookJQueryReady,
		"jquery":           HookJQueryReady,
		"DOMContentLoaded": HookDOMContentLoaded,
		" dom ":            HookDOMContentLoaded,
	} {
		got, err := ParseReadyHook(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseReadyHook("onload")
	require.Error(t, err)
	require.Equal(t, "domcontentloaded", HookDOMContentLoaded.String())
}
