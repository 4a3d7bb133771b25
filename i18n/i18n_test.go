package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestDefaultCatalogTranslates(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.Len(t, c.SupportedTags(), 5)

	fr := Printer(language.French)
	require.Equal(t, "résultats", fr.Translate("results"))
	require.Equal(t, "Effacer la sélection", fr.Translate("Clear selection"))
	require.Equal(t, language.French, fr.Tag())

	de := Printer(language.German)
	require.Equal(t, "Nach dieser Spalte sortieren", de.Translate("Sort by this column"))

	// unknown phrases and locales come back untranslated
	require.Equal(t, "Unknown phrase", fr.Translate("Unknown phrase"))
	require.Equal(t, "results", Printer(language.Japanese).Translate("results"))
}

func TestCatalogParseTag(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	tag, ok := c.ParseTag("fr-CA")
	require.True(t, ok)
	require.Equal(t, "fr", tag.String())

	tag, ok = c.ParseTag("en")
	require.True(t, ok)
	require.Equal(t, "en-US", tag.String())

	_, ok = c.ParseTag("ja")
	require.False(t, ok)

	_, ok = c.ParseTag("not a tag!")
	require.False(t, ok)
}

func TestResolveTag(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	fallback := language.MustParse("en-US")

	tests := []struct {
		name        string
		target      string
		cookie      string
		accept      string
		want        string
		wantPersist bool
	}{
		{name: "query parameter wins", target: "/?lang=nl", cookie: "de", accept: "es", want: "nl", wantPersist: true},
		{name: "cookie before header", target: "/", cookie: "de", accept: "es", want: "de"},
		{name: "accept-language", target: "/", accept: "ja, es;q=0.8", want: "es"},
		{name: "unsupported query falls through", target: "/?lang=ja", accept: "fr", want: "fr"},
		{name: "fallback", target: "/", accept: "ja", want: "en-US"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: LangCookieName, Value: tt.cookie})
			}
			if tt.accept != "" {
				r.Header.Set("Accept-Language", tt.accept)
			}
			tag, persist := c.ResolveTag(r, fallback)
			require.Equal(t, tt.want, tag.String())
			require.Equal(t, tt.wantPersist, persist)
		})
	}
}

func TestSetLanguageCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	SetLanguageCookie(rec, language.Spanish)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, LangCookieName, cookies[0].Name)
	require.Equal(t, "es", cookies[0].Value)
	require.Equal(t, "/", cookies[0].Path)
}

func TestLoadFromFSErrors(t *testing.T) {
	_, err := LoadFromFS(fstest.MapFS{})
	require.Error(t, err)

	_, err = LoadFromFS(fstest.MapFS{
		"locales/a.yaml": {Data: []byte("locale: it\nmessages:\n  results: risultati\n")},
		"locales/b.yaml": {Data: []byte("locale: it\nmessages: {}\n")},
	})
	require.ErrorContains(t, err, "defined twice")

	_, err = LoadFromFS(fstest.MapFS{
		"locales/a.yaml": {Data: []byte("locale: [it\n")},
	})
	require.Error(t, err)

	c, err := LoadFromFS(fstest.MapFS{
		"locales/pt.yaml": {Data: []byte("locale: pt-BR\nmessages:\n  results: resultados\n")},
	})
	require.NoError(t, err)
	require.Equal(t, []language.Tag{language.MustParse("pt-BR")}, c.SupportedTags())
	require.Equal(t, "resultados", Printer(language.MustParse("pt-BR")).Translate("results"))
}

func TestTranslateKeepsPercentSigns(t *testing.T) {
	_, err := LoadFromFS(fstest.MapFS{
		"locales/sv.yaml": {Data: []byte("locale: sv\nmessages:\n  \"50% off\": \"50 % rabatt\"\n  results: \"%d träffar\"\n")},
	})
	require.NoError(t, err)

	sv := Printer(language.Swedish)
	require.Equal(t, "50 % rabatt", sv.Translate("50% off"))
	require.Equal(t, "%d träffar", sv.Translate("results"))
	require.Equal(t, "100% untranslated", sv.Translate("100% untranslated"))
}
