package handlers

import (
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"tablature/logger"

	"github.com/google/uuid"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/table_page.html"))

type tablePage struct {
	Lang       string
	Title      string
	ElementID  string
	AjaxURL    string
	ScriptURLs []string
	Nonce      string
	Script     template.JS
}

// ElementID returns the id named by a plain "#id" selector. The page only
// hosts the widget for such selectors.
func ElementID(selector string) (string, bool) {
	if strings.HasPrefix(selector, "#") && len(selector) > 1 && !strings.ContainsAny(selector[1:], " .#[:>+~,") {
		return selector[1:], true
	}
	return "", false
}

// TablePageHandler renders the page hosting the widget. AJAX requests to the
// same URL get the JSON answer instead, matching what the widget expects.
func (d *Deps) TablePageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		d.TableJSONHandler(w, r)
		return
	}

	id, ok := ElementID(d.Selector)
	if !ok {
		logger.Error("TablePageHandler: selector %q does not name an element id", d.Selector)
		writeJSONError(w, http.StatusInternalServerError, "Failed to load table")
		return
	}
	script, def, err := d.renderScript(w, r)
	if err != nil {
		writeTableError(w, "TablePageHandler", err)
		return
	}

	nonce := uuid.NewString()
	page := tablePage{
		Lang:       langOf(r, d),
		Title:      def.Title,
		ElementID:  id,
		AjaxURL:    "/api/tables/" + url.PathEscape(def.Name),
		ScriptURLs: d.ScriptURLs,
		Nonce:      nonce,
		// quoteJS escapes '<' so the script cannot close its own element
		Script: template.JS(script),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", "script-src 'self' 'nonce-"+nonce+"'")
	if err := pageTemplate.Execute(w, page); err != nil {
		logger.Error("TablePageHandler: Error rendering page for %s: %v", def.Name, err)
	}
}

// langOf reports the language the labels were resolved in, for <html lang>.
func langOf(r *http.Request, d *Deps) string {
	if d.Catalog == nil {
		return d.DefaultLocale.String()
	}
	tag, _ := d.Catalog.ResolveTag(r, d.DefaultLocale)
	return tag.String()
}
