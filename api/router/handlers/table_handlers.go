package handlers

import (
	"context"
	"net/http"
	"tablature/config"
	"tablature/core"
	"tablature/database"
	"tablature/i18n"
	"tablature/logger"
	"tablature/models"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"
)

// Deps is what the table handlers need from the process.
type Deps struct {
	Tables        *core.TableService
	Catalog       *i18n.Catalog
	DefaultLocale language.Tag
	Selector      string
	ReadyHook     core.ReadyHook
	ScriptURLs    []string
}

// emitterFor builds an emitter speaking the request's language.
func (d *Deps) emitterFor(w http.ResponseWriter, r *http.Request) *core.TableConfigEmitter {
	tag := d.DefaultLocale
	if d.Catalog != nil {
		var persist bool
		tag, persist = d.Catalog.ResolveTag(r, d.DefaultLocale)
		if persist {
			i18n.SetLanguageCookie(w, tag)
		}
	}
	return core.NewTableConfigEmitter(i18n.Printer(tag), core.WithSelector(d.Selector), core.WithReadyHook(d.ReadyHook))
}

func (d *Deps) definition(r *http.Request) (config.TableDefinition, error) {
	return d.Tables.Definition(chi.URLParam(r, "tableName"))
}

// layoutFor returns the stored override for a table, or nil. A broken layout
// setting is logged and ignored so the table still renders.
func layoutFor(ctx context.Context, tableName string) *models.TableLayoutConfig {
	if database.DB == nil {
		return nil
	}
	layout, ok, err := database.GetTableLayout(ctx, tableName)
	if err != nil {
		logger.Error("layoutFor: Error loading layout for %s: %v", tableName, err)
		return nil
	}
	if !ok {
		return nil
	}
	return &layout
}

// ListTablesHandler lists the configured tables.
func (d *Deps) ListTablesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.Tables.Summaries())
}

// TableJSONHandler serves the widget's config (?get_config) or a page of rows.
func (d *Deps) TableJSONHandler(w http.ResponseWriter, r *http.Request) {
	def, err := d.definition(r)
	if err != nil {
		writeTableError(w, "TableJSONHandler", err)
		return
	}
	if def.AccessControlAllowOrigin != "" {
		w.Header().Set("Access-Control-Allow-Origin", def.AccessControlAllowOrigin)
	}
	layout := layoutFor(r.Context(), def.Name)

	if r.URL.Query().Has("get_config") {
		cfg, err := d.Tables.Config(r.Context(), def, layout)
		if err != nil {
			writeTableError(w, "TableJSONHandler(config "+def.Name+")", err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
		return
	}

	dq, err := core.ParseDataQuery(r.URL.Query())
	if err != nil {
		writeTableError(w, "TableJSONHandler(query "+def.Name+")", err)
		return
	}
	data, err := d.Tables.Data(r.Context(), def, dq, layout)
	if err != nil {
		writeTableError(w, "TableJSONHandler(data "+def.Name+")", err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// TableScriptHandler serves the init script on its own, for pages that are not rendered here.
func (d *Deps) TableScriptHandler(w http.ResponseWriter, r *http.Request) {
	script, _, err := d.renderScript(w, r)
	if err != nil {
		writeTableError(w, "TableScriptHandler", err)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(script)); err != nil {
		logger.Error("TableScriptHandler: Error writing script: %v", err)
	}
}

func (d *Deps) renderScript(w http.ResponseWriter, r *http.Request) (string, config.TableDefinition, error) {
	def, err := d.definition(r)
	if err != nil {
		return "", def, err
	}
	tableInit, err := d.Tables.Init(r.Context(), def, layoutFor(r.Context(), def.Name))
	if err != nil {
		return "", def, err
	}
	script, err := d.emitterFor(w, r).Emit(tableInit)
	if err != nil {
		return "", def, err
	}
	return script, def, nil
}
