package handlers

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RegisterTableRoutes mounts the JSON endpoints; paths are relative to /api.
func RegisterTableRoutes(r chi.Router, d *Deps) {
	r.Get("/tables", d.ListTablesHandler)
	r.Get("/tables/{tableName}", d.TableJSONHandler)
}

// RegisterTablePageRoutes mounts the HTML page and the standalone script.
// Both are never cached: labels depend on the request language.
func RegisterTablePageRoutes(r chi.Router, d *Deps) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.NoCache)
		r.Get("/tables/{tableName}", d.TablePageHandler)
		r.Get("/tables/{tableName}/init.js", d.TableScriptHandler)
	})
}
