package handlers

import (
	"github.com/go-chi/chi/v5"
)

func RegisterSettingsRoutes(r chi.Router) {
	r.Route("/settings/table-layouts", func(r chi.Router) {
		r.Get("/", GetTableLayoutsHandler)
		r.Post("/", SetTableLayoutsHandler)
		r.Put("/", SetTableLayoutsHandler)
		r.Delete("/", ResetTableLayoutsHandler)
		r.Post("/reset", ResetTableLayoutsHandler)

		r.Get("/{tableName}", GetTableLayoutHandler)
		r.Put("/{tableName}", SetTableLayoutHandler)
	})
}
