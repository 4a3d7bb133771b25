package handlers

import (
	"net/http"
	"tablature/database"
	"tablature/logger"

	"github.com/go-chi/chi/v5"
)

func RegisterHealthRoutes(r chi.Router) {
	r.Get("/health", healthCheckHandler)
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if database.DB != nil {
		if err := database.DB.PingContext(r.Context()); err != nil {
			logger.Error("Health check: database ping failed: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ok": false})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
