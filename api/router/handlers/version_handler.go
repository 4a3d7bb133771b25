package handlers

import (
	"net/http"
	"runtime"
	"tablature/version"
)

// GetVersionHandler returns the application version.
// @Summary Get application version
// @Description Retrieves the running version and the Go runtime it was built with.
// @Tags Version
// @Produce json
// @Success 200 {object} map[string]string "{"version": "0.1.0", "go": "go1.24.2"}"
// @Router /version [get]
func GetVersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": version.AppVersion,
		"go":      runtime.Version(),
	})
}
