package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"tablature/config"
	"tablature/core"
	"tablature/logger"
	"tablature/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("writeJSON: Error encoding response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Message: message})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, config.ErrUnknownTable):
		return http.StatusNotFound
	case errors.Is(err, core.ErrBadQuery):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeTableError logs server-side failures and hides their detail from the client.
func writeTableError(w http.ResponseWriter, where string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("%s: %v", where, err)
		writeJSONError(w, status, "Failed to load table")
		return
	}
	logger.Debug("%s: %v", where, err)
	writeJSONError(w, status, err.Error())
}
