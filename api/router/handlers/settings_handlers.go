package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"tablature/database"
	"tablature/logger"
	"tablature/models"

	"github.com/go-chi/chi/v5"
)

// GetTableLayoutsHandler returns every stored table layout override.
func GetTableLayoutsHandler(w http.ResponseWriter, r *http.Request) {
	layouts, err := database.GetTableLayouts(r.Context())
	if err != nil {
		logger.Error("GetTableLayoutsHandler: Error getting table layouts: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to retrieve table layouts")
		return
	}
	writeJSON(w, http.StatusOK, layouts)
}

// SetTableLayoutsHandler replaces all table layout overrides.
func SetTableLayoutsHandler(w http.ResponseWriter, r *http.Request) {
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("SetTableLayoutsHandler: Error reading request body: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to read request body: "+err.Error())
		return
	}
	defer r.Body.Close()
	logger.Debug("SetTableLayoutsHandler: Received raw body: %s", string(bodyBytes))

	var payload models.AllTableLayouts
	if err := json.Unmarshal(bodyBytes, &payload); err != nil {
		logger.Error("SetTableLayoutsHandler: Error decoding request body: %v", err)
		writeJSONError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	for name, layout := range payload {
		if err := validateLayout(layout); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid layout for %s: %v", name, err))
			return
		}
	}

	if err := database.SetTableLayouts(r.Context(), payload); err != nil {
		logger.Error("SetTableLayoutsHandler: Error saving table layouts: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to save table layouts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Table layouts saved successfully."})
}

// ResetTableLayoutsHandler drops every layout override.
func ResetTableLayoutsHandler(w http.ResponseWriter, r *http.Request) {
	if err := database.ResetTableLayouts(r.Context()); err != nil {
		logger.Error("ResetTableLayoutsHandler: Error resetting table layouts: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to reset table layouts.")
		return
	}
	logger.Info("All table layouts have been reset in database.")
	writeJSON(w, http.StatusOK, map[string]string{"message": "All table layouts have been reset."})
}

// GetTableLayoutHandler returns the override for one table, or an empty layout.
func GetTableLayoutHandler(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "tableName")
	layout, _, err := database.GetTableLayout(r.Context(), tableName)
	if err != nil {
		logger.Error("GetTableLayoutHandler: Error getting layout for %s: %v", tableName, err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to retrieve table layout")
		return
	}
	if layout.Columns == nil {
		layout.Columns = map[string]models.ColumnConfig{}
	}
	writeJSON(w, http.StatusOK, layout)
}

// SetTableLayoutHandler stores the override for one table, keeping the others.
func SetTableLayoutHandler(w http.ResponseWriter, r *http.Request) {
	tableName := chi.URLParam(r, "tableName")
	var layout models.TableLayoutConfig
	if err := json.NewDecoder(r.Body).Decode(&layout); err != nil {
		logger.Error("SetTableLayoutHandler: Error decoding request body for %s: %v", tableName, err)
		writeJSONError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()
	if err := validateLayout(layout); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid layout: "+err.Error())
		return
	}

	if err := database.SetTableLayout(r.Context(), tableName, layout); err != nil {
		logger.Error("SetTableLayoutHandler: Error saving layout for %s: %v", tableName, err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to save table layout")
		return
	}
	writeJSON(w, http.StatusOK, layout)
}

func validateLayout(layout models.TableLayoutConfig) error {
	if layout.PageSize < 0 {
		return fmt.Errorf("pageSize must not be negative")
	}
	return nil
}
