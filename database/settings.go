package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"tablature/logger"
	"tablature/models"
)

// GetSetting retrieves a specific setting value from the app_settings table.
func GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := DB.QueryRowContext(ctx, "SELECT value FROM app_settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil // not set yet
		}
		return "", fmt.Errorf("failed to get setting '%s': %w", key, err)
	}
	return value, nil
}

// SetSetting saves or updates a specific setting value in the app_settings table.
func SetSetting(ctx context.Context, key, value string) error {
	_, err := DB.ExecContext(ctx,
		"INSERT OR REPLACE INTO app_settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)",
		key, value)
	if err != nil {
		return fmt.Errorf("failed to execute set setting for key '%s': %w", key, err)
	}
	return nil
}

// DeleteSetting removes a setting; deleting a missing key is not an error.
func DeleteSetting(ctx context.Context, key string) error {
	if _, err := DB.ExecContext(ctx, "DELETE FROM app_settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete setting '%s': %w", key, err)
	}
	return nil
}

// GetTableLayouts returns every stored layout override, or an empty map.
func GetTableLayouts(ctx context.Context) (models.AllTableLayouts, error) {
	layoutsJSON, err := GetSetting(ctx, models.TableLayoutsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get table layouts setting: %w", err)
	}

	layouts := make(models.AllTableLayouts)
	if layoutsJSON == "" {
		return layouts, nil
	}
	if err := json.Unmarshal([]byte(layoutsJSON), &layouts); err != nil {
		logger.Error("GetTableLayouts: Error unmarshalling layouts JSON: %v. Stored value: %s", err, layoutsJSON)
		return nil, fmt.Errorf("failed to unmarshal table layouts: %w", err)
	}
	return layouts, nil
}

// GetTableLayout returns the override for one table; ok is false when none is stored.
func GetTableLayout(ctx context.Context, tableName string) (models.TableLayoutConfig, bool, error) {
	layouts, err := GetTableLayouts(ctx)
	if err != nil {
		return models.TableLayoutConfig{}, false, err
	}
	layout, ok := layouts[tableName]
	return layout, ok, nil
}

// SetTableLayouts replaces all stored layout overrides.
func SetTableLayouts(ctx context.Context, layouts models.AllTableLayouts) error {
	if layouts == nil {
		layouts = models.AllTableLayouts{}
	}
	layoutsJSON, err := json.Marshal(layouts)
	if err != nil {
		return fmt.Errorf("failed to marshal table layouts to JSON: %w", err)
	}
	if err := SetSetting(ctx, models.TableLayoutsKey, string(layoutsJSON)); err != nil {
		return fmt.Errorf("failed to save table layouts setting: %w", err)
	}
	return nil
}

// SetTableLayout stores the override for one table and keeps the others. The
// read and the write share one immediate transaction, so concurrent updates of
// different tables do not drop each other.
func SetTableLayout(ctx context.Context, tableName string, layout models.TableLayoutConfig) error {
	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin layout update: %w", err)
	}
	defer tx.Rollback()

	var layoutsJSON string
	err = tx.QueryRowContext(ctx, "SELECT value FROM app_settings WHERE key = ?", models.TableLayoutsKey).Scan(&layoutsJSON)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to get table layouts setting: %w", err)
	}
	layouts := make(models.AllTableLayouts)
	if layoutsJSON != "" {
		if err := json.Unmarshal([]byte(layoutsJSON), &layouts); err != nil {
			return fmt.Errorf("failed to unmarshal table layouts: %w", err)
		}
	}
	layouts[tableName] = layout

	updated, err := json.Marshal(layouts)
	if err != nil {
		return fmt.Errorf("failed to marshal table layouts to JSON: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO app_settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)",
		models.TableLayoutsKey, string(updated)); err != nil {
		return fmt.Errorf("failed to save layout for '%s': %w", tableName, err)
	}
	return tx.Commit()
}

// ResetTableLayouts drops every stored layout override.
func ResetTableLayouts(ctx context.Context) error {
	return DeleteSetting(ctx, models.TableLayoutsKey)
}
