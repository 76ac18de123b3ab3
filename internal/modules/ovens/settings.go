package ovens

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bakeplan/bakeplan/internal/database"
)

// SettingsRepository is a small typed key-value store in config.db for
// operator-tunable values that do not warrant their own table.
type SettingsRepository struct {
	db *database.DB
}

// NewSettingsRepository creates a settings repository.
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the value for a key, or nil when the key is not set.
func (r *SettingsRepository) Get(key string) (*string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load setting %s: %w", key, err)
	}
	return &value, nil
}

// Set upserts a setting.
func (r *SettingsRepository) Set(key, value, description string) error {
	_, err := r.db.Exec(`
		INSERT INTO settings (key, value, description, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, description = excluded.description, updated_at = excluded.updated_at
	`, key, value, description, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}
