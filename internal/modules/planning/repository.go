// Package planning generates, stores, and adapts the three-wave daily
// production plans.
package planning

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bakeplan/bakeplan/internal/database"
	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository persists daily plans in planning.db. A plan is one msgpack blob
// keyed by date; it is replaced wholesale on every save, never patched.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a plan repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "plans").Logger(),
	}
}

// Save replaces the stored plan for its date.
func (r *Repository) Save(plan *domain.DailyPlan) error {
	blob, err := msgpack.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan for %s: %w", plan.Date, err)
	}
	_, err = r.db.Exec(`
		INSERT INTO daily_plans (date, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, plan.Date, blob, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save plan for %s: %w", plan.Date, err)
	}
	return nil
}

// Get returns the plan for a date, or nil when none exists.
func (r *Repository) Get(date string) (*domain.DailyPlan, error) {
	var blob []byte
	err := r.db.QueryRow("SELECT value FROM daily_plans WHERE date = ?", date).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan for %s: %w", date, err)
	}

	var plan domain.DailyPlan
	if err := msgpack.Unmarshal(blob, &plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan for %s: %w", date, err)
	}
	if plan.Waves == nil {
		plan.Waves = map[int]domain.WavePlan{}
	}
	return &plan, nil
}
