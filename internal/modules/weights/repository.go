package weights

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bakeplan/bakeplan/internal/database"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository persists per-SKU weight vectors as whole values in planning.db.
// A SKU without a stored vector reads as the defaults; writing always
// overwrites the whole value.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a weights repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "weights").Logger(),
	}
}

// Get loads the weight vector for a SKU, falling back to defaults when none
// is stored.
func (r *Repository) Get(sku string) (Weights, error) {
	var blob []byte
	err := r.db.QueryRow("SELECT value FROM forecast_weights WHERE sku = ?", sku).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load weights for %s: %w", sku, err)
	}

	var w Weights
	if err := msgpack.Unmarshal(blob, &w); err != nil {
		return nil, fmt.Errorf("failed to decode weights for %s: %w", sku, err)
	}
	return w, nil
}

// Save stores the whole weight vector for a SKU.
func (r *Repository) Save(sku string, w Weights) error {
	blob, err := msgpack.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to encode weights for %s: %w", sku, err)
	}

	_, err = r.db.Exec(`
		INSERT INTO forecast_weights (sku, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(sku) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, sku, blob, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save weights for %s: %w", sku, err)
	}
	return nil
}

// Reset removes the stored vector so the SKU reads as defaults again.
func (r *Repository) Reset(sku string) error {
	if _, err := r.db.Exec("DELETE FROM forecast_weights WHERE sku = ?", sku); err != nil {
		return fmt.Errorf("failed to reset weights for %s: %w", sku, err)
	}
	r.log.Info().Str("sku", sku).Msg("Weights reset to defaults")
	return nil
}
