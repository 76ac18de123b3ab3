package planning

import (
	"fmt"
	"time"

	"github.com/bakeplan/bakeplan/internal/database"
	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/rs/zerolog"
)

// CorrectionsRepository is the append-only manager-correction log. Entries
// are never updated or deleted; concurrent corrections on the same entry
// simply append, and the displayed quantity follows last-applied-wins.
type CorrectionsRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewCorrectionsRepository creates a correction log repository.
func NewCorrectionsRepository(db *database.DB, log zerolog.Logger) *CorrectionsRepository {
	return &CorrectionsRepository{
		db:  db,
		log: log.With().Str("repository", "corrections").Logger(),
	}
}

// Append records one correction.
func (r *CorrectionsRepository) Append(c domain.ManagerCorrection) error {
	_, err := r.db.Exec(`
		INSERT INTO manager_corrections (id, date, wave, sku, original_qty, adjusted_qty, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Date, c.Wave, c.SKU, c.OriginalQty, c.AdjustedQty, c.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to append correction for %s: %w", c.SKU, err)
	}
	return nil
}

// CorrectionsForSKU returns a SKU's corrections oldest first.
func (r *CorrectionsRepository) CorrectionsForSKU(sku string) ([]domain.ManagerCorrection, error) {
	rows, err := r.db.Query(`
		SELECT id, date, wave, sku, original_qty, adjusted_qty, created_at
		FROM manager_corrections WHERE sku = ? ORDER BY created_at, id
	`, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to query corrections for %s: %w", sku, err)
	}
	defer func() { _ = rows.Close() }()

	var corrections []domain.ManagerCorrection
	for rows.Next() {
		var c domain.ManagerCorrection
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.Date, &c.Wave, &c.SKU, &c.OriginalQty, &c.AdjustedQty, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		c.CreatedAt = time.Unix(createdAt, 0)
		corrections = append(corrections, c)
	}
	return corrections, rows.Err()
}
