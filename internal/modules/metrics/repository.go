// Package metrics tracks realized forecast accuracy per date and SKU and
// assembles the training windows the weight optimizer learns from.
package metrics

import (
	"fmt"

	"github.com/bakeplan/bakeplan/internal/database"
	"github.com/bakeplan/bakeplan/internal/modules/weights"
	"github.com/rs/zerolog"
)

// Row is one realized day for one SKU.
type Row struct {
	Date        string  `json:"date"`
	SKU         string  `json:"sku"`
	Forecast    float64 `json:"forecast"`
	Actual      float64 `json:"actual"`
	Waste       float64 `json:"waste"`
	HadStockout bool    `json:"had_stockout"`
}

// Repository persists accuracy rows in planning.db.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a metrics repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "metrics").Logger(),
	}
}

// Upsert replaces one date's rows.
func (r *Repository) Upsert(rows []Row) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, row := range rows {
		had := 0
		if row.HadStockout {
			had = 1
		}
		_, err := tx.Exec(`
			INSERT INTO daily_metrics (date, sku, forecast, actual, waste, had_stockout)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(date, sku) DO UPDATE SET
				forecast = excluded.forecast,
				actual = excluded.actual,
				waste = excluded.waste,
				had_stockout = excluded.had_stockout
		`, row.Date, row.SKU, row.Forecast, row.Actual, row.Waste, had)
		if err != nil {
			return fmt.Errorf("failed to upsert metric for %s on %s: %w", row.SKU, row.Date, err)
		}
	}
	return tx.Commit()
}

// ForDate returns one date's rows ordered by SKU.
func (r *Repository) ForDate(date string) ([]Row, error) {
	return r.query("SELECT date, sku, forecast, actual, waste, had_stockout FROM daily_metrics WHERE date = ? ORDER BY sku", date)
}

// All returns every row ordered by date then SKU.
func (r *Repository) All() ([]Row, error) {
	return r.query("SELECT date, sku, forecast, actual, waste, had_stockout FROM daily_metrics ORDER BY date, sku")
}

func (r *Repository) query(stmt string, args ...interface{}) ([]Row, error) {
	rows, err := r.db.Query(stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Row
	for rows.Next() {
		var row Row
		var had int
		if err := rows.Scan(&row.Date, &row.SKU, &row.Forecast, &row.Actual, &row.Waste, &had); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		row.HadStockout = had != 0
		out = append(out, row)
	}
	return out, rows.Err()
}

// TrainingHistory groups all rows into per-SKU outcome windows, oldest first.
func (r *Repository) TrainingHistory() (map[string][]weights.Outcome, error) {
	rows, err := r.All()
	if err != nil {
		return nil, err
	}

	bySKU := make(map[string][]weights.Outcome)
	for _, row := range rows {
		bySKU[row.SKU] = append(bySKU[row.SKU], weights.Outcome{
			Forecast:    row.Forecast,
			Actual:      row.Actual,
			Waste:       row.Waste,
			HadStockout: row.HadStockout,
		})
	}
	return bySKU, nil
}
