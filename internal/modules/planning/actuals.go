package planning

import (
	"fmt"

	"github.com/bakeplan/bakeplan/internal/database"
	"github.com/rs/zerolog"
)

// ActualsRepository stores realized end-of-day sales and waste per date and
// SKU. These feed the accuracy metrics and the weight optimizer.
type ActualsRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewActualsRepository creates an actuals repository.
func NewActualsRepository(db *database.DB, log zerolog.Logger) *ActualsRepository {
	return &ActualsRepository{
		db:  db,
		log: log.With().Str("repository", "actuals").Logger(),
	}
}

// SaveSales upserts one date's realized sales quantities.
func (r *ActualsRepository) SaveSales(date string, bySKU map[string]float64) error {
	return r.save("actual_sales", date, bySKU)
}

// SaveWaste upserts one date's realized waste quantities.
func (r *ActualsRepository) SaveWaste(date string, bySKU map[string]float64) error {
	return r.save("actual_waste", date, bySKU)
}

func (r *ActualsRepository) save(table, date string, bySKU map[string]float64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt := fmt.Sprintf(`
		INSERT INTO %s (date, sku, quantity) VALUES (?, ?, ?)
		ON CONFLICT(date, sku) DO UPDATE SET quantity = excluded.quantity
	`, table)
	for sku, qty := range bySKU {
		if _, err := tx.Exec(stmt, date, sku, qty); err != nil {
			return fmt.Errorf("failed to save actual for %s on %s: %w", sku, date, err)
		}
	}
	return tx.Commit()
}

// Sales returns one date's realized sales by SKU.
func (r *ActualsRepository) Sales(date string) (map[string]float64, error) {
	return r.load("actual_sales", date)
}

// Waste returns one date's realized waste by SKU.
func (r *ActualsRepository) Waste(date string) (map[string]float64, error) {
	return r.load("actual_waste", date)
}

func (r *ActualsRepository) load(table, date string) (map[string]float64, error) {
	rows, err := r.db.Query(fmt.Sprintf("SELECT sku, quantity FROM %s WHERE date = ?", table), date)
	if err != nil {
		return nil, fmt.Errorf("failed to query actuals for %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	bySKU := make(map[string]float64)
	for rows.Next() {
		var sku string
		var qty float64
		if err := rows.Scan(&sku, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan actual: %w", err)
		}
		bySKU[sku] = qty
	}
	return bySKU, rows.Err()
}

// SalesDates returns the distinct dates with recorded sales, oldest first.
func (r *ActualsRepository) SalesDates() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT date FROM actual_sales ORDER BY date")
	if err != nil {
		return nil, fmt.Errorf("failed to query actual dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}
