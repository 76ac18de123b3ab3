// Package history stores normalized sales and waste records and builds the
// in-memory lookup structures every downstream planning module reads from.
package history

import (
	"fmt"
	"time"

	"github.com/bakeplan/bakeplan/internal/database"
	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/rs/zerolog"
)

// Dataset distinguishes the two historical record sets.
type Dataset string

const (
	// DatasetCurrent is the current-year hourly-granularity dataset.
	DatasetCurrent Dataset = "current"
	// DatasetPrior is the prior-year daily-granularity dataset.
	DatasetPrior Dataset = "prior"
)

// Repository persists sales and waste records in history.db. Records are
// immutable once ingested; a dataset is only ever appended to or replaced
// wholesale.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a history repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "history").Logger(),
	}
}

// AppendSales inserts sales records for a dataset in one transaction.
func (r *Repository) AppendSales(dataset Dataset, records []domain.SalesRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO sales_records (sku, product_name, date, day_of_week, hour, quantity, dataset)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		var hour interface{}
		if rec.Hour >= 0 {
			hour = rec.Hour
		}
		if _, err := stmt.Exec(rec.SKU, rec.ProductName, rec.DateStr, int(rec.DayOfWeek), hour, rec.Quantity, string(dataset)); err != nil {
			return fmt.Errorf("failed to insert sales record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sales records: %w", err)
	}

	r.log.Info().Str("dataset", string(dataset)).Int("count", len(records)).Msg("Sales records appended")
	return nil
}

// ReplaceSales atomically replaces a whole dataset.
func (r *Repository) ReplaceSales(dataset Dataset, records []domain.SalesRecord) error {
	if _, err := r.db.Exec("DELETE FROM sales_records WHERE dataset = ?", string(dataset)); err != nil {
		return fmt.Errorf("failed to clear dataset %s: %w", dataset, err)
	}
	return r.AppendSales(dataset, records)
}

// AppendWaste inserts waste records in one transaction.
func (r *Repository) AppendWaste(records []domain.WasteRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare("INSERT INTO waste_records (sku, date, quantity) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		if _, err := stmt.Exec(rec.SKU, rec.DateStr, rec.Quantity); err != nil {
			return fmt.Errorf("failed to insert waste record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit waste records: %w", err)
	}

	r.log.Info().Int("count", len(records)).Msg("Waste records appended")
	return nil
}

// AllSales loads every record of a dataset.
func (r *Repository) AllSales(dataset Dataset) ([]domain.SalesRecord, error) {
	rows, err := r.db.Query(`
		SELECT sku, product_name, date, day_of_week, hour, quantity
		FROM sales_records
		WHERE dataset = ?
		ORDER BY date, hour
	`, string(dataset))
	if err != nil {
		return nil, fmt.Errorf("failed to query sales records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []domain.SalesRecord
	for rows.Next() {
		var rec domain.SalesRecord
		var dayOfWeek int
		var hour *int
		if err := rows.Scan(&rec.SKU, &rec.ProductName, &rec.DateStr, &dayOfWeek, &hour, &rec.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan sales record: %w", err)
		}
		rec.DayOfWeek = time.Weekday(dayOfWeek)
		rec.Hour = -1
		if hour != nil {
			rec.Hour = *hour
		}
		rec.Date, err = time.Parse(domain.DateKey, rec.DateStr)
		if err != nil {
			return nil, fmt.Errorf("malformed date %q in sales record: %w", rec.DateStr, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AllWaste loads every waste record.
func (r *Repository) AllWaste() ([]domain.WasteRecord, error) {
	rows, err := r.db.Query("SELECT sku, date, quantity FROM waste_records ORDER BY date")
	if err != nil {
		return nil, fmt.Errorf("failed to query waste records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []domain.WasteRecord
	for rows.Next() {
		var rec domain.WasteRecord
		if err := rows.Scan(&rec.SKU, &rec.DateStr, &rec.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan waste record: %w", err)
		}
		rec.Date, err = time.Parse(domain.DateKey, rec.DateStr)
		if err != nil {
			return nil, fmt.Errorf("malformed date %q in waste record: %w", rec.DateStr, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
