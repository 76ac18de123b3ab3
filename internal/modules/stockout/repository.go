// Package stockout detects sales flatlines on fast-moving products and keeps
// the append-only event log the forecaster and tray scheduler read from.
package stockout

import (
	"fmt"
	"time"

	"github.com/bakeplan/bakeplan/internal/database"
	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository persists stockout events in planning.db. Events are append-only
// and never mutated; re-running a scan over the same dates is a no-op because
// an event is keyed by (sku, date, hour).
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a stockout event repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "stockout").Logger(),
	}
}

// Append inserts events that are not already recorded. Returns the number of
// newly stored events.
func (r *Repository) Append(events []domain.StockoutEvent) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, ev := range events {
		var exists int
		err := tx.QueryRow(
			"SELECT COUNT(*) FROM stockout_events WHERE sku = ? AND date = ? AND hour = ?",
			ev.SKU, ev.Date, ev.Hour,
		).Scan(&exists)
		if err != nil {
			return 0, fmt.Errorf("failed to check existing event: %w", err)
		}
		if exists > 0 {
			continue
		}

		id := ev.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err = tx.Exec(
			"INSERT INTO stockout_events (id, sku, date, hour, confidence, reason, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			id, ev.SKU, ev.Date, ev.Hour, ev.Confidence, ev.Reason, time.Now().Unix(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert stockout event: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit stockout events: %w", err)
	}

	if inserted > 0 {
		r.log.Info().Int("count", inserted).Msg("Stockout events appended")
	}
	return inserted, nil
}

// Recent returns events dated within the trailing window, newest first.
func (r *Repository) Recent(now time.Time, days int) ([]domain.StockoutEvent, error) {
	cutoff := now.AddDate(0, 0, -days).Format(domain.DateKey)
	rows, err := r.db.Query(`
		SELECT id, sku, date, hour, confidence, reason
		FROM stockout_events
		WHERE date >= ?
		ORDER BY date DESC, hour DESC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stockout events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []domain.StockoutEvent
	for rows.Next() {
		var ev domain.StockoutEvent
		if err := rows.Scan(&ev.ID, &ev.SKU, &ev.Date, &ev.Hour, &ev.Confidence, &ev.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan stockout event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// HasEventOn reports whether a SKU has any event on one date.
func (r *Repository) HasEventOn(sku, date string) (bool, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM stockout_events WHERE sku = ? AND date = ?",
		sku, date,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check stockout events: %w", err)
	}
	return count > 0, nil
}

// CountRecent counts a SKU's events dated within the trailing window.
func (r *Repository) CountRecent(sku string, now time.Time, days int) (int, error) {
	cutoff := now.AddDate(0, 0, -days).Format(domain.DateKey)
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM stockout_events WHERE sku = ? AND date >= ?",
		sku, cutoff,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count stockout events: %w", err)
	}
	return count, nil
}
