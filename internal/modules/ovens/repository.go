// Package ovens stores the operator-maintained baking configuration: which
// program a product bakes on, how many units fit a tray, program durations,
// and the oven layout.
package ovens

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/bakeplan/bakeplan/internal/database"
	"github.com/rs/zerolog"
)

// Defaults for products with no configuration. A missing config row is an
// ordinary condition, never a failure.
const (
	DefaultProgram         = 1
	DefaultDurationMinutes = 20
	DefaultUnitsPerTray    = 10
	DefaultOvenCapacity    = 10
)

// ProductConfig assigns one SKU to a baking program and tray capacity.
type ProductConfig struct {
	SKU          string `json:"sku"`
	Program      int    `json:"program"`
	UnitsPerTray int    `json:"units_per_tray"`
}

// Program describes one baking program.
type Program struct {
	Program         int    `json:"program"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Repository reads and writes baking configuration in config.db.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates an oven configuration repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "ovens").Logger(),
	}
}

// SetProductConfig upserts a SKU's program and tray capacity.
func (r *Repository) SetProductConfig(cfg ProductConfig) error {
	_, err := r.db.Exec(`
		INSERT INTO oven_product_config (sku, program, units_per_tray) VALUES (?, ?, ?)
		ON CONFLICT(sku) DO UPDATE SET program = excluded.program, units_per_tray = excluded.units_per_tray
	`, cfg.SKU, cfg.Program, cfg.UnitsPerTray)
	if err != nil {
		return fmt.Errorf("failed to save product config for %s: %w", cfg.SKU, err)
	}
	return nil
}

// ProductConfig returns a SKU's configuration, falling back to program 1 at
// 10 units per tray.
func (r *Repository) ProductConfig(sku string) (ProductConfig, error) {
	cfg := ProductConfig{SKU: sku}
	err := r.db.QueryRow(
		"SELECT program, units_per_tray FROM oven_product_config WHERE sku = ?", sku,
	).Scan(&cfg.Program, &cfg.UnitsPerTray)
	if errors.Is(err, sql.ErrNoRows) {
		return ProductConfig{SKU: sku, Program: DefaultProgram, UnitsPerTray: DefaultUnitsPerTray}, nil
	}
	if err != nil {
		return ProductConfig{}, fmt.Errorf("failed to load product config for %s: %w", sku, err)
	}
	return cfg, nil
}

// SetProgram upserts a baking program.
func (r *Repository) SetProgram(p Program) error {
	_, err := r.db.Exec(`
		INSERT INTO baking_programs (program, name, duration_minutes) VALUES (?, ?, ?)
		ON CONFLICT(program) DO UPDATE SET name = excluded.name, duration_minutes = excluded.duration_minutes
	`, p.Program, p.Name, p.DurationMinutes)
	if err != nil {
		return fmt.Errorf("failed to save baking program %d: %w", p.Program, err)
	}
	return nil
}

// Program returns a baking program, defaulting to 20 minutes for unknown
// program numbers.
func (r *Repository) Program(number int) (Program, error) {
	p := Program{Program: number}
	err := r.db.QueryRow(
		"SELECT name, duration_minutes FROM baking_programs WHERE program = ?", number,
	).Scan(&p.Name, &p.DurationMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return Program{Program: number, DurationMinutes: DefaultDurationMinutes}, nil
	}
	if err != nil {
		return Program{}, fmt.Errorf("failed to load baking program %d: %w", number, err)
	}
	return p, nil
}

// SetOvenLayout replaces the oven layout with the given per-oven capacities.
func (r *Repository) SetOvenLayout(capacities []int) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM oven_layout"); err != nil {
		return fmt.Errorf("failed to clear oven layout: %w", err)
	}
	for i, capacity := range capacities {
		if _, err := tx.Exec("INSERT INTO oven_layout (oven_number, capacity) VALUES (?, ?)", i+1, capacity); err != nil {
			return fmt.Errorf("failed to insert oven %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit oven layout: %w", err)
	}

	r.log.Info().Ints("capacities", capacities).Msg("Oven layout replaced")
	return nil
}

// Capacities returns the configured per-oven tray capacities, or the single
// default oven when nothing is configured.
func (r *Repository) Capacities() ([]int, error) {
	rows, err := r.db.Query("SELECT capacity FROM oven_layout ORDER BY oven_number")
	if err != nil {
		return nil, fmt.Errorf("failed to query oven layout: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var capacities []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan oven capacity: %w", err)
		}
		capacities = append(capacities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(capacities) == 0 {
		capacities = []int{DefaultOvenCapacity}
	}
	return capacities, nil
}

// TotalCapacity sums the per-oven capacities.
func (r *Repository) TotalCapacity() (int, error) {
	capacities, err := r.Capacities()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, c := range capacities {
		total += c
	}
	return total, nil
}
