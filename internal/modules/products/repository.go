// Package products stores the SKU catalog.
package products

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/bakeplan/bakeplan/internal/database"
	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/rs/zerolog"
)

// Repository persists the product catalog in config.db. SKU is the stable
// identity; ingestion upserts by SKU.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a product catalog repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "products").Logger(),
	}
}

// Upsert inserts or updates one product by SKU.
func (r *Repository) Upsert(p domain.Product) error {
	if p.UnitsPerPackage < 1 {
		p.UnitsPerPackage = 1
	}
	_, err := r.db.Exec(`
		INSERT INTO products (sku, name, is_key, is_packaged, units_per_package) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(sku) DO UPDATE SET
			name = excluded.name,
			is_key = excluded.is_key,
			is_packaged = excluded.is_packaged,
			units_per_package = excluded.units_per_package
	`, p.SKU, p.Name, boolToInt(p.IsKey), boolToInt(p.IsPackaged), p.UnitsPerPackage)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.SKU, err)
	}
	return nil
}

// Get returns one product by SKU, or nil when unknown.
func (r *Repository) Get(sku string) (*domain.Product, error) {
	var p domain.Product
	var isKey, isPackaged int
	err := r.db.QueryRow(
		"SELECT sku, name, is_key, is_packaged, units_per_package FROM products WHERE sku = ?", sku,
	).Scan(&p.SKU, &p.Name, &isKey, &isPackaged, &p.UnitsPerPackage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product %s: %w", sku, err)
	}
	p.IsKey = isKey != 0
	p.IsPackaged = isPackaged != 0
	return &p, nil
}

// All returns the whole catalog ordered by SKU.
func (r *Repository) All() ([]domain.Product, error) {
	rows, err := r.db.Query("SELECT sku, name, is_key, is_packaged, units_per_package FROM products ORDER BY sku")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var catalog []domain.Product
	for rows.Next() {
		var p domain.Product
		var isKey, isPackaged int
		if err := rows.Scan(&p.SKU, &p.Name, &isKey, &isPackaged, &p.UnitsPerPackage); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.IsKey = isKey != 0
		p.IsPackaged = isPackaged != 0
		catalog = append(catalog, p)
	}
	return catalog, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
