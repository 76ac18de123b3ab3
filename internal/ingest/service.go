package ingest

import (
	"time"

	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/bakeplan/bakeplan/internal/modules/history"
	"github.com/bakeplan/bakeplan/internal/modules/products"
	"github.com/rs/zerolog"
)

// SalesRow is one already-tabular sales row. Quantity arrives in the source
// locale format; Hour is nil for daily-granularity rows.
type SalesRow struct {
	SKU         string `json:"sku"`
	ProductName string `json:"product_name"`
	Date        string `json:"date"`
	Hour        *int   `json:"hour"`
	Quantity    string `json:"quantity"`
}

// WasteRow is one already-tabular waste row.
type WasteRow struct {
	SKU      string `json:"sku"`
	Date     string `json:"date"`
	Quantity string `json:"quantity"`
}

// Result summarizes one ingestion run.
type Result struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Service normalizes incoming rows and feeds the history repository. Rows
// with an unparseable date or an empty SKU are skipped, not fatal.
type Service struct {
	history  *history.Service
	products *products.Repository
	log      zerolog.Logger
}

// NewService creates the ingestion service.
func NewService(hist *history.Service, prod *products.Repository, log zerolog.Logger) *Service {
	return &Service{
		history:  hist,
		products: prod,
		log:      log.With().Str("service", "ingest").Logger(),
	}
}

// IngestSales normalizes and stores sales rows into one dataset, then
// rebuilds the history index. Unknown SKUs are added to the catalog.
func (s *Service) IngestSales(dataset history.Dataset, rows []SalesRow) (Result, error) {
	var res Result
	records := make([]domain.SalesRecord, 0, len(rows))
	for _, row := range rows {
		date, ok := parseDate(row.Date)
		if row.SKU == "" || !ok {
			res.Skipped++
			continue
		}

		qty, perPackage, err := s.normalizeQuantity(row.SKU, row.Quantity)
		if err != nil {
			return Result{}, err
		}
		if perPackage {
			if err := s.registerProduct(row.SKU, row.ProductName); err != nil {
				return Result{}, err
			}
		}

		hour := -1
		if row.Hour != nil {
			hour = *row.Hour
		}
		records = append(records, domain.SalesRecord{
			SKU:         row.SKU,
			ProductName: row.ProductName,
			Date:        date,
			DateStr:     date.Format(domain.DateKey),
			DayOfWeek:   date.Weekday(),
			Hour:        hour,
			Quantity:    qty,
		})
	}

	if err := s.history.Repo().AppendSales(dataset, records); err != nil {
		return Result{}, err
	}
	if err := s.history.Rebuild(); err != nil {
		return Result{}, err
	}

	res.Imported = len(records)
	s.log.Info().
		Str("dataset", string(dataset)).
		Int("imported", res.Imported).
		Int("skipped", res.Skipped).
		Msg("Sales ingested")
	return res, nil
}

// IngestWaste normalizes and stores waste rows, then rebuilds the index.
func (s *Service) IngestWaste(rows []WasteRow) (Result, error) {
	var res Result
	records := make([]domain.WasteRecord, 0, len(rows))
	for _, row := range rows {
		date, ok := parseDate(row.Date)
		if row.SKU == "" || !ok {
			res.Skipped++
			continue
		}

		qty, _, err := s.normalizeQuantity(row.SKU, row.Quantity)
		if err != nil {
			return Result{}, err
		}
		records = append(records, domain.WasteRecord{
			SKU:      row.SKU,
			Date:     date,
			DateStr:  date.Format(domain.DateKey),
			Quantity: qty,
		})
	}

	if err := s.history.Repo().AppendWaste(records); err != nil {
		return Result{}, err
	}
	if err := s.history.Rebuild(); err != nil {
		return Result{}, err
	}

	res.Imported = len(records)
	s.log.Info().
		Int("imported", res.Imported).
		Int("skipped", res.Skipped).
		Msg("Waste ingested")
	return res, nil
}

// normalizeQuantity parses the locale number and converts piece counts to
// package units for packaged SKUs. This is the only place that division
// happens. The second return reports whether the SKU was missing from the
// catalog.
func (s *Service) normalizeQuantity(sku, raw string) (float64, bool, error) {
	qty := ParseLocaleNumber(raw)

	p, err := s.products.Get(sku)
	if err != nil {
		return 0, false, err
	}
	if p == nil {
		return qty, true, nil
	}
	if p.IsPackaged && p.UnitsPerPackage > 1 {
		qty /= float64(p.UnitsPerPackage)
	}
	return qty, false, nil
}

// registerProduct adds a previously unseen SKU to the catalog with defaults.
func (s *Service) registerProduct(sku, name string) error {
	if name == "" {
		name = sku
	}
	return s.products.Upsert(domain.Product{SKU: sku, Name: name, UnitsPerPackage: 1})
}

func parseDate(raw string) (time.Time, bool) {
	date, err := time.Parse(domain.DateKey, raw)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}
