package metrics

import (
	"fmt"

	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/rs/zerolog"
)

// PlanSource loads the stored plan for a date.
type PlanSource interface {
	Get(date string) (*domain.DailyPlan, error)
}

// ActualSource loads realized sales and waste.
type ActualSource interface {
	Sales(date string) (map[string]float64, error)
	Waste(date string) (map[string]float64, error)
	SalesDates() ([]string, error)
}

// StockoutChecker reports whether a SKU stocked out on a date.
type StockoutChecker interface {
	HasEventOn(sku, date string) (bool, error)
}

// Service joins plans, actuals, and stockout events into accuracy rows.
type Service struct {
	repo      *Repository
	plans     PlanSource
	actuals   ActualSource
	stockouts StockoutChecker
	log       zerolog.Logger
}

// NewService creates the metrics service.
func NewService(repo *Repository, plans PlanSource, actuals ActualSource, stockouts StockoutChecker, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		plans:     plans,
		actuals:   actuals,
		stockouts: stockouts,
		log:       log.With().Str("service", "metrics").Logger(),
	}
}

// RecordDay recomputes one date's rows from the stored plan and actuals.
// Dates without a plan are skipped.
func (s *Service) RecordDay(date string) error {
	plan, err := s.plans.Get(date)
	if err != nil {
		return err
	}
	if plan == nil {
		s.log.Debug().Str("date", date).Msg("No plan for date, metrics skipped")
		return nil
	}

	sales, err := s.actuals.Sales(date)
	if err != nil {
		return err
	}
	waste, err := s.actuals.Waste(date)
	if err != nil {
		return err
	}

	// Forecast is the full planned day per SKU, corrections included;
	// the optimizer should learn from what was actually baked.
	planned := make(map[string]float64)
	for _, wave := range plan.Waves {
		for sku, entry := range wave {
			planned[sku] += float64(entry.Quantity)
		}
	}

	rows := make([]Row, 0, len(planned))
	for sku, forecast := range planned {
		had, err := s.stockouts.HasEventOn(sku, date)
		if err != nil {
			return err
		}
		rows = append(rows, Row{
			Date:        date,
			SKU:         sku,
			Forecast:    forecast,
			Actual:      sales[sku],
			Waste:       waste[sku],
			HadStockout: had,
		})
	}

	if err := s.repo.Upsert(rows); err != nil {
		return fmt.Errorf("failed to record metrics for %s: %w", date, err)
	}
	s.log.Info().Str("date", date).Int("skus", len(rows)).Msg("Daily metrics recorded")
	return nil
}

// RecordAll recomputes rows for every date with recorded sales.
func (s *Service) RecordAll() error {
	dates, err := s.actuals.SalesDates()
	if err != nil {
		return err
	}
	for _, date := range dates {
		if err := s.RecordDay(date); err != nil {
			return err
		}
	}
	return nil
}

// Report returns one date's rows.
func (s *Service) Report(date string) ([]Row, error) {
	return s.repo.ForDate(date)
}
