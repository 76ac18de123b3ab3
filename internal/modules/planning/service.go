package planning

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/bakeplan/bakeplan/internal/modules/buffer"
	"github.com/bakeplan/bakeplan/internal/modules/calendar"
	"github.com/bakeplan/bakeplan/internal/modules/forecast"
	"github.com/bakeplan/bakeplan/internal/modules/history"
	"github.com/bakeplan/bakeplan/internal/modules/products"
	"github.com/bakeplan/bakeplan/internal/modules/waves"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Realtime adaptation constants. The midday wave reacts to how the morning
// sold; the evening wave reacts to the whole day so far.
const (
	// sellThroughThreshold flags a probable morning sellout: actual sales at
	// 95% of the planned quantity or more.
	sellThroughThreshold = 0.95
	deviationBand        = 0.20

	surgeFactor   = 1.35
	strongFactor  = 1.15
	neutralFactor = 1.0
	weakFactor    = 0.85

	selloutBuffer = 0.15
	normalBuffer  = 0.10
)

var (
	// ErrWaveNotGenerated is returned when realtime adaptation is requested
	// before the waves it depends on exist.
	ErrWaveNotGenerated = errors.New("required wave not generated yet")

	// ErrNoPlan is returned when an operation needs a stored plan and none
	// exists for the date.
	ErrNoPlan = errors.New("no plan for date")
)

// Service runs the planning pipeline: forecast, buffer, allocation, storage,
// and intraday adaptation.
type Service struct {
	history     *history.Service
	products    *products.Repository
	forecast    *forecast.Engine
	buffers     *buffer.Calculator
	calendar    *calendar.Service
	plans       *Repository
	corrections *CorrectionsRepository
	actuals     *ActualsRepository
	log         zerolog.Logger
}

// NewService creates the planning service.
func NewService(
	hist *history.Service,
	prod *products.Repository,
	fc *forecast.Engine,
	buf *buffer.Calculator,
	cal *calendar.Service,
	plans *Repository,
	corrections *CorrectionsRepository,
	actuals *ActualsRepository,
	log zerolog.Logger,
) *Service {
	return &Service{
		history:     hist,
		products:    prod,
		forecast:    fc,
		buffers:     buf,
		calendar:    cal,
		plans:       plans,
		corrections: corrections,
		actuals:     actuals,
		log:         log.With().Str("service", "planning").Logger(),
	}
}

// Plan returns the stored plan for a date, or nil when none exists.
func (s *Service) Plan(date string) (*domain.DailyPlan, error) {
	return s.plans.Get(date)
}

// GenerateDailyPlan regenerates the full three-wave plan for a date from
// scratch and persists it as one value. Every catalog product gets an entry
// in every wave, zero quantities included.
func (s *Service) GenerateDailyPlan(target time.Time) (*domain.DailyPlan, error) {
	idx := s.history.Index()
	catalog, err := s.products.All()
	if err != nil {
		return nil, err
	}

	plan := domain.NewDailyPlan(target.Format(domain.DateKey))
	for _, p := range catalog {
		in, err := s.allocationInput(idx, catalog, p, target)
		if err != nil {
			return nil, err
		}
		alloc := waves.Allocate(in)
		for wave := domain.WaveMorning; wave <= domain.WaveEvening; wave++ {
			plan.Waves[wave][p.SKU] = domain.WavePlanEntry{
				SKU:           p.SKU,
				Quantity:      alloc.Quantities[wave-1],
				Historical:    alloc.Historical[wave-1],
				BufferPercent: alloc.BufferPercents[wave-1],
				Reason:        alloc.Reasons[wave-1],
				IsPackaged:    p.IsPackaged,
			}
		}
	}

	if err := s.plans.Save(plan); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("date", plan.Date).
		Int("products", len(catalog)).
		Int("daily_total", plan.DailyTotal()).
		Msg("Daily plan generated")
	return plan, nil
}

// RegenerateWave re-plans one of waves 2 or 3 with the static per-wave
// algorithm, leaving the other waves untouched.
func (s *Service) RegenerateWave(target time.Time, wave int) (*domain.DailyPlan, error) {
	if wave != domain.WaveMidday && wave != domain.WaveEvening {
		return nil, fmt.Errorf("wave %d cannot be regenerated on its own", wave)
	}

	idx := s.history.Index()
	catalog, err := s.products.All()
	if err != nil {
		return nil, err
	}

	date := target.Format(domain.DateKey)
	plan, err := s.plans.Get(date)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		plan = domain.NewDailyPlan(date)
	}

	regenerated := domain.WavePlan{}
	for _, p := range catalog {
		in, err := s.allocationInput(idx, catalog, p, target)
		if err != nil {
			return nil, err
		}
		qty, hist, bufferPercent, reason := waves.AllocateWave(in, wave)
		regenerated[p.SKU] = domain.WavePlanEntry{
			SKU:           p.SKU,
			Quantity:      qty,
			Historical:    hist,
			BufferPercent: bufferPercent,
			Reason:        reason,
			IsPackaged:    p.IsPackaged,
		}
	}
	plan.Waves[wave] = regenerated

	if err := s.plans.Save(plan); err != nil {
		return nil, err
	}
	s.log.Info().Str("date", date).Int("wave", wave).Msg("Wave regenerated")
	return plan, nil
}

// AdaptWave2 re-plans the midday wave from this morning's realized sales.
// The morning wave must exist first.
func (s *Service) AdaptWave2(target time.Time, actualMorning map[string]float64) (*domain.DailyPlan, error) {
	date := target.Format(domain.DateKey)
	plan, err := s.plans.Get(date)
	if err != nil {
		return nil, err
	}
	if plan == nil || len(plan.Waves[domain.WaveMorning]) == 0 {
		return nil, fmt.Errorf("adapt wave 2 for %s: %w", date, ErrWaveNotGenerated)
	}

	idx := s.history.Index()
	catalog, err := s.products.All()
	if err != nil {
		return nil, err
	}
	bySKU := catalogBySKU(catalog)

	adapted := domain.WavePlan{}
	for sku, morning := range plan.Waves[domain.WaveMorning] {
		actual := actualMorning[sku]

		// Both checks measure against the planned morning quantity, not the
		// raw forecast: the buffer is part of what was on the shelf.
		deviation := 0.0
		if morning.Quantity > 0 {
			deviation = actual/float64(morning.Quantity) - 1
		}
		selloutLikely := morning.Quantity > 0 && actual >= sellThroughThreshold*float64(morning.Quantity)

		var factor float64
		var desc string
		switch {
		case deviation > deviationBand && selloutLikely:
			factor, desc = surgeFactor, "morning sellout, demand surging"
		case deviation > deviationBand:
			factor, desc = strongFactor, "morning sales above plan"
		case deviation >= -deviationBand:
			factor, desc = neutralFactor, "morning sales in line with plan"
		default:
			factor, desc = weakFactor, "morning sales below plan"
		}

		buf := normalBuffer
		if selloutLikely {
			buf = selloutBuffer
		}

		base, err := s.forecast.Estimate(idx, catalog, sku, target, domain.WaveMidday)
		if err != nil {
			return nil, err
		}
		qty := int(math.Round(base * factor * (1 + buf)))
		if qty < 0 {
			qty = 0
		}

		p := bySKU[sku]
		adapted[sku] = domain.WavePlanEntry{
			SKU:              sku,
			Quantity:         qty,
			Historical:       int(math.Round(base)),
			BufferPercent:    int(math.Round(buf * 100)),
			Reason:           "realtime: " + desc + waves.PackagingNote(p, qty),
			IsPackaged:       p.IsPackaged,
			AdjustmentFactor: factor,
		}
	}
	plan.Waves[domain.WaveMidday] = adapted

	if err := s.plans.Save(plan); err != nil {
		return nil, err
	}
	s.log.Info().Str("date", date).Int("products", len(adapted)).Msg("Wave 2 adapted to morning sales")
	return plan, nil
}

// AdaptWave3 re-plans the evening wave from the day's realized sales so far.
// Waves 1 and 2 must both exist first.
func (s *Service) AdaptWave3(target time.Time, actualDay map[string]float64) (*domain.DailyPlan, error) {
	date := target.Format(domain.DateKey)
	plan, err := s.plans.Get(date)
	if err != nil {
		return nil, err
	}
	if plan == nil ||
		len(plan.Waves[domain.WaveMorning]) == 0 ||
		len(plan.Waves[domain.WaveMidday]) == 0 {
		return nil, fmt.Errorf("adapt wave 3 for %s: %w", date, ErrWaveNotGenerated)
	}

	idx := s.history.Index()
	catalog, err := s.products.All()
	if err != nil {
		return nil, err
	}
	bySKU := catalogBySKU(catalog)

	adapted := domain.WavePlan{}
	for sku, morning := range plan.Waves[domain.WaveMorning] {
		planned := morning.Quantity + plan.Waves[domain.WaveMidday][sku].Quantity

		ratio := 0.0
		if planned > 0 {
			ratio = actualDay[sku] / float64(planned)
		}

		var factor, buf float64
		var desc string
		switch {
		case ratio < 0.5:
			factor, buf, desc = 0.5, -0.20, "day sales far below plan"
		case ratio < 0.8:
			factor, buf, desc = 0.7, -0.15, "day sales below plan"
		case ratio > 1.2:
			factor, buf, desc = 1.3, 0.05, "day sales above plan"
		default:
			factor, buf, desc = 1.0, -0.10, "day sales tracking plan"
		}

		base, err := s.forecast.Estimate(idx, catalog, sku, target, domain.WaveEvening)
		if err != nil {
			return nil, err
		}
		qty := int(math.Round(base * factor * (1 + buf)))
		if qty < 0 {
			qty = 0
		}

		p := bySKU[sku]
		reason := "realtime: " + desc
		if p.IsKey && qty < waves.KeyProductMinimum {
			qty = waves.KeyProductMinimum
			reason = waves.KeyMinimumReason
		}

		adapted[sku] = domain.WavePlanEntry{
			SKU:              sku,
			Quantity:         qty,
			Historical:       int(math.Round(base)),
			BufferPercent:    int(math.Round(buf * 100)),
			Reason:           reason + waves.PackagingNote(p, qty),
			IsPackaged:       p.IsPackaged,
			AdjustmentFactor: factor,
		}
	}
	plan.Waves[domain.WaveEvening] = adapted

	if err := s.plans.Save(plan); err != nil {
		return nil, err
	}
	s.log.Info().Str("date", date).Int("products", len(adapted)).Msg("Wave 3 adapted to day sales")
	return plan, nil
}

// ApplyCorrection overrides one plan entry's quantity, keeps the generated
// quantity for learning, and appends to the correction log.
func (s *Service) ApplyCorrection(date string, wave int, sku string, adjusted int) (*domain.ManagerCorrection, error) {
	plan, err := s.plans.Get(date)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("correct %s wave %d: %w", date, wave, ErrNoPlan)
	}
	entry, ok := plan.Waves[wave][sku]
	if !ok {
		return nil, fmt.Errorf("no plan entry for %s in wave %d on %s", sku, wave, date)
	}

	original := entry.Quantity
	if entry.OriginalQuantity == nil {
		first := original
		entry.OriginalQuantity = &first
	}
	entry.Quantity = adjusted
	plan.Waves[wave][sku] = entry

	if err := s.plans.Save(plan); err != nil {
		return nil, err
	}

	c := domain.ManagerCorrection{
		ID:          uuid.New().String(),
		Date:        date,
		Wave:        wave,
		SKU:         sku,
		OriginalQty: original,
		AdjustedQty: adjusted,
		CreatedAt:   time.Now(),
	}
	if err := s.corrections.Append(c); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("sku", sku).
		Str("date", date).
		Int("wave", wave).
		Int("from", original).
		Int("to", adjusted).
		Msg("Manager correction applied")
	return &c, nil
}

// RecordActuals stores one date's realized sales and waste.
func (s *Service) RecordActuals(date string, sales, waste map[string]float64) error {
	if err := s.actuals.SaveSales(date, sales); err != nil {
		return err
	}
	if err := s.actuals.SaveWaste(date, waste); err != nil {
		return err
	}
	s.log.Info().Str("date", date).Int("skus", len(sales)).Msg("Actuals recorded")
	return nil
}

// allocationInput assembles the per-product forecast and buffer inputs for
// one target date.
func (s *Service) allocationInput(idx *history.Index, catalog []domain.Product, p domain.Product, target time.Time) (waves.Input, error) {
	in := waves.Input{
		Product:      p,
		HighSalesDay: s.calendar.IsHighSalesDay(target),
		PreHoliday:   s.calendar.IsPreHoliday(target),
	}
	for wave := domain.WaveMorning; wave <= domain.WaveEvening; wave++ {
		est, err := s.forecast.Estimate(idx, catalog, p.SKU, target, wave)
		if err != nil {
			return waves.Input{}, err
		}
		in.Historical[wave-1] = est
		in.Buffers[wave-1] = s.buffers.Calculate(idx, p.SKU, target, wave)
	}
	return in, nil
}

func catalogBySKU(catalog []domain.Product) map[string]domain.Product {
	bySKU := make(map[string]domain.Product, len(catalog))
	for _, p := range catalog {
		bySKU[p.SKU] = p
	}
	return bySKU
}
