// Package forecast blends historical sales signals into a per-SKU, per-wave
// demand estimate.
package forecast

import (
	"time"

	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/bakeplan/bakeplan/internal/modules/calendar"
	"github.com/bakeplan/bakeplan/internal/modules/history"
	"github.com/bakeplan/bakeplan/internal/modules/weights"
	"github.com/rs/zerolog"
)

const (
	// specialDayWeightCurrent weights the current-year special-day average.
	specialDayWeightCurrent = 0.50
	// specialDayWeightPrior weights the prior-year special-day average.
	specialDayWeightPrior = 0.45
	// highSalesWeekdayWeight overrides the learned same-weekday weight on
	// high-sales dates.
	highSalesWeekdayWeight = 0.30

	// similarProductFactor discounts a similar product's average for a SKU
	// with no history of its own.
	similarProductFactor = 0.8

	// minimumKey and minimumNonKey are the last-resort estimates.
	minimumKey    = 5.0
	minimumNonKey = 2.0

	stockoutWindowDays = 28
)

// WeightSource provides the learned blend weights for a SKU.
type WeightSource interface {
	Get(sku string) (weights.Weights, error)
}

// StockoutCounter counts a SKU's recent stockout events.
type StockoutCounter interface {
	CountRecent(sku string, now time.Time, days int) (int, error)
}

// Engine computes demand estimates from the history index, the calendar, the
// learned weights, and recent stockouts.
type Engine struct {
	calendar   *calendar.Service
	weights    WeightSource
	stockouts  StockoutCounter
	categories []Category
	log        zerolog.Logger
}

// NewEngine creates a forecast engine. A nil categories slice selects the
// built-in bakery categories.
func NewEngine(cal *calendar.Service, ws WeightSource, sc StockoutCounter, categories []Category, log zerolog.Logger) *Engine {
	if categories == nil {
		categories = DefaultCategories()
	}
	return &Engine{
		calendar:   cal,
		weights:    ws,
		stockouts:  sc,
		categories: categories,
		log:        log.With().Str("component", "forecast").Logger(),
	}
}

// source is one contribution to the weighted blend.
type source struct {
	value  float64
	weight float64
}

// Estimate blends up to six historical signals into the expected units for
// one SKU over one wave's hours on the target date. A SKU with no usable
// history falls back to a similar product's average, then to a fixed minimum.
func (e *Engine) Estimate(idx *history.Index, catalog []domain.Product, sku string, target time.Time, wave int) (float64, error) {
	hours := domain.WaveHours(wave)
	hourSet := make(map[int]bool, len(hours))
	for _, h := range hours {
		hourSet[h] = true
	}
	waveScale := float64(len(hours)) / float64(domain.FullDayHours)

	w, err := e.weights.Get(sku)
	if err != nil {
		return 0, err
	}

	current := idx.CurrentSales(sku)
	prior := idx.PriorSales(sku)
	isHigh := e.calendar.IsHighSalesDay(target)

	var sources []source

	// Special-day source: on a high-sales date, matching special days from
	// history compete directly with the regular sources.
	if isHigh {
		if s, ok := e.specialDaySource(current, prior, target, hourSet, waveScale); ok {
			sources = append(sources, s)
		}
	}

	// Same weekday, trailing 4 weeks.
	if len(current) > 0 {
		fourWeeksAgo := target.AddDate(0, 0, -28)
		var matched []domain.SalesRecord
		for _, rec := range idx.WeekdaySales(target.Weekday(), sku) {
			if !rec.Date.Before(fourWeeksAgo) && hourSet[rec.Hour] && !e.calendar.IsHighSalesDay(rec.Date) {
				matched = append(matched, rec)
			}
		}
		if len(matched) > 0 {
			weight := w[weights.SourceSameWeekday4w]
			if isHigh {
				weight = highSalesWeekdayWeight
			}
			sources = append(sources, source{value: avgPerDay(matched), weight: weight})
		}
	}

	// Same weekday, 5-8 weeks back. Skipped on high-sales dates.
	if len(current) > 0 && !isHigh {
		eightWeeksAgo := target.AddDate(0, 0, -56)
		fourWeeksAgo := target.AddDate(0, 0, -28)
		var matched []domain.SalesRecord
		for _, rec := range idx.WeekdaySales(target.Weekday(), sku) {
			if !rec.Date.Before(eightWeeksAgo) && rec.Date.Before(fourWeeksAgo) &&
				hourSet[rec.Hour] && !e.calendar.IsHighSalesDay(rec.Date) {
				matched = append(matched, rec)
			}
		}
		if len(matched) > 0 {
			sources = append(sources, source{value: avgPerDay(matched), weight: w[weights.SourceSameWeekday8w]})
		}
	}

	// Trailing 7 calendar days, same wave hours. Skipped on high-sales dates.
	if len(current) > 0 && !isHigh {
		sevenDaysAgo := target.AddDate(0, 0, -7)
		var matched []domain.SalesRecord
		for _, rec := range current {
			if !rec.Date.Before(sevenDaysAgo) && rec.Date.Before(target) &&
				hourSet[rec.Hour] && !e.calendar.IsHighSalesDay(rec.Date) {
				matched = append(matched, rec)
			}
		}
		if len(matched) > 0 {
			sources = append(sources, source{value: avgPerDay(matched), weight: w[weights.SourceLastWeekAvg]})
		}
	}

	// Same day of month, trailing 2 months. Skipped on high-sales dates.
	if len(current) > 0 && !isHigh {
		twoMonthsAgo := target.AddDate(0, -2, 0)
		var matched []domain.SalesRecord
		for _, rec := range current {
			if rec.Date.Day() == target.Day() &&
				!rec.Date.Before(twoMonthsAgo) && rec.Date.Before(target) &&
				hourSet[rec.Hour] && !e.calendar.IsHighSalesDay(rec.Date) {
				matched = append(matched, rec)
			}
		}
		if len(matched) > 0 {
			sources = append(sources, source{value: avgPerDay(matched), weight: w[weights.SourceSameDayMonth]})
		}
	}

	// Year-over-year: same weekday within a week of the date one year back,
	// scaled from a full day down to the wave hours.
	if len(prior) > 0 {
		lastYear := target.AddDate(-1, 0, 0)
		weekBefore := lastYear.AddDate(0, 0, -7)
		weekAfter := lastYear.AddDate(0, 0, 7)
		var matched []domain.SalesRecord
		for _, rec := range prior {
			if !rec.Date.Before(weekBefore) && !rec.Date.After(weekAfter) && rec.DayOfWeek == target.Weekday() {
				matched = append(matched, rec)
			}
		}
		if len(matched) > 0 {
			sources = append(sources, source{value: meanQuantity(matched) * waveScale, weight: w[weights.SourceYearOverYear]})
		}
	}

	// Thin-signal fallback: with fewer than two sources, the all-history
	// wave-hour average joins the blend.
	if len(current) > 0 && len(sources) < 2 {
		var matched []domain.SalesRecord
		for _, rec := range current {
			if hourSet[rec.Hour] && !e.calendar.IsHighSalesDay(rec.Date) {
				matched = append(matched, rec)
			}
		}
		if len(matched) > 0 {
			weight := w[weights.SourceLastWeekAvg]
			if weight == 0 {
				weight = 0.20
			}
			sources = append(sources, source{value: avgPerDay(matched), weight: weight})
		}
	}

	if len(sources) == 0 {
		return e.newProductFallback(idx, catalog, sku, target, hourSet), nil
	}

	totalWeight, weightedSum := 0.0, 0.0
	for _, s := range sources {
		totalWeight += s.weight
		weightedSum += s.value * s.weight
	}
	result := weightedSum / totalWeight

	count, err := e.stockouts.CountRecent(sku, target, stockoutWindowDays)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		adjustment := 1 + (0.15 + 0.1*minF(float64(count)/4, 1))
		e.log.Debug().
			Str("sku", sku).
			Int("stockouts", count).
			Float64("adjustment", adjustment).
			Msg("Forecast raised for recent stockouts")
		result *= adjustment
	}

	return result, nil
}

// specialDaySource averages matching pre-holiday or pension days, preferring
// current-year wave-hour data over scaled prior-year daily data.
func (e *Engine) specialDaySource(current, prior []domain.SalesRecord, target time.Time, hourSet map[int]bool, waveScale float64) (source, bool) {
	var dates []string
	switch {
	case e.calendar.IsPreHoliday(target):
		dates = e.calendar.PreHolidayDates(target)
	case e.calendar.IsPensionPaymentDay(target):
		dates = e.calendar.PensionPaymentDates(target)
	default:
		return source{}, false
	}
	dateSet := make(map[string]bool, len(dates))
	for _, d := range dates {
		dateSet[d] = true
	}

	var currentMatched []domain.SalesRecord
	for _, rec := range current {
		if dateSet[rec.DateStr] && hourSet[rec.Hour] {
			currentMatched = append(currentMatched, rec)
		}
	}
	if len(currentMatched) > 0 {
		return source{value: avgPerDay(currentMatched), weight: specialDayWeightCurrent}, true
	}

	var priorMatched []domain.SalesRecord
	for _, rec := range prior {
		if dateSet[rec.DateStr] {
			priorMatched = append(priorMatched, rec)
		}
	}
	if len(priorMatched) > 0 {
		return source{value: meanQuantity(priorMatched) * waveScale, weight: specialDayWeightPrior}, true
	}

	return source{}, false
}

// newProductFallback serves a SKU with no usable history: the best similar
// product's recent same-weekday average at 80%, then the fixed minimum.
func (e *Engine) newProductFallback(idx *history.Index, catalog []domain.Product, sku string, target time.Time, hourSet map[int]bool) float64 {
	var product *domain.Product
	for i := range catalog {
		if catalog[i].SKU == sku {
			product = &catalog[i]
			break
		}
	}
	if product == nil {
		return 0
	}

	similar := findSimilarProducts(e.categories, *product, catalog)
	if len(similar) > 0 {
		best := similar[0]
		fourWeeksAgo := target.AddDate(0, 0, -28)
		var matched []domain.SalesRecord
		for _, rec := range idx.WeekdaySales(target.Weekday(), best.SKU) {
			if !rec.Date.Before(fourWeeksAgo) && hourSet[rec.Hour] && !e.calendar.IsHighSalesDay(rec.Date) {
				matched = append(matched, rec)
			}
		}
		if len(matched) > 0 {
			estimate := avgPerDay(matched) * similarProductFactor
			e.log.Info().
				Str("sku", sku).
				Str("similar_sku", best.SKU).
				Float64("estimate", estimate).
				Msg("New product estimated from similar product")
			return estimate
		}
	}

	if product.IsKey {
		return minimumKey
	}
	return minimumNonKey
}

// avgPerDay sums quantities and divides by the number of distinct dates.
func avgPerDay(records []domain.SalesRecord) float64 {
	total := 0.0
	dates := make(map[string]bool)
	for _, rec := range records {
		total += rec.Quantity
		dates[rec.DateStr] = true
	}
	if len(dates) == 0 {
		return 0
	}
	return total / float64(len(dates))
}

// meanQuantity averages record quantities directly (daily-granularity data).
func meanQuantity(records []domain.SalesRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	total := 0.0
	for _, rec := range records {
		total += rec.Quantity
	}
	return total / float64(len(records))
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
