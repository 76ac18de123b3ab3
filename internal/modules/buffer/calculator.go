// Package buffer computes the per-SKU, per-wave safety margin applied on top
// of the historical demand estimate.
package buffer

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/bakeplan/bakeplan/internal/modules/calendar"
	"github.com/bakeplan/bakeplan/internal/modules/history"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

const (
	defaultBuffer = 0.15

	// smoothingThreshold marks a day as an outlier when it sits more than
	// 30% from the group median.
	smoothingThreshold = 0.30

	cvFactor    = 0.8
	bufferFloor = 0.05
	bufferCeil  = 0.35

	weekendBonusCap = 0.15
	wasteRatioGate  = 0.08
)

// Result is one buffer decision with its audit trail.
type Result struct {
	Buffer float64 `json:"buffer"`
	Reason string  `json:"reason"`
}

// Calculator derives buffers from recent demand variance, weekend effects,
// and waste history.
type Calculator struct {
	calendar *calendar.Service
	log      zerolog.Logger
}

// NewCalculator creates a buffer calculator.
func NewCalculator(cal *calendar.Service, log zerolog.Logger) *Calculator {
	return &Calculator{
		calendar: cal,
		log:      log.With().Str("component", "buffer").Logger(),
	}
}

// dayTotal is one date's summed wave-hour quantity.
type dayTotal struct {
	date      string
	total     float64
	isWeekend bool
}

// Calculate returns the buffer for one SKU over one wave's hours on the
// target date. The same inputs always produce the same result.
func (c *Calculator) Calculate(idx *history.Index, sku string, target time.Time, wave int) Result {
	current := idx.CurrentSales(sku)
	if len(current) == 0 {
		return Result{Buffer: defaultBuffer, Reason: "default, no data"}
	}

	if c.calendar.IsHighSalesDay(target) {
		return Result{Buffer: 0, Reason: "historical averages already include the demand"}
	}

	hourSet := make(map[int]bool)
	for _, h := range domain.WaveHours(wave) {
		hourSet[h] = true
	}
	fourWeeksAgo := target.AddDate(0, 0, -28)

	var recent []domain.SalesRecord
	for _, rec := range current {
		if !rec.Date.Before(fourWeeksAgo) && hourSet[rec.Hour] && !c.calendar.IsHighSalesDay(rec.Date) {
			recent = append(recent, rec)
		}
	}
	if len(recent) < 10 {
		return Result{Buffer: defaultBuffer, Reason: "limited data"}
	}

	days := groupByDate(recent)
	smoothAnomalies(days)

	var weekdayTotals, weekendTotals []float64
	for _, d := range days {
		if d.isWeekend {
			weekendTotals = append(weekendTotals, d.total)
		} else {
			weekdayTotals = append(weekdayTotals, d.total)
		}
	}
	if len(weekdayTotals) < 3 {
		return Result{Buffer: defaultBuffer, Reason: "insufficient weekday data"}
	}

	weekdayAvg := stat.Mean(weekdayTotals, nil)
	cv := populationStdDev(weekdayTotals, weekdayAvg) / weekdayAvg

	base := math.Min(bufferCeil, math.Max(bufferFloor, cv*cvFactor))
	components := []string{fmt.Sprintf("CV-based: %.0f%%", base*100)}

	targetWeekend := target.Weekday() == time.Saturday || target.Weekday() == time.Sunday
	if targetWeekend && len(weekendTotals) >= 2 {
		weekendAvg := stat.Mean(weekendTotals, nil)
		bonus := math.Max(0, math.Min(weekendBonusCap, (weekendAvg-weekdayAvg)/weekdayAvg))
		if bonus > 0.01 {
			base += bonus
			components = append(components, fmt.Sprintf("weekend: +%.0f%%", bonus*100))
		}
	}

	var wasteQuantities []float64
	for _, w := range idx.Waste(sku) {
		if !w.Date.Before(fourWeeksAgo) && !c.calendar.IsHighSalesDay(w.Date) {
			wasteQuantities = append(wasteQuantities, w.Quantity)
		}
	}
	if len(wasteQuantities) > 5 {
		wasteRatio := stat.Mean(wasteQuantities, nil) / math.Max(1, weekdayAvg)
		if wasteRatio > wasteRatioGate {
			reduction := math.Min(base*0.6, wasteRatio*0.5)
			base = math.Max(0, base-reduction)
			components = append(components, fmt.Sprintf("waste: -%.0f%%", reduction*100))
		}
	}

	return Result{
		Buffer: math.Round(base*100) / 100,
		Reason: strings.Join(components, ", "),
	}
}

// groupByDate sums wave-hour quantities per date, sorted by date so smoothing
// and variance see a stable order.
func groupByDate(records []domain.SalesRecord) []dayTotal {
	totals := make(map[string]*dayTotal)
	for _, rec := range records {
		d, ok := totals[rec.DateStr]
		if !ok {
			d = &dayTotal{
				date:      rec.DateStr,
				isWeekend: rec.DayOfWeek == time.Saturday || rec.DayOfWeek == time.Sunday,
			}
			totals[rec.DateStr] = d
		}
		d.total += rec.Quantity
	}

	days := make([]dayTotal, 0, len(totals))
	for _, d := range totals {
		days = append(days, *d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date < days[j].date })
	return days
}

// smoothAnomalies replaces any day more than 30% from the group median with
// the median, so a one-off spike cannot inflate the variance.
func smoothAnomalies(days []dayTotal) {
	if len(days) < 3 {
		return
	}

	sorted := make([]float64, len(days))
	for i, d := range days {
		sorted[i] = d.total
	}
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}
	if median == 0 {
		return
	}

	for i := range days {
		if math.Abs(days[i].total-median)/median > smoothingThreshold {
			days[i].total = median
		}
	}
}

// populationStdDev is the root of the mean squared deviation.
func populationStdDev(values []float64, mean float64) float64 {
	sq := make([]float64, len(values))
	for i, v := range values {
		diff := v - mean
		sq[i] = diff * diff
	}
	return math.Sqrt(stat.Mean(sq, nil))
}
