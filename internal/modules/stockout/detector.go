package stockout

import (
	"sort"
	"time"

	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/bakeplan/bakeplan/internal/modules/history"
	"github.com/rs/zerolog"
)

const (
	// fastMoverCount limits stockout scanning to the highest-volume SKUs.
	// Slow movers legitimately show zero-sales hours all day long.
	fastMoverCount = 5
	// fastMoverWindowDays is the trailing volume window for the ranking.
	fastMoverWindowDays = 28

	confidenceDropAfterActivity = 0.9
	confidenceSustainedSilence  = 0.95

	reasonDropAfterActivity = "drop after activity"
	reasonSustainedSilence  = "sustained silence"
)

// Detector scans the hourly sales history of fast-moving SKUs for flatline
// anomalies and records them as stockout events.
type Detector struct {
	repo *Repository
	log  zerolog.Logger
}

// NewDetector creates a stockout detector writing to the given repository.
func NewDetector(repo *Repository, log zerolog.Logger) *Detector {
	return &Detector{
		repo: repo,
		log:  log.With().Str("component", "stockout-detector").Logger(),
	}
}

// FastMovers returns the top SKUs by trailing-28-day volume, highest first.
// Ties break by SKU so the ranking is deterministic.
func FastMovers(idx *history.Index, now time.Time) []string {
	totals := idx.TotalsBySKU(now.AddDate(0, 0, -fastMoverWindowDays))

	skus := make([]string, 0, len(totals))
	for sku := range totals {
		skus = append(skus, sku)
	}
	sort.Slice(skus, func(i, j int) bool {
		if totals[skus[i]] != totals[skus[j]] {
			return totals[skus[i]] > totals[skus[j]]
		}
		return skus[i] < skus[j]
	})

	if len(skus) > fastMoverCount {
		skus = skus[:fastMoverCount]
	}
	return skus
}

// Detect walks the trailing window for every fast mover and returns the
// detected events without persisting them. Per SKU and date, operating hours
// are scanned in order and only the first qualifying hour is recorded:
// a zero-sales hour right after a nonzero hour, or a zero-sales hour followed
// by two more zero hours.
func Detect(idx *history.Index, now time.Time, days int) []domain.StockoutEvent {
	dates := idx.DatesWithData(now.AddDate(0, 0, -days))
	var events []domain.StockoutEvent

	for _, sku := range FastMovers(idx, now) {
		for _, dateStr := range dates {
			hourly := idx.HourlySales(sku, dateStr)
			if len(hourly) == 0 {
				continue
			}

			for _, h := range domain.OperatingHours() {
				if hourly[h] != 0 {
					continue
				}

				if h > 7 && hourly[h-1] > 0 {
					events = append(events, domain.StockoutEvent{
						SKU:        sku,
						Date:       dateStr,
						Hour:       h,
						Confidence: confidenceDropAfterActivity,
						Reason:     reasonDropAfterActivity,
					})
					break
				}
				if h <= 17 && hourly[h+1] == 0 && hourly[h+2] == 0 {
					events = append(events, domain.StockoutEvent{
						SKU:        sku,
						Date:       dateStr,
						Hour:       h,
						Confidence: confidenceSustainedSilence,
						Reason:     reasonSustainedSilence,
					})
					break
				}
			}
		}
	}

	return events
}

// Scan runs detection over the trailing window and appends new events to the
// repository. Returns all detected events (stored or previously known).
func (d *Detector) Scan(idx *history.Index, now time.Time, days int) ([]domain.StockoutEvent, error) {
	events := Detect(idx, now, days)
	inserted, err := d.repo.Append(events)
	if err != nil {
		return nil, err
	}
	d.log.Info().
		Int("detected", len(events)).
		Int("new", inserted).
		Msg("Stockout scan complete")
	return events, nil
}

// EstimateUnmetDemand estimates the sales lost after a stockout hour. Hours
// after the event are valued at the SKU's same-weekday hourly average from
// other dates; when no same-weekday history covers those hours, the day's own
// pre-stockout hourly average plus 30% stands in.
func EstimateUnmetDemand(idx *history.Index, ev domain.StockoutEvent) float64 {
	date, err := time.Parse(domain.DateKey, ev.Date)
	if err != nil {
		return 0
	}

	// Same-weekday hourly averages over other dates.
	sums := make(map[int]float64)
	days := make(map[int]map[string]bool)
	for _, rec := range idx.WeekdaySales(date.Weekday(), ev.SKU) {
		if rec.DateStr == ev.Date || rec.Hour < 0 {
			continue
		}
		sums[rec.Hour] += rec.Quantity
		if days[rec.Hour] == nil {
			days[rec.Hour] = make(map[string]bool)
		}
		days[rec.Hour][rec.DateStr] = true
	}

	lost := 0.0
	covered := false
	for _, h := range domain.OperatingHours() {
		if h < ev.Hour {
			continue
		}
		if n := len(days[h]); n > 0 {
			lost += sums[h] / float64(n)
			covered = true
		}
	}
	if covered {
		return lost
	}

	// No same-weekday coverage: fall back to the day's own pre-stockout pace.
	hourly := idx.HourlySales(ev.SKU, ev.Date)
	preTotal, preHours := 0.0, 0
	remaining := 0
	for _, h := range domain.OperatingHours() {
		if h < ev.Hour {
			preTotal += hourly[h]
			preHours++
		} else {
			remaining++
		}
	}
	if preHours == 0 {
		return 0
	}
	return (preTotal / float64(preHours)) * 1.3 * float64(remaining)
}
