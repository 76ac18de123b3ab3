package history

import (
	"sort"
	"time"

	"github.com/bakeplan/bakeplan/internal/domain"
)

// Index is the in-memory lookup structure over one immutable snapshot of the
// record set. It is rebuilt wholesale whenever the backing records change;
// there is no incremental invalidation. Lookup by SKU is the only access path
// used downstream, and a SKU with no records yields an empty slice, never an
// error.
type Index struct {
	currentBySKU map[string][]domain.SalesRecord
	priorBySKU   map[string][]domain.SalesRecord
	// weekdayBySKU is the optional secondary index over the current-year
	// dataset: weekday -> sku -> records.
	weekdayBySKU map[time.Weekday]map[string][]domain.SalesRecord
	wasteBySKU   map[string][]domain.WasteRecord
}

// BuildIndex groups the given records into lookup maps.
func BuildIndex(current, prior []domain.SalesRecord, waste []domain.WasteRecord) *Index {
	idx := &Index{
		currentBySKU: make(map[string][]domain.SalesRecord),
		priorBySKU:   make(map[string][]domain.SalesRecord),
		weekdayBySKU: make(map[time.Weekday]map[string][]domain.SalesRecord),
		wasteBySKU:   make(map[string][]domain.WasteRecord),
	}

	for _, rec := range current {
		idx.currentBySKU[rec.SKU] = append(idx.currentBySKU[rec.SKU], rec)
		bySKU, ok := idx.weekdayBySKU[rec.DayOfWeek]
		if !ok {
			bySKU = make(map[string][]domain.SalesRecord)
			idx.weekdayBySKU[rec.DayOfWeek] = bySKU
		}
		bySKU[rec.SKU] = append(bySKU[rec.SKU], rec)
	}
	for _, rec := range prior {
		idx.priorBySKU[rec.SKU] = append(idx.priorBySKU[rec.SKU], rec)
	}
	for _, rec := range waste {
		idx.wasteBySKU[rec.SKU] = append(idx.wasteBySKU[rec.SKU], rec)
	}

	return idx
}

// CurrentSales returns the current-year hourly records for a SKU.
func (idx *Index) CurrentSales(sku string) []domain.SalesRecord {
	return idx.currentBySKU[sku]
}

// PriorSales returns the prior-year daily records for a SKU.
func (idx *Index) PriorSales(sku string) []domain.SalesRecord {
	return idx.priorBySKU[sku]
}

// WeekdaySales returns the current-year records for a SKU on one weekday.
func (idx *Index) WeekdaySales(day time.Weekday, sku string) []domain.SalesRecord {
	bySKU := idx.weekdayBySKU[day]
	if bySKU == nil {
		return nil
	}
	return bySKU[sku]
}

// Waste returns the waste records for a SKU.
func (idx *Index) Waste(sku string) []domain.WasteRecord {
	return idx.wasteBySKU[sku]
}

// TotalsBySKU sums current-year quantities per SKU on or after the cutoff.
func (idx *Index) TotalsBySKU(cutoff time.Time) map[string]float64 {
	totals := make(map[string]float64)
	for sku, records := range idx.currentBySKU {
		for _, rec := range records {
			if !rec.Date.Before(cutoff) {
				totals[sku] += rec.Quantity
			}
		}
	}
	return totals
}

// DatesWithData returns the sorted distinct current-year dates (YYYY-MM-DD)
// on or after the cutoff.
func (idx *Index) DatesWithData(cutoff time.Time) []string {
	seen := make(map[string]bool)
	for _, records := range idx.currentBySKU {
		for _, rec := range records {
			if !rec.Date.Before(cutoff) {
				seen[rec.DateStr] = true
			}
		}
	}
	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// HourlySales returns hour -> quantity for one SKU on one date.
func (idx *Index) HourlySales(sku, dateStr string) map[int]float64 {
	hourly := make(map[int]float64)
	for _, rec := range idx.currentBySKU[sku] {
		if rec.DateStr == dateStr && rec.Hour >= 0 {
			hourly[rec.Hour] += rec.Quantity
		}
	}
	return hourly
}

// Velocity computes average units sold per observed day over the trailing
// window, from the current-year dataset. Days without sales do not dilute the
// average; the tray scheduler wants "how fast does this move on a day it
// sells".
func (idx *Index) Velocity(sku string, now time.Time, days int) float64 {
	cutoff := now.AddDate(0, 0, -days)

	total := 0.0
	dates := make(map[string]bool)
	for _, rec := range idx.currentBySKU[sku] {
		if rec.Date.Before(cutoff) {
			continue
		}
		total += rec.Quantity
		dates[rec.DateStr] = true
	}

	if len(dates) == 0 {
		return 0
	}
	return total / float64(len(dates))
}
