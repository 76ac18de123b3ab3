package buffer

import (
	"testing"
	"time"

	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/bakeplan/bakeplan/internal/modules/calendar"
	"github.com/bakeplan/bakeplan/internal/modules/history"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newCalculator() *Calculator {
	return NewCalculator(calendar.New(), zerolog.Nop())
}

func parseDate(s string) time.Time {
	d, _ := time.Parse(domain.DateKey, s)
	return d
}

// dayRecords spreads a daily total across three wave-1 hours so every date
// contributes multiple records.
func dayRecords(sku, dateStr string, total float64) []domain.SalesRecord {
	d, _ := time.Parse(domain.DateKey, dateStr)
	parts := []float64{total - 2, 1, 1}
	var records []domain.SalesRecord
	for i, h := range []int{7, 8, 9} {
		records = append(records, domain.SalesRecord{
			SKU:       sku,
			Date:      d,
			DateStr:   dateStr,
			DayOfWeek: d.Weekday(),
			Hour:      h,
			Quantity:  parts[i],
		})
	}
	return records
}

func buildIndex(records []domain.SalesRecord, waste []domain.WasteRecord) *history.Index {
	return history.BuildIndex(records, nil, waste)
}

func TestCalculate_NoData(t *testing.T) {
	got := newCalculator().Calculate(buildIndex(nil, nil), "A", parseDate("2025-06-10"), domain.WaveMorning)
	assert.Equal(t, Result{Buffer: 0.15, Reason: "default, no data"}, got)
}

func TestCalculate_HighSalesDayZeroBuffer(t *testing.T) {
	// 2025-12-24 is a pre-holiday.
	idx := buildIndex(dayRecords("A", "2025-06-02", 5), nil)
	got := newCalculator().Calculate(idx, "A", parseDate("2025-12-24"), domain.WaveMorning)
	assert.Zero(t, got.Buffer)
}

func TestCalculate_LimitedData(t *testing.T) {
	// Two dates yield six records, below the ten-record threshold.
	records := append(dayRecords("A", "2025-06-02", 5), dayRecords("A", "2025-06-03", 6)...)
	got := newCalculator().Calculate(buildIndex(records, nil), "A", parseDate("2025-06-10"), domain.WaveMorning)
	assert.Equal(t, Result{Buffer: 0.15, Reason: "limited data"}, got)
}

func TestCalculate_CVBased(t *testing.T) {
	// Four weekdays at 5, 6, 4, 5: CV = sqrt(0.5)/5, x0.8 rounds to 0.11.
	var records []domain.SalesRecord
	records = append(records, dayRecords("A", "2025-06-02", 5)...)
	records = append(records, dayRecords("A", "2025-06-03", 6)...)
	records = append(records, dayRecords("A", "2025-06-04", 4)...)
	records = append(records, dayRecords("A", "2025-06-05", 5)...)

	got := newCalculator().Calculate(buildIndex(records, nil), "A", parseDate("2025-06-10"), domain.WaveMorning)
	assert.InDelta(t, 0.11, got.Buffer, 1e-9)
	assert.Contains(t, got.Reason, "CV-based")
}

func TestCalculate_SmoothsOutliers(t *testing.T) {
	// One 20-unit spike against steady 5s is pulled back to the median, so
	// the variance collapses and the floor applies.
	var records []domain.SalesRecord
	records = append(records, dayRecords("A", "2025-06-02", 5)...)
	records = append(records, dayRecords("A", "2025-06-03", 5)...)
	records = append(records, dayRecords("A", "2025-06-04", 5)...)
	records = append(records, dayRecords("A", "2025-06-05", 20)...)

	got := newCalculator().Calculate(buildIndex(records, nil), "A", parseDate("2025-06-10"), domain.WaveMorning)
	assert.InDelta(t, 0.05, got.Buffer, 1e-9)
}

func TestCalculate_WeekendBonus(t *testing.T) {
	// Steady weekdays at 5, two weekends at 6: +20% capped at +15%.
	var records []domain.SalesRecord
	for _, d := range []string{"2025-06-02", "2025-06-03", "2025-06-04", "2025-06-05"} {
		records = append(records, dayRecords("A", d, 5)...)
	}
	records = append(records, dayRecords("A", "2025-06-07", 6)...)
	records = append(records, dayRecords("A", "2025-06-08", 6)...)

	// 2025-06-14 is an ordinary Saturday.
	got := newCalculator().Calculate(buildIndex(records, nil), "A", parseDate("2025-06-14"), domain.WaveMorning)
	assert.InDelta(t, 0.05+0.15, got.Buffer, 1e-9)
	assert.Contains(t, got.Reason, "weekend")
}

func TestCalculate_WasteReduction(t *testing.T) {
	var records []domain.SalesRecord
	for _, d := range []string{"2025-06-02", "2025-06-03", "2025-06-04", "2025-06-05"} {
		records = append(records, dayRecords("A", d, 5)...)
	}
	var waste []domain.WasteRecord
	for _, d := range []string{"2025-06-02", "2025-06-03", "2025-06-04", "2025-06-05", "2025-06-06", "2025-06-09"} {
		waste = append(waste, domain.WasteRecord{SKU: "A", Date: parseDate(d), DateStr: d, Quantity: 1})
	}

	// Waste ratio 0.2 cuts the 0.05 base by min(0.03, 0.10) = 0.03.
	got := newCalculator().Calculate(buildIndex(records, waste), "A", parseDate("2025-06-10"), domain.WaveMorning)
	assert.InDelta(t, 0.02, got.Buffer, 1e-9)
	assert.Contains(t, got.Reason, "waste")
}

func TestCalculate_Idempotent(t *testing.T) {
	var records []domain.SalesRecord
	records = append(records, dayRecords("A", "2025-06-02", 5)...)
	records = append(records, dayRecords("A", "2025-06-03", 6)...)
	records = append(records, dayRecords("A", "2025-06-04", 4)...)
	records = append(records, dayRecords("A", "2025-06-05", 5)...)
	idx := buildIndex(records, nil)

	calc := newCalculator()
	first := calc.Calculate(idx, "A", parseDate("2025-06-10"), domain.WaveMorning)
	second := calc.Calculate(idx, "A", parseDate("2025-06-10"), domain.WaveMorning)
	assert.Equal(t, first, second)
}
