package history

import (
	"testing"
	"time"

	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/stretchr/testify/assert"
)

func rec(sku, dateStr string, hour int, qty float64) domain.SalesRecord {
	d, _ := time.Parse(domain.DateKey, dateStr)
	return domain.SalesRecord{
		SKU:       sku,
		Date:      d,
		DateStr:   dateStr,
		DayOfWeek: d.Weekday(),
		Hour:      hour,
		Quantity:  qty,
	}
}

func TestBuildIndex_Lookups(t *testing.T) {
	current := []domain.SalesRecord{
		rec("A", "2025-06-02", 8, 3),
		rec("A", "2025-06-02", 9, 2),
		rec("B", "2025-06-03", 8, 1),
	}
	prior := []domain.SalesRecord{rec("A", "2024-06-03", -1, 10)}
	waste := []domain.WasteRecord{{SKU: "A", DateStr: "2025-06-02", Quantity: 1}}

	idx := BuildIndex(current, prior, waste)

	assert.Len(t, idx.CurrentSales("A"), 2)
	assert.Len(t, idx.CurrentSales("B"), 1)
	assert.Len(t, idx.PriorSales("A"), 1)
	assert.Len(t, idx.Waste("A"), 1)

	// Unknown SKU yields empty, never an error.
	assert.Empty(t, idx.CurrentSales("missing"))
	assert.Empty(t, idx.PriorSales("missing"))
	assert.Empty(t, idx.Waste("missing"))
}

func TestIndex_WeekdaySecondaryIndex(t *testing.T) {
	// 2025-06-02 is a Monday, 2025-06-03 a Tuesday.
	idx := BuildIndex([]domain.SalesRecord{
		rec("A", "2025-06-02", 8, 3),
		rec("A", "2025-06-03", 8, 4),
	}, nil, nil)

	assert.Len(t, idx.WeekdaySales(time.Monday, "A"), 1)
	assert.Len(t, idx.WeekdaySales(time.Tuesday, "A"), 1)
	assert.Empty(t, idx.WeekdaySales(time.Friday, "A"))
}

func TestIndex_TotalsBySKU(t *testing.T) {
	idx := BuildIndex([]domain.SalesRecord{
		rec("A", "2025-06-02", 8, 3),
		rec("A", "2025-06-10", 8, 5),
		rec("B", "2025-06-10", 8, 2),
	}, nil, nil)

	cutoff, _ := time.Parse(domain.DateKey, "2025-06-05")
	totals := idx.TotalsBySKU(cutoff)

	assert.Equal(t, 5.0, totals["A"])
	assert.Equal(t, 2.0, totals["B"])
}

func TestIndex_DatesWithData(t *testing.T) {
	idx := BuildIndex([]domain.SalesRecord{
		rec("A", "2025-06-10", 8, 5),
		rec("B", "2025-06-02", 8, 2),
		rec("B", "2025-06-10", 9, 2),
	}, nil, nil)

	cutoff, _ := time.Parse(domain.DateKey, "2025-06-01")
	assert.Equal(t, []string{"2025-06-02", "2025-06-10"}, idx.DatesWithData(cutoff))
}

func TestIndex_HourlySales(t *testing.T) {
	idx := BuildIndex([]domain.SalesRecord{
		rec("A", "2025-06-02", 8, 3),
		rec("A", "2025-06-02", 8, 1),
		rec("A", "2025-06-02", 9, 2),
		rec("A", "2025-06-03", 8, 7),
	}, nil, nil)

	hourly := idx.HourlySales("A", "2025-06-02")
	assert.Equal(t, 4.0, hourly[8])
	assert.Equal(t, 2.0, hourly[9])
	assert.Zero(t, hourly[10])
}

func TestIndex_Velocity(t *testing.T) {
	idx := BuildIndex([]domain.SalesRecord{
		rec("A", "2025-06-02", 8, 4),
		rec("A", "2025-06-02", 9, 2),
		rec("A", "2025-06-03", 8, 6),
	}, nil, nil)

	now, _ := time.Parse(domain.DateKey, "2025-06-10")

	// 12 units over 2 observed days.
	assert.InDelta(t, 6.0, idx.Velocity("A", now, 30), 1e-9)
	// Outside the window.
	assert.Zero(t, idx.Velocity("A", now, 3))
	assert.Zero(t, idx.Velocity("missing", now, 30))
}
