package stockout

import (
	"testing"
	"time"

	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/bakeplan/bakeplan/internal/modules/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

// allDay produces one record per operating hour so a SKU shows no flatline.
func allDay(sku, dateStr string, qty float64) []domain.SalesRecord {
	var records []domain.SalesRecord
	for _, h := range domain.OperatingHours() {
		records = append(records, rec(sku, dateStr, h, qty))
	}
	return records
}

func parseDate(s string) time.Time {
	d, _ := time.Parse(domain.DateKey, s)
	return d
}

func TestFastMovers_TopFiveByVolume(t *testing.T) {
	var records []domain.SalesRecord
	// Six SKUs with strictly decreasing volume; F is the slowest.
	volumes := map[string]float64{"A": 60, "B": 50, "C": 40, "D": 30, "E": 20, "F": 10}
	for sku, qty := range volumes {
		records = append(records, rec(sku, "2025-06-02", 8, qty))
	}
	idx := history.BuildIndex(records, nil, nil)

	movers := FastMovers(idx, parseDate("2025-06-10"))
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, movers)
}

func TestFastMovers_IgnoresStaleVolume(t *testing.T) {
	idx := history.BuildIndex([]domain.SalesRecord{
		rec("OLD", "2025-01-01", 8, 1000),
		rec("NEW", "2025-06-02", 8, 1),
	}, nil, nil)

	movers := FastMovers(idx, parseDate("2025-06-10"))
	assert.Equal(t, []string{"NEW"}, movers)
}

func TestDetect_DropAfterActivity(t *testing.T) {
	// Steady sales through hour 13, then nothing sold at 14 while 15-19
	// stay nonzero.
	var records []domain.SalesRecord
	for _, h := range domain.OperatingHours() {
		if h == 14 {
			continue
		}
		records = append(records, rec("A", "2025-06-02", h, 5))
	}
	idx := history.BuildIndex(records, nil, nil)

	events := Detect(idx, parseDate("2025-06-05"), 30)
	require.Len(t, events, 1)
	assert.Equal(t, "A", events[0].SKU)
	assert.Equal(t, 14, events[0].Hour)
	assert.Equal(t, 0.9, events[0].Confidence)
	assert.Equal(t, "drop after activity", events[0].Reason)
}

func TestDetect_SustainedSilence(t *testing.T) {
	// No sales until noon; hours 7-11 are a sustained flatline.
	var records []domain.SalesRecord
	for h := 12; h <= 19; h++ {
		records = append(records, rec("A", "2025-06-02", h, 5))
	}
	idx := history.BuildIndex(records, nil, nil)

	events := Detect(idx, parseDate("2025-06-05"), 30)
	require.Len(t, events, 1)
	assert.Equal(t, 7, events[0].Hour)
	assert.Equal(t, 0.95, events[0].Confidence)
	assert.Equal(t, "sustained silence", events[0].Reason)
}

func TestDetect_FirstQualifyingHourPerDate(t *testing.T) {
	// Two separate flatlines on one date; only the first is recorded.
	var records []domain.SalesRecord
	for _, h := range domain.OperatingHours() {
		if h == 9 || h == 15 {
			continue
		}
		records = append(records, rec("A", "2025-06-02", h, 5))
	}
	idx := history.BuildIndex(records, nil, nil)

	events := Detect(idx, parseDate("2025-06-05"), 30)
	require.Len(t, events, 1)
	assert.Equal(t, 9, events[0].Hour)
}

func TestDetect_SlowMoversSkipped(t *testing.T) {
	// Five high-volume clean SKUs push the flatlining one out of the ranking.
	var records []domain.SalesRecord
	for _, sku := range []string{"A", "B", "C", "D", "E"} {
		records = append(records, allDay(sku, "2025-06-02", 10)...)
	}
	// SLOW sells once and then flatlines.
	records = append(records, rec("SLOW", "2025-06-02", 8, 1))

	idx := history.BuildIndex(records, nil, nil)
	events := Detect(idx, parseDate("2025-06-05"), 30)
	assert.Empty(t, events)
}

func TestDetect_CleanDayNoEvents(t *testing.T) {
	idx := history.BuildIndex(allDay("A", "2025-06-02", 5), nil, nil)
	assert.Empty(t, Detect(idx, parseDate("2025-06-05"), 30))
}

func TestEstimateUnmetDemand_SameWeekdayHistory(t *testing.T) {
	// 2025-06-02 and 2025-06-09 are Mondays. The event date flatlines at 10;
	// the other Monday sold 4 at 10 and 2 at 11.
	records := []domain.SalesRecord{
		rec("A", "2025-06-02", 10, 4),
		rec("A", "2025-06-02", 11, 2),
		rec("A", "2025-06-09", 8, 3),
	}
	idx := history.BuildIndex(records, nil, nil)

	lost := EstimateUnmetDemand(idx, domain.StockoutEvent{SKU: "A", Date: "2025-06-09", Hour: 10})
	assert.InDelta(t, 6.0, lost, 1e-9)
}

func TestEstimateUnmetDemand_FallbackToPreStockoutPace(t *testing.T) {
	// No other same-weekday history: the day's own pre-stockout average
	// (4/hour over 7-9) plus 30%, over the 10 remaining hours.
	records := []domain.SalesRecord{
		rec("A", "2025-06-09", 7, 2),
		rec("A", "2025-06-09", 8, 4),
		rec("A", "2025-06-09", 9, 6),
	}
	idx := history.BuildIndex(records, nil, nil)

	lost := EstimateUnmetDemand(idx, domain.StockoutEvent{SKU: "A", Date: "2025-06-09", Hour: 10})
	assert.InDelta(t, 4.0*1.3*10, lost, 1e-9)
}
