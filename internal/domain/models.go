// Package domain provides the core domain models shared across modules.
package domain

import "time"

// DateKey is the canonical YYYY-MM-DD layout used for plan keys and record
// date strings throughout the system.
const DateKey = "2006-01-02"

// Waves. Each wave covers a fixed set of intraday hours with its own baking
// cutoff; the three waves together span the 13 operating hours (7:00-19:59).
const (
	WaveMorning = 1
	WaveMidday  = 2
	WaveEvening = 3

	// FullDayHours is the number of operating hours in a sales day, used to
	// scale daily-granularity history down to a single wave.
	FullDayHours = 13
)

// WaveHours returns the sales hours belonging to a wave.
func WaveHours(wave int) []int {
	switch wave {
	case WaveMorning:
		return []int{7, 8, 9, 10, 11}
	case WaveMidday:
		return []int{12, 13, 14, 15}
	case WaveEvening:
		return []int{16, 17, 18, 19}
	default:
		return nil
	}
}

// OperatingHours returns the full ordered list of store operating hours.
func OperatingHours() []int {
	return []int{7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19}
}

// SalesRecord is one normalized sales observation. Quantities are already in
// sale units (packages for multi-pack SKUs); normalization happens exactly
// once at ingestion. Hour is -1 for daily-granularity (prior year) records.
type SalesRecord struct {
	SKU         string       `msgpack:"sku"`
	ProductName string       `msgpack:"product_name"`
	Date        time.Time    `msgpack:"date"`
	DateStr     string       `msgpack:"date_str"`
	DayOfWeek   time.Weekday `msgpack:"day_of_week"`
	Hour        int          `msgpack:"hour"`
	Quantity    float64      `msgpack:"quantity"`
}

// WasteRecord is one normalized waste (write-off) observation.
type WasteRecord struct {
	SKU      string    `msgpack:"sku"`
	Date     time.Time `msgpack:"date"`
	DateStr  string    `msgpack:"date_str"`
	Quantity float64   `msgpack:"quantity"`
}

// Product describes one SKU in the catalog. SKU is the stable identity.
type Product struct {
	SKU             string `json:"sku"`
	Name            string `json:"name"`
	IsKey           bool   `json:"is_key"`            // mandatory minimum-stock item
	IsPackaged      bool   `json:"is_packaged"`       // sold in multi-unit packages
	UnitsPerPackage int    `json:"units_per_package"` // >= 1
}

// StockoutEvent records a detected sales flatline for a fast-moving SKU.
// Events are append-only and never mutated.
type StockoutEvent struct {
	ID         string  `json:"id"`
	SKU        string  `json:"sku"`
	Date       string  `json:"date"`
	Hour       int     `json:"hour"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// ManagerCorrection is one append-only entry in the manager-correction log.
// Concurrent corrections simply append; the displayed quantity follows
// last-applied-wins.
type ManagerCorrection struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	Wave        int       `json:"wave"`
	SKU         string    `json:"sku"`
	OriginalQty int       `json:"original_qty"`
	AdjustedQty int       `json:"adjusted_qty"`
	CreatedAt   time.Time `json:"created_at"`
}

// WavePlanEntry is one SKU's plan for one wave.
type WavePlanEntry struct {
	SKU           string  `msgpack:"sku" json:"sku"`
	Quantity      int     `msgpack:"quantity" json:"quantity"`
	Historical    int     `msgpack:"historical" json:"historical"`
	BufferPercent int     `msgpack:"buffer_percent" json:"buffer_percent"` // may be negative
	Reason        string  `msgpack:"reason" json:"reason"`
	IsPackaged    bool    `msgpack:"is_packaged" json:"is_packaged"`
	// AdjustmentFactor is set only by realtime wave regeneration.
	AdjustmentFactor float64 `msgpack:"adjustment_factor,omitempty" json:"adjustment_factor,omitempty"`
	// OriginalQuantity is set when a manager correction has overridden
	// Quantity; nil means the quantity is the generated one.
	OriginalQuantity *int `msgpack:"original_quantity,omitempty" json:"original_quantity,omitempty"`
}

// WavePlan maps SKU to its entry for one wave.
type WavePlan map[string]WavePlanEntry

// DailyPlan is the full three-wave plan for one calendar date. A DailyPlan is
// regenerated wholesale, never patched field by field.
type DailyPlan struct {
	Date  string           `msgpack:"date" json:"date"`
	Waves map[int]WavePlan `msgpack:"waves" json:"waves"`
}

// NewDailyPlan creates an empty plan for a date with all three waves present.
func NewDailyPlan(date string) *DailyPlan {
	return &DailyPlan{
		Date: date,
		Waves: map[int]WavePlan{
			WaveMorning: {},
			WaveMidday:  {},
			WaveEvening: {},
		},
	}
}

// WaveTotal sums planned quantities for one wave. Unknown waves total 0.
func (p *DailyPlan) WaveTotal(wave int) int {
	total := 0
	for _, e := range p.Waves[wave] {
		total += e.Quantity
	}
	return total
}

// DailyTotal sums planned quantities across all three waves.
func (p *DailyPlan) DailyTotal() int {
	return p.WaveTotal(WaveMorning) + p.WaveTotal(WaveMidday) + p.WaveTotal(WaveEvening)
}
