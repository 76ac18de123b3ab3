// Package trays turns a wave plan into a physical baking schedule: trays per
// product, grouped into oven batches with contiguous start and end times.
package trays

import (
	"fmt"
	"sort"
	"time"

	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/bakeplan/bakeplan/internal/modules/history"
	"github.com/bakeplan/bakeplan/internal/modules/ovens"
	"github.com/rs/zerolog"
)

// Tray types. SINGLE trays carry full-capacity multiples of one SKU, MIXED
// trays collect the remainders of several SKUs.
const (
	TraySingle = "SINGLE"
	TrayMixed  = "MIXED"
)

const stockoutWindowDays = 28

// TrayItem is one SKU's share of a tray.
type TrayItem struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Tray is one oven tray. PrimarySKU is the largest item on a mixed tray and
// is display-only.
type Tray struct {
	ID         int        `json:"id"`
	Program    int        `json:"program"`
	Type       string     `json:"type"`
	Items      []TrayItem `json:"items"`
	PrimarySKU string     `json:"primary_sku"`
}

// Batch is one oven load: up to the oven capacity in trays, all on the same
// baking program, with minute offsets from the start of the wave.
type Batch struct {
	Number      int    `json:"number"`
	Program     int    `json:"program"`
	Trays       []Tray `json:"trays"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

// StockoutCounter reports how many stockout events a SKU had in a recent
// window.
type StockoutCounter interface {
	CountRecent(sku string, now time.Time, days int) (int, error)
}

// Scheduler builds batch schedules from wave plans.
type Scheduler struct {
	ovens     *ovens.Repository
	stockouts StockoutCounter
	log       zerolog.Logger
}

// NewScheduler creates a tray scheduler.
func NewScheduler(ovenRepo *ovens.Repository, stockouts StockoutCounter, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		ovens:     ovenRepo,
		stockouts: stockouts,
		log:       log.With().Str("service", "trays").Logger(),
	}
}

// item is one SKU queued for scheduling, with its oven configuration and
// computed priority.
type item struct {
	product  domain.Product
	quantity int
	config   ovens.ProductConfig
	priority float64
}

// Schedule lays out one wave's plan into trays and oven batches. Products
// with a zero quantity are omitted; an empty plan yields zero batches.
func (s *Scheduler) Schedule(idx *history.Index, plan domain.WavePlan, catalog map[string]domain.Product, now time.Time) ([]Batch, error) {
	items, err := s.collectItems(idx, plan, catalog, now)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	ovenCapacity, err := s.ovens.TotalCapacity()
	if err != nil {
		return nil, err
	}
	if ovenCapacity < 1 {
		ovenCapacity = ovens.DefaultOvenCapacity
	}

	byProgram := make(map[int][]item)
	for _, it := range items {
		byProgram[it.config.Program] = append(byProgram[it.config.Program], it)
	}
	programs := make([]int, 0, len(byProgram))
	for p := range byProgram {
		programs = append(programs, p)
	}
	sort.Ints(programs)

	var batches []Batch
	nextTrayID := 1
	startMinute := 0
	for _, program := range programs {
		trays := buildTrays(program, byProgram[program], &nextTrayID)

		prog, err := s.ovens.Program(program)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve program %d: %w", program, err)
		}

		for i := 0; i < len(trays); i += ovenCapacity {
			end := i + ovenCapacity
			if end > len(trays) {
				end = len(trays)
			}
			batches = append(batches, Batch{
				Number:      len(batches) + 1,
				Program:     program,
				Trays:       trays[i:end],
				StartMinute: startMinute,
				EndMinute:   startMinute + prog.DurationMinutes,
			})
			startMinute += prog.DurationMinutes
		}
	}

	s.log.Debug().
		Int("products", len(items)).
		Int("batches", len(batches)).
		Msg("Batch schedule built")
	return batches, nil
}

// collectItems resolves oven configuration and priority for every planned
// SKU with a positive quantity, sorted by priority descending (SKU tiebreak).
func (s *Scheduler) collectItems(idx *history.Index, plan domain.WavePlan, catalog map[string]domain.Product, now time.Time) ([]item, error) {
	items := make([]item, 0, len(plan))
	for sku, entry := range plan {
		if entry.Quantity <= 0 {
			continue
		}
		product, ok := catalog[sku]
		if !ok {
			product = domain.Product{SKU: sku, Name: sku, UnitsPerPackage: 1}
		}
		cfg, err := s.ovens.ProductConfig(sku)
		if err != nil {
			return nil, err
		}
		if cfg.UnitsPerTray < 1 {
			cfg.UnitsPerTray = ovens.DefaultUnitsPerTray
		}

		stockoutCount, err := s.stockouts.CountRecent(sku, now, stockoutWindowDays)
		if err != nil {
			return nil, err
		}
		priority := idx.Velocity(sku, now, 30)*100 + float64(stockoutCount)*50
		if product.IsKey {
			priority += 1000
		}

		items = append(items, item{
			product:  product,
			quantity: entry.Quantity,
			config:   cfg,
			priority: priority,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].priority != items[j].priority {
			return items[i].priority > items[j].priority
		}
		return items[i].product.SKU < items[j].product.SKU
	})
	return items, nil
}

// buildTrays packs one program's items into trays: full-capacity SINGLE
// trays first, then remainders packed greedily into MIXED trays by
// descending priority. The items arrive already priority-sorted, so both
// tray groups come out priority-descending.
//
// A remainder occupies a fraction of a tray equal to quantity over its own
// units-per-tray, and a mixed tray closes at 100% combined fill. When SKUs
// with different tray capacities share a tray, the unit total can exceed the
// smaller capacity; the physical bound is the fill fraction, not any single
// member's unit count.
func buildTrays(program int, items []item, nextID *int) []Tray {
	var singles []Tray
	type remainder struct {
		it  item
		qty int
	}
	var remainders []remainder

	for _, it := range items {
		full := it.quantity / it.config.UnitsPerTray
		rest := it.quantity % it.config.UnitsPerTray
		for i := 0; i < full; i++ {
			singles = append(singles, Tray{
				ID:         *nextID,
				Program:    program,
				Type:       TraySingle,
				Items:      []TrayItem{{SKU: it.product.SKU, Name: it.product.Name, Quantity: it.config.UnitsPerTray}},
				PrimarySKU: it.product.SKU,
			})
			*nextID++
		}
		if rest > 0 {
			remainders = append(remainders, remainder{it: it, qty: rest})
		}
	}

	// Remainders occupy a fraction of a tray proportional to their own
	// units-per-tray capacity. Close the tray when the next item no longer
	// fits.
	var mixed []Tray
	var current *Tray
	fill := 0.0
	for _, r := range remainders {
		itemFill := float64(r.qty) / float64(r.it.config.UnitsPerTray)
		if current == nil || fill+itemFill > 1.0+1e-9 {
			if current != nil {
				mixed = append(mixed, *current)
			}
			current = &Tray{ID: *nextID, Program: program, Type: TrayMixed}
			*nextID++
			fill = 0
		}
		current.Items = append(current.Items, TrayItem{SKU: r.it.product.SKU, Name: r.it.product.Name, Quantity: r.qty})
		fill += itemFill
	}
	if current != nil {
		mixed = append(mixed, *current)
	}

	for i := range mixed {
		mixed[i].PrimarySKU = primarySKU(mixed[i].Items)
		if len(mixed[i].Items) == 1 {
			mixed[i].Type = TraySingle
		}
	}
	return append(singles, mixed...)
}

// primarySKU picks the largest quantity on a tray, first encountered wins
// ties.
func primarySKU(items []TrayItem) string {
	best := ""
	bestQty := -1
	for _, it := range items {
		if it.Quantity > bestQty {
			best = it.SKU
			bestQty = it.Quantity
		}
	}
	return best
}
