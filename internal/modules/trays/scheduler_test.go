package trays

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bakeplan/bakeplan/internal/database"
	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/bakeplan/bakeplan/internal/modules/history"
	"github.com/bakeplan/bakeplan/internal/modules/ovens"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStockouts struct {
	counts map[string]int
}

func (f *fakeStockouts) CountRecent(sku string, _ time.Time, _ int) (int, error) {
	return f.counts[sku], nil
}

func setupOvens(t *testing.T) *ovens.Repository {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "config.db"),
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return ovens.NewRepository(db, zerolog.Nop())
}

func newScheduler(t *testing.T, counts map[string]int) (*Scheduler, *ovens.Repository) {
	t.Helper()
	repo := setupOvens(t)
	if counts == nil {
		counts = map[string]int{}
	}
	return NewScheduler(repo, &fakeStockouts{counts: counts}, zerolog.Nop()), repo
}

func emptyIndex() *history.Index {
	return history.BuildIndex(nil, nil, nil)
}

func plan(quantities map[string]int) domain.WavePlan {
	p := domain.WavePlan{}
	for sku, qty := range quantities {
		p[sku] = domain.WavePlanEntry{SKU: sku, Quantity: qty}
	}
	return p
}

func catalog(products ...domain.Product) map[string]domain.Product {
	m := make(map[string]domain.Product)
	for _, p := range products {
		m[p.SKU] = p
	}
	return m
}

func TestSchedule_EmptyPlan(t *testing.T) {
	s, _ := newScheduler(t, nil)

	batches, err := s.Schedule(emptyIndex(), domain.WavePlan{}, nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, batches)

	// Zero-quantity entries are equivalent to an empty plan.
	batches, err = s.Schedule(emptyIndex(), plan(map[string]int{"A": 0}), nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestSchedule_SingleAndMixedTrays(t *testing.T) {
	s, _ := newScheduler(t, nil)

	// Default config: 10 units per tray. 23 units = 2 SINGLE trays + 3 left.
	batches, err := s.Schedule(emptyIndex(), plan(map[string]int{"A": 23}),
		catalog(domain.Product{SKU: "A", Name: "Beli kruh"}), time.Now())
	require.NoError(t, err)
	require.Len(t, batches, 1)

	trays := batches[0].Trays
	require.Len(t, trays, 3)
	assert.Equal(t, TraySingle, trays[0].Type)
	assert.Equal(t, 10, trays[0].Items[0].Quantity)
	assert.Equal(t, TraySingle, trays[1].Type)
	// The remainder sits alone on its tray, so it still reads as SINGLE.
	assert.Equal(t, TraySingle, trays[2].Type)
	assert.Equal(t, 3, trays[2].Items[0].Quantity)
}

func TestSchedule_MixedTrayPacksRemainders(t *testing.T) {
	s, _ := newScheduler(t, nil)

	// 4 + 5 units of two SKUs fit one shared tray (fill 0.4 + 0.5).
	batches, err := s.Schedule(emptyIndex(), plan(map[string]int{"A": 4, "B": 5}),
		catalog(
			domain.Product{SKU: "A", Name: "Kajzerica"},
			domain.Product{SKU: "B", Name: "Burek"},
		), time.Now())
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Trays, 1)

	tray := batches[0].Trays[0]
	assert.Equal(t, TrayMixed, tray.Type)
	require.Len(t, tray.Items, 2)
	assert.Equal(t, "B", tray.PrimarySKU)
}

func TestSchedule_MixedTrayFillUsesPerItemCapacity(t *testing.T) {
	s, repo := newScheduler(t, nil)
	require.NoError(t, repo.SetProductConfig(ovens.ProductConfig{SKU: "B", Program: 1, UnitsPerTray: 13}))

	// 6 of 10 (fill 0.60) and 5 of 13 (fill 0.38) share one tray: the unit
	// total of 11 exceeds A's own capacity, but the combined fill is 0.98.
	batches, err := s.Schedule(emptyIndex(), plan(map[string]int{"A": 6, "B": 5}),
		catalog(
			domain.Product{SKU: "A", Name: "Zemlja"},
			domain.Product{SKU: "B", Name: "Štruca"},
		), time.Now())
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Trays, 1)

	tray := batches[0].Trays[0]
	assert.Equal(t, TrayMixed, tray.Type)
	total := 0
	for _, it := range tray.Items {
		total += it.Quantity
	}
	assert.Equal(t, 11, total)
}

func TestSchedule_KeyProductFirst(t *testing.T) {
	s, _ := newScheduler(t, nil)

	batches, err := s.Schedule(emptyIndex(), plan(map[string]int{"plain": 10, "key": 10}),
		catalog(
			domain.Product{SKU: "plain", Name: "Zemlja"},
			domain.Product{SKU: "key", Name: "Beli kruh", IsKey: true},
		), time.Now())
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Trays, 2)
	assert.Equal(t, "key", batches[0].Trays[0].Items[0].SKU)
	assert.Equal(t, "plain", batches[0].Trays[1].Items[0].SKU)
}

func TestSchedule_StockoutsAndVelocityRaisePriority(t *testing.T) {
	s, _ := newScheduler(t, map[string]int{"B": 2})

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	// A sells 8/day recently (priority 800), B has two recent stockouts
	// (priority 100) plus 9/day velocity (900) = 1000.
	records := []domain.SalesRecord{
		{SKU: "A", Date: now.AddDate(0, 0, -1), DateStr: "2025-06-09", Hour: 9, Quantity: 8},
		{SKU: "B", Date: now.AddDate(0, 0, -1), DateStr: "2025-06-09", Hour: 9, Quantity: 9},
	}
	idx := history.BuildIndex(records, nil, nil)

	batches, err := s.Schedule(idx, plan(map[string]int{"A": 10, "B": 10}),
		catalog(
			domain.Product{SKU: "A", Name: "A"},
			domain.Product{SKU: "B", Name: "B"},
		), now)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "B", batches[0].Trays[0].Items[0].SKU)
}

func TestSchedule_BatchCapacityAndContiguousTimes(t *testing.T) {
	s, repo := newScheduler(t, nil)
	require.NoError(t, repo.SetOvenLayout([]int{3}))

	// 70 units on default trays = 7 SINGLE trays = 3 batches of 3/3/1.
	batches, err := s.Schedule(emptyIndex(), plan(map[string]int{"A": 70}),
		catalog(domain.Product{SKU: "A", Name: "A"}), time.Now())
	require.NoError(t, err)
	require.Len(t, batches, 3)

	assert.Len(t, batches[0].Trays, 3)
	assert.Len(t, batches[1].Trays, 3)
	assert.Len(t, batches[2].Trays, 1)

	assert.Equal(t, 0, batches[0].StartMinute)
	for i, b := range batches {
		assert.Equal(t, i+1, b.Number)
		assert.Equal(t, b.StartMinute+ovens.DefaultDurationMinutes, b.EndMinute)
		if i > 0 {
			assert.Equal(t, batches[i-1].EndMinute, b.StartMinute)
		}
	}
}

func TestSchedule_ProgramsAscendingWithOwnDurations(t *testing.T) {
	s, repo := newScheduler(t, nil)
	require.NoError(t, repo.SetProgram(ovens.Program{Program: 2, Name: "pastry", DurationMinutes: 15}))
	require.NoError(t, repo.SetProductConfig(ovens.ProductConfig{SKU: "B", Program: 2, UnitsPerTray: 10}))

	batches, err := s.Schedule(emptyIndex(), plan(map[string]int{"A": 10, "B": 10}),
		catalog(
			domain.Product{SKU: "A", Name: "A"},
			domain.Product{SKU: "B", Name: "B"},
		), time.Now())
	require.NoError(t, err)
	require.Len(t, batches, 2)

	assert.Equal(t, 1, batches[0].Program)
	assert.Equal(t, 0, batches[0].StartMinute)
	assert.Equal(t, 20, batches[0].EndMinute)

	assert.Equal(t, 2, batches[1].Program)
	assert.Equal(t, 20, batches[1].StartMinute)
	assert.Equal(t, 35, batches[1].EndMinute)
}
