package ingest

import (
	"path/filepath"
	"testing"

	"github.com/bakeplan/bakeplan/internal/database"
	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/bakeplan/bakeplan/internal/modules/history"
	"github.com/bakeplan/bakeplan/internal/modules/products"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocaleNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"12", 12},
		{"12,5", 12.5},
		{"12.5", 12.5},
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{" 42 ", 42},
		{"-3,5", -3.5},
		{"", 0},
		{"abc", 0},
		{"1,2,3", 0},
		{"12,5kg", 0},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, ParseLocaleNumber(tc.in), 1e-9, "input %q", tc.in)
	}
}

func newService(t *testing.T) (*Service, *history.Service, *products.Repository) {
	t.Helper()
	dir := t.TempDir()

	open := func(name string) *database.DB {
		db, err := database.New(database.Config{
			Path:    filepath.Join(dir, name+".db"),
			Profile: database.ProfileStandard,
			Name:    name,
		})
		require.NoError(t, err)
		require.NoError(t, db.Migrate())
		t.Cleanup(func() { _ = db.Close() })
		return db
	}

	nop := zerolog.Nop()
	histSvc := history.NewService(history.NewRepository(open("history"), nop), nop)
	prodRepo := products.NewRepository(open("config"), nop)
	return NewService(histSvc, prodRepo, nop), histSvc, prodRepo
}

func TestIngestSales(t *testing.T) {
	svc, hist, prods := newService(t)

	hour := 9
	res, err := svc.IngestSales(history.DatasetCurrent, []SalesRow{
		{SKU: "A", ProductName: "Beli kruh", Date: "2025-06-10", Hour: &hour, Quantity: "3,5"},
		{SKU: "A", ProductName: "Beli kruh", Date: "not-a-date", Hour: &hour, Quantity: "1"},
		{SKU: "", Date: "2025-06-10", Quantity: "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 2, res.Skipped)

	records := hist.Index().CurrentSales("A")
	require.Len(t, records, 1)
	assert.Equal(t, 3.5, records[0].Quantity)
	assert.Equal(t, 9, records[0].Hour)
	assert.Equal(t, "2025-06-10", records[0].DateStr)

	// The unseen SKU was registered in the catalog.
	p, err := prods.Get("A")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Beli kruh", p.Name)
}

func TestIngestSales_PackageNormalization(t *testing.T) {
	svc, hist, prods := newService(t)
	require.NoError(t, prods.Upsert(domain.Product{
		SKU: "P", Name: "Zemlje 6x", IsPackaged: true, UnitsPerPackage: 6,
	}))

	res, err := svc.IngestSales(history.DatasetCurrent, []SalesRow{
		{SKU: "P", Date: "2025-06-10", Quantity: "12"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	// 12 pieces become 2 packages, divided exactly once.
	records := hist.Index().CurrentSales("P")
	require.Len(t, records, 1)
	assert.Equal(t, 2.0, records[0].Quantity)
	assert.Equal(t, -1, records[0].Hour)
}

func TestIngestWaste(t *testing.T) {
	svc, hist, _ := newService(t)

	res, err := svc.IngestWaste([]WasteRow{
		{SKU: "A", Date: "2025-06-10", Quantity: "2,5"},
		{SKU: "A", Date: "bad", Quantity: "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.Skipped)

	waste := hist.Index().Waste("A")
	require.Len(t, waste, 1)
	assert.Equal(t, 2.5, waste[0].Quantity)
}
