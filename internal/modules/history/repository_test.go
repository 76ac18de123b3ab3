package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bakeplan/bakeplan/internal/database"
	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRepository_SalesRoundTrip(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	d, _ := time.Parse(domain.DateKey, "2025-06-02")
	records := []domain.SalesRecord{
		{SKU: "A", ProductName: "Kajzerica", Date: d, DateStr: "2025-06-02", DayOfWeek: d.Weekday(), Hour: 8, Quantity: 3},
		{SKU: "A", ProductName: "Kajzerica", Date: d, DateStr: "2025-06-02", DayOfWeek: d.Weekday(), Hour: -1, Quantity: 12},
	}
	require.NoError(t, repo.AppendSales(DatasetCurrent, records))

	loaded, err := repo.AllSales(DatasetCurrent)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, "A", loaded[0].SKU)
	assert.Equal(t, "Kajzerica", loaded[0].ProductName)
	assert.Equal(t, time.Monday, loaded[0].DayOfWeek)

	// NULL hour comes back as -1.
	hours := []int{loaded[0].Hour, loaded[1].Hour}
	assert.Contains(t, hours, 8)
	assert.Contains(t, hours, -1)

	// Datasets are isolated.
	prior, err := repo.AllSales(DatasetPrior)
	require.NoError(t, err)
	assert.Empty(t, prior)
}

func TestRepository_ReplaceSales(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	d, _ := time.Parse(domain.DateKey, "2025-06-02")
	old := []domain.SalesRecord{
		{SKU: "OLD", Date: d, DateStr: "2025-06-02", DayOfWeek: d.Weekday(), Hour: 8, Quantity: 1},
	}
	require.NoError(t, repo.AppendSales(DatasetCurrent, old))

	fresh := []domain.SalesRecord{
		{SKU: "NEW", Date: d, DateStr: "2025-06-02", DayOfWeek: d.Weekday(), Hour: 9, Quantity: 2},
	}
	require.NoError(t, repo.ReplaceSales(DatasetCurrent, fresh))

	loaded, err := repo.AllSales(DatasetCurrent)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "NEW", loaded[0].SKU)
}

func TestRepository_WasteRoundTrip(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	d, _ := time.Parse(domain.DateKey, "2025-06-02")
	require.NoError(t, repo.AppendWaste([]domain.WasteRecord{
		{SKU: "A", Date: d, DateStr: "2025-06-02", Quantity: 4},
	}))

	loaded, err := repo.AllWaste()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "A", loaded[0].SKU)
	assert.Equal(t, 4.0, loaded[0].Quantity)
	assert.Equal(t, d, loaded[0].Date)
}

func TestService_Rebuild(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	svc := NewService(repo, zerolog.Nop())

	// Empty index before any rebuild.
	assert.Empty(t, svc.Index().CurrentSales("A"))

	d, _ := time.Parse(domain.DateKey, "2025-06-02")
	require.NoError(t, repo.AppendSales(DatasetCurrent, []domain.SalesRecord{
		{SKU: "A", Date: d, DateStr: "2025-06-02", DayOfWeek: d.Weekday(), Hour: 8, Quantity: 3},
	}))
	require.NoError(t, svc.Rebuild())

	assert.Len(t, svc.Index().CurrentSales("A"), 1)
}
