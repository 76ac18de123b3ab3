package weights

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
		Path:    filepath.Join(t.TempDir(), "planning.db"),
		Profile: database.ProfileLedger,
		Name:    "planning",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fakeCorrections struct {
	list []domain.ManagerCorrection
}

func (f fakeCorrections) CorrectionsForSKU(string) ([]domain.ManagerCorrection, error) {
	return f.list, nil
}

type fakeStockouts struct {
	count int
}

func (f fakeStockouts) CountRecent(string, time.Time, int) (int, error) {
	return f.count, nil
}

func newOptimizer(t *testing.T, corrections fakeCorrections, stockouts fakeStockouts) (*Optimizer, *Repository) {
	t.Helper()
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	return NewOptimizer(repo, corrections, stockouts, zerolog.Nop()), repo
}

func overForecasts(n int) []Outcome {
	outcomes := make([]Outcome, n)
	for i := range outcomes {
		outcomes[i] = Outcome{Forecast: 10, Actual: 8}
	}
	return outcomes
}

func TestOptimizeProduct_NotEnoughHistory(t *testing.T) {
	opt, _ := newOptimizer(t, fakeCorrections{}, fakeStockouts{})

	w, improved, err := opt.OptimizeProduct("A", overForecasts(6))
	require.NoError(t, err)
	assert.False(t, improved)
	assert.Equal(t, Defaults(), w)
}

func TestOptimizeProduct_ShrinksOverforecast(t *testing.T) {
	opt, repo := newOptimizer(t, fakeCorrections{}, fakeStockouts{})

	// Forecasts sit consistently above actuals; pulling the level down wins.
	w, improved, err := opt.OptimizeProduct("A", overForecasts(7))
	require.NoError(t, err)
	assert.True(t, improved)
	assert.InDelta(t, 1.0, w.Sum(), 1e-6)
	assert.Less(t, w[SourceSameWeekday4w], 0.35)

	stored, err := repo.Get("A")
	require.NoError(t, err)
	assert.InDelta(t, w[SourceSameWeekday4w], stored[SourceSameWeekday4w], 1e-9)
}

func TestOptimizeProduct_NoImprovementKeepsWeights(t *testing.T) {
	opt, repo := newOptimizer(t, fakeCorrections{}, fakeStockouts{})

	// Perfect forecasts: every perturbation only adds error.
	outcomes := make([]Outcome, 7)
	for i := range outcomes {
		outcomes[i] = Outcome{Forecast: 10, Actual: 10}
	}

	w, improved, err := opt.OptimizeProduct("A", outcomes)
	require.NoError(t, err)
	assert.False(t, improved)
	assert.Equal(t, Defaults(), w)

	// Nothing persisted.
	stored, err := repo.Get("A")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), stored)
}

func TestLearnFromCorrections_SystematicIncrease(t *testing.T) {
	corrections := fakeCorrections{list: []domain.ManagerCorrection{
		{SKU: "A", OriginalQty: 10, AdjustedQty: 13},
		{SKU: "A", OriginalQty: 10, AdjustedQty: 13},
		{SKU: "A", OriginalQty: 10, AdjustedQty: 13},
	}}
	opt, _ := newOptimizer(t, corrections, fakeStockouts{})

	w, changed, err := opt.LearnFromCorrections("A")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.InDelta(t, 1.0, w.Sum(), 1e-6)
	// +30% average deviation moves last_week_avg up.
	assert.Greater(t, w[SourceLastWeekAvg], 0.20)
}

func TestLearnFromCorrections_BelowThreshold(t *testing.T) {
	tests := []struct {
		name string
		list []domain.ManagerCorrection
	}{
		{"too few corrections", []domain.ManagerCorrection{
			{SKU: "A", OriginalQty: 10, AdjustedQty: 20},
			{SKU: "A", OriginalQty: 10, AdjustedQty: 20},
		}},
		{"small average deviation", []domain.ManagerCorrection{
			{SKU: "A", OriginalQty: 100, AdjustedQty: 105},
			{SKU: "A", OriginalQty: 100, AdjustedQty: 95},
			{SKU: "A", OriginalQty: 100, AdjustedQty: 103},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt, _ := newOptimizer(t, fakeCorrections{list: tt.list}, fakeStockouts{})
			_, changed, err := opt.LearnFromCorrections("A")
			require.NoError(t, err)
			assert.False(t, changed)
		})
	}
}

func TestLearnFromStockouts_Boost(t *testing.T) {
	opt, _ := newOptimizer(t, fakeCorrections{}, fakeStockouts{count: 3})

	w, changed, err := opt.LearnFromStockouts("A", time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.InDelta(t, 1.0, w.Sum(), 1e-6)
	assert.Greater(t, w[SourceSameWeekday4w], 0.35)
	assert.Greater(t, w[SourceYearOverYear], 0.10)
}

func TestLearnFromStockouts_SingleEventIgnored(t *testing.T) {
	opt, _ := newOptimizer(t, fakeCorrections{}, fakeStockouts{count: 1})

	_, changed, err := opt.LearnFromStockouts("A", time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRun_Summary(t *testing.T) {
	opt, _ := newOptimizer(t, fakeCorrections{}, fakeStockouts{})

	outcomes := map[string][]Outcome{
		"A": overForecasts(7),
		"B": overForecasts(3),
	}
	s := opt.Run(time.Now(), outcomes, []string{"A", "B"})

	assert.Equal(t, 1, s.Optimized)
	assert.Equal(t, 1, s.Improved)
	assert.Equal(t, 1, s.Skipped)
	assert.Zero(t, s.Failed)
}
