package weights

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_MissingSKUReadsDefaults(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	w, err := repo.Get("never-seen")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), w)
}

func TestRepository_SaveOverwritesWholeValue(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	w := Defaults()
	w[SourceLastWeekAvg] = 0.40
	w.Normalize()
	require.NoError(t, repo.Save("A", w))

	loaded, err := repo.Get("A")
	require.NoError(t, err)
	assert.InDelta(t, w[SourceLastWeekAvg], loaded[SourceLastWeekAvg], 1e-9)
	assert.InDelta(t, 1.0, loaded.Sum(), 1e-6)

	// Second save replaces, not merges.
	w2 := Defaults()
	require.NoError(t, repo.Save("A", w2))
	loaded, err = repo.Get("A")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), loaded)
}

func TestRepository_ResetRestoresDefaults(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	w := Defaults()
	w[SourceSameWeekday4w] = 0.50
	w.Normalize()
	require.NoError(t, repo.Save("A", w))
	require.NoError(t, repo.Reset("A"))

	loaded, err := repo.Get("A")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), loaded)
}
