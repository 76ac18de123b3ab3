package history

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Service owns the current Index snapshot. The index is rebuilt wholesale
// from the repository after every ingestion event; readers always see either
// the old snapshot or the new one, never a half-built index.
type Service struct {
	repo *Repository
	log  zerolog.Logger

	mu  sync.RWMutex
	idx *Index
}

// NewService creates a history service with an empty index.
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "history").Logger(),
		idx:  BuildIndex(nil, nil, nil),
	}
}

// Rebuild reloads all records from the repository and swaps in a fresh index.
func (s *Service) Rebuild() error {
	current, err := s.repo.AllSales(DatasetCurrent)
	if err != nil {
		return fmt.Errorf("failed to load current dataset: %w", err)
	}
	prior, err := s.repo.AllSales(DatasetPrior)
	if err != nil {
		return fmt.Errorf("failed to load prior dataset: %w", err)
	}
	waste, err := s.repo.AllWaste()
	if err != nil {
		return fmt.Errorf("failed to load waste records: %w", err)
	}

	idx := BuildIndex(current, prior, waste)

	s.mu.Lock()
	s.idx = idx
	s.mu.Unlock()

	s.log.Info().
		Int("current_records", len(current)).
		Int("prior_records", len(prior)).
		Int("waste_records", len(waste)).
		Msg("History index rebuilt")
	return nil
}

// Index returns the current index snapshot.
func (s *Service) Index() *Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx
}

// Repo returns the backing repository (for the ingestion boundary).
func (s *Service) Repo() *Repository {
	return s.repo
}
