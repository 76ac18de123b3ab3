package scheduler

import (
	"time"

	"github.com/bakeplan/bakeplan/internal/modules/history"
	"github.com/bakeplan/bakeplan/internal/modules/stockout"
	"github.com/rs/zerolog"
)

// stockoutScanWindowDays is how far back the nightly scan looks.
const stockoutScanWindowDays = 7

// StockoutScanJob runs the flatline detector over the recent history and
// appends any newly found events.
type StockoutScanJob struct {
	history  *history.Service
	detector *stockout.Detector
	log      zerolog.Logger
}

// NewStockoutScanJob creates the nightly stockout scan job.
func NewStockoutScanJob(hist *history.Service, detector *stockout.Detector, log zerolog.Logger) *StockoutScanJob {
	return &StockoutScanJob{
		history:  hist,
		detector: detector,
		log:      log.With().Str("job", "stockout_scan").Logger(),
	}
}

// Run executes one scan.
func (j *StockoutScanJob) Run() error {
	events, err := j.detector.Scan(j.history.Index(), time.Now(), stockoutScanWindowDays)
	if err != nil {
		return err
	}
	j.log.Info().Int("events", len(events)).Msg("Stockout scan finished")
	return nil
}

// Name returns the job name for the scheduler.
func (j *StockoutScanJob) Name() string {
	return "stockout_scan"
}
