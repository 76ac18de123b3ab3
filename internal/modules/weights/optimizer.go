package weights

import (
	"math"
	"time"

	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

const (
	// learningRate is the coordinate-search step size.
	learningRate = 0.01
	// minHistory is the minimum number of outcome tuples before optimizing.
	minHistory = 7

	weightFloor = 0.01
	weightCeil  = 0.9
)

// Outcome is one realized day for one SKU: what was forecast, what actually
// sold, what was thrown away, and whether the product ran out.
type Outcome struct {
	Forecast    float64
	Actual      float64
	Waste       float64
	HadStockout bool
}

// Loss scores a window of outcomes. Waste and stockouts are penalized far
// harder than raw forecast error; overproduction and shortage are the costly
// failure modes.
func Loss(outcomes []Outcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}

	sqErr := make([]float64, len(outcomes))
	wasteLoss := 0.0
	stockouts := 0
	for i, o := range outcomes {
		diff := o.Forecast - o.Actual
		sqErr[i] = diff * diff
		wasteLoss += o.Waste * o.Waste
		if o.HadStockout {
			stockouts++
		}
	}

	mse := stat.Mean(sqErr, nil)
	return 0.5*mse + 2.0*wasteLoss + 1.0*float64(stockouts)*float64(stockouts)
}

// CorrectionSource provides a SKU's manager-correction history.
type CorrectionSource interface {
	CorrectionsForSKU(sku string) ([]domain.ManagerCorrection, error)
}

// StockoutCounter counts a SKU's recent stockout events.
type StockoutCounter interface {
	CountRecent(sku string, now time.Time, days int) (int, error)
}

// Optimizer tunes per-SKU weight vectors from realized outcomes, manager
// corrections, and stockout history.
type Optimizer struct {
	repo        *Repository
	corrections CorrectionSource
	stockouts   StockoutCounter
	log         zerolog.Logger
}

// NewOptimizer creates a weight optimizer.
func NewOptimizer(repo *Repository, corrections CorrectionSource, stockouts StockoutCounter, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		repo:        repo,
		corrections: corrections,
		stockouts:   stockouts,
		log:         log.With().Str("component", "weight-optimizer").Logger(),
	}
}

// OptimizeProduct runs a single-step greedy coordinate search over the SKU's
// weight vector: each weight is tried one step up and one step down, the
// vector is renormalized per trial, and the best strictly-improving candidate
// wins. The trial loss scales the recorded forecasts by the perturbed vector's
// pre-normalization sum, so up-steps and down-steps pull the whole forecast
// level up or down.
func (o *Optimizer) OptimizeProduct(sku string, outcomes []Outcome) (Weights, bool, error) {
	current, err := o.repo.Get(sku)
	if err != nil {
		return nil, false, err
	}
	if len(outcomes) < minHistory {
		o.log.Debug().Str("sku", sku).Int("days", len(outcomes)).Msg("Not enough history to optimize")
		return current, false, nil
	}

	currentLoss := Loss(outcomes)
	best := current
	bestLoss := currentLoss

	for _, key := range SourceKeys() {
		for _, step := range []float64{learningRate, -learningRate} {
			trial := current.Clone()
			trial[key] = clamp(trial[key]+step, weightFloor, weightCeil)
			factor := trial.Sum()
			trial.Normalize()

			if loss := simulateLoss(outcomes, factor); loss < bestLoss {
				bestLoss = loss
				best = trial
			}
		}
	}

	if bestLoss >= currentLoss {
		return current, false, nil
	}

	if err := o.repo.Save(sku, best); err != nil {
		return nil, false, err
	}
	o.log.Info().
		Str("sku", sku).
		Float64("loss_before", currentLoss).
		Float64("loss_after", bestLoss).
		Msg("Weights improved")
	return best, true, nil
}

// simulateLoss rescales every forecast by factor and rescores the window.
func simulateLoss(outcomes []Outcome, factor float64) float64 {
	adjusted := make([]Outcome, len(outcomes))
	for i, o := range outcomes {
		o.Forecast *= factor
		adjusted[i] = o
	}
	return Loss(adjusted)
}

// LearnFromCorrections nudges the freshest source when the manager keeps
// correcting a SKU in one direction: over at least 3 corrections averaging
// more than 10% deviation, last_week_avg moves proportionally to the average
// deviation and the vector renormalizes.
func (o *Optimizer) LearnFromCorrections(sku string) (Weights, bool, error) {
	corrections, err := o.corrections.CorrectionsForSKU(sku)
	if err != nil {
		return nil, false, err
	}
	if len(corrections) < 3 {
		return nil, false, nil
	}

	totalDev := 0.0
	for _, c := range corrections {
		totalDev += float64(c.AdjustedQty-c.OriginalQty) / math.Max(1, float64(c.OriginalQty))
	}
	avgDev := totalDev / float64(len(corrections))
	if math.Abs(avgDev) <= 0.10 {
		return nil, false, nil
	}

	w, err := o.repo.Get(sku)
	if err != nil {
		return nil, false, err
	}
	w[SourceLastWeekAvg] = clamp(w[SourceLastWeekAvg]*(1+avgDev*0.5), 0.10, 0.50)
	w.Normalize()

	if err := o.repo.Save(sku, w); err != nil {
		return nil, false, err
	}
	o.log.Info().
		Str("sku", sku).
		Float64("avg_deviation", avgDev).
		Int("corrections", len(corrections)).
		Msg("Weights adjusted from manager corrections")
	return w, true, nil
}

// LearnFromStockouts boosts the sources that track rising demand when a SKU
// ran out at least twice in the trailing 28 days.
func (o *Optimizer) LearnFromStockouts(sku string, now time.Time) (Weights, bool, error) {
	count, err := o.stockouts.CountRecent(sku, now, 28)
	if err != nil {
		return nil, false, err
	}
	if count < 2 {
		return nil, false, nil
	}

	w, err := o.repo.Get(sku)
	if err != nil {
		return nil, false, err
	}
	w[SourceSameWeekday4w] = math.Min(0.50, w[SourceSameWeekday4w]*1.15)
	w[SourceYearOverYear] = math.Min(0.20, w[SourceYearOverYear]*1.10)
	w.Normalize()

	if err := o.repo.Save(sku, w); err != nil {
		return nil, false, err
	}
	o.log.Info().Str("sku", sku).Int("stockouts", count).Msg("Weights adjusted from stockouts")
	return w, true, nil
}

// Summary reports one batch optimization run.
type Summary struct {
	Optimized int `json:"optimized"`
	Skipped   int `json:"skipped"`
	Improved  int `json:"improved"`
	Failed    int `json:"failed"`
}

// Run applies all three learning rules to every product. SKUs with fewer than
// 7 outcome days are skipped; per-SKU failures are counted, not fatal.
func (o *Optimizer) Run(now time.Time, outcomesBySKU map[string][]Outcome, skus []string) Summary {
	var s Summary
	for _, sku := range skus {
		outcomes := outcomesBySKU[sku]
		if len(outcomes) < minHistory {
			s.Skipped++
			continue
		}

		_, improved, err := o.OptimizeProduct(sku, outcomes)
		if err != nil {
			o.log.Error().Err(err).Str("sku", sku).Msg("Weight optimization failed")
			s.Failed++
			continue
		}
		if _, changed, err := o.LearnFromCorrections(sku); err != nil {
			o.log.Error().Err(err).Str("sku", sku).Msg("Correction learning failed")
			s.Failed++
			continue
		} else if changed {
			improved = true
		}
		if _, changed, err := o.LearnFromStockouts(sku, now); err != nil {
			o.log.Error().Err(err).Str("sku", sku).Msg("Stockout learning failed")
			s.Failed++
			continue
		} else if changed {
			improved = true
		}

		s.Optimized++
		if improved {
			s.Improved++
		}
	}

	o.log.Info().
		Int("optimized", s.Optimized).
		Int("improved", s.Improved).
		Int("skipped", s.Skipped).
		Int("failed", s.Failed).
		Msg("Weight optimization run complete")
	return s
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
