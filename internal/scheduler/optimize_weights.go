package scheduler

import (
	"time"

	"github.com/bakeplan/bakeplan/internal/modules/metrics"
	"github.com/bakeplan/bakeplan/internal/modules/products"
	"github.com/bakeplan/bakeplan/internal/modules/weights"
	"github.com/rs/zerolog"
)

// OptimizeWeightsJob refreshes the accuracy metrics and runs the weight
// optimizer over every catalog product.
type OptimizeWeightsJob struct {
	metrics     *metrics.Service
	metricsRepo *metrics.Repository
	products    *products.Repository
	optimizer   *weights.Optimizer
	log         zerolog.Logger
}

// NewOptimizeWeightsJob creates the weekly weight optimization job.
func NewOptimizeWeightsJob(
	metricsSvc *metrics.Service,
	metricsRepo *metrics.Repository,
	prod *products.Repository,
	optimizer *weights.Optimizer,
	log zerolog.Logger,
) *OptimizeWeightsJob {
	return &OptimizeWeightsJob{
		metrics:     metricsSvc,
		metricsRepo: metricsRepo,
		products:    prod,
		optimizer:   optimizer,
		log:         log.With().Str("job", "optimize_weights").Logger(),
	}
}

// Run rebuilds the training windows and optimizes each product's weights.
func (j *OptimizeWeightsJob) Run() error {
	if err := j.metrics.RecordAll(); err != nil {
		return err
	}

	outcomes, err := j.metricsRepo.TrainingHistory()
	if err != nil {
		return err
	}

	catalog, err := j.products.All()
	if err != nil {
		return err
	}
	skus := make([]string, 0, len(catalog))
	for _, p := range catalog {
		skus = append(skus, p.SKU)
	}

	summary := j.optimizer.Run(time.Now(), outcomes, skus)
	j.log.Info().
		Int("optimized", summary.Optimized).
		Int("improved", summary.Improved).
		Int("skipped", summary.Skipped).
		Msg("Weight optimization finished")
	return nil
}

// Name returns the job name for the scheduler.
func (j *OptimizeWeightsJob) Name() string {
	return "optimize_weights"
}
