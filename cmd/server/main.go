package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bakeplan/bakeplan/internal/config"
	"github.com/bakeplan/bakeplan/internal/database"
	"github.com/bakeplan/bakeplan/internal/ingest"
	"github.com/bakeplan/bakeplan/internal/modules/buffer"
	"github.com/bakeplan/bakeplan/internal/modules/calendar"
	"github.com/bakeplan/bakeplan/internal/modules/forecast"
	"github.com/bakeplan/bakeplan/internal/modules/history"
	"github.com/bakeplan/bakeplan/internal/modules/metrics"
	"github.com/bakeplan/bakeplan/internal/modules/ovens"
	"github.com/bakeplan/bakeplan/internal/modules/planning"
	"github.com/bakeplan/bakeplan/internal/modules/products"
	"github.com/bakeplan/bakeplan/internal/modules/stockout"
	"github.com/bakeplan/bakeplan/internal/modules/trays"
	"github.com/bakeplan/bakeplan/internal/modules/weights"
	"github.com/bakeplan/bakeplan/internal/reliability"
	"github.com/bakeplan/bakeplan/internal/scheduler"
	"github.com/bakeplan/bakeplan/internal/server"
	"github.com/bakeplan/bakeplan/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log = logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting bakeplan")

	// Three databases: hot sales history, operator configuration, and the
	// append-heavy planning ledger.
	historyDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer func() { _ = historyDB.Close() }()

	configDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "config.db"),
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open config database")
	}
	defer func() { _ = configDB.Close() }()

	planningDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "planning.db"),
		Profile: database.ProfileLedger,
		Name:    "planning",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open planning database")
	}
	defer func() { _ = planningDB.Close() }()

	databases := map[string]*database.DB{
		"history":  historyDB,
		"config":   configDB,
		"planning": planningDB,
	}
	for name, db := range databases {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", name).Msg("Failed to run migrations")
		}
	}

	// Repositories.
	historyRepo := history.NewRepository(historyDB, log)
	productsRepo := products.NewRepository(configDB, log)
	ovensRepo := ovens.NewRepository(configDB, log)
	settingsRepo := ovens.NewSettingsRepository(configDB)
	weightsRepo := weights.NewRepository(planningDB, log)
	stockoutRepo := stockout.NewRepository(planningDB, log)
	plansRepo := planning.NewRepository(planningDB, log)
	correctionsRepo := planning.NewCorrectionsRepository(planningDB, log)
	actualsRepo := planning.NewActualsRepository(planningDB, log)
	metricsRepo := metrics.NewRepository(planningDB, log)

	// Services.
	historySvc := history.NewService(historyRepo, log)
	if err := historySvc.Rebuild(); err != nil {
		log.Fatal().Err(err).Msg("Failed to build history index")
	}

	cal := calendar.New()
	forecastEngine := forecast.NewEngine(cal, weightsRepo, stockoutRepo, nil, log)
	bufferCalc := buffer.NewCalculator(cal, log)
	detector := stockout.NewDetector(stockoutRepo, log)
	optimizer := weights.NewOptimizer(weightsRepo, correctionsRepo, stockoutRepo, log)

	planningSvc := planning.NewService(
		historySvc,
		productsRepo,
		forecastEngine,
		bufferCalc,
		cal,
		plansRepo,
		correctionsRepo,
		actualsRepo,
		log,
	)
	metricsSvc := metrics.NewService(metricsRepo, plansRepo, actualsRepo, stockoutRepo, log)
	ingestSvc := ingest.NewService(historySvc, productsRepo, log)
	traySched := trays.NewScheduler(ovensRepo, stockoutRepo, log)

	// Background jobs.
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	backupSvc := reliability.NewBackupService(databases, filepath.Join(cfg.DataDir, "backups"), log)
	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		// Nightly stockout scan after the day's sales have landed.
		{"0 30 2 * * *", scheduler.NewStockoutScanJob(historySvc, detector, log)},
		// Weekly weight optimization, Monday early morning.
		{"0 0 3 * * 1", scheduler.NewOptimizeWeightsJob(metricsSvc, metricsRepo, productsRepo, optimizer, log)},
		{"0 0 4 * * *", reliability.NewDailyBackupJob(backupSvc)},
	}
	if cfg.Backup.Enabled() {
		s3, err := reliability.NewS3Client(cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}
		cloudSvc := reliability.NewCloudBackupService(s3, backupSvc, cfg.DataDir, log)
		jobs = append(jobs, struct {
			schedule string
			job      scheduler.Job
		}{"0 30 4 * * *", reliability.NewCloudBackupJob(cloudSvc)})
	} else {
		log.Info().Msg("Cloud backups disabled (no bucket configured)")
	}
	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			log.Fatal().Err(err).Str("job", j.job.Name()).Msg("Failed to register job")
		}
	}

	// HTTP server.
	handlers := server.NewHandlers(
		ingestSvc,
		planningSvc,
		traySched,
		historySvc,
		productsRepo,
		stockoutRepo,
		detector,
		weightsRepo,
		metricsSvc,
		ovensRepo,
		settingsRepo,
		log,
	)
	systemHandlers := server.NewSystemHandlers(databases, log)

	srv := server.New(server.Config{
		Port:     cfg.Port,
		DevMode:  cfg.DevMode,
		Log:      log,
		Handlers: handlers,
		System:   systemHandlers,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
