// Package app wires configuration into the running components shared by
// the API server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/timmy/stockcast/internal/broadcast"
	"github.com/timmy/stockcast/internal/config"
	"github.com/timmy/stockcast/internal/domain"
	"github.com/timmy/stockcast/internal/logger"
	"github.com/timmy/stockcast/internal/repository"
	"github.com/timmy/stockcast/internal/risk"
	"github.com/timmy/stockcast/internal/service"
	"github.com/timmy/stockcast/internal/storage"
	"gorm.io/gorm"
)

// App holds the wired components.
type App struct {
	Config       *config.Config
	DB           *gorm.DB
	Forecasts    *repository.ForecastRepository
	Products     *repository.ProductRepository
	Jobs         *repository.JobRepository
	Broadcaster  *broadcast.Broadcaster
	Engine       *service.ForecastEngine
	Archiver     *service.ReportArchiver // nil when archiving is disabled
	Orchestrator *service.Orchestrator
}

// New opens the database and builds every component from cfg.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.GetDefault()
	}

	db, err := repository.InitDB(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{
		Config:      cfg,
		DB:          db,
		Forecasts:   repository.NewForecastRepository(db),
		Products:    repository.NewProductRepository(db),
		Jobs:        repository.NewJobRepository(db),
		Broadcaster: broadcast.New(broadcast.Options{SubscriberBuffer: cfg.Forecast.SubscriberBuffer}),
		Engine: service.NewForecastEngine(&service.EngineConfig{
			BaseURL:   cfg.Engine.BaseURL,
			APIKey:    cfg.Engine.APIKey,
			Timeout:   cfg.Engine.Timeout,
			RateLimit: cfg.Engine.RateLimit,
			Burst:     cfg.Engine.Burst,
		}),
	}

	if cfg.Archive.Enabled {
		store, err := storage.NewStorage(&cfg.Archive)
		if err != nil {
			a.closeDB()
			return nil, fmt.Errorf("failed to initialize archive storage: %w", err)
		}
		if s3Store, ok := store.(*storage.S3Storage); ok {
			if err := s3Store.EnsureBucket(ctx); err != nil {
				log.WithError(err).Warn("Archive bucket check failed, reports may not upload")
			}
		}
		a.Archiver = service.NewReportArchiver(store, a.Forecasts, cfg.Archive.Prefix)
	}

	opts := service.OrchestratorOptions{
		ItemTimeout:      cfg.Forecast.ItemTimeout,
		FailureThreshold: cfg.Forecast.FailureThreshold,
		Retention:        cfg.Forecast.Retention,
		Defaults: domain.ParamDefaults{
			ForecastDays: cfg.Forecast.HorizonDays,
			LeadTimeDays: cfg.Forecast.LeadTimeDays,
			ReorderLevel: cfg.Forecast.ReorderLevel,
		},
		Classifier: risk.NewClassifier(risk.Thresholds{
			CriticalDays: cfg.Forecast.Risk.CriticalDays,
			WatchDays:    cfg.Forecast.Risk.WatchDays,
		}),
		Items: a.Products,
		Jobs:  a.Jobs,
	}
	if a.Archiver != nil {
		opts.Archiver = a.Archiver
	}
	a.Orchestrator = service.NewOrchestrator(a.Engine, a.Forecasts, a.Broadcaster, opts, log)

	return a, nil
}

// Close stops running jobs and closes the database.
func (a *App) Close(ctx context.Context) error {
	err := a.Orchestrator.Shutdown(ctx)
	a.closeDB()
	return err
}

func (a *App) closeDB() {
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
