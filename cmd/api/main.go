package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/stockcast/internal/api"
	"github.com/timmy/stockcast/internal/api/middleware"
	"github.com/timmy/stockcast/internal/app"
	"github.com/timmy/stockcast/internal/config"
	"github.com/timmy/stockcast/internal/logger"
)

func main() {
	log := logger.NewDefault()
	logger.SetDefaultLogger(log)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize application")
	}

	// Jobs that were running when the previous process died cannot resume.
	if n, err := a.Jobs.MarkInterrupted(ctx); err != nil {
		log.WithError(err).Warn("Failed to mark interrupted jobs")
	} else if n > 0 {
		log.WithField(logger.FieldCount, n).Warn("Marked interrupted jobs as failed")
	}

	router := api.SetupRouter(api.Dependencies{
		Orchestrator: a.Orchestrator,
		Ledger:       a.Forecasts,
		Archiver:     a.Archiver,
		Logger:       log,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	}, cfg.Server.Mode)

	// No WriteTimeout: progress streams stay open for the life of a job.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Stop jobs first so open progress streams receive their terminal event.
	if err := a.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("Forecast jobs did not stop in time")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}
