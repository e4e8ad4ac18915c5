package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/stockcast/internal/api/handler"
	"github.com/timmy/stockcast/internal/api/middleware"
	"github.com/timmy/stockcast/internal/ledger"
	"github.com/timmy/stockcast/internal/logger"
	"github.com/timmy/stockcast/internal/service"
)

// Dependencies are the collaborators the HTTP surface is built on.
type Dependencies struct {
	Orchestrator *service.Orchestrator
	Ledger       ledger.Ledger
	Archiver     *service.ReportArchiver // optional
	Logger       *logger.Logger
	CORS         middleware.CORSConfig
	Heartbeat    time.Duration
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps Dependencies, mode string) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(deps.CORS))

	healthHandler := handler.NewHealthHandler(deps.Orchestrator)
	forecastHandler := handler.NewForecastHandler(deps.Orchestrator, deps.Archiver, deps.Heartbeat)
	ledgerHandler := handler.NewLedgerHandler(deps.Ledger)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		forecasts := v1.Group("/forecasts")

		// Bulk jobs
		forecasts.POST("/bulk", forecastHandler.StartBulk)
		forecasts.GET("/jobs/:id", forecastHandler.GetJob)
		forecasts.DELETE("/jobs/:id", forecastHandler.CancelJob)
		forecasts.GET("/jobs/:id/events", forecastHandler.StreamJob)

		// Per-scope views
		forecasts.GET("/scopes/:scope/job", forecastHandler.ScopeJob)
		forecasts.GET("/scopes/:scope/jobs", forecastHandler.ScopeHistory)
		forecasts.GET("/scopes/:scope/reports", forecastHandler.ListReports)
		forecasts.GET("/scopes/:scope/reports/:id", forecastHandler.GetReport)

		// Ledger
		forecasts.GET("", ledgerHandler.List)
		forecasts.GET("/:sku", ledgerHandler.Get)
	}

	return r
}
