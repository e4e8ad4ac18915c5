package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/stockcast/internal/config"
	"github.com/timmy/stockcast/internal/domain"
	"github.com/timmy/stockcast/internal/logger"
)

func testConfig(t *testing.T, engineURL string) *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver:       "sqlite",
			Path:         "file:apptest?mode=memory&cache=shared",
			MaxIdleConns: 1,
			MaxOpenConns: 1,
			AutoMigrate:  true,
		},
		Engine: config.EngineConfig{BaseURL: engineURL, Timeout: time.Second},
		Forecast: config.ForecastConfig{
			ItemTimeout:      time.Second,
			FailureThreshold: 3,
			SubscriberBuffer: 8,
			HorizonDays:      30,
			LeadTimeDays:     7,
			ReorderLevel:     10,
			Risk:             config.RiskConfig{CriticalDays: 7, WatchDays: 15},
		},
		Archive: config.ArchiveConfig{Enabled: true, Type: "local", Endpoint: t.TempDir(), Prefix: "reports"},
	}
}

func TestApp_RunsScopeEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"forecast":{"forecastData":[{"predicted":3}],"aiInsights":{"status":"Warning","eta_days":9,"recommended_reorder":30}}}`))
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	a, err := New(ctx, testConfig(t, srv.URL), logger.New(&logger.Config{Level: "error", Output: io.Discard}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	require.NotNil(t, a.Archiver)

	require.NoError(t, a.DB.Create(&[]domain.Item{
		{SKU: "A-1", Name: "Helmet", Depot: "north", Stock: 30},
		{SKU: "A-2", Name: "Gloves", Depot: "north", Stock: 12},
	}).Error)

	jobID, err := a.Orchestrator.StartScope(ctx, "north", nil)
	require.NoError(t, err)
	done, err := a.Orchestrator.Done(jobID)
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}

	results, err := a.Forecasts.ListByScope(ctx, "north")
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, domain.RiskWatch, res.Insight.RiskTier)
	}

	stored, err := a.Jobs.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status)
	assert.Equal(t, 2, stored.Current)

	require.Eventually(t, func() bool {
		reports, err := a.Archiver.ListReports(ctx, "north")
		return err == nil && len(reports) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
