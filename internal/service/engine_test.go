package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/stockcast/internal/domain"
)

const okBody = `{
  "success": true,
  "forecast": {
    "forecastData": [
      {"date": "2026-01-01", "predicted": 4.5},
      {"date": "2026-01-02", "predicted": 5.25},
      {"date": "2026-01-03", "predicted": 6}
    ],
    "aiInsights": {"status": "At Risk", "eta_days": 5.6, "recommended_reorder": 41.6},
    "alert": "Stock-out expected within a week"
  }
}`

func newEngineServer(t *testing.T, handler http.HandlerFunc) *ForecastEngine {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewForecastEngine(&EngineConfig{BaseURL: srv.URL + "/", APIKey: "secret", Timeout: 2 * time.Second})
}

func engineItem() (domain.Item, domain.InputParams) {
	item := domain.Item{SKU: "SKU-9", Name: "Safety Gloves", Depot: "north", Stock: 40}
	return item, domain.BuildParams(item, domain.DefaultParamDefaults(), nil)
}

func TestForecastEngine_Compute(t *testing.T) {
	engine := newEngineServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/ml/predict/custom", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "SKU-9", body["sku"])
		assert.Equal(t, float64(40), body["currentStock"])
		assert.Equal(t, float64(2), body["dailySales"])
		assert.Equal(t, float64(14), body["weeklySales"])
		assert.Equal(t, float64(30), body["forecastDays"])
		assert.Equal(t, "north", body["location"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okBody))
	})

	item, params := engineItem()
	res, err := engine.Compute(context.Background(), item, params)
	require.NoError(t, err)

	assert.Equal(t, "SKU-9", res.SKU)
	assert.Equal(t, "Safety Gloves", res.Label)
	require.Len(t, res.Series, 3)
	assert.Equal(t, 1, res.Series[0].Day)
	assert.Equal(t, 3, res.Series[2].Day)
	assert.Equal(t, 5.25, res.Series[1].Predicted)
	require.NotNil(t, res.Insight.ETADays)
	assert.Equal(t, 5, *res.Insight.ETADays)
	assert.Equal(t, 42, res.Insight.RecommendedReorder)
	assert.Equal(t, "At Risk", res.Insight.Status)
	assert.Equal(t, "Stock-out expected within a week", res.Alert)
}

func TestForecastEngine_NullETA(t *testing.T) {
	engine := newEngineServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"forecast":{"forecastData":[],"aiInsights":{"status":"Healthy","eta_days":null,"recommended_reorder":0}}}`))
	})
	item, params := engineItem()
	res, err := engine.Compute(context.Background(), item, params)
	require.NoError(t, err)
	assert.Nil(t, res.Insight.ETADays)
}

func TestForecastEngine_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "rejected", status: http.StatusOK, body: `{"success":false,"error":"not enough history"}`, wantMsg: "not enough history"},
		{name: "server error", status: http.StatusInternalServerError, body: `{"success":false,"error":"model crashed"}`, wantMsg: "HTTP 500"},
		{name: "missing forecast", status: http.StatusOK, body: `{"success":true}`, wantMsg: "no forecast"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			engine := newEngineServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			item, params := engineItem()
			_, err := engine.Compute(context.Background(), item, params)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCompute)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestForecastEngine_Timeout(t *testing.T) {
	release := make(chan struct{})
	engine := newEngineServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	item, params := engineItem()
	_, err := engine.Compute(ctx, item, params)
	assert.ErrorIs(t, err, ErrComputeTimeout)
}

func TestForecastEngine_TransportFailure(t *testing.T) {
	engine := NewForecastEngine(&EngineConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	item, params := engineItem()
	_, err := engine.Compute(context.Background(), item, params)
	assert.ErrorIs(t, err, ErrCompute)
}

func TestForecastEngine_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okBody))
	}))
	t.Cleanup(srv.Close)
	engine := NewForecastEngine(&EngineConfig{BaseURL: srv.URL, RateLimit: 0.5, Burst: 1})
	item, params := engineItem()

	_, err := engine.Compute(context.Background(), item, params)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = engine.Compute(ctx, item, params)
	assert.ErrorIs(t, err, ErrComputeTimeout)
}
