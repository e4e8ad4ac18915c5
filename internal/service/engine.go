package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/stockcast/internal/domain"
	"golang.org/x/time/rate"
)

const predictPath = "/api/ml/predict/custom"

// Computer produces one item's forecast. Implementations should honour ctx,
// but the orchestrator enforces its per-item deadline either way.
type Computer interface {
	Compute(ctx context.Context, item domain.Item, params domain.InputParams) (*domain.ForecastResult, error)
}

// EngineConfig holds configuration for the forecast engine client.
type EngineConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables throttling
	Burst     int
}

// ForecastEngine calls the external forecasting service over HTTP.
type ForecastEngine struct {
	client   *resty.Client
	endpoint string
	limiter  *rate.Limiter
}

// NewForecastEngine creates a new engine client.
// Parameters:
//   - cfg: engine configuration including base URL and throttle settings.
//
// Returns:
//   - *ForecastEngine: initialized client.
func NewForecastEngine(cfg *EngineConfig) *ForecastEngine {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &ForecastEngine{
		client:   client,
		endpoint: strings.TrimSuffix(cfg.BaseURL, "/") + predictPath,
		limiter:  limiter,
	}
}

type predictResponse struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Forecast *struct {
		ForecastData []struct {
			Day       int     `json:"day"`
			Date      string  `json:"date"`
			Predicted float64 `json:"predicted"`
		} `json:"forecastData"`
		AIInsights struct {
			Status             string   `json:"status"`
			ETADays            *float64 `json:"eta_days"`
			RecommendedReorder float64  `json:"recommended_reorder"`
		} `json:"aiInsights"`
		Alert string `json:"alert"`
	} `json:"forecast"`
}

// Compute requests a forecast for one item.
// Returns ErrComputeTimeout when ctx expires and ErrCompute for every other failure.
func (e *ForecastEngine) Compute(ctx context.Context, item domain.Item, params domain.InputParams) (*domain.ForecastResult, error) {
	if e.limiter != nil {
		// Wait fails early when the deadline would pass before a token frees up.
		if err := e.limiter.Wait(ctx); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, fmt.Errorf("%w: %v", ErrCompute, err)
			}
			return nil, fmt.Errorf("%w: throttled: %v", ErrComputeTimeout, err)
		}
	}

	var resp predictResponse
	httpResp, err := e.client.R().
		SetContext(ctx).
		SetBody(params).
		SetResult(&resp).
		SetError(&resp).
		Post(e.endpoint)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	if httpResp.IsError() {
		msg := resp.Error
		if msg == "" {
			msg = strings.TrimSpace(string(httpResp.Body()))
		}
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrCompute, httpResp.StatusCode(), msg)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrCompute, resp.Error)
	}
	if resp.Forecast == nil {
		return nil, fmt.Errorf("%w: response has no forecast", ErrCompute)
	}

	res := &domain.ForecastResult{
		SKU:    item.SKU,
		Label:  itemLabel(item),
		Params: params,
		Series: make([]domain.SeriesPoint, 0, len(resp.Forecast.ForecastData)),
		Insight: domain.Insight{
			Status:             resp.Forecast.AIInsights.Status,
			RecommendedReorder: int(math.Round(resp.Forecast.AIInsights.RecommendedReorder)),
		},
		Alert: resp.Forecast.Alert,
	}
	if eta := resp.Forecast.AIInsights.ETADays; eta != nil {
		days := int(math.Floor(*eta))
		res.Insight.ETADays = &days
	}
	for i, p := range resp.Forecast.ForecastData {
		day := p.Day
		if day == 0 {
			day = i + 1
		}
		res.Series = append(res.Series, domain.SeriesPoint{Day: day, Date: p.Date, Predicted: p.Predicted})
	}
	return res, nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrComputeTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrComputeTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrCompute, err)
}

func itemLabel(item domain.Item) string {
	if item.Name != "" {
		return item.Name
	}
	return item.SKU
}
