package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RiskTier is the urgency label derived from stock-out ETA and current stock.
type RiskTier string

const (
	RiskCritical RiskTier = "Critical"
	RiskWatch    RiskTier = "Watch"
	RiskSafe     RiskTier = "Safe"
)

// Rank orders tiers for sorting: Critical > Watch > Safe > unknown.
func (t RiskTier) Rank() int {
	switch t {
	case RiskCritical:
		return 3
	case RiskWatch:
		return 2
	case RiskSafe:
		return 1
	default:
		return 0
	}
}

// ParseRiskTier accepts the tier name case-insensitively.
func ParseRiskTier(s string) (RiskTier, error) {
	for _, t := range []RiskTier{RiskCritical, RiskWatch, RiskSafe} {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown risk tier %q", s)
}

// SeriesPoint is one predicted value at a day offset from the forecast start.
type SeriesPoint struct {
	Day       int     `json:"day"`
	Date      string  `json:"date,omitempty"`
	Predicted float64 `json:"predicted"`
}

// Insight is the actionable summary of a forecast.
// ETADays is nil when no stock-out is predicted inside the horizon.
type Insight struct {
	Status             string   `json:"status"`
	ETADays            *int     `json:"eta_days"`
	RecommendedReorder int      `json:"recommended_reorder"`
	RiskTier           RiskTier `json:"risk_tier"`
	Message            string   `json:"message"`
}

// ForecastResult is one item's outcome. It is immutable once produced and
// replaced wholesale by a later result for the same SKU.
type ForecastResult struct {
	SKU        string        `json:"sku"`
	Label      string        `json:"label"`
	Scope      string        `json:"scope"`
	Params     InputParams   `json:"input_params"`
	Series     []SeriesPoint `json:"series"`
	Insight    Insight       `json:"insight"`
	Alert      string        `json:"alert,omitempty"`
	JobID      string        `json:"job_id,omitempty"`
	ComputedAt time.Time     `json:"computed_at"`
}

// Clone returns a deep copy so callers cannot mutate stored results.
func (r *ForecastResult) Clone() *ForecastResult {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Series != nil {
		cp.Series = make([]SeriesPoint, len(r.Series))
		copy(cp.Series, r.Series)
	}
	if r.Insight.ETADays != nil {
		eta := *r.Insight.ETADays
		cp.Insight.ETADays = &eta
	}
	return &cp
}

// ForecastRecord is the persisted row for a ForecastResult.
type ForecastRecord struct {
	SKU                string    `gorm:"column:sku;primaryKey"`
	Label              string    `gorm:"not null"`
	Scope              string    `gorm:"index"`
	ParamsJSON         string    `gorm:"column:params_json;type:text"`
	SeriesJSON         string    `gorm:"column:series_json;type:text"`
	Status             string    `gorm:"column:insight_status"`
	ETADays            *int      `gorm:"column:eta_days"`
	RecommendedReorder int       `gorm:"column:recommended_reorder"`
	RiskTier           string    `gorm:"column:risk_tier;index"`
	Message            string    `gorm:"type:text"`
	Alert              string    `gorm:"type:text"`
	JobID              string    `gorm:"column:job_id"`
	ComputedAt         time.Time `gorm:"column:computed_at"`
	UpdatedAt          time.Time
}

// TableName returns the database table name for ForecastRecord.
func (ForecastRecord) TableName() string {
	return "forecasts"
}

// ToRecord flattens a result into its table row.
func (r *ForecastResult) ToRecord() (*ForecastRecord, error) {
	params, err := json.Marshal(r.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}
	series, err := json.Marshal(r.Series)
	if err != nil {
		return nil, fmt.Errorf("failed to encode series: %w", err)
	}
	return &ForecastRecord{
		SKU:                r.SKU,
		Label:              r.Label,
		Scope:              r.Scope,
		ParamsJSON:         string(params),
		SeriesJSON:         string(series),
		Status:             r.Insight.Status,
		ETADays:            r.Insight.ETADays,
		RecommendedReorder: r.Insight.RecommendedReorder,
		RiskTier:           string(r.Insight.RiskTier),
		Message:            r.Insight.Message,
		Alert:              r.Alert,
		JobID:              r.JobID,
		ComputedAt:         r.ComputedAt,
	}, nil
}

// ToResult rebuilds the domain result from its table row.
func (rec *ForecastRecord) ToResult() (*ForecastResult, error) {
	res := &ForecastResult{
		SKU:   rec.SKU,
		Label: rec.Label,
		Scope: rec.Scope,
		Insight: Insight{
			Status:             rec.Status,
			ETADays:            rec.ETADays,
			RecommendedReorder: rec.RecommendedReorder,
			RiskTier:           RiskTier(rec.RiskTier),
			Message:            rec.Message,
		},
		Alert:      rec.Alert,
		JobID:      rec.JobID,
		ComputedAt: rec.ComputedAt,
	}
	if rec.ParamsJSON != "" {
		if err := json.Unmarshal([]byte(rec.ParamsJSON), &res.Params); err != nil {
			return nil, fmt.Errorf("failed to decode params for %s: %w", rec.SKU, err)
		}
	}
	if rec.SeriesJSON != "" {
		if err := json.Unmarshal([]byte(rec.SeriesJSON), &res.Series); err != nil {
			return nil, fmt.Errorf("failed to decode series for %s: %w", rec.SKU, err)
		}
	}
	return res, nil
}
