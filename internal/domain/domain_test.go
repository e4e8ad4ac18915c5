package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    JobStatus
		to      JobStatus
		wantErr bool
	}{
		{"pending to running", JobStatusPending, JobStatusRunning, false},
		{"running to completed", JobStatusRunning, JobStatusCompleted, false},
		{"running to cancelled", JobStatusRunning, JobStatusCancelled, false},
		{"running to failed", JobStatusRunning, JobStatusFailed, false},
		{"completed is final", JobStatusCompleted, JobStatusRunning, true},
		{"cancelled is final", JobStatusCancelled, JobStatusCompleted, true},
		{"failed is final", JobStatusFailed, JobStatusRunning, true},
		{"running back to pending", JobStatusRunning, JobStatusPending, true},
		{"unknown status", JobStatus("paused"), JobStatusRunning, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStatusPhase(t *testing.T) {
	assert.Equal(t, PhaseRunning, JobStatusPending.Phase())
	assert.Equal(t, PhaseRunning, JobStatusRunning.Phase())
	assert.Equal(t, PhaseCompleted, JobStatusCompleted.Phase())
	assert.Equal(t, PhaseCancelled, JobStatusCancelled.Phase())
	assert.Equal(t, PhaseFailed, JobStatusFailed.Phase())
	assert.False(t, JobStatusRunning.IsTerminal())
	assert.True(t, JobStatusCancelled.IsTerminal())
}

func TestBuildParams(t *testing.T) {
	defaults := DefaultParamDefaults()

	t.Run("defaults from item", func(t *testing.T) {
		p := BuildParams(Item{SKU: "SKU001", Name: "Mouse North 1", Stock: 100, ReorderPoint: 15, Depot: "North Zone"}, defaults, nil)
		assert.Equal(t, 5.0, p.DailySales)
		assert.Equal(t, 35.0, p.WeeklySales)
		assert.Equal(t, 15, p.ReorderLevel)
		assert.Equal(t, 7, p.LeadTimeDays)
		assert.Equal(t, 30, p.ForecastDays)
		assert.Equal(t, "North Zone", p.Location)
		assert.Equal(t, "Generic", p.Brand)
	})

	t.Run("low stock keeps minimum daily sales", func(t *testing.T) {
		p := BuildParams(Item{SKU: "SKU002", Stock: 5}, defaults, nil)
		assert.Equal(t, 1.0, p.DailySales)
		assert.Equal(t, 10, p.ReorderLevel)
	})

	t.Run("empty shelf", func(t *testing.T) {
		p := BuildParams(Item{SKU: "SKU003", Stock: 0}, defaults, nil)
		assert.Equal(t, 5.0, p.DailySales)
	})

	t.Run("overrides win", func(t *testing.T) {
		daily := 3.0
		p := BuildParams(Item{SKU: "SKU004", Stock: 100}, defaults, &ParamOverrides{
			ForecastDays: intPtr(60),
			LeadTimeDays: intPtr(3),
			DailySales:   &daily,
		})
		assert.Equal(t, 60, p.ForecastDays)
		assert.Equal(t, 3, p.LeadTimeDays)
		assert.Equal(t, 21.0, p.WeeklySales)
	})
}

func TestOverridesValidate(t *testing.T) {
	assert.NoError(t, (*ParamOverrides)(nil).Validate())
	assert.NoError(t, (&ParamOverrides{ForecastDays: intPtr(60)}).Validate())
	assert.ErrorIs(t, (&ParamOverrides{ForecastDays: intPtr(0)}).Validate(), ErrInvalidParams)
	assert.ErrorIs(t, (&ParamOverrides{ForecastDays: intPtr(400)}).Validate(), ErrInvalidParams)
	assert.ErrorIs(t, (&ParamOverrides{LeadTimeDays: intPtr(-1)}).Validate(), ErrInvalidParams)
}

func TestForecastRecordRoundTripKeepsOptionalETA(t *testing.T) {
	res := &ForecastResult{
		SKU:    "SKU010",
		Label:  "Chair South 10",
		Scope:  "South Zone",
		Params: InputParams{SKU: "SKU010", ForecastDays: 30},
		Series: []SeriesPoint{{Day: 1, Predicted: 2.5}, {Day: 2, Predicted: 3}},
		Insight: Insight{
			Status:   "Healthy",
			RiskTier: RiskSafe,
		},
	}
	rec, err := res.ToRecord()
	require.NoError(t, err)
	assert.Nil(t, rec.ETADays)

	back, err := rec.ToResult()
	require.NoError(t, err)
	assert.Nil(t, back.Insight.ETADays)
	assert.Equal(t, res.Series, back.Series)
	assert.Equal(t, res.Params, back.Params)
}

func TestCloneIsDeep(t *testing.T) {
	res := &ForecastResult{SKU: "A", Series: []SeriesPoint{{Day: 1, Predicted: 1}}, Insight: Insight{ETADays: intPtr(4)}}
	cp := res.Clone()
	cp.Series[0].Predicted = 99
	*cp.Insight.ETADays = 40
	assert.Equal(t, 1.0, res.Series[0].Predicted)
	assert.Equal(t, 4, *res.Insight.ETADays)
}

func TestParseRiskTier(t *testing.T) {
	tier, err := ParseRiskTier("critical")
	require.NoError(t, err)
	assert.Equal(t, RiskCritical, tier)
	_, err = ParseRiskTier("urgent")
	assert.Error(t, err)
	assert.Greater(t, RiskCritical.Rank(), RiskWatch.Rank())
	assert.Greater(t, RiskWatch.Rank(), RiskSafe.Rank())
}
