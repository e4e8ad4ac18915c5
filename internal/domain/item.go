package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams is returned when parameter overrides are out of range.
var ErrInvalidParams = errors.New("invalid forecast parameters")

// Item is one product stocked in a depot.
type Item struct {
	SKU          string  `gorm:"column:sku;primaryKey" json:"sku"`
	Name         string  `gorm:"not null" json:"name"`
	Category     string  `json:"category"`
	Brand        string  `json:"brand"`
	Supplier     string  `json:"supplier"`
	Depot        string  `gorm:"column:location;index" json:"location"`
	Stock        int     `gorm:"default:0" json:"stock"`
	ReorderPoint int     `gorm:"column:reorder_point;default:0" json:"reorderPoint"`
	Price        float64 `json:"price"`
}

// TableName returns the database table name for Item.
func (Item) TableName() string {
	return "products"
}

// InputParams is the immutable parameter snapshot a forecast was computed with.
type InputParams struct {
	SKU          string  `json:"sku"`
	ProductName  string  `json:"productName"`
	CurrentStock int     `json:"currentStock"`
	DailySales   float64 `json:"dailySales"`
	WeeklySales  float64 `json:"weeklySales"`
	ReorderLevel int     `json:"reorderLevel"`
	LeadTimeDays int     `json:"leadTime"`
	Brand        string  `json:"brand"`
	Category     string  `json:"category"`
	Location     string  `json:"location"`
	SupplierName string  `json:"supplierName"`
	ForecastDays int     `json:"forecastDays"`
}

// ParamOverrides are caller-supplied values that replace the per-item defaults.
// Nil fields keep the default.
type ParamOverrides struct {
	ForecastDays *int     `json:"forecast_days,omitempty"`
	LeadTimeDays *int     `json:"lead_time_days,omitempty"`
	ReorderLevel *int     `json:"reorder_level,omitempty"`
	DailySales   *float64 `json:"daily_sales,omitempty"`
}

// ParamDefaults are the fallbacks used when neither the item nor the overrides set a value.
type ParamDefaults struct {
	ForecastDays int
	LeadTimeDays int
	ReorderLevel int
}

// DefaultParamDefaults returns a 30-day horizon, 7-day lead time and reorder level 10.
func DefaultParamDefaults() ParamDefaults {
	return ParamDefaults{ForecastDays: 30, LeadTimeDays: 7, ReorderLevel: 10}
}

const maxForecastDays = 365

// Validate checks override ranges before a job is accepted.
func (o *ParamOverrides) Validate() error {
	if o == nil {
		return nil
	}
	if o.ForecastDays != nil && (*o.ForecastDays < 1 || *o.ForecastDays > maxForecastDays) {
		return fmt.Errorf("%w: forecast_days must be in [1, %d], got %d", ErrInvalidParams, maxForecastDays, *o.ForecastDays)
	}
	if o.LeadTimeDays != nil && *o.LeadTimeDays < 0 {
		return fmt.Errorf("%w: lead_time_days must not be negative", ErrInvalidParams)
	}
	if o.ReorderLevel != nil && *o.ReorderLevel < 0 {
		return fmt.Errorf("%w: reorder_level must not be negative", ErrInvalidParams)
	}
	if o.DailySales != nil && *o.DailySales < 0 {
		return fmt.Errorf("%w: daily_sales must not be negative", ErrInvalidParams)
	}
	return nil
}

// BuildParams derives the parameter snapshot for one item.
// Daily sales are estimated as 5% of stock (at least 1, or 5 for an empty shelf)
// unless overridden.
func BuildParams(item Item, defaults ParamDefaults, overrides *ParamOverrides) InputParams {
	daily := 5.0
	if item.Stock > 0 {
		daily = math.Max(1, math.Round(float64(item.Stock)*0.05))
	}

	reorder := item.ReorderPoint
	if reorder <= 0 {
		reorder = defaults.ReorderLevel
	}

	p := InputParams{
		SKU:          item.SKU,
		ProductName:  item.Name,
		CurrentStock: item.Stock,
		DailySales:   daily,
		ReorderLevel: reorder,
		LeadTimeDays: defaults.LeadTimeDays,
		Brand:        item.Brand,
		Category:     item.Category,
		Location:     item.Depot,
		SupplierName: item.Supplier,
		ForecastDays: defaults.ForecastDays,
	}
	if p.Brand == "" {
		p.Brand = "Generic"
	}

	if overrides != nil {
		if overrides.ForecastDays != nil {
			p.ForecastDays = *overrides.ForecastDays
		}
		if overrides.LeadTimeDays != nil {
			p.LeadTimeDays = *overrides.LeadTimeDays
		}
		if overrides.ReorderLevel != nil {
			p.ReorderLevel = *overrides.ReorderLevel
		}
		if overrides.DailySales != nil {
			p.DailySales = *overrides.DailySales
		}
	}
	p.WeeklySales = p.DailySales * 7
	return p
}
