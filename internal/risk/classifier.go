// Package risk turns raw forecasts into risk tiers and reorder directives.
//
// Everything here is pure: identical inputs always give identical tiers, text
// and ordering, so results from different jobs can be sorted and filtered together.
package risk

import (
	"fmt"
	"sort"

	"github.com/timmy/stockcast/internal/domain"
)

// Insight status labels used when the engine does not provide one.
const (
	StatusOutOfStock = "Out of Stock"
	StatusAtRisk     = "At Risk"
	StatusWarning    = "Warning"
	StatusHealthy    = "Healthy"
)

// Thresholds are the ETA cut-offs, in days, for the Critical and Watch tiers.
type Thresholds struct {
	CriticalDays int
	WatchDays    int
}

// DefaultThresholds returns 7 days for Critical and 15 days for Watch.
func DefaultThresholds() Thresholds {
	return Thresholds{CriticalDays: 7, WatchDays: 15}
}

// Validate requires 0 < CriticalDays <= WatchDays.
func (t Thresholds) Validate() error {
	if t.CriticalDays <= 0 || t.WatchDays < t.CriticalDays {
		return fmt.Errorf("invalid risk thresholds: critical=%d watch=%d", t.CriticalDays, t.WatchDays)
	}
	return nil
}

// Classifier applies a fixed set of thresholds.
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier creates a classifier; invalid thresholds fall back to the defaults.
func NewClassifier(t Thresholds) *Classifier {
	if t.Validate() != nil {
		t = DefaultThresholds()
	}
	return &Classifier{thresholds: t}
}

// Thresholds returns the cut-offs in use.
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// Classify maps an ETA and stock level onto a tier.
// An empty shelf is always Critical, whatever the ETA says.
func (c *Classifier) Classify(etaDays *int, currentStock int) domain.RiskTier {
	if currentStock == 0 {
		return domain.RiskCritical
	}
	if etaDays == nil {
		return domain.RiskSafe
	}
	switch {
	case *etaDays < c.thresholds.CriticalDays:
		return domain.RiskCritical
	case *etaDays < c.thresholds.WatchDays:
		return domain.RiskWatch
	default:
		return domain.RiskSafe
	}
}

var defaultClassifier = NewClassifier(DefaultThresholds())

// Classify uses the default 7/15 day thresholds.
func Classify(etaDays *int, currentStock int) domain.RiskTier {
	return defaultClassifier.Classify(etaDays, currentStock)
}

// Apply returns a copy of res with tier, directive and (if empty) status filled in.
func (c *Classifier) Apply(res *domain.ForecastResult, currentStock int) *domain.ForecastResult {
	out := res.Clone()
	tier := c.Classify(out.Insight.ETADays, currentStock)
	out.Insight.RiskTier = tier
	if out.Insight.Status == "" {
		out.Insight.Status = statusFor(tier, currentStock)
	}
	out.Insight.Message = Directive(tier, out.Insight, currentStock)
	return out
}

func statusFor(tier domain.RiskTier, stock int) string {
	switch {
	case stock == 0:
		return StatusOutOfStock
	case tier == domain.RiskCritical:
		return StatusAtRisk
	case tier == domain.RiskWatch:
		return StatusWarning
	default:
		return StatusHealthy
	}
}

// Directive is the human-readable action for a classified insight.
func Directive(tier domain.RiskTier, in domain.Insight, currentStock int) string {
	qty := in.RecommendedReorder
	switch tier {
	case domain.RiskCritical:
		if currentStock == 0 {
			if qty > 0 {
				return fmt.Sprintf("Out of stock. Reorder %d units immediately.", qty)
			}
			return "Out of stock. Reorder immediately."
		}
		if in.ETADays != nil {
			return fmt.Sprintf("Stock-out expected in %d days. Reorder %d units now.", *in.ETADays, qty)
		}
		return fmt.Sprintf("Reorder %d units now.", qty)
	case domain.RiskWatch:
		return fmt.Sprintf("Stock-out expected in %d days. Plan a reorder of %d units.", derefOr(in.ETADays, 0), qty)
	default:
		if in.ETADays == nil {
			return "No stock-out expected within the forecast horizon."
		}
		return fmt.Sprintf("Stock covers the next %d days. No action needed.", *in.ETADays)
	}
}

func derefOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// Less orders results by urgency: higher tier first, then sooner ETA
// (no ETA last), then SKU. The order is total.
func Less(a, b *domain.ForecastResult) bool {
	ra, rb := a.Insight.RiskTier.Rank(), b.Insight.RiskTier.Rank()
	if ra != rb {
		return ra > rb
	}
	ea, eb := a.Insight.ETADays, b.Insight.ETADays
	switch {
	case ea != nil && eb == nil:
		return true
	case ea == nil && eb != nil:
		return false
	case ea != nil && eb != nil && *ea != *eb:
		return *ea < *eb
	}
	return a.SKU < b.SKU
}

// Sort orders results in place by urgency.
func Sort(results []domain.ForecastResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return Less(&results[i], &results[j])
	})
}

// Summary counts results per tier.
type Summary struct {
	Critical int `json:"critical"`
	Watch    int `json:"watch"`
	Safe     int `json:"safe"`
	Total    int `json:"total"`
}

// Summarize counts results per tier.
func Summarize(results []domain.ForecastResult) Summary {
	var s Summary
	for i := range results {
		switch results[i].Insight.RiskTier {
		case domain.RiskCritical:
			s.Critical++
		case domain.RiskWatch:
			s.Watch++
		case domain.RiskSafe:
			s.Safe++
		}
		s.Total++
	}
	return s
}

// Filter keeps only results of the given tier. An empty tier keeps everything.
func Filter(results []domain.ForecastResult, tier domain.RiskTier) []domain.ForecastResult {
	if tier == "" {
		return results
	}
	out := make([]domain.ForecastResult, 0, len(results))
	for _, r := range results {
		if r.Insight.RiskTier == tier {
			out = append(out, r)
		}
	}
	return out
}
