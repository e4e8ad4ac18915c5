package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/timmy/stockcast/internal/domain"
)

func eta(v int) *int { return &v }

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		eta   *int
		stock int
		want  domain.RiskTier
	}{
		{"zero stock and zero eta", eta(0), 0, domain.RiskCritical},
		{"eta 10 is watch", eta(10), 5, domain.RiskWatch},
		{"eta 20 is safe", eta(20), 5, domain.RiskSafe},
		{"zero stock dominates missing eta", nil, 0, domain.RiskCritical},
		{"zero stock dominates long eta", eta(90), 0, domain.RiskCritical},
		{"no eta is safe", nil, 40, domain.RiskSafe},
		{"eta 6 is critical", eta(6), 10, domain.RiskCritical},
		{"eta 7 is watch", eta(7), 10, domain.RiskWatch},
		{"eta 14 is watch", eta(14), 10, domain.RiskWatch},
		{"eta 15 is safe", eta(15), 10, domain.RiskSafe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.eta, tt.stock))
			// deterministic
			assert.Equal(t, Classify(tt.eta, tt.stock), Classify(tt.eta, tt.stock))
		})
	}
}

func TestCustomThresholds(t *testing.T) {
	c := NewClassifier(Thresholds{CriticalDays: 3, WatchDays: 5})
	assert.Equal(t, domain.RiskWatch, c.Classify(eta(3), 10))
	assert.Equal(t, domain.RiskSafe, c.Classify(eta(5), 10))

	fallback := NewClassifier(Thresholds{CriticalDays: 10, WatchDays: 2})
	assert.Equal(t, DefaultThresholds(), fallback.Thresholds())
}

func TestApplyFillsTierStatusAndMessage(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	in := &domain.ForecastResult{SKU: "SKU001", Insight: domain.Insight{ETADays: eta(4), RecommendedReorder: 30}}
	out := c.Apply(in, 12)

	assert.Equal(t, domain.RiskCritical, out.Insight.RiskTier)
	assert.Equal(t, StatusAtRisk, out.Insight.Status)
	assert.Equal(t, "Stock-out expected in 4 days. Reorder 30 units now.", out.Insight.Message)
	assert.Empty(t, in.Insight.RiskTier, "input must not be mutated")

	kept := c.Apply(&domain.ForecastResult{Insight: domain.Insight{Status: "custom"}}, 0)
	assert.Equal(t, "custom", kept.Insight.Status)
	assert.Equal(t, domain.RiskCritical, kept.Insight.RiskTier)
	assert.Equal(t, "Out of stock. Reorder immediately.", kept.Insight.Message)
}

func TestDirective(t *testing.T) {
	assert.Equal(t, "Out of stock. Reorder 25 units immediately.",
		Directive(domain.RiskCritical, domain.Insight{RecommendedReorder: 25}, 0))
	assert.Equal(t, "Stock-out expected in 12 days. Plan a reorder of 8 units.",
		Directive(domain.RiskWatch, domain.Insight{ETADays: eta(12), RecommendedReorder: 8}, 3))
	assert.Equal(t, "No stock-out expected within the forecast horizon.",
		Directive(domain.RiskSafe, domain.Insight{}, 50))
	assert.Equal(t, "Stock covers the next 40 days. No action needed.",
		Directive(domain.RiskSafe, domain.Insight{ETADays: eta(40)}, 50))
}

func TestSortIsTotalAndUrgencyFirst(t *testing.T) {
	results := []domain.ForecastResult{
		{SKU: "S3", Insight: domain.Insight{RiskTier: domain.RiskSafe}},
		{SKU: "W1", Insight: domain.Insight{RiskTier: domain.RiskWatch, ETADays: eta(12)}},
		{SKU: "C2", Insight: domain.Insight{RiskTier: domain.RiskCritical}},
		{SKU: "C1", Insight: domain.Insight{RiskTier: domain.RiskCritical, ETADays: eta(2)}},
		{SKU: "W0", Insight: domain.Insight{RiskTier: domain.RiskWatch, ETADays: eta(12)}},
		{SKU: "S1", Insight: domain.Insight{RiskTier: domain.RiskSafe, ETADays: eta(30)}},
	}
	Sort(results)

	var got []string
	for _, r := range results {
		got = append(got, r.SKU)
	}
	assert.Equal(t, []string{"C1", "C2", "W0", "W1", "S1", "S3"}, got)
}

func TestSummarizeAndFilter(t *testing.T) {
	results := []domain.ForecastResult{
		{SKU: "a", Insight: domain.Insight{RiskTier: domain.RiskCritical}},
		{SKU: "b", Insight: domain.Insight{RiskTier: domain.RiskCritical}},
		{SKU: "c", Insight: domain.Insight{RiskTier: domain.RiskWatch}},
		{SKU: "d", Insight: domain.Insight{RiskTier: domain.RiskSafe}},
	}
	assert.Equal(t, Summary{Critical: 2, Watch: 1, Safe: 1, Total: 4}, Summarize(results))
	assert.Len(t, Filter(results, domain.RiskCritical), 2)
	assert.Len(t, Filter(results, ""), 4)
}
