package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/stockcast/internal/domain"
	"github.com/timmy/stockcast/internal/ledger"
	"github.com/timmy/stockcast/internal/risk"
)

// LedgerHandler serves the latest forecast per item.
type LedgerHandler struct {
	ledger ledger.Ledger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(l ledger.Ledger) *LedgerHandler {
	return &LedgerHandler{ledger: l}
}

// ListResponse is the body of GET /api/v1/forecasts.
type ListResponse struct {
	Scope   string                  `json:"scope,omitempty"`
	Tier    domain.RiskTier         `json:"tier,omitempty"`
	Summary risk.Summary            `json:"summary"`
	Count   int                     `json:"count"`
	Results []domain.ForecastResult `json:"results"`
}

// List handles GET /api/v1/forecasts?scope=&tier=.
// Results are ordered most urgent first; the summary always covers the whole scope.
func (h *LedgerHandler) List(c *gin.Context) {
	var tier domain.RiskTier
	if raw := c.Query("tier"); raw != "" {
		t, err := domain.ParseRiskTier(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		tier = t
	}

	scope := c.Query("scope")
	results, err := h.ledger.ListByScope(c.Request.Context(), scope)
	if err != nil {
		writeError(c, err)
		return
	}

	summary := risk.Summarize(results)
	if tier != "" {
		results = risk.Filter(results, tier)
	}
	risk.Sort(results)
	if results == nil {
		results = []domain.ForecastResult{}
	}

	c.JSON(http.StatusOK, ListResponse{
		Scope:   scope,
		Tier:    tier,
		Summary: summary,
		Count:   len(results),
		Results: results,
	})
}

// Get handles GET /api/v1/forecasts/:sku.
func (h *LedgerHandler) Get(c *gin.Context) {
	res, err := h.ledger.Get(c.Request.Context(), c.Param("sku"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
