package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/stockcast/internal/domain"
)

// JobLister reports unfinished jobs.
type JobLister interface {
	ActiveJobs() []domain.ForecastJob
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	jobs JobLister
}

// NewHealthHandler creates a new health handler. jobs may be nil.
func NewHealthHandler(jobs JobLister) *HealthHandler {
	return &HealthHandler{jobs: jobs}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.jobs != nil {
		body["active_jobs"] = len(h.jobs.ActiveJobs())
	}
	c.JSON(http.StatusOK, body)
}
