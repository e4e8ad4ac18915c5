package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/stockcast/internal/domain"
	"github.com/timmy/stockcast/internal/logger"
	"github.com/timmy/stockcast/internal/service"
)

const defaultHeartbeat = 15 * time.Second

// ForecastHandler exposes bulk forecast jobs: start, inspect, cancel and
// the live progress stream.
type ForecastHandler struct {
	orch      *service.Orchestrator
	archiver  *service.ReportArchiver
	heartbeat time.Duration
}

// NewForecastHandler creates a new forecast handler.
// Parameters:
//   - orch: orchestrator running the jobs.
//   - archiver: optional report archive; nil disables the report endpoints.
//   - heartbeat: SSE keep-alive interval; zero uses 15s.
//
// Returns:
//   - *ForecastHandler: initialized handler.
func NewForecastHandler(orch *service.Orchestrator, archiver *service.ReportArchiver, heartbeat time.Duration) *ForecastHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &ForecastHandler{orch: orch, archiver: archiver, heartbeat: heartbeat}
}

// BulkRequest is the body of POST /api/v1/forecasts/bulk.
type BulkRequest struct {
	Scope     string                 `json:"scope" binding:"required"`
	Overrides *domain.ParamOverrides `json:"overrides"`
}

// BulkResponse is returned once a job is accepted.
type BulkResponse struct {
	JobID     string           `json:"job_id"`
	Scope     string           `json:"scope"`
	Status    domain.JobStatus `json:"status"`
	EventsURL string           `json:"events_url"`
}

// StartBulk handles POST /api/v1/forecasts/bulk.
func (h *ForecastHandler) StartBulk(c *gin.Context) {
	ctx := c.Request.Context()

	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.CtxWarn(ctx, "Invalid bulk request: client_ip=%s, error=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := h.orch.StartScope(ctx, req.Scope, req.Overrides)
	if err != nil {
		logger.CtxWarn(ctx, "Bulk request rejected: scope=%s, error=%v", req.Scope, err)
		writeError(c, err)
		return
	}

	job, err := h.orch.Job(ctx, jobID)
	status := domain.JobStatusRunning
	if err == nil {
		status = job.Status
	}
	c.JSON(http.StatusAccepted, BulkResponse{
		JobID:     jobID,
		Scope:     req.Scope,
		Status:    status,
		EventsURL: "/api/v1/forecasts/jobs/" + jobID + "/events",
	})
}

// GetJob handles GET /api/v1/forecasts/jobs/:id.
func (h *ForecastHandler) GetJob(c *gin.Context) {
	job, err := h.orch.Job(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// CancelJob handles DELETE /api/v1/forecasts/jobs/:id.
// Cancellation is advisory and lands at the next item boundary.
func (h *ForecastHandler) CancelJob(c *gin.Context) {
	jobID := c.Param("id")
	if err := h.orch.Cancel(jobID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "message": "cancellation requested"})
}

// StreamJob handles GET /api/v1/forecasts/jobs/:id/events as Server-Sent Events.
// The stream starts with the latest known state, then live events, and ends
// after the terminal event.
func (h *ForecastHandler) StreamJob(c *gin.Context) {
	sub, err := h.orch.Subscribe(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent("progress", ev)
			return !ev.IsTerminal()
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"timestamp": time.Now().UTC()})
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// ScopeJob handles GET /api/v1/forecasts/scopes/:scope/job.
func (h *ForecastHandler) ScopeJob(c *gin.Context) {
	job, ok := h.orch.ActiveJob(c.Param("scope"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no job running for scope"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// ScopeHistory handles GET /api/v1/forecasts/scopes/:scope/jobs.
func (h *ForecastHandler) ScopeHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	jobs, err := h.orch.History(c.Request.Context(), c.Param("scope"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

// ListReports handles GET /api/v1/forecasts/scopes/:scope/reports.
func (h *ForecastHandler) ListReports(c *gin.Context) {
	if h.archiver == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report archive is disabled"})
		return
	}
	objs, err := h.archiver.ListReports(c.Request.Context(), c.Param("scope"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": objs, "count": len(objs)})
}

// GetReport handles GET /api/v1/forecasts/scopes/:scope/reports/:id.
func (h *ForecastHandler) GetReport(c *gin.Context) {
	if h.archiver == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report archive is disabled"})
		return
	}
	report, err := h.archiver.GetReport(c.Request.Context(), c.Param("scope"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
