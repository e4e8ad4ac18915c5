package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/stockcast/internal/domain"
	"github.com/timmy/stockcast/internal/ledger"
	"github.com/timmy/stockcast/internal/logger"
	"github.com/timmy/stockcast/internal/service"
	"github.com/timmy/stockcast/internal/storage"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, storage.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrScopeBusy),
		errors.Is(err, service.ErrJobFinished):
		return http.StatusConflict
	case errors.Is(err, service.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.CtxError(c.Request.Context(), "Request error: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
