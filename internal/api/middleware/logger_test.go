package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/timmy/stockcast/internal/logger"
)

func TestLoggerMiddleware_RequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log := logger.New(&logger.Config{Level: "error", Format: "json", Output: &buf})

	var requestID, component string
	r := gin.New()
	r.Use(LoggerMiddleware(log))
	r.GET("/ping", func(c *gin.Context) {
		ctx := c.Request.Context()
		requestID = logger.GetRequestID(ctx)
		component = logger.GetFieldString(ctx, logger.FieldComponent)
		c.Status(http.StatusNoContent)
	})

	t.Run("reuses incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(requestIDHeader, "req-42")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "req-42", requestID)
		assert.Equal(t, "api", component)
		assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
	})

	t.Run("generates id when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

		assert.NotEmpty(t, requestID)
		assert.Equal(t, requestID, w.Header().Get(requestIDHeader))
	})
}
