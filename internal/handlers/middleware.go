package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// requestMiddleware logs every request and records it in the HTTP metrics.
func (h *Handler) requestMiddleware(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	status := c.Writer.Status()
	elapsed := time.Since(start)

	h.metrics.Observe(c.Request.Method, route, status, elapsed)

	// The push socket lives for minutes and would skew request logs.
	if h.log == nil || route == "/ws" || route == "/metrics" {
		return
	}
	h.log.Debugw("http_request",
		"method", c.Request.Method,
		"route", route,
		"status", status,
		"duration_ms", elapsed.Milliseconds(),
	)
}
