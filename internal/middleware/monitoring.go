package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mailsight/backend/internal/monitoring"
)

// HTTPMetrics HTTP 指标中间件
func HTTPMetrics(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		metrics.RecordHTTPRequest(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)

		if c.Writer.Status() >= 400 {
			metrics.RecordError("http_error", "http")
		}
	}
}
