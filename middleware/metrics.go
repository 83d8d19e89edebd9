package middleware

import (
	"time"

	"github.com/ezlinkai/ai-image-generator/monitor"
	"github.com/gin-gonic/gin"
)

// RequestMetrics feeds latency, status and concurrency figures to the monitor package.
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		monitor.IncrementConcurrent()
		defer monitor.DecrementConcurrent()

		c.Next()

		monitor.RecordRequest(time.Since(startTime), c.Writer.Status())
	}
}
