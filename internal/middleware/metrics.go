package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Proton-105/scoreboard/pkg/metrics"
)

// Metrics reports request count and latency labelled by the matched route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		metrics.RecordRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
