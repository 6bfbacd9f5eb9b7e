package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPMetrics receives one observation per request. *prometheus.PKAMetrics
// satisfies it.
type HTTPMetrics interface {
	RecordHTTPRequest(method, route string, status int, d time.Duration)
}

// Metrics records method, matched route, status and latency. Unmatched
// requests are labelled "unmatched" to keep label cardinality bounded.
func Metrics(m HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

//Personal.AI order the ending
