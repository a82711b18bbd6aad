package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestObserver records handled HTTP requests.
type RequestObserver interface {
	ObserveHTTPRequest(method, path string, status int, duration time.Duration)
}

// Metrics instruments each request with its route template, status and
// latency. Unmatched routes are labelled "unmatched" to keep cardinality
// bounded.
func Metrics(observer RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		observer.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
