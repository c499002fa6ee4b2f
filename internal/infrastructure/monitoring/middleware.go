package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records request count, latency and sizes per route template.
// Requests to skip paths (the scrape endpoint, usually) are not recorded.
func Middleware(metrics *Metrics, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		reqSize := max(c.Request.ContentLength, 0)

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		metrics.RecordHTTPRequest(
			methodLabel(c.Request.Method),
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
			reqSize,
			max(int64(c.Writer.Size()), 0),
		)
	}
}

// methodLabel folds non-standard verbs into one label value.
func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return method
	}
	return "OTHER"
}

// Timer measures one upstream fetch.
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer starts a timer.
func NewTimer(metrics *Metrics) *Timer {
	return &Timer{start: time.Now(), metrics: metrics}
}

// Stop records the elapsed time under outcome and returns it.
func (t *Timer) Stop(outcome string) time.Duration {
	duration := time.Since(t.start)
	t.metrics.UpstreamDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	return duration
}
