package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/metrics", Handler(reg))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestRecordHTTPRequestSnapshot(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordHTTPRequest("GET", "/api/proxy", "200", 100*time.Millisecond, 0, 10)
	m.RecordHTTPRequest("GET", "/api/proxy", "403", 300*time.Millisecond, 0, 10)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)
	assert.InDelta(t, 0.2, snap.AverageLatency, 0.0001)

	body := scrape(t, reg)
	assert.Contains(t, body, `webgate_http_requests_total{method="GET",path="/api/proxy",status="403"} 1`)
}

func TestProxyAndTokenCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordProxyResult("OK")
	m.RecordProxyResult("DOMAIN_NOT_ALLOWED")
	m.RecordProxyResult("OK")
	m.RecordRewriteFailure("html")
	m.IncTokensIssued()
	m.RecordTokenRejection("expired")
	m.SetTokensActive(4)

	body := scrape(t, reg)
	assert.Contains(t, body, `webgate_proxy_requests_total{code="OK"} 2`)
	assert.Contains(t, body, `webgate_proxy_requests_total{code="DOMAIN_NOT_ALLOWED"} 1`)
	assert.Contains(t, body, `webgate_rewrite_failures_total{kind="html"} 1`)
	assert.Contains(t, body, "webgate_tokens_issued_total 1")
	assert.Contains(t, body, `webgate_token_rejections_total{reason="expired"} 1`)
	assert.Contains(t, body, "webgate_tokens_active 4")

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.ProxiedRequests)
	assert.Equal(t, int64(4), snap.ActiveTokens)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	body := scrape(t, reg)
	assert.Contains(t, body, `webgate_http_requests_total{method="GET",path="/ping",status="200"} 1`)
	assert.Contains(t, body, `path="unmatched"`)
	assert.Contains(t, body, "webgate_uptime_seconds")
}

func TestMiddlewareSkipAndMethods(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	router := gin.New()
	router.Use(Middleware(m, "/metrics"))
	router.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.Handle("PROPFIND", "/dav", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/metrics", nil),
		httptest.NewRequest("PROPFIND", "/dav", nil),
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	body := scrape(t, reg)
	assert.NotContains(t, body, `path="/metrics"`)
	assert.Contains(t, body, `webgate_http_requests_total{method="OTHER",path="/dav",status="200"} 1`)
}

func TestTimer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	d := NewTimer(m).Stop("success")
	assert.GreaterOrEqual(t, d, time.Duration(0))
	assert.Contains(t, scrape(t, reg), `webgate_upstream_duration_seconds_count{outcome="success"} 1`)
}
