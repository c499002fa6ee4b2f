package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Proxy metrics
	ProxyRequests    *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	RewriteFailures  *prometheus.CounterVec

	// Token metrics
	TokensIssued    prometheus.Counter
	TokenRejections *prometheus.CounterVec
	TokensActive    prometheus.Gauge

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests   int64   `json:"totalRequests"`
	TotalErrors     int64   `json:"totalErrors"`
	ProxiedRequests int64   `json:"proxiedRequests"`
	ActiveTokens    int64   `json:"activeTokens"`
	TotalDuration   float64 `json:"-"`
	RequestCount    int64   `json:"-"`
	AverageLatency  float64 `json:"averageLatencySeconds"`
	UptimeSeconds   float64 `json:"uptimeSeconds"`
}

// NewMetrics creates a new metrics collector registered on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webgate_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webgate_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000, 50000000},
			},
			[]string{"method", "path"},
		),

		// Proxy metrics
		ProxyRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webgate_proxy_requests_total",
				Help: "Proxy requests by outcome code",
			},
			[]string{"code"},
		),
		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webgate_upstream_duration_seconds",
				Help:    "Outbound fetch duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		RewriteFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webgate_rewrite_failures_total",
				Help: "Rewrite passes that fell back to the original body",
			},
			[]string{"kind"},
		),

		// Token metrics
		TokensIssued: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "webgate_tokens_issued_total",
				Help: "Total number of access tokens issued",
			},
		),
		TokenRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webgate_token_rejections_total",
				Help: "Token validations that failed, by reason",
			},
			[]string{"reason"},
		),
		TokensActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "webgate_tokens_active",
				Help: "Tokens held in the ledger after the last sweep",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "webgate_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordProxyResult counts one mediated request by its outcome code ("OK" on success)
func (m *Metrics) RecordProxyResult(code string) {
	m.ProxyRequests.WithLabelValues(code).Inc()

	m.mu.Lock()
	m.snapshot.ProxiedRequests++
	m.mu.Unlock()
}

// RecordRewriteFailure counts a rewrite pass that was abandoned
func (m *Metrics) RecordRewriteFailure(kind string) {
	m.RewriteFailures.WithLabelValues(kind).Inc()
}

// IncTokensIssued increments the issued tokens counter
func (m *Metrics) IncTokensIssued() {
	m.TokensIssued.Inc()
}

// RecordTokenRejection records a failed token validation
func (m *Metrics) RecordTokenRejection(reason string) {
	m.TokenRejections.WithLabelValues(reason).Inc()
}

// SetTokensActive sets the number of live tokens
func (m *Metrics) SetTokensActive(count int) {
	m.TokensActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveTokens = int64(count)
	m.mu.Unlock()
}

// Snapshot returns a copy of the JSON-facing counters
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	snap := m.snapshot
	m.mu.RUnlock()

	if snap.RequestCount > 0 {
		snap.AverageLatency = snap.TotalDuration / float64(snap.RequestCount)
	}
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}
