package http

import (
	"net/http"
	"net/url"
	"time"

	"github.com/GriffinCanCode/webgate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webgate/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/webgate/internal/policy"
	"github.com/GriffinCanCode/webgate/internal/proxy"
	"github.com/GriffinCanCode/webgate/internal/token"
	"github.com/gin-gonic/gin"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// BreakerStates reports the circuit state per upstream host.
// *resilience.Group implements it.
type BreakerStates interface {
	States() map[string]resilience.State
}

// Deps are the collaborators the handlers read from.
type Deps struct {
	Policy   *policy.Policy
	Gate     *policy.Gate
	Ledger   *token.Ledger
	Metrics  *monitoring.Metrics
	Breakers BreakerStates
}

// Config holds handler settings.
type Config struct {
	TokenRequired bool
	// PublicHost overrides the inbound Host header as the proxy's own host
	PublicHost string
}

// Handlers contains the HTTP handlers
type Handlers struct {
	policy   *policy.Policy
	gate     *policy.Gate
	ledger   *token.Ledger
	metrics  *monitoring.Metrics
	breakers BreakerStates
	cfg      Config
	started  time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(deps Deps, cfg Config) *Handlers {
	return &Handlers{
		policy:   deps.Policy,
		gate:     deps.Gate,
		ledger:   deps.Ledger,
		metrics:  deps.Metrics,
		breakers: deps.Breakers,
		cfg:      cfg,
		started:  time.Now(),
	}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "webgate",
		"version": Version,
		"endpoints": gin.H{
			"proxy":   "/api/proxy?url=<absolute-url>",
			"token":   "/api/token",
			"domains": "/api/domains",
			"health":  "/health",
			"metrics": "/metrics",
		},
	})
}

// Health handles the detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":        "healthy",
		"uptime":        time.Since(h.started).Round(time.Second).String(),
		"tokenRequired": h.cfg.TokenRequired,
		"activeTokens":  h.ledger.Len(),
		"categories":    len(h.policy.Categories()),
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.Snapshot()
	}
	if h.breakers != nil {
		states := h.breakers.States()
		upstreams := make(map[string]string, len(states))
		open := 0
		for host, state := range states {
			upstreams[host] = state.String()
			if state == resilience.StateOpen {
				open++
			}
		}
		body["upstreams"] = upstreams
		if open > 0 {
			body["status"] = "degraded"
		}
	}
	c.JSON(http.StatusOK, body)
}

// Token issues an access token to an authorized front end
func (h *Handlers) Token(c *gin.Context) {
	if !h.authorized(c) {
		proxy.CallerRejected(c)
		return
	}

	tok := h.ledger.Issue(c.ClientIP())
	if h.metrics != nil {
		h.metrics.IncTokensIssued()
		h.metrics.SetTokensActive(h.ledger.Len())
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"token":       tok.ID,
		"expiresIn":   int(h.ledger.TTL().Seconds()),
		"maxRequests": tok.MaxRequests,
	})
}

// Domains lists the allow-list categories and how many entries each holds
func (h *Handlers) Domains(c *gin.Context) {
	if !h.authorized(c) {
		proxy.CallerRejected(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"categories":    h.policy.Categories(),
		"summary":       h.policy.Summary(),
		"tokenRequired": h.cfg.TokenRequired,
	})
}

func (h *Handlers) authorized(c *gin.Context) bool {
	host := h.cfg.PublicHost
	if host == "" {
		host = c.Request.Host
	}
	self := (&url.URL{Host: host}).Hostname()
	return h.gate.IsAuthorizedCaller(c.GetHeader("Referer"), c.GetHeader("Origin"), self)
}
