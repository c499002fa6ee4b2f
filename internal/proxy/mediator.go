package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/GriffinCanCode/webgate/internal/api/middleware"
	"github.com/GriffinCanCode/webgate/internal/contenttype"
	"github.com/GriffinCanCode/webgate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webgate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webgate/internal/policy"
	"github.com/GriffinCanCode/webgate/internal/rewrite"
	"github.com/GriffinCanCode/webgate/internal/token"
	"github.com/GriffinCanCode/webgate/internal/upstream"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TokenCookie carries the access token for subresource requests.
const TokenCookie = "webgate_token"

// Stages of one mediated request, used in logs.
const (
	StageReceived      = "received"
	StagePolicyChecked = "policy_checked"
	StageFetching      = "fetching"
	StageClassified    = "classified"
	StageRewritten     = "rewritten"
	StageResponded     = "responded"
)

// Methods are the methods served on the proxy endpoint.
var Methods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
	http.MethodPatch, http.MethodHead, http.MethodOptions,
}

// Fetcher performs upstream requests. *upstream.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, req *upstream.Request) (*upstream.Response, error)
}

// Config holds the mediator settings.
type Config struct {
	// TokenRequired enables the access token check
	TokenRequired bool
	// PublicHost overrides the inbound Host header as the proxy's own host
	PublicHost string
	// CompressionThreshold is the smallest body gzip-encoded; 0 disables it
	CompressionThreshold int
	// MaxRequestBody caps forwarded request bodies
	MaxRequestBody int64
}

// Mediator runs the proxy endpoint: gate, token, policy, fetch, classify,
// rewrite, respond.
type Mediator struct {
	policy   *policy.Policy
	gate     *policy.Gate
	ledger   *token.Ledger
	rewriter *rewrite.Rewriter
	fetcher  Fetcher
	metrics  *monitoring.Metrics
	log      *logging.Logger
	cfg      Config

	rewriteHTML func(doc string, target *url.URL, proxyHost string) string
	rewriteCSS  func(css string, target *url.URL, proxyHost string) string
}

// Deps are the collaborators a Mediator needs.
type Deps struct {
	Policy   *policy.Policy
	Gate     *policy.Gate
	Ledger   *token.Ledger
	Rewriter *rewrite.Rewriter
	Fetcher  Fetcher
	Metrics  *monitoring.Metrics
	Logger   *logging.Logger
}

// New creates a mediator
func New(deps Deps, cfg Config) *Mediator {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if cfg.MaxRequestBody <= 0 {
		cfg.MaxRequestBody = 50 << 20
	}
	return &Mediator{
		policy:      deps.Policy,
		gate:        deps.Gate,
		ledger:      deps.Ledger,
		rewriter:    deps.Rewriter,
		fetcher:     deps.Fetcher,
		metrics:     deps.Metrics,
		log:         deps.Logger.Component("proxy"),
		cfg:         cfg,
		rewriteHTML: deps.Rewriter.HTML,
		rewriteCSS:  deps.Rewriter.CSS,
	}
}

// Handle serves /api/proxy.
func (m *Mediator) Handle(c *gin.Context) {
	log := m.log.With(
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("method", c.Request.Method),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("internal_error", zap.Any("panic", r), zap.Stack("stack"))
			if !c.Writer.Written() {
				m.record(CodeInternal)
				WriteError(c, errInternal(fmt.Errorf("panic: %v", r)))
			}
		}
	}()

	if c.Request.Method == http.MethodOptions {
		m.preflight(c)
		return
	}
	if websocket.IsWebSocketUpgrade(c.Request) {
		m.reject(c, log, StageReceived, errWebSocket())
		return
	}

	raw := c.Query("url")
	if raw == "" {
		if term := searchTerm(c); term != "" {
			m.record(CodeMissingURL)
			m.searchPage(c, term)
			return
		}
		m.reject(c, log, StageReceived, errMissingURL())
		return
	}

	target, err := ParseTarget(raw)
	if err != nil {
		m.reject(c, log, StageReceived, errInvalidURL(err))
		return
	}
	log = log.With(logging.Target("target", target))

	proxyHost := m.proxyHost(c)
	if !m.gate.IsAuthorizedCaller(c.GetHeader("Referer"), c.GetHeader("Origin"), hostOnly(proxyHost)) {
		m.record(CodeCallerNotAuthorized)
		log.Info("policy_rejected",
			zap.String("stage", StageReceived),
			zap.String("code", string(CodeCallerNotAuthorized)),
			zap.Bool("has_referer", c.GetHeader("Referer") != ""),
			zap.Bool("has_origin", c.GetHeader("Origin") != ""))
		if wantsJSON(c) {
			WriteError(c, errCallerNotAuthorized())
		} else {
			callerPage(c)
		}
		return
	}

	if m.cfg.TokenRequired {
		if e := m.authorize(c); e != nil {
			m.reject(c, log, StageReceived, e)
			return
		}
	}

	if err := m.policy.Check(target.Hostname()); err != nil {
		m.reject(c, log, StageReceived, policyError(err, policy.Normalize(target.Hostname()), m.policy.Categories()))
		return
	}

	resp, e := m.fetch(c, log, target)
	if e != nil {
		m.reject(c, log, StageFetching, e)
		return
	}

	m.respond(c, log, resp, proxyHost)
}

// ParseTarget validates the url parameter: an absolute http or https URL
// with a host and, when given, a port between 1 and 65535.
func ParseTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, errors.New("missing host")
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("invalid port %q", p)
		}
	}
	return u, nil
}

func searchTerm(c *gin.Context) string {
	for _, key := range []string{"q", "search", "query"} {
		if v := strings.TrimSpace(c.Query(key)); v != "" {
			return v
		}
	}
	return ""
}

// wantsJSON reports whether the caller prefers JSON over an HTML page.
func wantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

func (m *Mediator) proxyHost(c *gin.Context) string {
	if m.cfg.PublicHost != "" {
		return m.cfg.PublicHost
	}
	return c.Request.Host
}

func hostOnly(hostport string) string {
	return (&url.URL{Host: hostport}).Hostname()
}

func (m *Mediator) preflight(c *gin.Context) {
	h := c.Writer.Header()
	setCORSHeaders(h)
	setSecurityHeaders(h)
	h.Set("Access-Control-Max-Age", preflightAge)
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Abort()
}

// authorize validates the token from the query string or the token cookie.
// A query token is echoed into the cookie for the page's subresources.
func (m *Mediator) authorize(c *gin.Context) *Error {
	id, fromQuery := c.Query("token"), true
	if id == "" {
		fromQuery = false
		if v, err := c.Cookie(TokenCookie); err == nil {
			id = v
		}
	}

	tok, err := m.ledger.Validate(id)
	if err != nil {
		m.recordTokenRejection(err)
		if errors.Is(err, token.ErrTokenMissing) {
			return errTokenRequired()
		}
		return errTokenInvalid(err)
	}

	if fromQuery {
		maxAge := int(time.Until(tok.ExpiresAt).Seconds())
		if maxAge < 1 {
			maxAge = 1
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(TokenCookie, tok.ID, maxAge, m.rewriter.ProxyPath(), "", c.Request.TLS != nil, true)
	}
	return nil
}

func (m *Mediator) recordTokenRejection(err error) {
	if m.metrics == nil {
		return
	}
	reason := "unknown"
	switch {
	case errors.Is(err, token.ErrTokenMissing):
		reason = "missing"
	case errors.Is(err, token.ErrTokenExpired):
		reason = "expired"
	case errors.Is(err, token.ErrTokenExhausted):
		reason = "exhausted"
	}
	m.metrics.RecordTokenRejection(reason)
}

func (m *Mediator) fetch(c *gin.Context, log *zap.Logger, target *url.URL) (*upstream.Response, *Error) {
	req := &upstream.Request{
		Method: c.Request.Method,
		URL:    target,
		Header: outboundHeaders(c.Request, target, m.rewriter.ProxyPath(), TokenCookie),
	}

	if c.Request.Body != nil && c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, m.cfg.MaxRequestBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, newError(http.StatusRequestEntityTooLarge, CodeResponseTooLarge, "Request too large", "The request body exceeds the size limit").wrap(err)
			}
			return nil, errInvalidURL(err)
		}
		if len(body) > 0 {
			req.Body = bytes.NewReader(body)
		}
	}

	var timer *monitoring.Timer
	if m.metrics != nil {
		timer = monitoring.NewTimer(m.metrics)
	}

	resp, err := m.fetcher.Fetch(c.Request.Context(), req)
	if err != nil {
		e := upstreamError(err, m.policy.Categories())
		if timer != nil {
			timer.Stop(string(e.Code))
		}
		return nil, e
	}
	if timer != nil {
		timer.Stop(CodeOK)
	}

	log.Debug("fetched",
		zap.String("stage", StageFetching),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.Duration("upstream_latency", resp.Duration))
	return resp, nil
}

func (m *Mediator) respond(c *gin.Context, log *zap.Logger, resp *upstream.Response, proxyHost string) {
	final := resp.FinalURL
	class := contenttype.Resolve(final.String(), resp.Header.Get("Content-Type"), resp.Body)
	log.Debug("classified",
		zap.String("stage", StageClassified),
		zap.String("mime", class.MIME),
		zap.String("source", string(class.Source)))

	body := resp.Body
	mime := class.MIME

	if len(body) > 0 {
		switch {
		case class.IsHTML():
			utf8Body, cs, converted, err := upstream.ToUTF8(body, resp.Header.Get("Content-Type"))
			if err != nil {
				log.Warn("charset_failed", zap.String("charset", cs), zap.Error(err))
			} else {
				body = utf8Body
				mime = class.Base() + "; charset=utf-8"
				if converted {
					log.Debug("transcoded", zap.String("charset", cs))
				}
			}
			body = m.safeRewrite(log, "html", body, func(s string) string {
				return m.rewriteHTML(s, final, proxyHost)
			})
		case class.IsCSS():
			body = m.safeRewrite(log, "css", body, func(s string) string {
				return m.rewriteCSS(s, final, proxyHost)
			})
		}
	}

	h := c.Writer.Header()
	copyResponseHeaders(h, resp.Header)
	setCORSHeaders(h)
	setSecurityHeaders(h)
	h.Set("Cache-Control", contenttype.CacheControl(class.Category))

	if shouldCompress(c.Request, resp.StatusCode, contenttype.Compressible(class.Category), len(body), m.cfg.CompressionThreshold) {
		if gz, err := gzipBytes(body); err == nil {
			body = gz
			h.Set("Content-Encoding", "gzip")
			addVary(h, "Accept-Encoding")
		} else {
			log.Warn("compress_failed", zap.Error(err))
		}
	}

	if c.Request.Method != http.MethodHead && bodyAllowed(resp.StatusCode) {
		h.Set("Content-Length", strconv.Itoa(len(body)))
	}
	c.Data(resp.StatusCode, mime, body)

	m.record(CodeOK)
	log.Info("proxied",
		zap.String("stage", StageResponded),
		zap.Int("status", resp.StatusCode),
		zap.String("mime", mime),
		zap.Int("bytes", len(body)))
}

// safeRewrite runs fn over body. A panicking rewrite is logged and the
// original body is served instead.
func (m *Mediator) safeRewrite(log *zap.Logger, kind string, body []byte, fn func(string) string) (out []byte) {
	defer func() {
		if r := recover(); r != nil {
			if m.metrics != nil {
				m.metrics.RecordRewriteFailure(kind)
			}
			log.Error("rewrite_failed",
				zap.String("stage", StageRewritten),
				zap.String("kind", kind),
				zap.Any("panic", r))
			out = body
		}
	}()
	return []byte(fn(string(body)))
}

func bodyAllowed(status int) bool {
	return status >= 200 && status != http.StatusNoContent && status != http.StatusNotModified
}

// reject writes e and logs the failure at the stage it happened.
func (m *Mediator) reject(c *gin.Context, log *zap.Logger, stage string, e *Error) {
	m.record(e.Code)

	fields := []zap.Field{
		zap.String("stage", stage),
		zap.String("code", string(e.Code)),
		zap.Int("status", e.Status),
	}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
	}

	event := "policy_rejected"
	if stage == StageFetching {
		event = "fetch_failed"
	}
	if e.Status >= http.StatusInternalServerError {
		log.Warn(event, fields...)
	} else {
		log.Info(event, fields...)
	}

	WriteError(c, e)
}

func (m *Mediator) record(code Code) {
	if m.metrics != nil {
		m.metrics.RecordProxyResult(string(code))
	}
}
