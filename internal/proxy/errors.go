package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/GriffinCanCode/webgate/internal/api/middleware"
	"github.com/GriffinCanCode/webgate/internal/policy"
	"github.com/GriffinCanCode/webgate/internal/upstream"
	"github.com/gin-gonic/gin"
)

// Code is the stable machine-readable error code in the envelope.
type Code string

const (
	CodeMissingURL           Code = "MISSING_URL"
	CodeInvalidURL           Code = "INVALID_URL"
	CodeCallerNotAuthorized  Code = "CALLER_NOT_AUTHORIZED"
	CodeTokenRequired        Code = "TOKEN_REQUIRED"
	CodeTokenInvalid         Code = "TOKEN_INVALID"
	CodeDomainNotAllowed     Code = "DOMAIN_NOT_ALLOWED"
	CodePrivateNetwork       Code = "PRIVATE_NETWORK"
	CodeWebSocketUnsupported Code = "WEBSOCKET_UNSUPPORTED"
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeUpstreamTimeout      Code = "UPSTREAM_TIMEOUT"
	CodeUpstreamNetwork      Code = "UPSTREAM_NETWORK"
	CodeUpstreamUnavailable  Code = "UPSTREAM_UNAVAILABLE"
	CodeResponseTooLarge     Code = "RESPONSE_TOO_LARGE"
	CodeInternal             Code = "INTERNAL_ERROR"
)

// CodeOK labels successful requests in metrics.
const CodeOK = "OK"

// Error is a failure the mediator reports to the caller. Only Title,
// Message and Extra are rendered; Err stays in the logs.
type Error struct {
	Status  int
	Code    Code
	Title   string
	Message string
	Extra   map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(status int, code Code, title, message string) *Error {
	return &Error{Status: status, Code: code, Title: title, Message: message}
}

func (e *Error) with(key string, value any) *Error {
	if e.Extra == nil {
		e.Extra = make(map[string]any)
	}
	e.Extra[key] = value
	return e
}

func (e *Error) wrap(err error) *Error {
	e.Err = err
	return e
}

func errMissingURL() *Error {
	return newError(http.StatusBadRequest, CodeMissingURL, "Missing URL parameter", "Please provide a valid url parameter")
}

func errInvalidURL(err error) *Error {
	return newError(http.StatusBadRequest, CodeInvalidURL, "Invalid URL format", "The provided URL is not valid").wrap(err)
}

func errCallerNotAuthorized() *Error {
	return newError(http.StatusForbidden, CodeCallerNotAuthorized, "Access denied", "Requests must come from an authorized page")
}

func errTokenRequired() *Error {
	return newError(http.StatusForbidden, CodeTokenRequired, "Access token required", "Request a token from /api/token and retry")
}

func errTokenInvalid(err error) *Error {
	return newError(http.StatusForbidden, CodeTokenInvalid, "Invalid access token", "The token is invalid or expired; request a new one from /api/token").wrap(err)
}

func errWebSocket() *Error {
	return newError(http.StatusNotImplemented, CodeWebSocketUnsupported, "WebSocket not supported", "WebSocket connections cannot be proxied")
}

func errRateLimited() *Error {
	return newError(http.StatusTooManyRequests, CodeRateLimited, "Too many requests", "Rate limit exceeded, slow down")
}

// policyError maps a Domain Policy rejection for host. The allow-list
// itself is never echoed; categories names the groups it is made of.
func policyError(err error, host string, categories []string) *Error {
	switch {
	case errors.Is(err, policy.ErrPrivateHost):
		return newError(http.StatusForbidden, CodePrivateNetwork, "Private network address", "Requests to private or loopback addresses are not allowed").
			with("domain", host).wrap(err)
	case errors.Is(err, policy.ErrNotAllowed):
		return newError(http.StatusForbidden, CodeDomainNotAllowed, "Domain not allowed", fmt.Sprintf("Domain %s is not in the allowed list", host)).
			with("domain", host).with("categories", categories).wrap(err)
	default:
		return errInvalidURL(err)
	}
}

// upstreamError maps a fetch failure onto the envelope.
func upstreamError(err error, categories []string) *Error {
	var redirect *upstream.RedirectError
	if errors.As(err, &redirect) {
		return policyError(redirect.Err, redirect.URL.Hostname(), categories)
	}

	switch {
	case errors.Is(err, upstream.ErrTimeout):
		return newError(http.StatusGatewayTimeout, CodeUpstreamTimeout, "AbortError", "The target did not respond in time").wrap(err)
	case errors.Is(err, upstream.ErrTooLarge):
		return newError(http.StatusBadGateway, CodeResponseTooLarge, "Response too large", "The target response exceeds the size limit").wrap(err)
	case errors.Is(err, upstream.ErrUnavailable):
		return newError(http.StatusServiceUnavailable, CodeUpstreamUnavailable, "Target unavailable", "The target is failing; try again later").wrap(err)
	case errors.Is(err, upstream.ErrTooManyRedirects):
		return newError(http.StatusBadGateway, CodeUpstreamNetwork, "NetworkError", "The target redirected too many times").wrap(err)
	case errors.Is(err, upstream.ErrNetwork), errors.Is(err, upstream.ErrDecode):
		return newError(http.StatusBadGateway, CodeUpstreamNetwork, "NetworkError", "Could not fetch the target").wrap(err)
	default:
		// cancelled fetches land here and are reported like any failed fetch
		return newError(http.StatusBadGateway, CodeUpstreamNetwork, "NetworkError", "Could not fetch the target").wrap(err)
	}
}

func errInternal(err error) *Error {
	return newError(http.StatusInternalServerError, CodeInternal, "Internal proxy error", "An unexpected error occurred while processing the request").wrap(err)
}

// envelope renders the common error body.
func envelope(e *Error, requestID string) gin.H {
	body := gin.H{
		"error":     e.Title,
		"code":      e.Code,
		"message":   e.Message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"requestId": requestID,
	}
	for k, v := range e.Extra {
		if _, reserved := body[k]; !reserved {
			body[k] = v
		}
	}
	return body
}

// WriteError aborts the request with e in the common JSON envelope.
func WriteError(c *gin.Context, e *Error) {
	setCORSHeaders(c.Writer.Header())
	setSecurityHeaders(c.Writer.Header())
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(e.Status, envelope(e, middleware.GetRequestID(c)))
}

// RateLimited is the rejection handler for the rate limiting middleware.
func RateLimited(c *gin.Context) {
	WriteError(c, errRateLimited())
}

// CallerRejected writes the CALLER_NOT_AUTHORIZED envelope for the JSON APIs
// that share the Referer/Origin gate.
func CallerRejected(c *gin.Context) {
	WriteError(c, errCallerNotAuthorized())
}

// Internal wraps err as an INTERNAL_ERROR for handlers outside the mediator.
func Internal(err error) *Error {
	return errInternal(err)
}
