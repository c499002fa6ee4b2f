// Package middleware provides the HTTP middleware stack of the proxy.
//
// Middleware stack includes:
//   - RequestID: req_<ulid> correlation ids echoed in X-Request-ID
//   - RequestLogger: one structured zap line per request
//   - CORS: Cross-origin access to the token and domain APIs
//   - RateLimit: Per-IP token bucket rate limiting
//
// Rate Limiting:
//   - Per-IP tracking with idle bucket cleanup
//   - Token bucket algorithm
//   - Configurable RPS, burst and rejection response
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.RequestLogger(log))
//	api := router.Group("/api", middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
