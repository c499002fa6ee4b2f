// Package http provides the JSON endpoints around the proxy.
//
// Endpoints:
//   - Root: / (service banner)
//   - Health: /health (counters, live tokens, upstream breaker states)
//   - Token: /api/token (issues an access token to an authorized front end)
//   - Domains: /api/domains (allow-list categories, never the patterns)
//
// The token and domain endpoints sit behind the same Referer/Origin gate as
// /api/proxy.
//
// Example Usage:
//
//	h := http.NewHandlers(http.Deps{Policy: pol, Gate: gate, Ledger: ledger}, http.Config{})
//	router.GET("/health", h.Health)
//	router.GET("/api/token", h.Token)
package http
