// Package main is the entry point for the webgate proxy server.
//
// webgate fetches allow-listed pages on behalf of an authorized front end
// and rewrites them so every link, asset and script request keeps flowing
// through the proxy.
//
//	Browser → front end → /api/token → /api/proxy?url=... → target site
//
// Configuration:
//   - Environment variables (12-factor, see internal/infrastructure/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -policy /etc/webgate/policy.yaml
//
//	# Development mode (colored logs)
//	./server -dev -log-level debug
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
