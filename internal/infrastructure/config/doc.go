// Package config provides 12-factor configuration management for the webgate proxy.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, public host, shutdown)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Policy: Allow-list, authorized front-end hosts, direct CDN hosts
//   - Token: Access token lifetime, request cap and sweep interval
//   - Upstream: Outbound timeout, size cap, redirects and user agent
//
// The allow-list can also be supplied as a YAML, TOML or JSON policy file:
//
//	categories:
//	  - name: docs
//	    domains: [example.com, "*.example.org"]
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	cats, err := cfg.Policy.Categories()
//
// Environment Variables:
//   - PORT, HOST, PUBLIC_HOST, SHUTDOWN_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - ALLOWED_DOMAINS, POLICY_FILE, AUTHORIZED_HOSTS, DIRECT_HOSTS
//   - TOKEN_REQUIRED, TOKEN_TTL, TOKEN_MAX_REQUESTS, TOKEN_SWEEP_INTERVAL
//   - UPSTREAM_TIMEOUT, UPSTREAM_MAX_RESPONSE_SIZE, UPSTREAM_MAX_REDIRECTS,
//     UPSTREAM_USER_AGENT, UPSTREAM_RETRY_ATTEMPTS, UPSTREAM_RETRY_DELAY,
//     COMPRESSION_THRESHOLD
package config
