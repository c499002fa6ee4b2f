// Package server assembles the webgate HTTP service.
//
// This package wires every component together:
//   - Domain policy, caller gate, token ledger and rewriter from configuration
//   - Upstream client with per-host circuit breakers
//   - Middleware stack (request id, request log, recovery, metrics)
//   - Rate limiting on /api/*, CORS on the token and domain APIs
//   - Background token sweep
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Build the logger
//  3. NewServer wires components and routes
//  4. Start launches the token sweep
//  5. Run serves HTTP until Shutdown
//  6. Shutdown drains requests and stops the sweep
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg, server.WithLogger(logger))
//	srv.Start(ctx)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
