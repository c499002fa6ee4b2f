/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the proxy,
tracking HTTP requests, mediated proxy outcomes, outbound fetch latency,
rewrite fallbacks and the access token ledger.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	// Record every route except the scrape endpoint
	router.Use(monitoring.Middleware(metrics, "/metrics"))

	// Time an outbound fetch
	timer := monitoring.NewTimer(metrics)
	// ... perform fetch ...
	timer.Stop("success")

Route labels use the gin route template, so /api/proxy?url=... is one
series regardless of target. Unmatched paths share the "unmatched" label.

# Metrics Endpoint

	router.GET("/metrics", monitoring.Handler(reg))
*/
package monitoring
