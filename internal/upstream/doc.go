// Package upstream fetches proxied targets.
//
// The client is resty on the pooled cleanhttp transport, with retries off.
// Every redirect hop is vetted by a caller-supplied check, bodies are
// decoded (gzip, deflate, br, zstd) and capped at the configured size, and
// each upstream host sits behind its own circuit breaker so a dead origin
// fails fast instead of tying up request goroutines.
package upstream
