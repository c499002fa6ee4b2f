/*
Package resilience provides circuit breakers for outbound calls.

# Overview

A Breaker stops calling an upstream that keeps failing and lets a limited
number of trial calls through once its open timeout has passed. A Group
keeps one breaker per key so a single broken origin does not affect the
others.

# Usage

	breakers := resilience.NewGroup(resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsFailure: func(err error) bool {
			return errors.Is(err, upstream.ErrNetwork)
		},
	})

	err := breakers.Execute(host, func() error {
		return fetch(ctx, target)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
