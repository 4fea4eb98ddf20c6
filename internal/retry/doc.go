// Package retry provides the bounded retry-with-backoff-and-jitter helper
// and the failure-window circuit breaker used around external pipeline
// calls.
package retry
