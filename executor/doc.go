// Package executor runs tool adapters behind the response cache.
//
// A call computes the tool's cache key (content hash or hourly bucket),
// serves a hit without touching the adapter, and otherwise fetches under
// a resilience.Policy: per-attempt timeout, exponential backoff on
// retriable failures, and an optional per-tool circuit breaker and rate
// limiter. Concurrent misses on one key share a single fetch. Failures are
// never written to the cache.
package executor
