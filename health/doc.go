// Package health reports whether the query service can answer queries.
//
// A Checker reports one component as healthy, degraded or unhealthy. The
// Aggregator runs checkers concurrently under a shared deadline, and the
// HTTP handlers expose them as liveness (/healthz), readiness (/readyz)
// and detailed (/health) endpoints.
//
// Built-in checkers cover the response cache (fill ratio), the tool
// registry (at least one tool) and each provider adapter (a live check
// plus its circuit breaker state).
package health
