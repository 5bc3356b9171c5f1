package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned while an upstream's breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrMaxRetriesExceeded wraps the last failure once the retry budget is spent.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrRateLimitExceeded is returned when no token became available in time.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrTimeout is returned when an attempt outlives its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrPanic wraps a panic recovered from an operation.
	ErrPanic = errors.New("resilience: operation panicked")
)
