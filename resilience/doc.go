// Package resilience provides the failure handling applied to provider calls.
//
// # Patterns
//
//   - Retry: bounded retries with exponential backoff
//     (InitialDelay * Multiplier^retry, capped at MaxDelay). Errors rejected by
//     RetryIf stop immediately.
//
//   - Timeout: a deadline per attempt; an expired attempt is abandoned and
//     reported as ErrTimeout, which callers treat as retriable.
//
//   - Rate limiter: a token bucket pacing attempts to one upstream.
//
//   - Circuit breaker: stops calling an upstream after consecutive failed
//     calls and tries it again after a cooldown.
//
// # Usage
//
//	policy := resilience.NewPolicy(
//	    resilience.WithTimeout(30*time.Second),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
//	        MaxRetries:   3,
//	        InitialDelay: time.Second,
//	        RetryIf:      tool.IsRetriable,
//	    })),
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	        MaxFailures: 5,
//	    })),
//	)
//
//	retries, err := policy.Execute(ctx, func(ctx context.Context) error {
//	    payload, err = adapter.Fetch(ctx, params)
//	    return err
//	})
package resilience
