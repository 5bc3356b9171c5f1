package resilience

import (
	"context"
	"time"
)

// Policy composes the per-upstream resilience patterns around one logical
// call. Layering, outermost first:
//
//  1. Circuit breaker - one verdict per logical call, after retries
//  2. Retry - re-runs the inner chain on retriable failures
//  3. Rate limiter - paces every attempt
//  4. Timeout - bounds every attempt
type Policy struct {
	breaker *CircuitBreaker
	retry   *Retry
	limiter *RateLimiter
	timeout *Timeout
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// NewPolicy creates a policy. Without options it runs op once, unbounded.
func NewPolicy(opts ...PolicyOption) *Policy {
	p := &Policy{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithRetry adds bounded retries.
func WithRetry(r *Retry) PolicyOption {
	return func(p *Policy) { p.retry = r }
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) PolicyOption {
	return func(p *Policy) { p.timeout = NewTimeout(d) }
}

// WithRateLimiter paces attempts against the upstream.
func WithRateLimiter(rl *RateLimiter) PolicyOption {
	return func(p *Policy) { p.limiter = rl }
}

// WithCircuitBreaker short-circuits calls while the upstream is failing.
func WithCircuitBreaker(cb *CircuitBreaker) PolicyOption {
	return func(p *Policy) { p.breaker = cb }
}

// Breaker returns the configured circuit breaker, or nil.
func (p *Policy) Breaker() *CircuitBreaker {
	return p.breaker
}

// Execute runs op through the configured patterns and returns the number of
// retries spent.
func (p *Policy) Execute(ctx context.Context, op func(context.Context) error) (int, error) {
	attempt := op

	if p.timeout != nil {
		inner := attempt
		attempt = func(ctx context.Context) error {
			return p.timeout.Execute(ctx, inner)
		}
	}

	if p.limiter != nil {
		inner := attempt
		attempt = func(ctx context.Context) error {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
			return inner(ctx)
		}
	}

	var retries int
	call := attempt
	if p.retry != nil {
		call = func(ctx context.Context) error {
			n, err := p.retry.Execute(ctx, attempt)
			retries = n
			return err
		}
	}

	if p.breaker != nil {
		return retries, p.breaker.Execute(ctx, call)
	}
	return retries, call(ctx)
}
