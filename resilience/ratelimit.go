package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures an upstream token bucket.
type RateLimiterConfig struct {
	// Rate is the sustained number of calls allowed per second.
	Rate float64

	// Burst is the bucket size. Default: 1
	Burst int

	// MaxWait bounds how long a caller queues for a token before
	// ErrRateLimitExceeded. Default: 5s
	MaxWait time.Duration
}

// RateLimiter is a token bucket that paces calls to one upstream.
type RateLimiter struct {
	config RateLimiterConfig

	mu     sync.Mutex
	tokens float64
	last   time.Time
	now    func() time.Time
}

// NewRateLimiter creates a rate limiter. A non-positive Rate returns nil,
// which every method treats as unlimited.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		return nil
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.MaxWait <= 0 {
		config.MaxWait = 5 * time.Second
	}
	return &RateLimiter{
		config: config,
		tokens: float64(config.Burst),
		last:   time.Now(),
		now:    time.Now,
	}
}

// Allow takes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	if rl == nil {
		return true
	}
	_, ok := rl.reserve()
	return ok
}

// Wait blocks until a token is available, the context ends, or MaxWait would
// be exceeded.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	wait, ok := rl.reserve()
	if ok {
		return nil
	}
	if wait > rl.config.MaxWait {
		return ErrRateLimitExceeded
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	if _, ok := rl.reserve(); ok {
		return nil
	}
	return ErrRateLimitExceeded
}

// Tokens returns the currently available tokens.
func (rl *RateLimiter) Tokens() float64 {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()
	return rl.tokens
}

// reserve takes a token, or reports how long until one is available.
func (rl *RateLimiter) reserve() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()
	if rl.tokens >= 1 {
		rl.tokens--
		return 0, true
	}
	missing := 1 - rl.tokens
	return time.Duration(missing / rl.config.Rate * float64(time.Second)), false
}

func (rl *RateLimiter) refillLocked() {
	now := rl.now()
	elapsed := now.Sub(rl.last)
	rl.last = now
	if elapsed <= 0 {
		return
	}
	rl.tokens += elapsed.Seconds() * rl.config.Rate
	if burst := float64(rl.config.Burst); rl.tokens > burst {
		rl.tokens = burst
	}
}
