package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy defines how delays grow between retries.
type BackoffStrategy int

const (
	// BackoffExponential waits InitialDelay * Multiplier^retry.
	BackoffExponential BackoffStrategy = iota
	// BackoffConstant waits InitialDelay before every retry.
	BackoffConstant
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// Zero disables retries; negative values use the default of 3.
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	// Default: 1s
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the exponential growth factor.
	// Default: 2.0
	Multiplier float64

	// Strategy is the backoff strategy.
	Strategy BackoffStrategy

	// Jitter adds up to 25% random delay.
	Jitter bool

	// RetryIf reports whether err is worth another attempt.
	// Default: every non-nil error is retried.
	RetryIf func(err error) bool

	// OnRetry is called before sleeping ahead of each retry.
	OnRetry func(retry int, err error, delay time.Duration)

	// Sleep overrides the wait between attempts, mainly for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Retry runs operations with bounded retries and backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a retry handler, applying defaults.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return err != nil }
	}
	if config.Sleep == nil {
		config.Sleep = sleepContext
	}
	return &Retry{config: config}
}

// Execute runs op until it succeeds, fails with an error RetryIf rejects, or
// the retry budget is spent. It returns the number of retries performed.
// On exhaustion the error wraps both ErrMaxRetriesExceeded and the last failure.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) (int, error) {
	retries := 0
	for {
		err := op(ctx)
		if err == nil {
			return retries, nil
		}
		if !r.config.RetryIf(err) {
			return retries, err
		}
		if retries >= r.config.MaxRetries {
			if r.config.MaxRetries == 0 {
				return retries, err
			}
			return retries, fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
		}

		delay := r.Delay(retries)
		if r.config.OnRetry != nil {
			r.config.OnRetry(retries+1, err, delay)
		}
		if serr := r.config.Sleep(ctx, delay); serr != nil {
			return retries, serr
		}
		retries++
	}
}

// Delay returns the wait before retry number retry+1 (retry is zero-based).
func (r *Retry) Delay(retry int) time.Duration {
	delay := r.config.InitialDelay
	if r.config.Strategy == BackoffExponential {
		scaled := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(retry))
		if scaled >= float64(r.config.MaxDelay) {
			delay = r.config.MaxDelay
		} else {
			delay = time.Duration(scaled)
		}
	}
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	if r.config.Jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}
	return delay
}

// Config returns the effective retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
