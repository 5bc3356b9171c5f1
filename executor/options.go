package executor

import (
	"time"

	"github.com/jonwraymond/toolquery/resilience"
)

// Default execution policy.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
	DefaultMaxDelay   = 30 * time.Second
)

// Options is the per-call execution policy.
type Options struct {
	// Timeout bounds each adapter attempt.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// RetryDelay is the wait before the first retry; later retries double it.
	RetryDelay time.Duration

	// MaxDelay caps the wait between retries.
	MaxDelay time.Duration

	// SkipCache bypasses both the cache lookup and the cache write.
	SkipCache bool
}

// DefaultOptions returns the policy used when a call sets no options.
func DefaultOptions() Options {
	return Options{
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		MaxDelay:   DefaultMaxDelay,
	}
}

// Option adjusts the policy of a single call.
type Option func(*Options)

// WithTimeout sets the per-attempt deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithMaxRetries sets the retry budget. Zero disables retries.
func WithMaxRetries(n int) Option {
	return func(o *Options) { o.MaxRetries = n }
}

// WithRetryDelay sets the initial backoff and its cap.
func WithRetryDelay(initial, maxDelay time.Duration) Option {
	return func(o *Options) {
		o.RetryDelay = initial
		o.MaxDelay = maxDelay
	}
}

// WithoutCache forces a fresh fetch and leaves the cache untouched.
func WithoutCache() Option {
	return func(o *Options) { o.SkipCache = true }
}

func (o Options) apply(opts []Option) Options {
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return o
}

func (o Options) retryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxRetries:   o.MaxRetries,
		InitialDelay: o.RetryDelay,
		MaxDelay:     o.MaxDelay,
		Multiplier:   2,
		Strategy:     resilience.BackoffExponential,
	}
}

// budget is the longest a full retry sequence may run: every attempt at its
// timeout plus every wait at its cap. Zero means unbounded.
func (o Options) budget() time.Duration {
	if o.Timeout <= 0 {
		return 0
	}
	return time.Duration(o.MaxRetries+1)*o.Timeout + time.Duration(o.MaxRetries)*o.MaxDelay
}
