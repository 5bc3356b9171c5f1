package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate reports every invalid setting, joined into one error wrapping
// ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if _, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
		bad("server.listen %q: %v", c.Server.Listen, err)
	}

	if c.Auth.Enabled {
		if len(c.Auth.APIKeys) == 0 && c.Auth.JWT.Secret == "" {
			bad("auth is enabled without api_keys or jwt.secret")
		}
		seen := make(map[string]bool, len(c.Auth.APIKeys))
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" || k.Principal == "" {
				bad("auth.api_keys[%d] needs key and principal", i)
			}
			if k.ID != "" && seen[k.ID] {
				bad("auth.api_keys[%d] duplicate id %q", i, k.ID)
			}
			seen[k.ID] = true
		}
	}

	if c.Cache.Capacity <= 0 {
		bad("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Cache.DefaultTTL <= 0 {
		bad("cache.default_ttl must be positive")
	}
	if c.Cache.MaxTTL > 0 && c.Cache.MaxTTL < c.Cache.DefaultTTL {
		bad("cache.max_ttl %s below default_ttl %s", c.Cache.MaxTTL, c.Cache.DefaultTTL)
	}

	if c.Executor.Timeout <= 0 {
		bad("executor.timeout must be positive")
	}
	if c.Executor.MaxRetries < 0 {
		bad("executor.max_retries must not be negative")
	}
	if c.Executor.Breaker.MaxFailures < 0 {
		bad("executor.breaker.max_failures must not be negative")
	}
	for name, rl := range c.Executor.RateLimits {
		if rl.Rate <= 0 {
			bad("executor.rate_limits.%s.rate must be positive", name)
		}
	}

	p := c.Parser
	if p.FuzzyThreshold <= 0 || p.FuzzyThreshold > 1 {
		bad("parser.fuzzy_threshold must be in (0, 1], got %v", p.FuzzyThreshold)
	}
	if p.MinLimit < 1 || p.MinLimit > p.DefaultLimit || p.DefaultLimit > p.MaxLimit {
		bad("parser limits must satisfy 1 <= min <= default <= max, got %d, %d, %d", p.MinLimit, p.DefaultLimit, p.MaxLimit)
	}
	if p.MaxOffset < 0 {
		bad("parser.max_offset must not be negative")
	}
	if p.Watch && p.Vocabulary == "" {
		bad("parser.watch needs parser.vocabulary")
	}

	if t := c.Router.ConfidenceThreshold; t <= 0 || t > 1 {
		bad("router.confidence_threshold must be in (0, 1], got %v", t)
	}

	oc := c.Observe.Observe("")
	if err := oc.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: observe: %w", ErrInvalid, err))
	}

	if pm := c.Adapters.Polymarket; pm.Enabled && pm.PageSize <= 0 {
		bad("adapters.polymarket.page_size must be positive")
	}
	if c.Adapters.Combined.TTL < 0 {
		bad("adapters.combined.ttl must not be negative")
	}

	return errors.Join(errs...)
}
