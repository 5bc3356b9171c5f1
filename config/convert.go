package config

import (
	"github.com/jonwraymond/toolquery/adapters/combined"
	"github.com/jonwraymond/toolquery/adapters/lunarcrush"
	"github.com/jonwraymond/toolquery/adapters/polymarket"
	"github.com/jonwraymond/toolquery/auth"
	"github.com/jonwraymond/toolquery/cache"
	"github.com/jonwraymond/toolquery/executor"
	"github.com/jonwraymond/toolquery/observe"
	"github.com/jonwraymond/toolquery/parser"
	"github.com/jonwraymond/toolquery/resilience"
	"github.com/jonwraymond/toolquery/router"
)

func (c CacheConfig) Manager() cache.Config {
	return cache.Config{
		Capacity:      c.Capacity,
		Policy:        cache.Policy{DefaultTTL: c.DefaultTTL, MaxTTL: c.MaxTTL},
		SweepInterval: c.SweepInterval,
	}
}

// Options returns the default per-call policy.
func (c ExecutorConfig) Options() executor.Options {
	return executor.Options{
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
		RetryDelay: c.RetryDelay,
		MaxDelay:   c.MaxDelay,
	}
}

// Executor returns an executor config without its cache and middleware,
// which the caller supplies.
func (c ExecutorConfig) Executor() executor.Config {
	opts := c.Options()
	cfg := executor.Config{
		Defaults:    &opts,
		Concurrency: c.Concurrency,
		Breaker: resilience.CircuitBreakerConfig{
			MaxFailures: c.Breaker.MaxFailures,
			Cooldown:    c.Breaker.Cooldown,
		},
	}
	if len(c.RateLimits) > 0 {
		cfg.RateLimits = make(map[string]resilience.RateLimiterConfig, len(c.RateLimits))
		for name, rl := range c.RateLimits {
			cfg.RateLimits[name] = resilience.RateLimiterConfig{Rate: rl.Rate, Burst: rl.Burst, MaxWait: rl.MaxWait}
		}
	}
	return cfg
}

func (c ParserConfig) Parser(logger observe.Logger) parser.Config {
	return parser.Config{
		FuzzyThreshold: c.FuzzyThreshold,
		DefaultLimit:   c.DefaultLimit,
		MinLimit:       c.MinLimit,
		MaxLimit:       c.MaxLimit,
		MaxOffset:      c.MaxOffset,
		Logger:         logger,
	}
}

func (c RouterConfig) Router() router.Config {
	return router.Config{ConfidenceThreshold: c.ConfidenceThreshold}
}

// Observe returns the observer config for a build version.
func (c ObserveConfig) Observe(version string) observe.Config {
	return observe.Config{
		ServiceName: c.ServiceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Tracing.Enabled,
			Exporter:  c.Tracing.Exporter,
			SamplePct: c.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Metrics.Enabled,
			Exporter: c.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: c.Logging.Enabled,
			Level:   c.Logging.Level,
		},
	}
}

func (c PolymarketConfig) Adapter() polymarket.Config {
	return polymarket.Config{BaseURL: c.BaseURL, PageSize: c.PageSize, TTL: c.TTL}
}

func (c LunarCrushConfig) Adapter() lunarcrush.Config {
	return lunarcrush.Config{BaseURL: c.BaseURL, APIKey: c.APIKey, TTL: c.TTL}
}

// Adapter returns the combined adapter config. Sources and runner are set
// by the caller.
func (c CombinedConfig) Adapter() combined.Config {
	return combined.Config{TTL: c.TTL}
}

// Authenticator builds the configured authenticator chain. It returns nil
// when auth is disabled.
func (c AuthConfig) Authenticator() (auth.Authenticator, error) {
	if !c.Enabled {
		return nil, nil
	}
	var chain []auth.Authenticator
	if len(c.APIKeys) > 0 {
		store := auth.NewMemoryKeyStore()
		for _, k := range c.APIKeys {
			store.Add(auth.APIKey{
				ID:        k.ID,
				Hash:      auth.HashKey(k.Key),
				Principal: k.Principal,
				Roles:     k.Roles,
			})
		}
		chain = append(chain, auth.NewAPIKeyAuthenticator(c.APIKeyHeader, store))
	}
	if c.JWT.Secret != "" {
		j, err := auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret:     []byte(c.JWT.Secret),
			Issuer:     c.JWT.Issuer,
			Audience:   c.JWT.Audience,
			RolesClaim: c.JWT.RolesClaim,
			Leeway:     c.JWT.Leeway,
		})
		if err != nil {
			return nil, err
		}
		chain = append(chain, j)
	}
	return auth.Chain(chain...), nil
}
