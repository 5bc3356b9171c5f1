// Package config loads toolquery configuration from YAML.
//
// Values are read over Default, so a file only needs the settings it
// changes. ${VAR} references are expanded before parsing and fail when the
// variable is unset. Credential fields may hold secret references such as
// "secretref:env:LUNARCRUSH_API_KEY", resolved by ResolveSecrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/toolquery/adapters/combined"
	"github.com/jonwraymond/toolquery/adapters/lunarcrush"
	"github.com/jonwraymond/toolquery/adapters/polymarket"
	"github.com/jonwraymond/toolquery/cache"
	"github.com/jonwraymond/toolquery/executor"
	"github.com/jonwraymond/toolquery/parser"
	"github.com/jonwraymond/toolquery/router"
	"github.com/jonwraymond/toolquery/secret"
	"github.com/jonwraymond/toolquery/tool"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config holds all toolquery configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Cache    CacheConfig    `yaml:"cache"`
	Executor ExecutorConfig `yaml:"executor"`
	Parser   ParserConfig   `yaml:"parser"`
	Router   RouterConfig   `yaml:"router"`
	Observe  ObserveConfig  `yaml:"observe"`
	Adapters AdaptersConfig `yaml:"adapters"`
	Secrets  SecretsConfig  `yaml:"secrets"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig controls HTTP authentication. Disabled means every caller is
// anonymous and admin routes are open.
type AuthConfig struct {
	Enabled        bool           `yaml:"enabled"`
	AllowAnonymous bool           `yaml:"allow_anonymous"`
	AdminRole      string         `yaml:"admin_role"`
	APIKeyHeader   string         `yaml:"api_key_header"`
	APIKeys        []APIKeyConfig `yaml:"api_keys"`
	JWT            JWTConfig      `yaml:"jwt"`
}

// APIKeyConfig registers one raw API key.
type APIKeyConfig struct {
	ID        string   `yaml:"id"`
	Key       string   `yaml:"key"`
	Principal string   `yaml:"principal"`
	Roles     []string `yaml:"roles"`
}

// JWTConfig enables bearer tokens when Secret is set.
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	RolesClaim string        `yaml:"roles_claim"`
	Leeway     time.Duration `yaml:"leeway"`
}

// CacheConfig sizes the response cache.
type CacheConfig struct {
	Capacity      int           `yaml:"capacity"`
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	MaxTTL        time.Duration `yaml:"max_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// ExecutorConfig is the default execution policy.
type ExecutorConfig struct {
	Timeout     time.Duration              `yaml:"timeout"`
	MaxRetries  int                        `yaml:"max_retries"`
	RetryDelay  time.Duration              `yaml:"retry_delay"`
	MaxDelay    time.Duration              `yaml:"max_delay"`
	Concurrency int                        `yaml:"concurrency"`
	Breaker     BreakerConfig              `yaml:"breaker"`
	RateLimits  map[string]RateLimitConfig `yaml:"rate_limits"`
}

// BreakerConfig opens a per-tool circuit. MaxFailures 0 disables it.
type BreakerConfig struct {
	MaxFailures int           `yaml:"max_failures"`
	Cooldown    time.Duration `yaml:"cooldown"`
}

// RateLimitConfig paces calls to one tool.
type RateLimitConfig struct {
	Rate    float64       `yaml:"rate"`
	Burst   int           `yaml:"burst"`
	MaxWait time.Duration `yaml:"max_wait"`
}

// ParserConfig controls query parsing. Vocabulary is an optional YAML file
// replacing the built-in keyword map; Watch reloads it on change.
type ParserConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
	DefaultLimit   int     `yaml:"default_limit"`
	MinLimit       int     `yaml:"min_limit"`
	MaxLimit       int     `yaml:"max_limit"`
	MaxOffset      int     `yaml:"max_offset"`
	Vocabulary     string  `yaml:"vocabulary"`
	Watch          bool    `yaml:"watch"`
}

type RouterConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// ObserveConfig configures telemetry.
type ObserveConfig struct {
	ServiceName string        `yaml:"service_name"`
	Tracing     TracingConfig `yaml:"tracing"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Logging     LoggingConfig `yaml:"logging"`
}

type TracingConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Exporter  string  `yaml:"exporter"`
	SamplePct float64 `yaml:"sample_pct"`
}

type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
}

// AdaptersConfig enables and tunes the built-in provider adapters.
type AdaptersConfig struct {
	Polymarket PolymarketConfig `yaml:"polymarket"`
	LunarCrush LunarCrushConfig `yaml:"lunarcrush"`
	Combined   CombinedConfig   `yaml:"combined"`
}

type PolymarketConfig struct {
	Enabled  bool          `yaml:"enabled"`
	BaseURL  string        `yaml:"base_url"`
	PageSize int           `yaml:"page_size"`
	TTL      time.Duration `yaml:"ttl"`
}

// LunarCrushConfig serves a demo dataset when APIKey is empty.
type LunarCrushConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	TTL     time.Duration `yaml:"ttl"`
}

// CombinedConfig enables combined_reasoning. It is registered only when
// both provider adapters are enabled too.
type CombinedConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// SecretsConfig names the secret providers used for secretref values and
// their settings, e.g. {file: {dir: /run/secrets}}.
type SecretsConfig struct {
	Providers []string                  `yaml:"providers"`
	Config    map[string]map[string]any `yaml:"config"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	policy := cache.DefaultPolicy()
	return &Config{
		Server: ServerConfig{
			Listen:          ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Auth: AuthConfig{
			AdminRole: "admin",
		},
		Cache: CacheConfig{
			Capacity:      cache.DefaultCapacity,
			DefaultTTL:    policy.DefaultTTL,
			MaxTTL:        policy.MaxTTL,
			SweepInterval: time.Minute,
		},
		Executor: ExecutorConfig{
			Timeout:     executor.DefaultTimeout,
			MaxRetries:  executor.DefaultMaxRetries,
			RetryDelay:  executor.DefaultRetryDelay,
			MaxDelay:    executor.DefaultMaxDelay,
			Concurrency: executor.DefaultConcurrency,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				Cooldown:    30 * time.Second,
			},
		},
		Parser: ParserConfig{
			FuzzyThreshold: parser.DefaultFuzzyThreshold,
			DefaultLimit:   tool.DefaultLimit,
			MinLimit:       tool.MinLimit,
			MaxLimit:       tool.MaxLimit,
			MaxOffset:      parser.DefaultMaxOffset,
		},
		Router: RouterConfig{
			ConfidenceThreshold: router.DefaultConfidenceThreshold,
		},
		Observe: ObserveConfig{
			ServiceName: "toolquery",
			Tracing:     TracingConfig{Exporter: "none", SamplePct: 1},
			Metrics:     MetricsConfig{Enabled: true, Exporter: "prometheus"},
			Logging:     LoggingConfig{Enabled: true, Level: "info"},
		},
		Adapters: AdaptersConfig{
			Polymarket: PolymarketConfig{
				Enabled:  true,
				BaseURL:  polymarket.DefaultBaseURL,
				PageSize: polymarket.DefaultPageSize,
				TTL:      polymarket.DefaultTTL,
			},
			LunarCrush: LunarCrushConfig{
				Enabled: true,
				BaseURL: lunarcrush.DefaultBaseURL,
				TTL:     lunarcrush.DefaultTTL,
			},
			Combined: CombinedConfig{
				Enabled: true,
				TTL:     combined.DefaultTTL,
			},
		},
		Secrets: SecretsConfig{
			Providers: []string{"env"},
		},
	}
}

// Load reads a YAML config file, overlaying it on Default. An empty path
// returns Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references in data and decodes it over Default.
func Parse(data []byte) (*Config, error) {
	expanded, err := secret.ExpandEnvStrict(string(data))
	if err != nil {
		return nil, fmt.Errorf("expand config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
