package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/toolquery/cache"
	"github.com/jonwraymond/toolquery/observe"
	"github.com/jonwraymond/toolquery/resilience"
	"github.com/jonwraymond/toolquery/tool"
)

// DefaultConcurrency bounds ExecuteMany when Config.Concurrency is unset.
const DefaultConcurrency = 4

// ErrNilCache is returned by New when no cache is configured.
var ErrNilCache = errors.New("executor: cache is nil")

// Config configures an Executor.
type Config struct {
	// Cache stores successful payloads. Required.
	Cache cache.Cache

	// Defaults is the policy applied before per-call options.
	// Zero value: DefaultOptions().
	Defaults *Options

	// Breaker opens a per-tool circuit after consecutive failed calls.
	// MaxFailures == 0 disables it.
	Breaker resilience.CircuitBreakerConfig

	// RateLimits paces attempts per tool name.
	RateLimits map[string]resilience.RateLimiterConfig

	// Concurrency bounds ExecuteMany fan-out. Default: 4.
	Concurrency int

	// Middleware instruments each execution. Nil records nothing.
	Middleware *observe.Middleware

	// Clock overrides time.Now for bucket keys and elapsed time.
	Clock func() time.Time

	// Sleep overrides the backoff wait, mainly for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Result is the outcome of one execution.
type Result struct {
	Tool       string          `json:"tool"`
	Key        string          `json:"key,omitempty"`
	Success    bool            `json:"success"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Kind       tool.ErrorKind  `json:"-"`
	Err        error           `json:"-"`
	RetryCount int             `json:"retryCount"`
	Elapsed    time.Duration   `json:"elapsed"`
	CacheHit   bool            `json:"cacheHit"`
	Shared     bool            `json:"shared"`
}

// Executor runs adapters behind the cache, coalescing concurrent misses on
// the same key into one fetch.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: the caller's deadline bounds every attempt and backoff wait.
//   - Caching: only successful, well-formed payloads are stored.
type Executor struct {
	cache    cache.Cache
	defaults Options
	mw       *observe.Middleware
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	limit    int

	breakerCfg resilience.CircuitBreakerConfig
	rateLimits map[string]resilience.RateLimiterConfig

	group singleflight.Group

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
	limiters map[string]*resilience.RateLimiter
}

// New creates an Executor.
func New(cfg Config) (*Executor, error) {
	if cfg.Cache == nil {
		return nil, ErrNilCache
	}
	defaults := DefaultOptions()
	if cfg.Defaults != nil {
		defaults = *cfg.Defaults
	}
	if cfg.Middleware == nil {
		cfg.Middleware = observe.NopMiddleware()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Executor{
		cache:      cfg.Cache,
		defaults:   defaults,
		mw:         cfg.Middleware,
		now:        cfg.Clock,
		sleep:      cfg.Sleep,
		limit:      cfg.Concurrency,
		breakerCfg: cfg.Breaker,
		rateLimits: cfg.RateLimits,
		breakers:   make(map[string]*resilience.CircuitBreaker),
		limiters:   make(map[string]*resilience.RateLimiter),
	}, nil
}

// Key returns the cache key a call to a with p would use.
func (e *Executor) Key(a tool.Adapter, p tool.Params) (string, error) {
	desc := a.Descriptor()
	parts := a.KeyParts(p)
	ns := parts.Namespace
	if ns == "" {
		ns = desc.Name
	}
	switch desc.Strategy {
	case cache.StrategyTimeBucket:
		return cache.BucketKey(ns, parts.Identifier, e.now()), nil
	default:
		return cache.ContentKey(ns, parts.Entity, string(p.Category), parts.Input)
	}
}

// Execute serves p from the cache or fetches it through a under the
// retry policy.
func (e *Executor) Execute(ctx context.Context, a tool.Adapter, p tool.Params, opts ...Option) Result {
	start := e.now()
	desc := a.Descriptor()
	o := e.defaults.apply(opts)

	res := Result{Tool: desc.Name}
	meta := observe.ToolMeta{Name: desc.Name, Category: string(p.Category), Strategy: desc.Strategy.String()}

	_, _ = e.mw.Wrap(func(ctx context.Context, meta observe.ToolMeta) (observe.Outcome, error) {
		res = e.execute(ctx, a, desc, p, o)
		res.Tool = desc.Name
		return observe.Outcome{Retries: res.RetryCount, CacheHit: res.CacheHit, Shared: res.Shared}, res.Err
	})(ctx, meta)

	res.Elapsed = e.now().Sub(start)
	return res
}

func (e *Executor) execute(ctx context.Context, a tool.Adapter, desc tool.Descriptor, p tool.Params, o Options) Result {
	key, err := e.Key(a, p)
	if err == nil {
		err = cache.ValidateKey(key)
	}
	if err != nil {
		return failure(Result{}, tool.NewError(desc.Name, tool.KindBadRequest, err))
	}
	res := Result{Key: key}

	if o.SkipCache {
		f, err := e.fetch(ctx, a, desc, p, key, o)
		res.RetryCount = f.retries
		if err != nil {
			return failure(res, err)
		}
		res.Success, res.Payload = true, f.payload
		return res
	}

	if v, ok := e.cache.Get(ctx, key); ok {
		res.Success, res.Payload, res.CacheHit = true, v, true
		return res
	}

	var leader bool
	ch := e.group.DoChan(key, func() (any, error) {
		leader = true
		fctx, cancel := detach(ctx, o)
		defer cancel()
		return e.fetch(fctx, a, desc, p, key, o)
	})

	select {
	case <-ctx.Done():
		return failure(res, ctx.Err())
	case r := <-ch:
		f, _ := r.Val.(fetched)
		res.RetryCount = f.retries
		res.Shared = !leader
		if r.Err != nil {
			return failure(res, r.Err)
		}
		res.Success = true
		res.Payload = append(json.RawMessage(nil), f.payload...)
		return res
	}
}

// detach returns a context for a shared fetch. It keeps ctx's values but
// not its cancellation, so one waiter leaving does not fail the others, and
// is bounded by the policy's worst-case duration instead.
func detach(ctx context.Context, o Options) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if b := o.budget(); b > 0 {
		return context.WithTimeout(base, b)
	}
	return context.WithCancel(base)
}

type fetched struct {
	payload json.RawMessage
	retries int
}

func (e *Executor) fetch(ctx context.Context, a tool.Adapter, desc tool.Descriptor, p tool.Params, key string, o Options) (fetched, error) {
	var (
		mu      sync.Mutex
		payload json.RawMessage
	)
	retries, err := e.policy(ctx, desc.Name, o).Execute(ctx, func(ctx context.Context) error {
		raw, err := a.Fetch(ctx, p)
		if err != nil {
			return err
		}
		if !json.Valid(raw) {
			return tool.NewError(desc.Name, tool.KindMalformed, errors.New("payload is not valid JSON"))
		}
		mu.Lock()
		payload = raw
		mu.Unlock()
		return nil
	})
	if err != nil {
		return fetched{retries: retries}, err
	}

	mu.Lock()
	out := fetched{payload: payload, retries: retries}
	mu.Unlock()

	if !o.SkipCache {
		if err := e.cache.Set(ctx, key, out.payload, desc.TTL); err != nil {
			e.mw.Logger().WithTool(observe.ToolMeta{Name: desc.Name}).Warn(ctx, "cache write failed",
				observe.Field{Key: "cache.key", Value: key},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
	}
	return out, nil
}

func (e *Executor) policy(ctx context.Context, name string, o Options) *resilience.Policy {
	rc := o.retryConfig()
	rc.RetryIf = func(err error) bool {
		return !errors.Is(err, resilience.ErrPanic) && tool.IsRetriable(err)
	}
	rc.Sleep = e.sleep
	rc.OnRetry = func(retry int, err error, delay time.Duration) {
		e.mw.Logger().WithTool(observe.ToolMeta{Name: name}).Warn(ctx, "retrying tool execution",
			observe.Field{Key: "retry", Value: retry},
			observe.Field{Key: "delay_ms", Value: delay.Milliseconds()},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}

	opts := []resilience.PolicyOption{
		resilience.WithRetry(resilience.NewRetry(rc)),
		resilience.WithTimeout(o.Timeout),
	}
	if cb := e.breaker(name); cb != nil {
		opts = append(opts, resilience.WithCircuitBreaker(cb))
	}
	if rl := e.limiter(name); rl != nil {
		opts = append(opts, resilience.WithRateLimiter(rl))
	}
	return resilience.NewPolicy(opts...)
}

func (e *Executor) breaker(name string) *resilience.CircuitBreaker {
	if e.breakerCfg.MaxFailures <= 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cb, ok := e.breakers[name]
	if !ok {
		cfg := e.breakerCfg
		if cfg.IsFailure == nil {
			cfg.IsFailure = countsAgainstUpstream
		}
		cb = resilience.NewCircuitBreaker(cfg)
		e.breakers[name] = cb
	}
	return cb
}

func (e *Executor) limiter(name string) *resilience.RateLimiter {
	cfg, ok := e.rateLimits[name]
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	rl, ok := e.limiters[name]
	if !ok {
		rl = resilience.NewRateLimiter(cfg)
		e.limiters[name] = rl
	}
	return rl
}

// BreakerState reports the circuit state for a tool. Tools without a
// breaker are always closed.
func (e *Executor) BreakerState(name string) resilience.State {
	e.mu.Lock()
	cb := e.breakers[name]
	e.mu.Unlock()
	if cb == nil {
		return resilience.StateClosed
	}
	return cb.State()
}

// Call is one entry of an ExecuteMany batch.
type Call struct {
	Adapter tool.Adapter
	Params  tool.Params
	Options []Option
}

// ExecuteMany runs calls with bounded concurrency. Results are in input order.
func (e *Executor) ExecuteMany(ctx context.Context, calls []Call) []Result {
	results := make([]Result, len(calls))
	var g errgroup.Group
	g.SetLimit(e.limit)
	for i, c := range calls {
		g.Go(func() error {
			results[i] = e.Execute(ctx, c.Adapter, c.Params, c.Options...)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// HealthCheck calls a with a minimal uncached request under the default
// timeout and no retries.
func (e *Executor) HealthCheck(ctx context.Context, a tool.Adapter) error {
	desc := a.Descriptor()
	p := tool.Params{Category: tool.CategoryGeneral, Limit: tool.MinLimit}
	if len(desc.Capabilities) > 0 {
		p.Category = desc.Capabilities[0]
	}
	err := resilience.NewTimeout(e.defaults.Timeout).Execute(ctx, func(ctx context.Context) error {
		_, err := a.Fetch(ctx, p)
		return err
	})
	if err != nil {
		return fmt.Errorf("health check %s: %w", desc.Name, err)
	}
	return nil
}

func failure(res Result, err error) Result {
	res.Success = false
	res.Payload = nil
	res.Err = err
	res.Kind = Classify(err)
	return res
}

// Classify maps an execution error onto an adapter error kind.
func Classify(err error) tool.ErrorKind {
	var te *tool.Error
	switch {
	case err == nil:
		return tool.KindUnknown
	case errors.As(err, &te):
		return te.Kind
	case errors.Is(err, resilience.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return tool.KindTimeout
	case errors.Is(err, resilience.ErrCircuitOpen):
		return tool.KindUnavailable
	case errors.Is(err, resilience.ErrRateLimitExceeded):
		return tool.KindRateLimited
	default:
		return tool.KindOf(err)
	}
}

func countsAgainstUpstream(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, resilience.ErrPanic) {
		return false
	}
	return Classify(err).Retriable()
}
