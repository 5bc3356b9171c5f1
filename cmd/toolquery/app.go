package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jonwraymond/toolquery/adapters/combined"
	"github.com/jonwraymond/toolquery/adapters/lunarcrush"
	"github.com/jonwraymond/toolquery/adapters/polymarket"
	"github.com/jonwraymond/toolquery/cache"
	"github.com/jonwraymond/toolquery/config"
	"github.com/jonwraymond/toolquery/executor"
	"github.com/jonwraymond/toolquery/health"
	"github.com/jonwraymond/toolquery/observe"
	"github.com/jonwraymond/toolquery/parser"
	"github.com/jonwraymond/toolquery/pipeline"
	"github.com/jonwraymond/toolquery/postprocess"
	"github.com/jonwraymond/toolquery/router"
	"github.com/jonwraymond/toolquery/tool"
)

// appOptions tweak how an app is assembled.
type appOptions struct {
	// logWriter receives log lines. Nil means stderr.
	logWriter io.Writer

	// exportWriter receives stdout trace and metric exports. Nil means stdout.
	exportWriter io.Writer

	// httpClient is shared by the adapters. Nil uses their default.
	httpClient *http.Client
}

// app holds every long-lived component behind a command.
type app struct {
	cfg      *config.Config
	obs      observe.Observer
	logger   observe.Logger
	metrics  *prometheus.Registry
	cache    *cache.Manager
	registry *tool.Registry
	parser   *parser.Parser
	executor *executor.Executor
	pipeline *pipeline.Pipeline
	health   *health.Aggregator
}

func loadConfig(ctx context.Context, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ResolveSecrets(ctx, nil); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (a *app, err error) {
	a = &app{cfg: cfg, metrics: prometheus.NewRegistry()}
	a.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	oc := cfg.Observe.Observe(version)
	oc.Metrics.Registerer = a.metrics
	oc.Metrics.Writer = opts.exportWriter
	oc.Tracing.Writer = opts.exportWriter
	oc.Logging.Writer = opts.logWriter
	a.obs, err = observe.NewObserver(ctx, oc)
	if err != nil {
		return nil, fmt.Errorf("observer: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, a.Close(context.WithoutCancel(ctx)))
			a = nil
		}
	}()
	a.logger = a.obs.Logger()

	mw, err := observe.MiddlewareFromObserver(a.obs)
	if err != nil {
		return a, fmt.Errorf("middleware: %w", err)
	}

	a.cache = cache.NewManager(cfg.Cache.Manager())

	ec := cfg.Executor.Executor()
	ec.Cache = a.cache
	ec.Middleware = mw
	if a.executor, err = executor.New(ec); err != nil {
		return a, err
	}

	a.registry, err = buildRegistry(ctx, cfg.Adapters, opts.httpClient, a.executor, a.logger)
	if err != nil {
		return a, err
	}

	vocab := parser.DefaultVocabulary()
	if cfg.Parser.Vocabulary != "" {
		if vocab, err = parser.LoadVocabulary(cfg.Parser.Vocabulary); err != nil {
			return a, err
		}
	}
	pc := cfg.Parser.Parser(a.logger)
	pc.Aliases = a.registry.Aliases()
	if a.parser, err = parser.New(vocab, pc); err != nil {
		return a, err
	}

	a.pipeline, err = pipeline.New(pipeline.Config{
		Registry:   a.registry,
		Parser:     a.parser,
		Executor:   a.executor,
		Router:     router.New(a.registry, cfg.Router.Router()),
		Processor:  postprocess.New(postprocess.Config{Logger: a.logger}),
		Middleware: mw,
	})
	if err != nil {
		return a, err
	}

	a.health = health.NewAggregator(health.AggregatorConfig{})
	a.health.Register(health.NewCacheChecker(a.cache, health.DefaultCacheWarnRatio))
	a.health.Register(health.NewRegistryChecker(a.registry))
	for _, c := range health.AdapterCheckers(a.executor, a.registry) {
		a.health.Register(c)
	}
	return a, nil
}

// buildRegistry registers the enabled adapters. combined_reasoning runs its
// sources through runner and needs both of them.
func buildRegistry(ctx context.Context, cfg config.AdaptersConfig, client *http.Client, runner combined.Runner, logger observe.Logger) (*tool.Registry, error) {
	var (
		adapters []tool.Adapter
		events   *polymarket.Adapter
		coins    *lunarcrush.Adapter
	)
	if cfg.Polymarket.Enabled {
		pc := cfg.Polymarket.Adapter()
		pc.HTTPClient = client
		events = polymarket.New(pc)
		adapters = append(adapters, events)
	}
	if cfg.LunarCrush.Enabled {
		lc := cfg.LunarCrush.Adapter()
		lc.HTTPClient = client
		coins = lunarcrush.New(lc)
		if coins.Demo() {
			logger.Warn(ctx, "lunarcrush api key not set, serving demo data")
		}
		adapters = append(adapters, coins)
	}
	switch {
	case !cfg.Combined.Enabled:
	case events == nil || coins == nil:
		logger.Warn(ctx, "combined reasoning needs both providers, not registered")
	default:
		cc := cfg.Combined.Adapter()
		cc.Events, cc.Coins, cc.Runner = events, coins, runner
		reasoning, err := combined.New(cc)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, reasoning)
	}

	reg := tool.NewRegistry()
	if err := reg.Register(adapters...); err != nil {
		return nil, err
	}
	reg.Freeze()
	return reg, nil
}

// watchVocabulary reloads the parser vocabulary in the background until ctx
// ends, when the config asks for it.
func (a *app) watchVocabulary(ctx context.Context) {
	if !a.cfg.Parser.Watch {
		return
	}
	path := a.cfg.Parser.Vocabulary
	go func() {
		if err := a.parser.Watch(ctx, path); err != nil {
			a.logger.Error(ctx, "vocabulary watch stopped",
				observe.Field{Key: "path", Value: path},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
	}()
}

// Close releases the cache and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.obs != nil {
		errs = append(errs, a.obs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
