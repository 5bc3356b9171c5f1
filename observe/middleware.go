package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Outcome is what an instrumented tool execution reports besides its error.
type Outcome struct {
	Retries  int
	CacheHit bool
	Shared   bool
}

// ExecuteFunc is one tool execution as seen by Middleware.
type ExecuteFunc func(ctx context.Context, meta ToolMeta) (Outcome, error)

// Middleware wraps pipeline work with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: spans are propagated through ctx.
//   - Errors: errors from wrapped functions are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// NopMiddleware returns a Middleware that records nothing.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// Wrap instruments a tool execution.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, meta ToolMeta) (Outcome, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		out, err := fn(ctx, meta)

		duration := time.Since(start)
		span.SetAttributes(
			attribute.Int("tool.retries", out.Retries),
			attribute.Bool("cache.hit", out.CacheHit),
			attribute.Bool("cache.shared", out.Shared),
		)
		m.tracer.EndSpan(span, err)

		m.metrics.RecordExecution(ctx, meta, Execution{
			Duration: duration,
			Retries:  out.Retries,
			CacheHit: out.CacheHit,
			Shared:   out.Shared,
			Err:      err,
		})

		fields := []Field{
			{Key: "duration_ms", Value: float64(duration) / float64(time.Millisecond)},
			{Key: "retries", Value: out.Retries},
			{Key: "cache_hit", Value: out.CacheHit},
		}
		logger := m.logger.WithTool(meta)
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			logger.Error(ctx, "tool execution failed", fields...)
		} else {
			logger.Info(ctx, "tool execution completed", fields...)
		}

		return out, err
	}
}

// Stage runs fn inside a span named stage.
func (m *Middleware) Stage(ctx context.Context, stage string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := m.tracer.StartStage(ctx, stage, attrs...)
	err := fn(ctx)
	m.tracer.EndSpan(span, err)
	return err
}

// StartQuery opens the root span of one pipeline invocation.
func (m *Middleware) StartQuery(ctx context.Context, attrs ...attribute.KeyValue) (context.Context, func(category, code string)) {
	ctx, span := m.tracer.StartStage(ctx, StageQuery, attrs...)
	return ctx, func(category, code string) {
		span.SetAttributes(attribute.String("query.category", category))
		if code != "" {
			span.SetAttributes(attribute.String("error.code", code))
		}
		m.metrics.RecordQuery(ctx, category, code)
		m.tracer.EndSpan(span, codeErrorOf(code))
	}
}

type codeError string

func (e codeError) Error() string { return string(e) }

func codeErrorOf(code string) error {
	if code == "" {
		return nil
	}
	return codeError(code)
}
