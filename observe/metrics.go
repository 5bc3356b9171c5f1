package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Execution is the telemetry view of one tool execution.
type Execution struct {
	Duration time.Duration
	Retries  int
	CacheHit bool
	Shared   bool
	Err      error
}

// Metrics records pipeline and tool execution metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordQuery counts one pipeline invocation. code is the envelope
	// error code, empty on success.
	RecordQuery(ctx context.Context, category, code string)

	// RecordExecution records one tool execution.
	RecordExecution(ctx context.Context, meta ToolMeta, ex Execution)
}

type metricsImpl struct {
	queryTotal   metric.Int64Counter
	queryErrors  metric.Int64Counter
	execTotal    metric.Int64Counter
	execErrors   metric.Int64Counter
	execRetries  metric.Int64Counter
	cacheHits    metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates the pipeline instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.queryTotal, "query.total", "Total number of queries", "{query}"},
		{&m.queryErrors, "query.errors", "Total number of failed queries", "{error}"},
		{&m.execTotal, "tool.exec.total", "Total number of tool executions", "{call}"},
		{&m.execErrors, "tool.exec.errors", "Total number of tool execution errors", "{error}"},
		{&m.execRetries, "tool.exec.retries", "Total number of retries spent on tool executions", "{retry}"},
		{&m.cacheHits, "tool.exec.cache_hits", "Total number of tool executions served from cache", "{hit}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	hist, err := meter.Float64Histogram(
		"tool.exec.duration_ms",
		metric.WithDescription("Tool execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	m.durationHist = hist
	return m, nil
}

func (m *metricsImpl) RecordQuery(ctx context.Context, category, code string) {
	opt := metric.WithAttributes(attribute.String("query.category", category))
	m.queryTotal.Add(ctx, 1, opt)
	if code != "" {
		m.queryErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("query.category", category),
			attribute.String("error.code", code),
		))
	}
}

func (m *metricsImpl) RecordExecution(ctx context.Context, meta ToolMeta, ex Execution) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.execTotal.Add(ctx, 1, opt)
	if ex.Err != nil {
		m.execErrors.Add(ctx, 1, opt)
	}
	if ex.Retries > 0 {
		m.execRetries.Add(ctx, int64(ex.Retries), opt)
	}
	if ex.CacheHit {
		m.cacheHits.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(ex.Duration)/float64(time.Millisecond), opt)
}

// NopMetrics returns Metrics that record nothing.
func NopMetrics() Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("noop"))
	return m
}
