package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Pipeline stage span names.
const (
	StageQuery   = "query"
	StageParse   = "query.parse"
	StageRoute   = "query.route"
	StageProcess = "query.process"
)

// ToolMeta describes a tool for telemetry.
type ToolMeta struct {
	Name     string // Tool name (required)
	Category string // Query category being served (optional)
	Strategy string // Cache key strategy (optional)
}

// SpanName returns the span name for executions of this tool.
// Format: tool.exec.<name>
func (m ToolMeta) SpanName() string {
	return "tool.exec." + m.Name
}

func (m ToolMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("tool.name", m.Name)}
	if m.Category != "" {
		attrs = append(attrs, attribute.String("tool.category", m.Category))
	}
	if m.Strategy != "" {
		attrs = append(attrs, attribute.String("cache.strategy", m.Strategy))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with pipeline span naming.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span for one tool execution.
	StartSpan(ctx context.Context, meta ToolMeta) (context.Context, trace.Span)

	// StartStage starts a span for a pipeline stage such as StageParse.
	StartStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta ToolMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("tool.error", false))
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) StartStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, stage,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("tool.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NopTracer returns a Tracer whose spans are discarded.
func NopTracer() Tracer {
	return NewTracer(tracenoop.NewTracerProvider().Tracer("noop"))
}
