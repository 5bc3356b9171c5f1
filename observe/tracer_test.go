package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer() (Tracer, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	return NewTracer(tp.Tracer("test")), rec
}

func attr(kvs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range kvs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestToolMeta_SpanName(t *testing.T) {
	if got := (ToolMeta{Name: "get_events"}).SpanName(); got != "tool.exec.get_events" {
		t.Errorf("SpanName() = %q", got)
	}
}

func TestTracer_ToolSpan(t *testing.T) {
	tracer, rec := newRecordingTracer()

	_, span := tracer.StartSpan(context.Background(), ToolMeta{Name: "get_events", Category: "sports"})
	tracer.EndSpan(span, nil)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	s := spans[0]
	if s.Name() != "tool.exec.get_events" {
		t.Errorf("Name() = %q", s.Name())
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("Status = %v, want Ok", s.Status().Code)
	}
	if v, ok := attr(s.Attributes(), "tool.category"); !ok || v.AsString() != "sports" {
		t.Errorf("tool.category = %v", v)
	}
}

func TestTracer_ErrorSpan(t *testing.T) {
	tracer, rec := newRecordingTracer()

	_, span := tracer.StartSpan(context.Background(), ToolMeta{Name: "get_events"})
	tracer.EndSpan(span, errors.New("upstream down"))

	s := rec.Ended()[0]
	if s.Status().Code != codes.Error || s.Status().Description != "upstream down" {
		t.Errorf("Status = %+v", s.Status())
	}
	if v, _ := attr(s.Attributes(), "tool.error"); !v.AsBool() {
		t.Error("tool.error should be true")
	}
	if len(s.Events()) == 0 {
		t.Error("error event not recorded")
	}
}

func TestTracer_StageNesting(t *testing.T) {
	tracer, rec := newRecordingTracer()

	ctx, root := tracer.StartStage(context.Background(), StageQuery)
	_, parse := tracer.StartStage(ctx, StageParse, attribute.String("query.category", "crypto"))
	tracer.EndSpan(parse, nil)
	tracer.EndSpan(root, nil)

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Name() != StageParse || spans[1].Name() != StageQuery {
		t.Errorf("span names = %q, %q", spans[0].Name(), spans[1].Name())
	}
	if spans[0].Parent().SpanID() != spans[1].SpanContext().SpanID() {
		t.Error("parse span should be a child of the query span")
	}
}

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	_, span := tracer.StartSpan(context.Background(), ToolMeta{Name: "x"})
	tracer.EndSpan(span, errors.New("ignored"))
}
