package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/cmdbus/bus"
)

// MessageMeta describes one dispatch for telemetry purposes.
type MessageMeta struct {
	Type           string // message type key (required)
	DispatchID     string // ULID assigned per dispatch
	IdempotencyKey string // optional
}

// MetaOf builds MessageMeta for msg, taking the dispatch ID from ctx.
func MetaOf(ctx context.Context, msg bus.Message) MessageMeta {
	meta := MessageMeta{
		Type:       msg.MessageType(),
		DispatchID: DispatchIDFromContext(ctx),
	}
	if key, ok := bus.IdempotencyKeyOf(msg); ok {
		meta.IdempotencyKey = key
	}
	return meta
}

// SpanName returns the span name: bus.dispatch.<type>.
func (m MessageMeta) SpanName() string {
	return "bus.dispatch." + m.Type
}

func (m MessageMeta) fields() []Field {
	fields := []Field{{Key: "message.type", Value: m.Type}}
	if m.DispatchID != "" {
		fields = append(fields, Field{Key: "dispatch_id", Value: m.DispatchID})
	}
	if m.IdempotencyKey != "" {
		fields = append(fields, Field{Key: "idempotency_key", Value: m.IdempotencyKey})
	}
	return fields
}

// Tracer wraps OpenTelemetry tracing with dispatch-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span for one dispatch.
	StartSpan(ctx context.Context, meta MessageMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer. A nil tracer yields a no-op Tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return NopTracer()
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta MessageMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("message.type", meta.Type),
		attribute.Bool("dispatch.error", false),
	}
	if meta.DispatchID != "" {
		attrs = append(attrs, attribute.String("dispatch.id", meta.DispatchID))
	}
	if meta.IdempotencyKey != "" {
		attrs = append(attrs, attribute.String("message.idempotency_key", meta.IdempotencyKey))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(
			attribute.Bool("dispatch.error", true),
			attribute.String("error.kind", bus.KindOf(err).String()),
		)
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a Tracer that records nothing.
func NopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta MessageMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
