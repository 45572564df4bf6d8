package observe

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/cmdbus/bus"
)

// MiddlewareName is the name reported by bus.Bus.Middlewares.
const MiddlewareName = "observability"

// Middleware wraps dispatch with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: assigns a dispatch ID to ctx unless one is already present.
//   - Errors: results and errors from next pass through unchanged; sink
//     failures never affect the dispatch.
type Middleware struct {
	tracer        Tracer
	metrics       MetricsSink
	logger        Logger
	slowThreshold time.Duration
	now           func() time.Time
}

// MiddlewareOption configures a Middleware.
type MiddlewareOption func(*Middleware)

// WithSlowThreshold sets the slow-dispatch threshold. Zero disables slow reporting.
func WithSlowThreshold(d time.Duration) MiddlewareOption {
	return func(m *Middleware) {
		if d >= 0 {
			m.slowThreshold = d
		}
	}
}

// WithNow replaces the clock used to measure durations.
func WithNow(now func() time.Time) MiddlewareOption {
	return func(m *Middleware) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics MetricsSink, logger Logger, opts ...MiddlewareOption) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}

	m := &Middleware{
		tracer:        tracer,
		metrics:       metrics,
		logger:        logger,
		slowThreshold: DefaultSlowThreshold,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MiddlewareFromObserver creates a Middleware from an Observer. Extra sinks
// such as PrometheusMetrics receive the same measurements as the OTel meter.
func MiddlewareFromObserver(obs Observer, extra ...MetricsSink) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	otelMetrics, err := NewOTelMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	sinks := append([]MetricsSink{otelMetrics}, extra...)
	return NewMiddleware(
		NewTracer(obs.Tracer()),
		TeeMetrics(sinks...),
		obs.Logger(),
		WithSlowThreshold(obs.SlowThreshold()),
	), nil
}

// Name returns "observability".
func (m *Middleware) Name() string { return MiddlewareName }

// Handle times the dispatch and reports it.
func (m *Middleware) Handle(ctx context.Context, msg bus.Message, next bus.HandlerFunc) (any, error) {
	if DispatchIDFromContext(ctx) == "" {
		ctx = WithDispatchID(ctx, NewDispatchID())
	}
	meta := MetaOf(ctx, msg)

	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := m.now()

	defer func() {
		if r := recover(); r != nil {
			m.tracer.EndSpan(span, fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	result, err := next(ctx, msg)
	duration := m.now().Sub(start)

	m.tracer.EndSpan(span, err)
	m.report(ctx, meta, duration, err)

	return result, err
}

// report forwards the outcome to the sinks and the logger. A panicking sink
// is logged at debug and otherwise ignored.
func (m *Middleware) report(ctx context.Context, meta MessageMeta, duration time.Duration, err error) {
	success := err == nil
	errorKind := ""
	if !success {
		errorKind = bus.KindOf(err).String()
	}

	m.guard(ctx, meta, func() { m.metrics.RecordDuration(ctx, meta.Type, duration, success) })
	m.guard(ctx, meta, func() { m.metrics.IncrementCount(ctx, meta.Type, success, errorKind) })

	logger := m.logger.WithMessage(meta)
	fields := []Field{
		{Key: "duration_ms", Value: float64(duration) / float64(time.Millisecond)},
		{Key: "success", Value: success},
	}

	slow := m.slowThreshold > 0 && duration > m.slowThreshold
	if slow {
		m.guard(ctx, meta, func() { m.metrics.RecordSlow(ctx, meta.Type, duration) })
	}

	m.guard(ctx, meta, func() {
		if slow {
			logger.Warn(ctx, "slow operation",
				append(fields, Field{Key: "threshold_ms", Value: m.slowThreshold.Milliseconds()})...)
		}
		switch {
		case success:
			logger.Info(ctx, "dispatch completed", fields...)
		case bus.KindOf(err).Business():
			logger.Warn(ctx, "dispatch rejected",
				append(fields, Field{Key: "error.kind", Value: errorKind}, Field{Key: "error", Value: err.Error()})...)
		default:
			logger.Error(ctx, "dispatch failed",
				append(fields, Field{Key: "error.kind", Value: errorKind}, Field{Key: "error", Value: err.Error()})...)
		}
	})
}

// guard runs fn, logging a panic instead of propagating it.
func (m *Middleware) guard(ctx context.Context, meta MessageMeta, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Debug(ctx, "observability sink panicked",
				Field{Key: "message.type", Value: meta.Type},
				Field{Key: "panic", Value: fmt.Sprint(r)},
			)
		}
	}()
	fn()
}

var _ bus.Middleware = (*Middleware)(nil)
