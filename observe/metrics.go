package observe

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsSink receives per-dispatch measurements.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly; ctx carries correlation only.
// - Errors: implementations should not panic; the middleware recovers if they do.
type MetricsSink interface {
	// RecordDuration records the wall-clock duration of one dispatch.
	RecordDuration(ctx context.Context, messageType string, d time.Duration, success bool)

	// IncrementCount counts one dispatch. errorKind is empty on success.
	IncrementCount(ctx context.Context, messageType string, success bool, errorKind string)

	// RecordSlow counts a dispatch that exceeded the slow threshold.
	RecordSlow(ctx context.Context, messageType string, d time.Duration)
}

// OTelMetrics is a MetricsSink backed by OpenTelemetry instruments.
type OTelMetrics struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	slowCount    metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewOTelMetrics creates the dispatch instruments on meter.
func NewOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	totalCount, err := meter.Int64Counter(
		"bus.dispatch.total",
		metric.WithDescription("Total number of dispatches"),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"bus.dispatch.errors",
		metric.WithDescription("Total number of failed dispatches"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	slowCount, err := meter.Int64Counter(
		"bus.dispatch.slow",
		metric.WithDescription("Dispatches slower than the slow threshold"),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"bus.dispatch.duration_ms",
		metric.WithDescription("Dispatch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &OTelMetrics{
		totalCount:   totalCount,
		errorCount:   errorCount,
		slowCount:    slowCount,
		durationHist: durationHist,
	}, nil
}

// RecordDuration records the dispatch duration in milliseconds.
func (m *OTelMetrics) RecordDuration(ctx context.Context, messageType string, d time.Duration, success bool) {
	m.durationHist.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(
		attribute.String("message.type", messageType),
		attribute.Bool("success", success),
	))
}

// IncrementCount increments the total counter, and the error counter on failure.
func (m *OTelMetrics) IncrementCount(ctx context.Context, messageType string, success bool, errorKind string) {
	m.totalCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("message.type", messageType),
		attribute.Bool("success", success),
	))
	if !success {
		m.errorCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("message.type", messageType),
			attribute.String("error.kind", errorKind),
		))
	}
}

// RecordSlow increments the slow-dispatch counter.
func (m *OTelMetrics) RecordSlow(ctx context.Context, messageType string, d time.Duration) {
	m.slowCount.Add(ctx, 1, metric.WithAttributes(attribute.String("message.type", messageType)))
}

// teeMetrics fans measurements out to several sinks.
type teeMetrics []MetricsSink

// TeeMetrics returns a MetricsSink that forwards to every non-nil sink.
func TeeMetrics(sinks ...MetricsSink) MetricsSink {
	var out teeMetrics
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (t teeMetrics) RecordDuration(ctx context.Context, messageType string, d time.Duration, success bool) {
	t.each(func(s MetricsSink) { s.RecordDuration(ctx, messageType, d, success) })
}

func (t teeMetrics) IncrementCount(ctx context.Context, messageType string, success bool, errorKind string) {
	t.each(func(s MetricsSink) { s.IncrementCount(ctx, messageType, success, errorKind) })
}

func (t teeMetrics) RecordSlow(ctx context.Context, messageType string, d time.Duration) {
	t.each(func(s MetricsSink) { s.RecordSlow(ctx, messageType, d) })
}

// each calls fn for every sink. A panicking sink does not stop the others;
// the first panic is re-raised once all sinks have run.
func (t teeMetrics) each(fn func(MetricsSink)) {
	var first any
	for _, s := range t {
		func() {
			defer func() {
				if r := recover(); r != nil && first == nil {
					first = r
				}
			}()
			fn(s)
		}()
	}
	if first != nil {
		panic(first)
	}
}

type nopMetrics struct{}

// NopMetrics returns a MetricsSink that records nothing.
func NopMetrics() MetricsSink { return nopMetrics{} }

func (nopMetrics) RecordDuration(context.Context, string, time.Duration, bool) {}
func (nopMetrics) IncrementCount(context.Context, string, bool, string)        {}
func (nopMetrics) RecordSlow(context.Context, string, time.Duration)           {}

func boolLabel(b bool) string { return strconv.FormatBool(b) }

var (
	_ MetricsSink = (*OTelMetrics)(nil)
	_ MetricsSink = teeMetrics(nil)
	_ MetricsSink = nopMetrics{}
)
