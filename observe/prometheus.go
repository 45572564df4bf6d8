package observe

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics is a MetricsSink backed by Prometheus collectors under
// the cmdbus_dispatch_ prefix.
type PrometheusMetrics struct {
	total    *prometheus.CounterVec
	slow     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer. Collectors already registered
// by an earlier call are reused.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cmdbus",
		Subsystem: "dispatch",
		Name:      "total",
		Help:      "Total number of dispatches by message type and outcome",
	}, []string{"message_type", "success", "error_kind"})

	slow := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cmdbus",
		Subsystem: "dispatch",
		Name:      "slow_total",
		Help:      "Dispatches slower than the slow threshold",
	}, []string{"message_type"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cmdbus",
		Subsystem: "dispatch",
		Name:      "duration_seconds",
		Help:      "Dispatch duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"message_type", "success"})

	var err error
	if total, err = register(reg, total); err != nil {
		return nil, err
	}
	if slow, err = register(reg, slow); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}

	return &PrometheusMetrics{total: total, slow: slow, duration: duration}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordDuration observes the dispatch duration in seconds.
func (m *PrometheusMetrics) RecordDuration(_ context.Context, messageType string, d time.Duration, success bool) {
	m.duration.WithLabelValues(messageType, boolLabel(success)).Observe(d.Seconds())
}

// IncrementCount counts one dispatch.
func (m *PrometheusMetrics) IncrementCount(_ context.Context, messageType string, success bool, errorKind string) {
	m.total.WithLabelValues(messageType, boolLabel(success), errorKind).Inc()
}

// RecordSlow counts one slow dispatch.
func (m *PrometheusMetrics) RecordSlow(_ context.Context, messageType string, _ time.Duration) {
	m.slow.WithLabelValues(messageType).Inc()
}

var _ MetricsSink = (*PrometheusMetrics)(nil)
