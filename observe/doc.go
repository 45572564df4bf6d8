// Package observe provides observability for bus dispatches.
//
// The Middleware wraps every dispatch with an OpenTelemetry span named
// bus.dispatch.<type>, a ULID dispatch ID carried in the context, duration
// and outcome measurements forwarded to a MetricsSink, and structured log
// entries. Dispatches slower than the slow threshold are counted and logged
// as "slow operation".
//
// Sinks:
//
//   - OTelMetrics records to an OpenTelemetry meter.
//   - PrometheusMetrics registers collectors with a Prometheus registerer.
//   - TeeMetrics fans out to several sinks.
//
// Loggers:
//
//   - NewLogger writes JSON lines with level filtering and redaction.
//   - NewZapLogger adapts a *zap.Logger.
//   - NopLogger discards everything.
//
// Observer builds tracer and meter providers from Config and selects
// exporters through the exporters subpackage.
package observe
