// Package health reports whether the bus and its dependencies can serve
// dispatches.
//
// A Checker reports one component as Healthy, Degraded or Unhealthy. The
// Aggregator runs a set of checkers under a timeout and reports the worst
// status. BreakerChecker turns circuit breaker state into health, so an open
// breaker marks the dependency unhealthy and a half-open one degraded.
// RedisChecker pings the Redis deployment behind a shared idempotency store.
//
//	agg := health.NewAggregator(health.AggregatorConfig{})
//	_ = agg.Register("circuits", health.NewBreakerGroupChecker(breakers))
//	_ = agg.Register("redis", health.NewRedisChecker("redis", client, 50*time.Millisecond))
//
//	report := agg.CheckAll(ctx)
//	if report.Status == health.StatusUnhealthy {
//	    // shed load
//	}
//
// LivenessHandler, ReadinessHandler and DetailedHandler expose the
// aggregator as HTTP probes.
package health
