// Package resilience provides the fault-tolerance middleware of the bus.
//
// # Patterns
//
//   - Retry: re-invokes the inner chain on transient failures with capped
//     exponential backoff and optional jitter. Business errors are never
//     retried.
//
//   - Circuit Breaker: stops calling a failing dependency after a threshold
//     of consecutive failures, then admits trial calls once a reset timeout
//     has elapsed. BreakerGroup keeps one breaker per dependency.
//
//   - Bulkhead: caps concurrent dispatches.
//
//   - Rate Limiter: token bucket admission.
//
//   - Timeout: bounds each attempt with its own deadline. Placed inside retry,
//     an attempt that runs out of time is retried like any other timeout.
//
// Each pattern has a standalone type with Execute and a bus.Middleware
// wrapper. In the standard chain the breaker sits outside retry, so one
// dispatch counts once against the breaker no matter how many attempts it
// made.
//
// # Usage
//
//	breakers := resilience.NewBreakerGroup(resilience.DefaultCircuitBreakerConfig())
//	retry := resilience.NewRetry(resilience.DefaultRetryConfig())
//
//	b := bus.New(bus.WithMiddleware(
//	    resilience.NewGroupCircuitBreakerMiddleware(breakers, nil, logger),
//	    resilience.NewRetryMiddleware(retry),
//	))
//
// # Errors
//
// Retry exhaustion returns *RetryExhaustedError (matches ErrMaxRetriesExceeded),
// cancellation during backoff returns *RetryAbortedError, and an open breaker
// returns *CircuitBreakerOpenError (matches ErrCircuitOpen). All of them
// report their bus.Kind through bus.KindOf.
package resilience
