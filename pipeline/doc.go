// Package pipeline assembles a bus.Bus with the standard middleware chain.
//
// Outer to inner, a dispatch passes through observability, authorization
// (when an Authorizer is given), idempotency, the per-dependency circuit
// breaker, an optional bulkhead and rate limiter, retry, an optional
// per-attempt timeout, and finally the handler. Retries therefore count as a
// single outcome for the breaker, and a replayed idempotent result never
// reaches the breaker at all.
//
//	p, err := pipeline.New(pipeline.DefaultConfig(),
//	    pipeline.WithObserver(obs),
//	    pipeline.WithStore(redisStore),
//	)
//	if err != nil {
//	    return err
//	}
//	p.MustRegister("CreateWidget", bus.Typed(createWidget))
//
// Config carries the documented defaults through DefaultConfig; New rejects
// a Config that fails Validate.
package pipeline
