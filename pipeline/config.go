package pipeline

import (
	"fmt"
	"time"

	"github.com/jonwraymond/cmdbus/idempotency"
	"github.com/jonwraymond/cmdbus/observe"
	"github.com/jonwraymond/cmdbus/resilience"
)

// Config holds the settings of every middleware in the standard chain.
// Start from DefaultConfig; New rejects a Config that fails Validate.
type Config struct {
	// Retry configures the retry middleware.
	Retry resilience.RetryConfig

	// CircuitBreaker is the template for the per-dependency breakers.
	CircuitBreaker resilience.CircuitBreakerConfig

	// Idempotency configures result deduplication.
	Idempotency idempotency.Config

	// SlowThreshold marks dispatches slower than this as slow. Zero
	// disables slow reporting.
	// Default: 1s
	SlowThreshold time.Duration

	// AttemptTimeout bounds each attempt inside the retry loop. Zero
	// disables the timeout middleware.
	// Default: 0
	AttemptTimeout time.Duration

	// Bulkhead, when set, caps concurrent dispatches.
	Bulkhead *resilience.BulkheadConfig

	// RateLimit, when set, limits the dispatch rate.
	RateLimit *resilience.RateLimiterConfig
}

// DefaultConfig returns the documented defaults: 3 retries from 1s up to
// 30s doubling with jitter, breakers opening after 5 failures for 30s with
// one half-open trial, a one hour idempotency TTL under "idempotency", and
// a 1s slow threshold.
func DefaultConfig() Config {
	return Config{
		Retry:          resilience.DefaultRetryConfig(),
		CircuitBreaker: resilience.DefaultCircuitBreakerConfig(),
		Idempotency:    idempotency.DefaultConfig(),
		SlowThreshold:  observe.DefaultSlowThreshold,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	r := c.Retry
	switch {
	case r.MaxRetries < 0:
		return fmt.Errorf("%w: MaxRetries %d < 0", ErrInvalidRetryConfig, r.MaxRetries)
	case r.BaseDelay <= 0:
		return fmt.Errorf("%w: BaseDelay %v <= 0", ErrInvalidRetryConfig, r.BaseDelay)
	case r.MaxDelay < r.BaseDelay:
		return fmt.Errorf("%w: MaxDelay %v < BaseDelay %v", ErrInvalidRetryConfig, r.MaxDelay, r.BaseDelay)
	case r.Multiplier <= 1:
		return fmt.Errorf("%w: Multiplier %v <= 1", ErrInvalidRetryConfig, r.Multiplier)
	}

	cb := c.CircuitBreaker
	switch {
	case cb.FailureThreshold <= 0:
		return fmt.Errorf("%w: FailureThreshold %d <= 0", ErrInvalidCircuitBreakerConfig, cb.FailureThreshold)
	case cb.ResetTimeout <= 0:
		return fmt.Errorf("%w: ResetTimeout %v <= 0", ErrInvalidCircuitBreakerConfig, cb.ResetTimeout)
	case cb.HalfOpenMaxCalls <= 0:
		return fmt.Errorf("%w: HalfOpenMaxCalls %d <= 0", ErrInvalidCircuitBreakerConfig, cb.HalfOpenMaxCalls)
	}

	if err := c.Idempotency.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidIdempotencyConfig, err)
	}
	if c.SlowThreshold < 0 {
		return ErrInvalidSlowThreshold
	}
	if c.AttemptTimeout < 0 {
		return ErrInvalidAttemptTimeout
	}
	return nil
}
