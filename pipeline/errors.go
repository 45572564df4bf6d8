package pipeline

import "errors"

// Configuration errors returned by Config.Validate.
var (
	ErrInvalidRetryConfig          = errors.New("pipeline: invalid retry config")
	ErrInvalidCircuitBreakerConfig = errors.New("pipeline: invalid circuit breaker config")
	ErrInvalidIdempotencyConfig    = errors.New("pipeline: invalid idempotency config")
	ErrInvalidSlowThreshold        = errors.New("pipeline: slow threshold must be non-negative")
	ErrInvalidAttemptTimeout       = errors.New("pipeline: attempt timeout must be non-negative")
)
