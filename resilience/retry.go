package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/jonwraymond/cmdbus/bus"
	"github.com/jonwraymond/cmdbus/observe"
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// Zero disables retrying.
	// Default: 3
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	// Default: 1s
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the exponential backoff factor.
	// Default: 2.0
	Multiplier float64

	// Jitter scales each delay by a random factor in [0.5, 1.0).
	// Default: true
	Jitter bool

	// RetryableErrors lists the error kinds that trigger a retry.
	// Default: timeout, connection_refused, transient_io
	RetryableErrors []bus.Kind

	// RetryIf overrides RetryableErrors when set.
	RetryIf func(err error) bool

	// OnRetry is called before each wait. attempt is zero-based.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Logger receives a warning for each retry.
	// Default: no-op
	Logger observe.Logger
}

// DefaultRetryConfig returns the documented retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		Multiplier:      2.0,
		Jitter:          true,
		RetryableErrors: []bus.Kind{bus.KindTimeout, bus.KindConnectionRefused, bus.KindTransientIO},
	}
}

// Retry re-invokes an operation on retryable errors with exponential backoff.
//
// Contract:
// - Concurrency: safe for concurrent use; each Execute call keeps its own state.
// - Context: the wait between attempts aborts on cancellation.
// - Errors: non-retryable errors are returned unchanged.
type Retry struct {
	config RetryConfig
	logger observe.Logger
}

// NewRetry creates a retry policy. Invalid values are replaced by defaults;
// MaxRetries of zero is kept.
func NewRetry(config RetryConfig) *Retry {
	def := DefaultRetryConfig()
	if config.MaxRetries < 0 {
		config.MaxRetries = def.MaxRetries
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = def.BaseDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	if config.MaxDelay < config.BaseDelay {
		config.MaxDelay = config.BaseDelay
	}
	if config.Multiplier <= 1 {
		config.Multiplier = def.Multiplier
	}
	if config.RetryableErrors == nil {
		config.RetryableErrors = def.RetryableErrors
	}

	logger := config.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	return &Retry{config: config, logger: logger}
}

// Execute runs op until it succeeds, fails with a non-retryable error, or
// MaxRetries retries have been spent.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) (any, error)) (any, error) {
	for attempt := 0; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		if !r.Retryable(err) {
			return nil, err
		}

		if attempt >= r.config.MaxRetries {
			return nil, &RetryExhaustedError{Attempts: attempt + 1, LastErr: err}
		}

		delay := r.Delay(attempt)

		r.logger.Warn(ctx, "retrying after error",
			observe.Field{Key: "attempt", Value: attempt + 1},
			observe.Field{Key: "max_retries", Value: r.config.MaxRetries},
			observe.Field{Key: "delay_ms", Value: delay.Milliseconds()},
			observe.Field{Key: "error.kind", Value: bus.KindOf(err).String()},
			observe.Field{Key: "error", Value: err.Error()},
		)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		if werr := sleep(ctx, delay); werr != nil {
			return nil, &RetryAbortedError{Attempts: attempt + 1, LastErr: err, Cause: werr}
		}
	}
}

// Retryable reports whether err should trigger another attempt.
func (r *Retry) Retryable(err error) bool {
	if err == nil {
		return false
	}
	if r.config.RetryIf != nil {
		return r.config.RetryIf(err)
	}
	return slices.Contains(r.config.RetryableErrors, bus.KindOf(err))
}

// Delay returns the wait before retry number attempt+1:
// min(BaseDelay * Multiplier^attempt, MaxDelay), scaled into [0.5, 1.0) of
// that value when jitter is on.
func (r *Retry) Delay(attempt int) time.Duration {
	raw := float64(r.config.BaseDelay) * math.Pow(r.config.Multiplier, float64(attempt))
	delay := math.Min(raw, float64(r.config.MaxDelay))

	if r.config.Jitter {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay *= 0.5 + rand.Float64()*0.5
	}

	return time.Duration(delay)
}

// Config returns the normalized retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
