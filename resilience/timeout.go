package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/cmdbus/bus"
)

// TimeoutConfig configures the per-attempt timeout.
type TimeoutConfig struct {
	// Timeout is the maximum duration of one attempt.
	// Default: 30 seconds
	Timeout time.Duration
}

// Timeout bounds each attempt with a context deadline.
//
// Contract:
//   - Context: the operation runs on the caller's goroutine with a derived
//     deadline and must honor ctx to be interrupted.
//   - Errors: an attempt that fails after its own deadline fired returns an
//     *AttemptTimeoutError, which is bus.KindTimeout and so retryable by
//     default. Successes and business errors are returned as is, even when
//     late.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a new timeout wrapper.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Timeout{config: config}
}

// Execute runs op with the attempt deadline.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) (any, error)) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	v, err := op(attemptCtx)
	if err == nil || ctx.Err() != nil || bus.KindOf(err).Business() {
		return v, err
	}
	if !errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return v, err
	}
	return nil, &AttemptTimeoutError{Timeout: t.config.Timeout, Cause: err}
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}
