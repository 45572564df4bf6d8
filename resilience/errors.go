package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/cmdbus/bus"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is matched by CircuitBreakerOpenError.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrMaxRetriesExceeded is matched by RetryExhaustedError.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrRateLimitExceeded is returned when the rate limit is exceeded.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrAttemptTimeout is matched by AttemptTimeoutError.
	ErrAttemptTimeout = errors.New("resilience: attempt timed out")
)

// RetryExhaustedError is returned after the last retryable attempt fails.
type RetryExhaustedError struct {
	// Attempts is the total number of calls made, including the first.
	Attempts int

	// LastErr is the error returned by the final attempt.
	LastErr error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("resilience: retry exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

// Unwrap returns the last attempt's error.
func (e *RetryExhaustedError) Unwrap() error { return e.LastErr }

// Is matches ErrMaxRetriesExceeded.
func (e *RetryExhaustedError) Is(target error) bool { return target == ErrMaxRetriesExceeded }

// ErrorKind returns bus.KindRetryExhausted.
func (e *RetryExhaustedError) ErrorKind() bus.Kind { return bus.KindRetryExhausted }

// RetryAbortedError is returned when the context ends while waiting between
// attempts.
type RetryAbortedError struct {
	// Attempts is the number of calls made before the wait was aborted.
	Attempts int

	// LastErr is the error that triggered the aborted wait.
	LastErr error

	// Cause is the context error.
	Cause error
}

func (e *RetryAbortedError) Error() string {
	return fmt.Sprintf("resilience: retry aborted after %d attempts: %v (last error: %v)", e.Attempts, e.Cause, e.LastErr)
}

// Unwrap returns the context error.
func (e *RetryAbortedError) Unwrap() error { return e.Cause }

// ErrorKind returns bus.KindCanceled, or bus.KindTimeout if the deadline passed.
func (e *RetryAbortedError) ErrorKind() bus.Kind {
	if errors.Is(e.Cause, context.DeadlineExceeded) {
		return bus.KindTimeout
	}
	return bus.KindCanceled
}

// CircuitBreakerOpenError is returned when a breaker rejects a call.
type CircuitBreakerOpenError struct {
	// Name identifies the breaker.
	Name string

	// RetryAfter is the remaining time until the breaker admits a trial call.
	// It is zero when the breaker is half-open with all trial slots taken.
	RetryAfter time.Duration
}

func (e *CircuitBreakerOpenError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("resilience: circuit breaker %q is open (retry after %s)", e.Name, e.RetryAfter)
	}
	return fmt.Sprintf("resilience: circuit breaker %q is open", e.Name)
}

// Is matches ErrCircuitOpen.
func (e *CircuitBreakerOpenError) Is(target error) bool { return target == ErrCircuitOpen }

// ErrorKind returns bus.KindCircuitOpen.
func (e *CircuitBreakerOpenError) ErrorKind() bus.Kind { return bus.KindCircuitOpen }

// AttemptTimeoutError is returned when one attempt fails after its deadline.
type AttemptTimeoutError struct {
	// Timeout is the per-attempt limit that fired.
	Timeout time.Duration

	// Cause is the error the attempt returned.
	Cause error
}

func (e *AttemptTimeoutError) Error() string {
	return fmt.Sprintf("resilience: attempt timed out after %s: %v", e.Timeout, e.Cause)
}

// Unwrap returns the attempt's own error.
func (e *AttemptTimeoutError) Unwrap() error { return e.Cause }

// Is matches ErrAttemptTimeout and context.DeadlineExceeded.
func (e *AttemptTimeoutError) Is(target error) bool {
	return target == ErrAttemptTimeout || target == context.DeadlineExceeded
}

// ErrorKind returns bus.KindTimeout.
func (e *AttemptTimeoutError) ErrorKind() bus.Kind { return bus.KindTimeout }

// unavailableError tags local admission failures with bus.KindUnavailable.
type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string       { return e.err.Error() }
func (e *unavailableError) Unwrap() error       { return e.err }
func (e *unavailableError) ErrorKind() bus.Kind { return bus.KindUnavailable }

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return &unavailableError{err: err}
}
