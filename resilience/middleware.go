package resilience

import (
	"context"

	"github.com/jonwraymond/cmdbus/bus"
	"github.com/jonwraymond/cmdbus/observe"
)

// Middleware names reported by bus.Bus.Middlewares.
const (
	RetryMiddlewareName          = "retry"
	CircuitBreakerMiddlewareName = "circuit_breaker"
	BulkheadMiddlewareName       = "bulkhead"
	RateLimitMiddlewareName      = "rate_limit"
	TimeoutMiddlewareName        = "timeout"
)

// RetryMiddleware re-invokes the rest of the chain on retryable errors.
type RetryMiddleware struct {
	retry *Retry
}

// NewRetryMiddleware wraps a retry policy as middleware.
func NewRetryMiddleware(retry *Retry) *RetryMiddleware {
	if retry == nil {
		retry = NewRetry(DefaultRetryConfig())
	}
	return &RetryMiddleware{retry: retry}
}

// Name returns "retry".
func (m *RetryMiddleware) Name() string { return RetryMiddlewareName }

// Handle calls next until it succeeds or the policy gives up.
func (m *RetryMiddleware) Handle(ctx context.Context, msg bus.Message, next bus.HandlerFunc) (any, error) {
	return m.retry.Execute(ctx, func(ctx context.Context) (any, error) {
		return next(ctx, msg)
	})
}

// Policy returns the underlying retry policy.
func (m *RetryMiddleware) Policy() *Retry { return m.retry }

// KeyFunc maps a message to the name of the dependency it protects.
type KeyFunc func(msg bus.Message) string

// ByMessageType keys breakers by message type.
func ByMessageType(msg bus.Message) string { return msg.MessageType() }

// CircuitBreakerMiddleware rejects dispatches while the breaker for the
// message's dependency is open.
type CircuitBreakerMiddleware struct {
	resolve func(msg bus.Message) *CircuitBreaker
	logger  observe.Logger
}

// NewCircuitBreakerMiddleware guards every message with a single breaker.
func NewCircuitBreakerMiddleware(cb *CircuitBreaker, logger observe.Logger) *CircuitBreakerMiddleware {
	if cb == nil {
		cb = NewCircuitBreaker(DefaultCircuitBreakerConfig())
	}
	return &CircuitBreakerMiddleware{
		resolve: func(bus.Message) *CircuitBreaker { return cb },
		logger:  orNop(logger),
	}
}

// NewGroupCircuitBreakerMiddleware picks a breaker from group per message.
// A nil key uses ByMessageType.
func NewGroupCircuitBreakerMiddleware(group *BreakerGroup, key KeyFunc, logger observe.Logger) *CircuitBreakerMiddleware {
	if group == nil {
		group = NewBreakerGroup(DefaultCircuitBreakerConfig())
	}
	if key == nil {
		key = ByMessageType
	}
	return &CircuitBreakerMiddleware{
		resolve: func(msg bus.Message) *CircuitBreaker { return group.Get(key(msg)) },
		logger:  orNop(logger),
	}
}

// Name returns "circuit_breaker".
func (m *CircuitBreakerMiddleware) Name() string { return CircuitBreakerMiddlewareName }

// Handle admits or rejects the dispatch, then records its outcome.
func (m *CircuitBreakerMiddleware) Handle(ctx context.Context, msg bus.Message, next bus.HandlerFunc) (v any, err error) {
	cb := m.resolve(msg)

	if err := cb.CanExecute(); err != nil {
		m.logger.Warn(ctx, "circuit breaker rejected dispatch",
			observe.Field{Key: "message.type", Value: msg.MessageType()},
			observe.Field{Key: "breaker", Value: cb.Name()},
		)
		return nil, err
	}

	recorded := false
	defer func() {
		if !recorded {
			// next panicked; count it and let the bus recover.
			cb.RecordFailure()
		}
	}()

	v, err = next(ctx, msg)
	cb.Record(err)
	recorded = true
	return v, err
}

// BulkheadMiddleware limits concurrent dispatches.
type BulkheadMiddleware struct {
	bulkhead *Bulkhead
}

// NewBulkheadMiddleware wraps a bulkhead as middleware.
func NewBulkheadMiddleware(b *Bulkhead) *BulkheadMiddleware {
	if b == nil {
		b = NewBulkhead(BulkheadConfig{})
	}
	return &BulkheadMiddleware{bulkhead: b}
}

// Name returns "bulkhead".
func (m *BulkheadMiddleware) Name() string { return BulkheadMiddlewareName }

// Handle runs next inside a bulkhead slot.
func (m *BulkheadMiddleware) Handle(ctx context.Context, msg bus.Message, next bus.HandlerFunc) (any, error) {
	return m.bulkhead.Execute(ctx, func(ctx context.Context) (any, error) {
		return next(ctx, msg)
	})
}

// RateLimitMiddleware rate-limits dispatches.
type RateLimitMiddleware struct {
	limiter *RateLimiter
}

// NewRateLimitMiddleware wraps a rate limiter as middleware.
func NewRateLimitMiddleware(rl *RateLimiter) *RateLimitMiddleware {
	if rl == nil {
		rl = NewRateLimiter(RateLimiterConfig{})
	}
	return &RateLimitMiddleware{limiter: rl}
}

// Name returns "rate_limit".
func (m *RateLimitMiddleware) Name() string { return RateLimitMiddlewareName }

// Handle admits the dispatch through the limiter.
func (m *RateLimitMiddleware) Handle(ctx context.Context, msg bus.Message, next bus.HandlerFunc) (any, error) {
	return m.limiter.Execute(ctx, func(ctx context.Context) (any, error) {
		return next(ctx, msg)
	})
}

// TimeoutMiddleware bounds each call of next. Placed inside Retry it bounds
// every attempt separately.
type TimeoutMiddleware struct {
	timeout *Timeout
}

// NewTimeoutMiddleware wraps a timeout as middleware.
func NewTimeoutMiddleware(t *Timeout) *TimeoutMiddleware {
	if t == nil {
		t = NewTimeout(TimeoutConfig{})
	}
	return &TimeoutMiddleware{timeout: t}
}

// Name returns "timeout".
func (m *TimeoutMiddleware) Name() string { return TimeoutMiddlewareName }

// Handle runs next under the attempt deadline.
func (m *TimeoutMiddleware) Handle(ctx context.Context, msg bus.Message, next bus.HandlerFunc) (any, error) {
	return m.timeout.Execute(ctx, func(ctx context.Context) (any, error) {
		return next(ctx, msg)
	})
}

func orNop(l observe.Logger) observe.Logger {
	if l == nil {
		return observe.NopLogger()
	}
	return l
}

var (
	_ bus.Middleware = (*RetryMiddleware)(nil)
	_ bus.Middleware = (*CircuitBreakerMiddleware)(nil)
	_ bus.Middleware = (*BulkheadMiddleware)(nil)
	_ bus.Middleware = (*RateLimitMiddleware)(nil)
	_ bus.Middleware = (*TimeoutMiddleware)(nil)
)
