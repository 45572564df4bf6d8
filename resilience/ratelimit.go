package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures the token bucket.
type RateLimiterConfig struct {
	// Rate is the number of dispatches allowed per second.
	// Default: 100
	Rate float64

	// Burst is the bucket capacity.
	// Default: 10
	Burst int

	// WaitOnLimit queues a dispatch for a token instead of rejecting it.
	// Default: false
	WaitOnLimit bool

	// MaxWait bounds how long a queued dispatch waits for a token.
	// Default: 1s
	MaxWait time.Duration

	// Clock supplies the current time.
	// Default: time.Now
	Clock Clock
}

// RateLimiter is a token bucket limiter.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: rejections wrap ErrRateLimitExceeded and classify as bus.KindUnavailable.
type RateLimiter struct {
	config RateLimiterConfig

	mu       sync.Mutex
	tokens   float64
	refilled time.Time
	rejected int64
}

// NewRateLimiter creates a limiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 100
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if config.MaxWait <= 0 {
		config.MaxWait = time.Second
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &RateLimiter{
		config:   config,
		tokens:   float64(config.Burst),
		refilled: config.Clock(),
	}
}

// Allow takes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available, MaxWait elapses, or ctx ends.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rl.Allow() {
		return nil
	}

	rl.mu.Lock()
	wait := time.Duration((1 - rl.tokens) / rl.config.Rate * float64(time.Second))
	rl.mu.Unlock()

	if wait > rl.config.MaxWait {
		wait = rl.config.MaxWait
	}
	if err := sleep(ctx, wait); err != nil {
		return err
	}
	if rl.Allow() {
		return nil
	}
	return rl.reject()
}

// Admit applies the configured policy: wait for a token or reject at once.
func (rl *RateLimiter) Admit(ctx context.Context) error {
	if rl.config.WaitOnLimit {
		return rl.Wait(ctx)
	}
	if !rl.Allow() {
		return rl.reject()
	}
	return nil
}

// Execute runs op if the limiter admits it.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) (any, error)) (any, error) {
	if err := rl.Admit(ctx); err != nil {
		return nil, err
	}
	return op(ctx)
}

// Tokens returns the number of available tokens.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()
	return rl.tokens
}

// Rejected returns the number of rejected dispatches.
func (rl *RateLimiter) Rejected() int64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.rejected
}

// Reset refills the bucket.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = float64(rl.config.Burst)
	rl.refilled = rl.config.Clock()
}

func (rl *RateLimiter) reject() error {
	rl.mu.Lock()
	rl.rejected++
	rl.mu.Unlock()
	return unavailable(ErrRateLimitExceeded)
}

func (rl *RateLimiter) refillLocked() {
	now := rl.config.Clock()
	elapsed := now.Sub(rl.refilled)
	rl.refilled = now
	if elapsed <= 0 {
		return
	}

	rl.tokens += elapsed.Seconds() * rl.config.Rate
	if rl.tokens > float64(rl.config.Burst) {
		rl.tokens = float64(rl.config.Burst)
	}
}
