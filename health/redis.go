package health

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisChecker pings the Redis deployment backing the idempotency store or
// locker.
type RedisChecker struct {
	name            string
	client          redis.UniversalClient
	degradedLatency time.Duration
}

// NewRedisChecker creates a checker. A ping slower than degradedLatency
// reports degraded; zero disables the latency check.
func NewRedisChecker(name string, client redis.UniversalClient, degradedLatency time.Duration) *RedisChecker {
	if name == "" {
		name = "redis"
	}
	return &RedisChecker{name: name, client: client, degradedLatency: degradedLatency}
}

// Name returns the checker name.
func (c *RedisChecker) Name() string { return c.name }

// Check issues PING.
func (c *RedisChecker) Check(ctx context.Context) Result {
	start := time.Now()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return Unhealthy("redis unreachable", err)
	}

	latency := time.Since(start)
	details := map[string]any{"latency": latency.String()}
	if c.degradedLatency > 0 && latency > c.degradedLatency {
		return Degraded("redis slow").WithDetails(details)
	}
	return Healthy("redis reachable").WithDetails(details)
}

var _ Checker = (*RedisChecker)(nil)
