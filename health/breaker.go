package health

import (
	"context"
	"strings"

	"github.com/jonwraymond/cmdbus/resilience"
)

// BreakerChecker maps circuit breaker state to health: closed is healthy,
// half-open is degraded, open is unhealthy. With several breakers the worst
// one wins.
type BreakerChecker struct {
	name      string
	snapshots func() []resilience.CircuitBreakerSnapshot
}

// NewBreakerChecker reports a single breaker.
func NewBreakerChecker(cb *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{
		name: "circuit:" + cb.Name(),
		snapshots: func() []resilience.CircuitBreakerSnapshot {
			return []resilience.CircuitBreakerSnapshot{cb.Snapshot()}
		},
	}
}

// NewBreakerGroupChecker reports every breaker the group has created so far.
func NewBreakerGroupChecker(group *resilience.BreakerGroup) *BreakerChecker {
	return &BreakerChecker{
		name:      "circuits",
		snapshots: group.Snapshots,
	}
}

// Name returns "circuit:<breaker>" or "circuits" for a group.
func (c *BreakerChecker) Name() string { return c.name }

// Check snapshots the breakers.
func (c *BreakerChecker) Check(_ context.Context) Result {
	snaps := c.snapshots()
	if len(snaps) == 0 {
		return Healthy("no circuits")
	}

	var open, halfOpen []string
	details := make(map[string]any, len(snaps))
	for _, s := range snaps {
		details[s.Name] = map[string]any{
			"state":      s.State.String(),
			"failures":   s.Failures,
			"successes":  s.Successes,
			"rejections": s.Rejections,
		}
		switch s.State {
		case resilience.StateOpen:
			open = append(open, s.Name)
		case resilience.StateHalfOpen:
			halfOpen = append(halfOpen, s.Name)
		}
	}

	var r Result
	switch {
	case len(open) > 0:
		r = Unhealthy("circuit open: "+strings.Join(open, ", "), resilience.ErrCircuitOpen)
	case len(halfOpen) > 0:
		r = Degraded("circuit half-open: " + strings.Join(halfOpen, ", "))
	default:
		r = Healthy("all circuits closed")
	}
	return r.WithDetails(details)
}

var _ Checker = (*BreakerChecker)(nil)
