package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/cmdbus/bus"
	"github.com/jonwraymond/cmdbus/resilience"
)

func ExampleRetry() {
	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		Jitter:     false,
	})

	attempts := 0
	v, err := retry.Execute(context.Background(), func(ctx context.Context) (any, error) {
		attempts++
		if attempts < 3 {
			return nil, bus.NewError(bus.KindConnectionRefused, "dial tcp: connection refused")
		}
		return "done", nil
	})

	fmt.Println(v, err, attempts)
	// Output: done <nil> 3
}

func ExampleCircuitBreaker() {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "inventory",
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
	})

	fail := func(ctx context.Context) (any, error) {
		return nil, bus.NewError(bus.KindTimeout, "inventory timed out")
	}

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(context.Background(), fail)
		fmt.Println(cb.State(), errors.Is(err, resilience.ErrCircuitOpen))
	}
	// Output:
	// closed false
	// open false
	// open true
}

func ExampleNewGroupCircuitBreakerMiddleware() {
	breakers := resilience.NewBreakerGroup(resilience.DefaultCircuitBreakerConfig())

	b := bus.New(bus.WithMiddleware(
		resilience.NewGroupCircuitBreakerMiddleware(breakers, nil, nil),
		resilience.NewRetryMiddleware(resilience.NewRetry(resilience.RetryConfig{BaseDelay: time.Millisecond})),
	))
	b.MustRegister("Ping", bus.HandlerFunc(func(ctx context.Context, msg bus.Message) (any, error) {
		return "pong", nil
	}))

	v, _ := b.Dispatch(context.Background(), bus.Envelope{Type: "Ping"})
	fmt.Println(v, b.Middlewares(), breakers.Names())
	// Output: pong [circuit_breaker retry] [Ping]
}
