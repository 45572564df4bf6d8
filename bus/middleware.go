package bus

import "context"

// Middleware wraps dispatch of a message.
//
// A middleware may observe, transform, short-circuit or retry the call to
// next before returning. It must return exactly one result per invocation.
//
// Contract:
// - Concurrency: Handle is called concurrently for unrelated messages.
// - Errors: errors returned by next should be propagated unchanged unless the
//   middleware's purpose is to translate them (e.g. retry exhaustion).
type Middleware interface {
	// Name identifies the layer in errors and introspection.
	Name() string

	// Handle processes msg, delegating to next.
	Handle(ctx context.Context, msg Message, next HandlerFunc) (any, error)
}

// MiddlewareFunc adapts a function to a Middleware.
type MiddlewareFunc struct {
	name string
	fn   func(ctx context.Context, msg Message, next HandlerFunc) (any, error)
}

// NewMiddlewareFunc creates a named Middleware from fn.
func NewMiddlewareFunc(name string, fn func(ctx context.Context, msg Message, next HandlerFunc) (any, error)) *MiddlewareFunc {
	return &MiddlewareFunc{name: name, fn: fn}
}

// Name returns the middleware name.
func (m *MiddlewareFunc) Name() string { return m.name }

// Handle calls the wrapped function.
func (m *MiddlewareFunc) Handle(ctx context.Context, msg Message, next HandlerFunc) (any, error) {
	return m.fn(ctx, msg, next)
}

// Chain is an ordered sequence of middleware, outermost first.
type Chain []Middleware

// Then wraps h with every middleware in the chain and returns the composed
// function. The chain is built from the inside out so that c[0] runs first.
func (c Chain) Then(h HandlerFunc) HandlerFunc {
	for i := len(c) - 1; i >= 0; i-- {
		mw := c[i]
		next := h
		h = func(ctx context.Context, msg Message) (any, error) {
			return mw.Handle(ctx, msg, next)
		}
	}
	return h
}

// Names returns the middleware names, outermost first.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, mw := range c {
		names[i] = mw.Name()
	}
	return names
}

var _ Middleware = (*MiddlewareFunc)(nil)
