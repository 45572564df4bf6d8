package bus

import (
	"context"
	"runtime/debug"
)

// PanicHook is called with the value recovered from a panicking dispatch.
type PanicHook func(ctx context.Context, msg Message, recovered any, stack []byte)

// Bus dispatches messages to their registered handler through a fixed
// middleware chain.
//
// Contract:
// - Concurrency: Dispatch is safe for concurrent use; Register is meant for
//   startup but is also safe.
// - Errors: Dispatch returns the handler's result or exactly one error.
type Bus struct {
	registry  *Registry
	chain     Chain
	panicHook PanicHook
}

// Option configures a Bus.
type Option func(*Bus)

// WithMiddleware appends middleware to the chain, outermost first.
func WithMiddleware(mw ...Middleware) Option {
	return func(b *Bus) {
		for _, m := range mw {
			if m != nil {
				b.chain = append(b.chain, m)
			}
		}
	}
}

// WithPanicHook sets a callback invoked when a dispatch panics.
func WithPanicHook(hook PanicHook) Option {
	return func(b *Bus) {
		b.panicHook = hook
	}
}

// New creates a Bus. The middleware chain is fixed for the lifetime of the Bus.
func New(opts ...Option) *Bus {
	b := &Bus{registry: NewRegistry()}
	for _, opt := range opts {
		opt(b)
	}
	// Detach from the option slice so later appends by callers cannot alias it.
	b.chain = append(Chain(nil), b.chain...)
	return b
}

// Register binds a handler to typeKey. The handler is wrapped by the chain once
// here, so dispatch only performs a map lookup.
func (b *Bus) Register(typeKey string, h Handler) error {
	if h == nil {
		return Validation("handler for %q is nil", typeKey)
	}
	return b.registry.Register(typeKey, b.chain.Then(h.Handle))
}

// MustRegister is like Register but panics on error. It is intended for
// startup wiring where a duplicate registration is a programming error.
func (b *Bus) MustRegister(typeKey string, h Handler) {
	if err := b.Register(typeKey, h); err != nil {
		panic(err)
	}
}

// Dispatch routes msg to its handler through the middleware chain.
func (b *Bus) Dispatch(ctx context.Context, msg Message) (result any, err error) {
	if msg == nil {
		return nil, &Error{Kind: KindValidation, Message: "dispatch", Err: ErrNilMessage}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	typeKey := msg.MessageType()
	h, ok := b.registry.Lookup(typeKey)
	if !ok {
		return nil, &HandlerNotFoundError{TypeKey: typeKey}
	}

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			if b.panicHook != nil {
				b.panicHook(ctx, msg, r, stack)
			}
			result = nil
			err = &MiddlewareError{Middleware: "bus", Err: &PanicError{Value: r, Stack: stack}}
		}
	}()

	return h(ctx, msg)
}

// Has reports whether a handler is registered for typeKey.
func (b *Bus) Has(typeKey string) bool {
	_, ok := b.registry.Lookup(typeKey)
	return ok
}

// Types returns the registered type keys in sorted order.
func (b *Bus) Types() []string {
	return b.registry.Types()
}

// Middlewares returns the chain's middleware names, outermost first.
func (b *Bus) Middlewares() []string {
	return b.chain.Names()
}

// Dispatcher is anything that can dispatch a message.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) (any, error)
}

var _ Dispatcher = (*Bus)(nil)
