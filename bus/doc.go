// Package bus provides an in-process Command/Query bus.
//
// A Bus routes each Message to exactly one Handler, keyed by the string
// returned from Message.MessageType. Cross-cutting behavior (retry, circuit
// breaking, idempotency, observability) lives in Middleware composed into an
// immutable Chain when the Bus is constructed; the Bus itself only routes.
//
// # Usage
//
//	b := bus.New(bus.WithMiddleware(loggingMW, retryMW))
//
//	err := b.Register("CreateWidget", bus.Typed(func(ctx context.Context, cmd CreateWidget) (Widget, error) {
//	    return store.Create(ctx, cmd.Name)
//	}))
//
//	w, err := bus.DispatchAs[Widget](ctx, b, CreateWidget{Name: "w"})
//
// # Results and errors
//
// Every handler and middleware returns a (value, error) pair. Expected
// failures are error values classified by Kind (see KindOf); panics are
// reserved for programming errors and are recovered at the bus boundary.
//
// Callers typically construct one Bus per bounded context (commands and
// queries may share one or use two) and pass it explicitly; there is no
// package-level bus.
package bus
