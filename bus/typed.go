package bus

import (
	"context"
	"fmt"
)

// Typed adapts a function over a concrete message type to a Handler.
//
// A message whose dynamic type is not M fails with a KindInternal error; this
// only happens when a type key is shared by two Go types.
func Typed[M Message, R any](fn func(ctx context.Context, msg M) (R, error)) HandlerFunc {
	return func(ctx context.Context, msg Message) (any, error) {
		m, ok := msg.(M)
		if !ok {
			var want M
			return nil, NewError(KindInternal, "handler for %q expects %T, got %T", msg.MessageType(), want, msg)
		}
		r, err := fn(ctx, m)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// DispatchAs dispatches msg and asserts the result to R.
//
// A nil result yields the zero value of R.
func DispatchAs[R any](ctx context.Context, d Dispatcher, msg Message) (R, error) {
	var zero R

	v, err := d.Dispatch(ctx, msg)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}

	r, ok := v.(R)
	if !ok {
		return zero, fmt.Errorf("%w: want %T, got %T", ErrResultType, zero, v)
	}
	return r, nil
}
