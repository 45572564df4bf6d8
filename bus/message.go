package bus

import "context"

// Message is a command or query routed by its type key.
//
// Messages are values created by the caller and must not be mutated after
// dispatch.
type Message interface {
	// MessageType returns the key used for handler lookup.
	MessageType() string
}

// Idempotent is implemented by messages that carry an idempotency key.
// An empty key means the message is not deduplicated.
type Idempotent interface {
	Message
	IdempotencyKey() string
}

// IdempotencyKeyOf returns the idempotency key of msg, if it has one.
func IdempotencyKeyOf(msg Message) (string, bool) {
	im, ok := msg.(Idempotent)
	if !ok {
		return "", false
	}
	key := im.IdempotencyKey()
	return key, key != ""
}

// Envelope is a dynamic message for callers that do not declare a Go type per
// message kind.
type Envelope struct {
	// Type is the handler lookup key.
	Type string

	// Key is the optional idempotency key.
	Key string

	// Payload is the message body passed to the handler untouched.
	Payload any
}

// MessageType returns the envelope type key.
func (e Envelope) MessageType() string { return e.Type }

// IdempotencyKey returns the envelope idempotency key.
func (e Envelope) IdempotencyKey() string { return e.Key }

// Handler handles one message type.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: implementations should honor cancellation in their own I/O.
// - Errors: expected failures are returned as errors, never panics.
type Handler interface {
	Handle(ctx context.Context, msg Message) (any, error)
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc func(ctx context.Context, msg Message) (any, error)

// Handle calls f(ctx, msg).
func (f HandlerFunc) Handle(ctx context.Context, msg Message) (any, error) {
	return f(ctx, msg)
}

var (
	_ Handler    = HandlerFunc(nil)
	_ Idempotent = Envelope{}
)
