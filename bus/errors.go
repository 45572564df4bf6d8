package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Sentinel errors for routing failures.
var (
	// ErrHandlerNotFound is matched by HandlerNotFoundError.
	ErrHandlerNotFound = errors.New("bus: handler not found")

	// ErrHandlerAlreadyRegistered is matched by HandlerAlreadyRegisteredError.
	ErrHandlerAlreadyRegistered = errors.New("bus: handler already registered")

	// ErrNilMessage is returned when Dispatch receives a nil message.
	ErrNilMessage = errors.New("bus: message is nil")

	// ErrResultType is returned by DispatchAs when the result has an unexpected type.
	ErrResultType = errors.New("bus: unexpected result type")
)

// Kind classifies an error for retry, circuit-breaking and reporting decisions.
type Kind uint8

const (
	// KindUnknown is an unclassified error.
	KindUnknown Kind = iota
	// KindValidation means the caller's input is invalid. Never retried.
	KindValidation
	// KindNotFound means the target of the message does not exist.
	KindNotFound
	// KindConflict is an optimistic-lock or version mismatch. Never retried.
	KindConflict
	// KindUnauthenticated means the caller could not be identified.
	KindUnauthenticated
	// KindForbidden means the caller is not allowed to send the message.
	KindForbidden
	// KindTimeout is a deadline or I/O timeout.
	KindTimeout
	// KindConnectionRefused means a dependency refused the connection.
	KindConnectionRefused
	// KindTransientIO is a reset, broken pipe or truncated read.
	KindTransientIO
	// KindUnavailable means a local guard (bulkhead, rate limiter) rejected the call.
	KindUnavailable
	// KindCanceled means the caller canceled the dispatch.
	KindCanceled
	// KindRetryExhausted means all retry attempts failed.
	KindRetryExhausted
	// KindCircuitOpen means a circuit breaker rejected the call.
	KindCircuitOpen
	// KindRouting is a registration or lookup failure.
	KindRouting
	// KindInternal is an unexpected failure inside the pipeline.
	KindInternal
)

var kindNames = [...]string{
	KindUnknown:           "unknown",
	KindValidation:        "validation",
	KindNotFound:          "not_found",
	KindConflict:          "conflict",
	KindUnauthenticated:   "unauthenticated",
	KindForbidden:         "forbidden",
	KindTimeout:           "timeout",
	KindConnectionRefused: "connection_refused",
	KindTransientIO:       "transient_io",
	KindUnavailable:       "unavailable",
	KindCanceled:          "canceled",
	KindRetryExhausted:    "retry_exhausted",
	KindCircuitOpen:       "circuit_open",
	KindRouting:           "routing",
	KindInternal:          "internal",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Transient reports whether the kind describes a temporary infrastructure failure.
func (k Kind) Transient() bool {
	switch k {
	case KindTimeout, KindConnectionRefused, KindTransientIO:
		return true
	default:
		return false
	}
}

// Business reports whether the kind is a business-semantic outcome that must
// pass through every middleware untouched.
func (k Kind) Business() bool {
	switch k {
	case KindValidation, KindNotFound, KindConflict, KindUnauthenticated, KindForbidden:
		return true
	default:
		return false
	}
}

// kinded is implemented by errors that know their own Kind.
type kinded interface {
	ErrorKind() Kind
}

// KindOf classifies err. It walks the wrap chain and returns the first
// explicit kind it finds, falling back to well-known standard library errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var k kinded
	if errors.As(err, &k) {
		return k.ErrorKind()
	}

	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindConnectionRefused
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF):
		return KindTransientIO
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindUnknown
}

// Error is a classified error raised by handlers or middleware.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Message describes the failure.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// NewError creates a classified error.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies err as kind. It returns nil if err is nil.
func WrapError(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// Error returns the error message.
func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Kind.String() + ": " + e.Message
	case e.Message == "":
		return e.Kind.String() + ": " + e.Err.Error()
	default:
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// ErrorKind returns the error's classification.
func (e *Error) ErrorKind() Kind { return e.Kind }

// Validation returns a KindValidation error.
func Validation(format string, args ...any) error {
	return NewError(KindValidation, format, args...)
}

// NotFound returns a KindNotFound error.
func NotFound(format string, args ...any) error {
	return NewError(KindNotFound, format, args...)
}

// Conflict returns a KindConflict error.
func Conflict(format string, args ...any) error {
	return NewError(KindConflict, format, args...)
}

// HandlerNotFoundError is returned when no handler is registered for a type.
type HandlerNotFoundError struct {
	TypeKey string
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("bus: no handler registered for %q", e.TypeKey)
}

// Is matches ErrHandlerNotFound.
func (e *HandlerNotFoundError) Is(target error) bool { return target == ErrHandlerNotFound }

// ErrorKind returns KindRouting.
func (e *HandlerNotFoundError) ErrorKind() Kind { return KindRouting }

// HandlerAlreadyRegisteredError is returned when a type key is bound twice.
type HandlerAlreadyRegisteredError struct {
	TypeKey string
}

func (e *HandlerAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("bus: handler already registered for %q", e.TypeKey)
}

// Is matches ErrHandlerAlreadyRegistered.
func (e *HandlerAlreadyRegisteredError) Is(target error) bool {
	return target == ErrHandlerAlreadyRegistered
}

// ErrorKind returns KindRouting.
func (e *HandlerAlreadyRegisteredError) ErrorKind() Kind { return KindRouting }

// MiddlewareError reports an unexpected failure inside a middleware layer.
type MiddlewareError struct {
	// Middleware is the name of the failing layer.
	Middleware string

	// Err is the underlying failure.
	Err error
}

func (e *MiddlewareError) Error() string {
	return fmt.Sprintf("bus: middleware %s: %v", e.Middleware, e.Err)
}

// Unwrap returns the underlying failure.
func (e *MiddlewareError) Unwrap() error { return e.Err }

// ErrorKind returns KindInternal.
func (e *MiddlewareError) ErrorKind() Kind { return KindInternal }

// PanicError carries a value recovered from a panicking handler or middleware.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
