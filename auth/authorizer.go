package auth

import (
	"context"
	"fmt"

	"github.com/jonwraymond/cmdbus/bus"
)

// ActionDispatch is the action checked for every bus dispatch.
const ActionDispatch = "dispatch"

// Authorizer determines if an identity may dispatch a message.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: nil means permitted; denials should be *AuthzError.
type Authorizer interface {
	// Authorize checks if the request is permitted.
	Authorize(ctx context.Context, req *AuthzRequest) error

	// Name returns a unique identifier for this authorizer.
	Name() string
}

// AuthzRequest contains the information needed for authorization.
type AuthzRequest struct {
	// Subject is the identity making the request.
	Subject *Identity

	// MessageType is the type key of the message being dispatched.
	MessageType string

	// Action is the requested action. Default: ActionDispatch
	Action string
}

// AuthzError represents an authorization failure.
type AuthzError struct {
	// Subject is the identity that was denied.
	Subject string

	// MessageType is the message type that was denied.
	MessageType string

	// Action is the action that was denied.
	Action string

	// Reason explains why access was denied.
	Reason string

	// Cause is the underlying error if any.
	Cause error
}

// Error returns the error message.
func (e *AuthzError) Error() string {
	return fmt.Sprintf("authorization denied: subject=%q message=%q action=%q reason=%q",
		e.Subject, e.MessageType, e.Action, e.Reason)
}

// Unwrap returns the cause error for errors.Is/As support.
func (e *AuthzError) Unwrap() error {
	return e.Cause
}

// Is matches ErrForbidden.
func (e *AuthzError) Is(target error) bool {
	return target == ErrForbidden
}

// ErrorKind returns bus.KindForbidden.
func (e *AuthzError) ErrorKind() bus.Kind { return bus.KindForbidden }

func subjectName(id *Identity) string {
	if id == nil {
		return ""
	}
	return id.Principal
}

// AllowAllAuthorizer permits all requests.
type AllowAllAuthorizer struct{}

// Authorize always returns nil (permitted).
func (AllowAllAuthorizer) Authorize(context.Context, *AuthzRequest) error { return nil }

// Name returns "allow_all".
func (AllowAllAuthorizer) Name() string { return "allow_all" }

// DenyAllAuthorizer denies all requests.
type DenyAllAuthorizer struct{}

// Authorize always returns an *AuthzError.
func (DenyAllAuthorizer) Authorize(_ context.Context, req *AuthzRequest) error {
	return &AuthzError{
		Subject:     subjectName(req.Subject),
		MessageType: req.MessageType,
		Action:      req.Action,
		Reason:      "all requests denied",
	}
}

// Name returns "deny_all".
func (DenyAllAuthorizer) Name() string { return "deny_all" }

// AuthorizerFunc is an adapter to allow use of ordinary functions as Authorizers.
type AuthorizerFunc func(ctx context.Context, req *AuthzRequest) error

// Authorize calls the function.
func (f AuthorizerFunc) Authorize(ctx context.Context, req *AuthzRequest) error {
	return f(ctx, req)
}

// Name returns "func".
func (f AuthorizerFunc) Name() string { return "func" }

var (
	_ Authorizer = AllowAllAuthorizer{}
	_ Authorizer = DenyAllAuthorizer{}
	_ Authorizer = AuthorizerFunc(nil)
)
