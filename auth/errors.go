package auth

import (
	"errors"

	"github.com/jonwraymond/cmdbus/bus"
)

// Sentinel errors for authentication and authorization.
var (
	// Authentication errors
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")
	ErrKeyNotFound        = errors.New("auth: signing key not found")

	// Authorization errors
	ErrForbidden = errors.New("auth: access denied")
)

// AuthnError reports that the caller could not be identified.
type AuthnError struct {
	// MessageType is the message being dispatched.
	MessageType string

	// Cause is one of the authentication sentinels.
	Cause error
}

func (e *AuthnError) Error() string {
	return "authentication failed for " + e.MessageType + ": " + e.Cause.Error()
}

// Unwrap returns the cause.
func (e *AuthnError) Unwrap() error { return e.Cause }

// ErrorKind returns bus.KindUnauthenticated.
func (e *AuthnError) ErrorKind() bus.Kind { return bus.KindUnauthenticated }
