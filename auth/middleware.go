package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/cmdbus/bus"
	"github.com/jonwraymond/cmdbus/observe"
)

// MiddlewareName is the name reported by bus.Bus.Middlewares.
const MiddlewareName = "authorization"

// Middleware establishes the caller's identity and checks that it may
// dispatch the message.
//
// Contract:
//   - Concurrency: safe for concurrent use if the Authenticator and
//     Authorizer are.
//   - Context: the identity is attached to the ctx passed to next.
//   - Errors: unidentified callers get *AuthnError (KindUnauthenticated);
//     denials get *AuthzError (KindForbidden). Neither calls next.
type Middleware struct {
	authorizer     Authorizer
	authenticator  Authenticator
	allowAnonymous bool
	logger         observe.Logger
	now            func() time.Time
}

// MiddlewareOption configures a Middleware.
type MiddlewareOption func(*Middleware)

// WithAuthenticator authenticates the ctx token (see WithToken) when ctx
// carries no identity.
func WithAuthenticator(a Authenticator) MiddlewareOption {
	return func(m *Middleware) {
		m.authenticator = a
	}
}

// WithAnonymous lets callers without credentials proceed as
// AnonymousIdentity; the authorizer still decides.
func WithAnonymous(allow bool) MiddlewareOption {
	return func(m *Middleware) {
		m.allowAnonymous = allow
	}
}

// WithLogger logs denials.
func WithLogger(l observe.Logger) MiddlewareOption {
	return func(m *Middleware) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithNow replaces the clock used for identity expiry.
func WithNow(now func() time.Time) MiddlewareOption {
	return func(m *Middleware) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMiddleware creates the authorization middleware. A nil authorizer
// permits every identified caller.
func NewMiddleware(authorizer Authorizer, opts ...MiddlewareOption) *Middleware {
	if authorizer == nil {
		authorizer = AllowAllAuthorizer{}
	}
	m := &Middleware{
		authorizer: authorizer,
		logger:     observe.NopLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns "authorization".
func (m *Middleware) Name() string { return MiddlewareName }

// Handle authenticates if needed, authorizes, then calls next.
func (m *Middleware) Handle(ctx context.Context, msg bus.Message, next bus.HandlerFunc) (any, error) {
	messageType := msg.MessageType()

	id, err := m.identify(ctx, messageType)
	if err != nil {
		m.logger.Warn(ctx, "dispatch unauthenticated",
			observe.Field{Key: "message.type", Value: messageType},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return nil, err
	}
	ctx = WithIdentity(ctx, id)

	req := &AuthzRequest{Subject: id, MessageType: messageType, Action: ActionDispatch}
	if err := m.authorizer.Authorize(ctx, req); err != nil {
		var azErr *AuthzError
		if !errors.As(err, &azErr) {
			err = &AuthzError{
				Subject:     id.Principal,
				MessageType: messageType,
				Action:      ActionDispatch,
				Reason:      m.authorizer.Name() + " denied",
				Cause:       err,
			}
		}
		m.logger.Warn(ctx, "dispatch forbidden",
			observe.Field{Key: "message.type", Value: messageType},
			observe.Field{Key: "principal", Value: id.Principal},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return nil, err
	}

	return next(ctx, msg)
}

func (m *Middleware) identify(ctx context.Context, messageType string) (*Identity, error) {
	id := IdentityFromContext(ctx)

	if id == nil && m.authenticator != nil {
		if token := TokenFromContext(ctx); token != "" {
			result, err := m.authenticator.Authenticate(ctx, &AuthRequest{Token: token, MessageType: messageType})
			if err != nil {
				return nil, bus.WrapError(bus.KindInternal, err, m.authenticator.Name()+" authenticator")
			}
			if !result.Authenticated {
				cause := result.Error
				if cause == nil {
					cause = ErrInvalidCredentials
				}
				return nil, &AuthnError{MessageType: messageType, Cause: cause}
			}
			id = result.Identity
		}
	}

	if id == nil {
		if !m.allowAnonymous {
			return nil, &AuthnError{MessageType: messageType, Cause: ErrMissingCredentials}
		}
		id = AnonymousIdentity()
	}

	if id.ExpiredAt(m.now()) {
		return nil, &AuthnError{MessageType: messageType, Cause: ErrTokenExpired}
	}
	return id, nil
}

var _ bus.Middleware = (*Middleware)(nil)
