package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonwraymond/cmdbus/bus"
	"github.com/jonwraymond/cmdbus/observe"
)

type deleteWidget struct{ ID string }

func (deleteWidget) MessageType() string { return "DeleteWidget" }

type getWidget struct{ ID string }

func (getWidget) MessageType() string { return "GetWidget" }

// recordingNext records the identity it was called with.
type recordingNext struct {
	calls    int
	identity *Identity
}

func (r *recordingNext) next(ctx context.Context, _ bus.Message) (any, error) {
	r.calls++
	r.identity = IdentityFromContext(ctx)
	return "ok", nil
}

func widgetRBAC() *SimpleRBACAuthorizer {
	return NewSimpleRBACAuthorizer(RBACConfig{
		Roles: map[string]RoleConfig{
			"viewer": {AllowedMessages: []string{"Get*"}},
			"admin":  {Inherits: []string{"viewer"}, AllowedMessages: []string{"*"}},
		},
	})
}

func TestMiddleware_Name(t *testing.T) {
	if got := NewMiddleware(nil).Name(); got != "authorization" {
		t.Errorf("Name() = %q, want authorization", got)
	}
}

func TestMiddleware_IdentityFromContext(t *testing.T) {
	mw := NewMiddleware(widgetRBAC())
	rec := &recordingNext{}
	id := &Identity{Principal: "alice", Roles: []string{"admin"}}

	result, err := mw.Handle(WithIdentity(context.Background(), id), deleteWidget{ID: "w1"}, rec.next)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if result != "ok" || rec.calls != 1 {
		t.Errorf("result = %v, calls = %d", result, rec.calls)
	}
	if rec.identity != id {
		t.Error("next should see the caller identity")
	}
}

func TestMiddleware_Errors(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name      string
		opts      []MiddlewareOption
		identity  *Identity
		msg       bus.Message
		wantKind  bus.Kind
		wantCause error
	}{
		{
			name:      "missing credentials",
			msg:       getWidget{},
			wantKind:  bus.KindUnauthenticated,
			wantCause: ErrMissingCredentials,
		},
		{
			name:      "expired identity",
			identity:  &Identity{Principal: "alice", Roles: []string{"admin"}, ExpiresAt: now.Add(-time.Minute)},
			msg:       getWidget{},
			wantKind:  bus.KindUnauthenticated,
			wantCause: ErrTokenExpired,
		},
		{
			name:      "forbidden",
			identity:  &Identity{Principal: "bob", Roles: []string{"viewer"}},
			msg:       deleteWidget{},
			wantKind:  bus.KindForbidden,
			wantCause: ErrForbidden,
		},
		{
			name:      "anonymous still authorized",
			opts:      []MiddlewareOption{WithAnonymous(true)},
			msg:       deleteWidget{},
			wantKind:  bus.KindForbidden,
			wantCause: ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]MiddlewareOption{WithNow(func() time.Time { return now })}, tt.opts...)
			mw := NewMiddleware(widgetRBAC(), opts...)
			rec := &recordingNext{}

			ctx := context.Background()
			if tt.identity != nil {
				ctx = WithIdentity(ctx, tt.identity)
			}

			_, err := mw.Handle(ctx, tt.msg, rec.next)
			if err == nil {
				t.Fatal("Handle() error = nil")
			}
			if got := bus.KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf() = %v, want %v", got, tt.wantKind)
			}
			if !errors.Is(err, tt.wantCause) {
				t.Errorf("Handle() error = %v, want %v", err, tt.wantCause)
			}
			if rec.calls != 0 {
				t.Error("next must not be called on denial")
			}
		})
	}
}

func TestMiddleware_Anonymous(t *testing.T) {
	mw := NewMiddleware(nil, WithAnonymous(true))
	rec := &recordingNext{}

	if _, err := mw.Handle(context.Background(), getWidget{}, rec.next); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.identity == nil || rec.identity.Method != AuthMethodAnonymous {
		t.Errorf("identity = %+v, want anonymous", rec.identity)
	}
}

func TestMiddleware_TokenAuthentication(t *testing.T) {
	authn := NewJWTAuthenticator(JWTConfig{RolesClaim: "roles"}, NewStaticKeyProvider(testSecret))
	mw := NewMiddleware(widgetRBAC(), WithAuthenticator(authn))

	t.Run("valid token", func(t *testing.T) {
		rec := &recordingNext{}
		token := signToken(t, validClaims(), "", testSecret)
		ctx := WithToken(context.Background(), "Bearer "+token)

		if _, err := mw.Handle(ctx, deleteWidget{}, rec.next); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if rec.identity == nil || rec.identity.Principal != "user123" {
			t.Errorf("identity = %+v, want user123", rec.identity)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := &recordingNext{}
		ctx := WithToken(context.Background(), "Bearer garbage")

		_, err := mw.Handle(ctx, getWidget{}, rec.next)

		var authnErr *AuthnError
		if !errors.As(err, &authnErr) {
			t.Fatalf("Handle() error = %v, want *AuthnError", err)
		}
		if !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("cause = %v, want ErrTokenMalformed", authnErr.Cause)
		}
	})

	t.Run("context identity wins over token", func(t *testing.T) {
		rec := &recordingNext{}
		id := &Identity{Principal: "svc", Roles: []string{"admin"}}
		ctx := WithToken(WithIdentity(context.Background(), id), "Bearer garbage")

		if _, err := mw.Handle(ctx, getWidget{}, rec.next); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if rec.identity != id {
			t.Error("token must not be consulted when ctx already carries an identity")
		}
	})
}

func TestMiddleware_AuthenticatorInternalError(t *testing.T) {
	broken := NewAuthenticatorFunc("broken", func(context.Context, *AuthRequest) (*AuthResult, error) {
		return nil, errors.New("key service unreachable")
	})
	mw := NewMiddleware(nil, WithAuthenticator(broken))

	_, err := mw.Handle(WithToken(context.Background(), "t"), getWidget{}, (&recordingNext{}).next)
	if bus.KindOf(err) != bus.KindInternal {
		t.Errorf("KindOf() = %v, want internal", bus.KindOf(err))
	}
}

func TestMiddleware_WrapsPlainDenial(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	authz := AuthorizerFunc(func(context.Context, *AuthzRequest) error {
		return errors.New("quota exhausted")
	})
	mw := NewMiddleware(authz, WithAnonymous(true), WithLogger(observe.NewZapLogger(zap.New(core))))

	_, err := mw.Handle(context.Background(), getWidget{}, (&recordingNext{}).next)

	var azErr *AuthzError
	if !errors.As(err, &azErr) {
		t.Fatalf("Handle() error = %v, want *AuthzError", err)
	}
	if azErr.Reason != "func denied" || azErr.Cause == nil {
		t.Errorf("AuthzError = %+v", azErr)
	}
	if bus.KindOf(err) != bus.KindForbidden {
		t.Errorf("KindOf() = %v, want forbidden", bus.KindOf(err))
	}
	if logs.FilterMessage("dispatch forbidden").Len() != 1 {
		t.Error("denial should be logged")
	}
}

func TestMiddleware_OnBus(t *testing.T) {
	b := bus.New(bus.WithMiddleware(NewMiddleware(widgetRBAC())))
	b.MustRegister("GetWidget", bus.HandlerFunc(func(ctx context.Context, msg bus.Message) (any, error) {
		return PrincipalFromContext(ctx) + ":" + msg.(getWidget).ID, nil
	}))

	ctx := WithIdentity(context.Background(), &Identity{Principal: "bob", Roles: []string{"viewer"}})
	got, err := b.Dispatch(ctx, getWidget{ID: "w1"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if got != "bob:w1" {
		t.Errorf("Dispatch() = %v, want bob:w1", got)
	}

	if _, err := b.Dispatch(context.Background(), getWidget{ID: "w1"}); bus.KindOf(err) != bus.KindUnauthenticated {
		t.Errorf("KindOf() = %v, want unauthenticated", bus.KindOf(err))
	}
}
