package auth

import (
	"context"
	"errors"
	"testing"
)

func TestAllowAllAuthorizer(t *testing.T) {
	authz := AllowAllAuthorizer{}

	if authz.Name() != "allow_all" {
		t.Errorf("Name() = %v, want allow_all", authz.Name())
	}
	if err := authz.Authorize(context.Background(), &AuthzRequest{MessageType: "Anything"}); err != nil {
		t.Errorf("Authorize() error = %v, want nil", err)
	}
}

func TestDenyAllAuthorizer(t *testing.T) {
	authz := DenyAllAuthorizer{}

	if authz.Name() != "deny_all" {
		t.Errorf("Name() = %v, want deny_all", authz.Name())
	}

	err := authz.Authorize(context.Background(), &AuthzRequest{
		Subject:     &Identity{Principal: "alice"},
		MessageType: "CreateWidget",
		Action:      ActionDispatch,
	})

	var azErr *AuthzError
	if !errors.As(err, &azErr) {
		t.Fatalf("Authorize() error = %v, want *AuthzError", err)
	}
	if azErr.Subject != "alice" || azErr.MessageType != "CreateWidget" {
		t.Errorf("AuthzError = %+v", azErr)
	}

	if err := authz.Authorize(context.Background(), &AuthzRequest{MessageType: "X"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("nil subject: error = %v, want ErrForbidden", err)
	}
}

func TestAuthorizerFunc(t *testing.T) {
	authz := AuthorizerFunc(func(_ context.Context, req *AuthzRequest) error {
		if req.Subject != nil && req.Subject.HasRole("admin") {
			return nil
		}
		return ErrForbidden
	})

	if authz.Name() != "func" {
		t.Errorf("Name() = %v, want func", authz.Name())
	}
	if err := authz.Authorize(context.Background(), &AuthzRequest{Subject: &Identity{Roles: []string{"admin"}}}); err != nil {
		t.Errorf("admin: error = %v", err)
	}
	if err := authz.Authorize(context.Background(), &AuthzRequest{Subject: &Identity{}}); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-admin: error = %v, want ErrForbidden", err)
	}
}

func TestAuthenticatorFunc(t *testing.T) {
	a := NewAuthenticatorFunc("static", func(_ context.Context, req *AuthRequest) (*AuthResult, error) {
		if req.Token == "letmein" {
			return AuthSuccess(&Identity{Principal: "bob", Method: AuthMethodInternal}), nil
		}
		return AuthFailure(ErrInvalidCredentials, "static"), nil
	})

	if a.Name() != "static" {
		t.Errorf("Name() = %v, want static", a.Name())
	}

	ok, err := a.Authenticate(context.Background(), &AuthRequest{Token: "letmein"})
	if err != nil || !ok.Authenticated || ok.Identity.Principal != "bob" {
		t.Errorf("Authenticate(letmein) = %+v, %v", ok, err)
	}
	if ok.Method != string(AuthMethodInternal) {
		t.Errorf("Method = %q, want internal", ok.Method)
	}

	bad, err := a.Authenticate(context.Background(), &AuthRequest{Token: "nope"})
	if err != nil || bad.Authenticated || !errors.Is(bad.Error, ErrInvalidCredentials) {
		t.Errorf("Authenticate(nope) = %+v, %v", bad, err)
	}
}
