package auth

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jonwraymond/cmdbus/bus"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrMissingCredentials", ErrMissingCredentials},
		{"ErrInvalidCredentials", ErrInvalidCredentials},
		{"ErrTokenExpired", ErrTokenExpired},
		{"ErrTokenMalformed", ErrTokenMalformed},
		{"ErrKeyNotFound", ErrKeyNotFound},
		{"ErrForbidden", ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasPrefix(tt.err.Error(), "auth: ") {
				t.Errorf("%s = %q, want auth: prefix", tt.name, tt.err)
			}
		})
	}
}

func TestAuthnError(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", &AuthnError{MessageType: "CreateWidget", Cause: ErrTokenExpired})

	if !errors.Is(err, ErrTokenExpired) {
		t.Error("AuthnError should unwrap to its cause")
	}
	if bus.KindOf(err) != bus.KindUnauthenticated {
		t.Errorf("KindOf() = %v, want unauthenticated", bus.KindOf(err))
	}
	if !strings.Contains(err.Error(), "CreateWidget") {
		t.Errorf("Error() = %q, want message type", err)
	}
}

func TestAuthzError(t *testing.T) {
	cause := errors.New("policy engine down")
	err := &AuthzError{
		Subject:     "alice",
		MessageType: "DeleteWidget",
		Action:      ActionDispatch,
		Reason:      "no role permits this message",
		Cause:       cause,
	}

	if !errors.Is(err, ErrForbidden) {
		t.Error("AuthzError should match ErrForbidden")
	}
	if !errors.Is(err, cause) {
		t.Error("AuthzError should unwrap to its cause")
	}
	if bus.KindOf(err) != bus.KindForbidden {
		t.Errorf("KindOf() = %v, want forbidden", bus.KindOf(err))
	}
	if !bus.KindOf(err).Business() {
		t.Error("forbidden must be a business kind so retry and breaker ignore it")
	}

	want := `authorization denied: subject="alice" message="DeleteWidget" action="dispatch" reason="no role permits this message"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
