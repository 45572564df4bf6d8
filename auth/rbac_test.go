package auth

import (
	"context"
	"errors"
	"testing"
)

func testRBACConfig() RBACConfig {
	return RBACConfig{
		Roles: map[string]RoleConfig{
			"viewer": {
				AllowedMessages: []string{"Get*", "List*"},
			},
			"editor": {
				Inherits:        []string{"viewer"},
				AllowedMessages: []string{"CreateWidget", "UpdateWidget"},
			},
			"admin": {
				Inherits:       []string{"editor"},
				Permissions:    []string{"*"},
				DeniedMessages: []string{"DropDatabase"},
			},
			"auditor": {
				Permissions: []string{"Export*:dispatch", "Purge*:schedule"},
			},
		},
		DefaultRole: "viewer",
	}
}

func TestSimpleRBACAuthorizer_Authorize(t *testing.T) {
	authz := NewSimpleRBACAuthorizer(testRBACConfig())

	tests := []struct {
		name        string
		roles       []string
		messageType string
		action      string
		allowed     bool
	}{
		{name: "viewer reads", roles: []string{"viewer"}, messageType: "GetWidget", allowed: true},
		{name: "viewer cannot create", roles: []string{"viewer"}, messageType: "CreateWidget", allowed: false},
		{name: "editor creates", roles: []string{"editor"}, messageType: "CreateWidget", allowed: true},
		{name: "editor inherits viewer", roles: []string{"editor"}, messageType: "ListWidgets", allowed: true},
		{name: "editor cannot delete", roles: []string{"editor"}, messageType: "DeleteWidget", allowed: false},
		{name: "admin wildcard", roles: []string{"admin"}, messageType: "DeleteWidget", allowed: true},
		{name: "admin deny wins", roles: []string{"admin"}, messageType: "DropDatabase", allowed: false},
		{name: "default role", roles: nil, messageType: "GetWidget", allowed: true},
		{name: "default role limited", roles: nil, messageType: "CreateWidget", allowed: false},
		{name: "unknown role", roles: []string{"ghost"}, messageType: "GetWidget", allowed: false},
		{name: "permission with action", roles: []string{"auditor"}, messageType: "ExportWidgets", allowed: true},
		{name: "permission with other action", roles: []string{"auditor"}, messageType: "PurgeWidgets", allowed: false},
		{name: "explicit action", roles: []string{"auditor"}, messageType: "PurgeWidgets", action: "schedule", allowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &AuthzRequest{
				Subject:     &Identity{Principal: "u1", Roles: tt.roles},
				MessageType: tt.messageType,
				Action:      tt.action,
			}
			err := authz.Authorize(context.Background(), req)
			if tt.allowed && err != nil {
				t.Errorf("Authorize() error = %v, want nil", err)
			}
			if !tt.allowed {
				if err == nil {
					t.Fatal("Authorize() = nil, want denial")
				}
				if !errors.Is(err, ErrForbidden) {
					t.Errorf("Authorize() error = %v, want ErrForbidden", err)
				}
			}
		})
	}
}

func TestSimpleRBACAuthorizer_NilSubject(t *testing.T) {
	authz := NewSimpleRBACAuthorizer(testRBACConfig())

	err := authz.Authorize(context.Background(), &AuthzRequest{MessageType: "GetWidget"})

	var azErr *AuthzError
	if !errors.As(err, &azErr) {
		t.Fatalf("Authorize() error = %v, want *AuthzError", err)
	}
	if azErr.Reason != "no identity provided" {
		t.Errorf("Reason = %q", azErr.Reason)
	}
	if azErr.Action != ActionDispatch {
		t.Errorf("Action = %q, want %q", azErr.Action, ActionDispatch)
	}
}

func TestSimpleRBACAuthorizer_InheritanceCycle(t *testing.T) {
	authz := NewSimpleRBACAuthorizer(RBACConfig{
		Roles: map[string]RoleConfig{
			"a": {Inherits: []string{"b"}},
			"b": {Inherits: []string{"a"}, AllowedMessages: []string{"Ping"}},
		},
	})

	err := authz.Authorize(context.Background(), &AuthzRequest{
		Subject:     &Identity{Principal: "u", Roles: []string{"a"}},
		MessageType: "Ping",
	})
	if err != nil {
		t.Errorf("Authorize() error = %v, want nil", err)
	}
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		value   string
		want    bool
	}{
		{"*", "Anything", true},
		{"Get*", "GetWidget", true},
		{"Get*", "Get", true},
		{"Get*", "ListWidgets", false},
		{"CreateWidget", "CreateWidget", true},
		{"CreateWidget", "CreateWidgets", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.value, func(t *testing.T) {
			if got := matchPattern(tt.pattern, tt.value); got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.value, got, tt.want)
			}
		})
	}
}
