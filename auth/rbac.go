package auth

import (
	"context"
	"strings"
)

// RBACConfig configures the simple RBAC authorizer.
type RBACConfig struct {
	// Roles defines role configurations.
	Roles map[string]RoleConfig

	// DefaultRole is assigned to identities without explicit roles.
	DefaultRole string
}

// RoleConfig defines what a role may dispatch.
type RoleConfig struct {
	// Permissions are "<messagePattern>" or "<messagePattern>:<action>"
	// strings (e.g., "Get*", "*:dispatch").
	Permissions []string

	// Inherits lists roles this role inherits from.
	Inherits []string

	// AllowedMessages lists message type patterns this role may dispatch.
	AllowedMessages []string

	// DeniedMessages lists message type patterns this role may never
	// dispatch. Denials take precedence within the role.
	DeniedMessages []string
}

// SimpleRBACAuthorizer provides role-based access control over message types.
type SimpleRBACAuthorizer struct {
	config RBACConfig
}

// NewSimpleRBACAuthorizer creates a new simple RBAC authorizer.
func NewSimpleRBACAuthorizer(config RBACConfig) *SimpleRBACAuthorizer {
	return &SimpleRBACAuthorizer{config: config}
}

// Name returns "simple_rbac".
func (a *SimpleRBACAuthorizer) Name() string {
	return "simple_rbac"
}

// Authorize permits the request if any of the subject's roles, including
// inherited ones, permits it.
func (a *SimpleRBACAuthorizer) Authorize(_ context.Context, req *AuthzRequest) error {
	action := req.Action
	if action == "" {
		action = ActionDispatch
	}

	if req.Subject == nil {
		return &AuthzError{
			MessageType: req.MessageType,
			Action:      action,
			Reason:      "no identity provided",
		}
	}

	for _, roleName := range a.collectRoles(req.Subject) {
		role, ok := a.config.Roles[roleName]
		if !ok {
			continue
		}
		if rolePermits(role, req.MessageType, action) {
			return nil
		}
	}

	return &AuthzError{
		Subject:     req.Subject.Principal,
		MessageType: req.MessageType,
		Action:      action,
		Reason:      "no role permits this message",
	}
}

// collectRoles expands the subject's roles breadth-first through Inherits.
func (a *SimpleRBACAuthorizer) collectRoles(subject *Identity) []string {
	pending := append([]string{}, subject.Roles...)
	if len(pending) == 0 && a.config.DefaultRole != "" {
		pending = append(pending, a.config.DefaultRole)
	}

	seen := make(map[string]bool)
	var result []string
	for len(pending) > 0 {
		current := pending[0]
		pending = pending[1:]

		if seen[current] {
			continue
		}
		seen[current] = true
		result = append(result, current)

		if role, ok := a.config.Roles[current]; ok {
			for _, inherited := range role.Inherits {
				if !seen[inherited] {
					pending = append(pending, inherited)
				}
			}
		}
	}
	return result
}

func rolePermits(role RoleConfig, messageType, action string) bool {
	for _, denied := range role.DeniedMessages {
		if matchPattern(denied, messageType) {
			return false
		}
	}

	for _, allowed := range role.AllowedMessages {
		if matchPattern(allowed, messageType) {
			return true
		}
	}

	for _, perm := range role.Permissions {
		if matchPermission(perm, messageType, action) {
			return true
		}
	}
	return false
}

// matchPattern matches a pattern against a value. A trailing "*" matches
// any suffix.
func matchPattern(pattern, value string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(value, prefix)
	}
	return pattern == value
}

// matchPermission matches "<messagePattern>" or "<messagePattern>:<action>".
func matchPermission(perm, messageType, action string) bool {
	pattern, permAction, hasAction := strings.Cut(perm, ":")
	if !matchPattern(pattern, messageType) {
		return false
	}
	return !hasAction || permAction == "*" || permAction == action
}

var _ Authorizer = (*SimpleRBACAuthorizer)(nil)
