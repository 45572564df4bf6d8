// Package auth provides identity and authorization for bus dispatches.
//
// An Identity travels in the context. The authorization Middleware takes it
// from there, or authenticates a bearer token attached with WithToken, and
// asks an Authorizer whether the identity may dispatch the message type.
// JWTAuthenticator validates HMAC-signed JWTs; SimpleRBACAuthorizer maps
// roles to message type patterns.
package auth
