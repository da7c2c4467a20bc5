// Package common defines sentinel errors, header and cookie names, and
// random-token helpers shared by the saasgate server layers. Callers should
// use errors.Is to match the error values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Generic service errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Tenant resolution.
	ErrMalformedHost     = errors.New("malformed host")
	ErrTenantNotFound    = errors.New("tenant not configured")
	ErrTenantSuspended   = errors.New("tenant suspended")
	ErrTenantUnavailable = errors.New("tenant temporarily unavailable")

	// Credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnverifiedEmail    = errors.New("email address not verified")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password does not meet requirements")

	// Token lifecycle.
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrInvalidSession = errors.New("invalid session")
	ErrSessionExpired = errors.New("session expired")
	ErrTokenReuse     = errors.New("refresh token reuse detected, all sessions revoked")
	ErrInvalidHandoff = errors.New("handoff code invalid or expired")
	ErrInvalidState   = errors.New("oauth state invalid or expired")

	// Authorization.
	ErrNotAuthorized = errors.New("not authorized")

	// Tenant management.
	ErrDomainTaken   = errors.New("domain already claimed")
	ErrInvalidStatus = errors.New("invalid tenant status")
)
