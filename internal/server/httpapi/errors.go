package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/server/services"
)

// Machine-readable rejection codes.
const (
	CodeMalformedHost      = "malformed-host"
	CodeTenantNotFound     = "tenant-not-found"
	CodeTenantSuspended    = "tenant-suspended"
	CodeTenantUnavailable  = "tenant-unavailable"
	CodeInvalidCredentials = "invalid-credentials"
	CodeUnverifiedEmail    = "unverified-email"
	CodeAccountDeactivated = "account-deactivated"
	CodeInvalidSession     = "invalid-session"
	CodeReuseDetected      = "reuse-detected"
	CodeNotAuthorized      = "not-authorized"
	CodeUnauthenticated    = "unauthenticated"
	CodeValidationFailed   = "validation-failed"
	CodeConflict           = "conflict"
	CodeNotFound           = "not-found"
	CodeRateLimited        = "rate-limited"
	CodeInternal           = "internal"
)

type apiError struct {
	status  int
	code    string
	message string
}

var errorTable = []struct {
	err error
	apiError
}{
	{common.ErrMalformedHost, apiError{http.StatusBadRequest, CodeMalformedHost, "Host header is missing or malformed"}},
	{common.ErrTenantNotFound, apiError{http.StatusNotFound, CodeTenantNotFound, "No tenant is configured for this domain"}},
	{common.ErrTenantSuspended, apiError{http.StatusForbidden, CodeTenantSuspended, "This account has been suspended"}},
	{common.ErrTenantUnavailable, apiError{http.StatusServiceUnavailable, CodeTenantUnavailable, "This site is temporarily unavailable"}},
	{common.ErrInvalidCredentials, apiError{http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password"}},
	{common.ErrUnverifiedEmail, apiError{http.StatusUnauthorized, CodeUnverifiedEmail, "Please verify your email address"}},
	{common.ErrAccountDeactivated, apiError{http.StatusUnauthorized, CodeAccountDeactivated, "This account has been deactivated"}},
	{common.ErrTokenReuse, apiError{http.StatusUnauthorized, CodeReuseDetected, "Session reuse detected, please sign in again"}},
	{common.ErrInvalidSession, apiError{http.StatusUnauthorized, CodeInvalidSession, "Invalid session"}},
	{common.ErrSessionExpired, apiError{http.StatusUnauthorized, CodeInvalidSession, "Invalid session"}},
	{common.ErrInvalidToken, apiError{http.StatusUnauthorized, CodeInvalidSession, "Invalid session"}},
	{common.ErrTokenExpired, apiError{http.StatusUnauthorized, CodeInvalidSession, "Invalid session"}},
	{common.ErrInvalidHandoff, apiError{http.StatusUnauthorized, CodeInvalidSession, "Sign-in link is invalid or expired"}},
	{common.ErrInvalidState, apiError{http.StatusUnauthorized, CodeInvalidSession, "Sign-in request is invalid or expired"}},
	{common.ErrorUnauthorized, apiError{http.StatusUnauthorized, CodeUnauthenticated, "Authentication required"}},
	{common.ErrNotAuthorized, apiError{http.StatusForbidden, CodeNotAuthorized, "Not authorized"}},
	{common.ErrEmailTaken, apiError{http.StatusConflict, CodeConflict, "Email already registered"}},
	{common.ErrDomainTaken, apiError{http.StatusConflict, CodeConflict, "Domain already claimed"}},
	{common.ErrWeakPassword, apiError{http.StatusBadRequest, CodeValidationFailed, "Password must be 8 to 72 bytes long"}},
	{common.ErrInvalidStatus, apiError{http.StatusBadRequest, CodeValidationFailed, "Unknown tenant status"}},
	{common.ErrorNotFound, apiError{http.StatusNotFound, CodeNotFound, "Not found"}},
	{services.ErrOAuthDisabled, apiError{http.StatusNotFound, CodeNotFound, "Sign-in provider is not enabled"}},
}

var internalError = apiError{http.StatusInternalServerError, CodeInternal, "Internal server error"}

// validationError carries a request validation message to the client.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

// transportError is a rejection raised by the HTTP layer itself.
type transportError struct {
	apiError
}

func (e *transportError) Error() string { return e.message }

var (
	errRateLimited     = &transportError{apiError{http.StatusTooManyRequests, CodeRateLimited, "Too many requests, try again later"}}
	errUnauthenticated = &transportError{apiError{http.StatusUnauthorized, CodeUnauthenticated, "Authentication required"}}
)

func classify(err error) (apiError, bool) {
	var ve *validationError
	if errors.As(err, &ve) {
		return apiError{http.StatusBadRequest, CodeValidationFailed, ve.msg}, true
	}
	var te *transportError
	if errors.As(err, &te) {
		return te.apiError, true
	}
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.apiError, true
		}
	}
	return internalError, false
}

type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// writeError renders err as the JSON error body. Unknown errors are logged
// and reported as internal without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, known := classify(err)
	if !known {
		s.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, e.status, errorBody{StatusCode: e.status, Code: e.code, Message: e.message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
