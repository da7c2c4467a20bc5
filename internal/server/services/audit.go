package services

import (
	"context"

	"github.com/dmitrijs2005/saasgate/internal/logging"
)

// Audit event names.
const (
	EventRegister           = "register"
	EventLoginSuccess       = "login_success"
	EventLoginFailure       = "login_failure"
	EventRefresh            = "token_refresh"
	EventReuseDetected      = "refresh_token_reuse"
	EventAllTokensRevoked   = "all_tokens_revoked"
	EventLogout             = "logout"
	EventPasswordReset      = "password_reset"
	EventEmailVerified      = "email_verified"
	EventImpersonationStart = "impersonation_start"
	EventImpersonationEnd   = "impersonation_end"
	EventTenantStatus       = "tenant_status_changed"
	EventTenantDomains      = "tenant_domains_changed"
	EventTenantFeatures     = "tenant_features_changed"
	EventHandoffExchanged   = "handoff_exchanged"
)

// Recorder counts audit events.
type Recorder interface {
	AuthEvent(name string)
}

// Audit writes security events to a dedicated logger and, when set, a Recorder.
type Audit struct {
	log logging.Logger
	rec Recorder
}

func NewAudit(log logging.Logger, rec Recorder) *Audit {
	return &Audit{log: log.With("module", "audit"), rec: rec}
}

func (a *Audit) Event(ctx context.Context, name string, kv ...any) {
	a.log.Info(ctx, name, append([]any{"event", name}, kv...)...)
	if a.rec != nil {
		a.rec.AuthEvent(name)
	}
}
