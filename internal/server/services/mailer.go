package services

import (
	"context"

	"github.com/dmitrijs2005/saasgate/internal/logging"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

// Mailer delivers account emails. Delivery itself lives outside this service.
type Mailer interface {
	SendVerification(ctx context.Context, to *models.User, token string) error
	SendPasswordReset(ctx context.Context, to *models.User, token string) error
}

// LogMailer logs messages instead of sending them. Tokens are not logged.
type LogMailer struct {
	log logging.Logger
}

func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: log.With("module", "mailer")}
}

func (m *LogMailer) SendVerification(ctx context.Context, to *models.User, _ string) error {
	m.log.Info(ctx, "verification email queued", "user_id", to.ID, "tenant_id", to.TenantIDOrEmpty())
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, to *models.User, _ string) error {
	m.log.Info(ctx, "password reset email queued", "user_id", to.ID, "tenant_id", to.TenantIDOrEmpty())
	return nil
}
