package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/logging"
	"github.com/dmitrijs2005/saasgate/internal/server/auth"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

// ImpersonationResult is an access token for the assumed identity. It never
// carries a refresh token.
type ImpersonationResult struct {
	AccessToken string
	ExpiresAt   time.Time
	User        *models.User
}

// ImpersonationController lets an OWNER act as a tenant user and return.
type ImpersonationController struct {
	store  Storage
	tokens *TokenService
	log    logging.Logger
	audit  *Audit
}

func NewImpersonationController(store Storage, tokens *TokenService, log logging.Logger, audit *Audit) *ImpersonationController {
	return &ImpersonationController{
		store:  store,
		tokens: tokens,
		log:    log.With("module", "impersonation"),
		audit:  audit,
	}
}

// Start issues an impersonation access token for targetUserID. The owner
// is re-read from storage; claims supplied by the caller are not trusted.
// Every rejection is common.ErrNotAuthorized and issues nothing.
func (c *ImpersonationController) Start(ctx context.Context, ownerID, targetUserID, targetTenantID string) (*ImpersonationResult, error) {
	owner, err := c.requireOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	target, err := c.store.Users().FindByID(ctx, targetUserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, c.deny(ctx, ownerID, "target_not_found")
		}
		return nil, fmt.Errorf("load target: %w", err)
	}
	switch {
	case !target.IsActive:
		return nil, c.deny(ctx, ownerID, "target_inactive")
	case target.Role == models.RoleOwner:
		return nil, c.deny(ctx, ownerID, "target_is_owner")
	case !target.InTenant(targetTenantID):
		return nil, c.deny(ctx, ownerID, "tenant_mismatch")
	}

	id := auth.IdentityOf(target)
	id.ImpersonatedBy = owner.ID
	token, exp, err := c.tokens.IssueAccessToken(id)
	if err != nil {
		return nil, fmt.Errorf("sign impersonation token: %w", err)
	}

	c.audit.Event(ctx, EventImpersonationStart, "owner_id", owner.ID, "target_user_id", target.ID, "tenant_id", targetTenantID)
	return &ImpersonationResult{AccessToken: token, ExpiresAt: exp, User: target}, nil
}

// End mints a plain owner access token. ownerID comes from the impersonatedBy
// claim of a verified impersonation token.
func (c *ImpersonationController) End(ctx context.Context, ownerID string) (*ImpersonationResult, error) {
	owner, err := c.requireOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	token, exp, err := c.tokens.IssueAccessToken(auth.IdentityOf(owner))
	if err != nil {
		return nil, fmt.Errorf("sign owner token: %w", err)
	}

	c.audit.Event(ctx, EventImpersonationEnd, "owner_id", owner.ID)
	return &ImpersonationResult{AccessToken: token, ExpiresAt: exp, User: owner}, nil
}

func (c *ImpersonationController) requireOwner(ctx context.Context, ownerID string) (*models.User, error) {
	if ownerID == "" {
		return nil, c.deny(ctx, ownerID, "no_owner")
	}
	owner, err := c.store.Users().FindByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, c.deny(ctx, ownerID, "owner_not_found")
		}
		return nil, fmt.Errorf("load owner: %w", err)
	}
	if owner.Role != models.RoleOwner || !owner.IsActive {
		return nil, c.deny(ctx, ownerID, "not_owner")
	}
	return owner, nil
}

func (c *ImpersonationController) deny(ctx context.Context, ownerID, reason string) error {
	c.log.Warn(ctx, "impersonation denied", "owner_id", ownerID, "reason", reason)
	return common.ErrNotAuthorized
}
