package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/logging"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

const (
	HandoffTTL       = 60 * time.Second
	handoffCodeBytes = 32
)

// HandoffService carries a sign-in completed on the shared OAuth callback
// host over to the tenant's own domain through a single-use code.
type HandoffService struct {
	store  Storage
	tokens *TokenService
	clock  clock.Clock
	log    logging.Logger
	audit  *Audit
}

func NewHandoffService(store Storage, tokens *TokenService, clk clock.Clock, log logging.Logger, audit *Audit) *HandoffService {
	if clk == nil {
		clk = clock.New()
	}
	return &HandoffService{
		store:  store,
		tokens: tokens,
		clock:  clk,
		log:    log.With("module", "handoff"),
		audit:  audit,
	}
}

// Create stores a code for userID valid for HandoffTTL. Expired codes are
// collected on the way.
func (h *HandoffService) Create(ctx context.Context, userID, tenantID, returnPath string) (string, error) {
	now := h.clock.Now()
	repo := h.store.HandoffCodes()

	if _, err := repo.DeleteExpired(ctx, now); err != nil {
		h.log.Warn(ctx, "handoff cleanup failed", "error", err)
	}

	code, err := common.MakeRandURLString(handoffCodeBytes)
	if err != nil {
		return "", fmt.Errorf("generate handoff code: %w", err)
	}
	err = repo.Create(ctx, &models.HandoffCode{
		Code:       code,
		UserID:     userID,
		TenantID:   tenantID,
		ReturnPath: SafeReturnPath(returnPath),
		ExpiresAt:  now.Add(HandoffTTL),
	})
	if err != nil {
		return "", fmt.Errorf("store handoff code: %w", err)
	}
	return code, nil
}

// HandoffResult is the session started by a redeemed code.
type HandoffResult struct {
	AuthResult
	ReturnPath string
}

// Exchange redeems code on the tenant's domain. The code must belong to
// tenantID and is consumed at most once; every failure is
// common.ErrInvalidHandoff unless the user has been deactivated.
func (h *HandoffService) Exchange(ctx context.Context, code, tenantID string) (*HandoffResult, error) {
	if code == "" {
		return nil, common.ErrInvalidHandoff
	}
	now := h.clock.Now()
	repo := h.store.HandoffCodes()

	c, err := repo.Find(ctx, code)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidHandoff
		}
		return nil, fmt.Errorf("find handoff code: %w", err)
	}
	if c.TenantID != tenantID || !c.Redeemable(now) {
		return nil, common.ErrInvalidHandoff
	}

	won, err := repo.MarkUsed(ctx, code, now)
	if err != nil {
		return nil, fmt.Errorf("consume handoff code: %w", err)
	}
	if !won {
		return nil, common.ErrInvalidHandoff
	}

	user, err := h.store.Users().FindByID(ctx, c.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidHandoff
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, common.ErrAccountDeactivated
	}
	if !user.InTenant(tenantID) {
		return nil, common.ErrInvalidHandoff
	}

	pair, err := h.tokens.IssuePair(ctx, user)
	if err != nil {
		return nil, err
	}
	h.audit.Event(ctx, EventHandoffExchanged, "user_id", user.ID, "tenant_id", tenantID)
	return &HandoffResult{AuthResult: AuthResult{User: user, Tokens: pair}, ReturnPath: c.ReturnPath}, nil
}

func (h *HandoffService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := h.store.HandoffCodes().DeleteExpired(ctx, h.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("purge handoff codes: %w", err)
	}
	return n, nil
}

// SafeReturnPath keeps only same-site absolute paths; anything else,
// including scheme-relative "//host" and backslash tricks, becomes "/".
// Control bytes are rejected too: browsers drop tabs and newlines, so
// "/\t/host" would reach them as "//host".
func SafeReturnPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, "\\") {
		return "/"
	}
	for i := 0; i < len(p); i++ {
		if p[i] < 0x20 || p[i] == 0x7f {
			return "/"
		}
	}
	return p
}
