// Package services contains server-side business logic: the token lifecycle,
// credential flows, impersonation, OAuth handoff and tenant management hooks.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/dbx"
	"github.com/dmitrijs2005/saasgate/internal/logging"
	"github.com/dmitrijs2005/saasgate/internal/server/auth"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

const (
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	// refreshTokenBytes of entropy, hex encoded.
	refreshTokenBytes = 32
	touchTimeout      = 5 * time.Second
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Principal is the authenticated caller behind a valid access token.
type Principal struct {
	User *models.User
	// TenantID is the tenant the token is scoped to; empty for owners.
	TenantID        string
	IsImpersonating bool
	ImpersonatedBy  string
}

// TokenService issues, rotates and revokes tokens.
type TokenService struct {
	store      Storage
	signer     *auth.Signer
	refreshTTL time.Duration
	clock      clock.Clock
	log        logging.Logger
	audit      *Audit

	bg sync.WaitGroup
}

func NewTokenService(store Storage, signer *auth.Signer, refreshTTL time.Duration, clk clock.Clock, log logging.Logger, audit *Audit) *TokenService {
	if clk == nil {
		clk = clock.New()
	}
	return &TokenService{
		store:      store,
		signer:     signer,
		refreshTTL: refreshTTL,
		clock:      clk,
		log:        log.With("module", "tokens"),
		audit:      audit,
	}
}

// IssueAccessToken signs a stateless access token for id.
func (s *TokenService) IssueAccessToken(id auth.Identity) (string, time.Time, error) {
	return s.signer.Sign(id)
}

// IssueRefreshToken persists a new live refresh token for userID.
func (s *TokenService) IssueRefreshToken(ctx context.Context, userID string) (string, time.Time, error) {
	return s.createRefreshToken(ctx, s.store.DB, userID)
}

func (s *TokenService) createRefreshToken(ctx context.Context, db dbx.DBTX, userID string) (string, time.Time, error) {
	token, err := common.MakeRandHexString(refreshTokenBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate refresh token: %w", err)
	}
	exp := s.clock.Now().Add(s.refreshTTL)
	if err := s.store.Repos.RefreshTokens(db).Create(ctx, userID, token, exp); err != nil {
		return "", time.Time{}, fmt.Errorf("store refresh token: %w", err)
	}
	return token, exp, nil
}

// IssuePair starts a new rotation chain for u.
func (s *TokenService) IssuePair(ctx context.Context, u *models.User) (*TokenPair, error) {
	return s.issuePair(ctx, s.store.DB, u)
}

func (s *TokenService) issuePair(ctx context.Context, db dbx.DBTX, u *models.User) (*TokenPair, error) {
	access, accessExp, err := s.signer.Sign(auth.IdentityOf(u))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, refreshExp, err := s.createRefreshToken(ctx, db, u.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

var errRotationLost = errors.New("refresh token already consumed")

// Refresh exchanges a live refresh token for a new pair and kills the
// presented one. Presenting a revoked token revokes every session of its
// owner and fails with common.ErrTokenReuse. Of two concurrent refreshes with
// the same token exactly one wins; the other takes the reuse path.
func (s *TokenService) Refresh(ctx context.Context, presented string) (*TokenPair, error) {
	now := s.clock.Now()

	tok, err := s.store.RefreshTokens().Find(ctx, presented)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidSession
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	if tok.Revoked() {
		return nil, s.containReuse(ctx, tok.UserID)
	}
	if tok.Expired(now) {
		return nil, common.ErrSessionExpired
	}

	user, err := s.store.Users().FindByID(ctx, tok.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidSession
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, common.ErrAccountDeactivated
	}

	var pair *TokenPair
	err = s.store.Tx.RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		won, err := s.store.Repos.RefreshTokens(tx).Revoke(ctx, presented, now)
		if err != nil {
			return err
		}
		if !won {
			return errRotationLost
		}
		pair, err = s.issuePair(ctx, tx, user)
		return err
	})
	if errors.Is(err, errRotationLost) {
		return nil, s.containReuse(ctx, user.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	s.audit.Event(ctx, EventRefresh, "user_id", user.ID)
	return pair, nil
}

// containReuse revokes every live token of userID. It runs outside any
// rotation transaction so a rollback cannot undo it.
func (s *TokenService) containReuse(ctx context.Context, userID string) error {
	n, err := s.store.RefreshTokens().RevokeAllForUser(ctx, userID, s.clock.Now())
	if err != nil {
		s.log.Error(ctx, "revoking sessions after token reuse failed", "user_id", userID, "error", err)
		return fmt.Errorf("%w: %v", common.ErrTokenReuse, err)
	}
	s.audit.Event(ctx, EventReuseDetected, "user_id", userID, "revoked", n)
	return common.ErrTokenReuse
}

// Revoke kills one refresh token. Unknown or already revoked tokens are not
// an error: logout is idempotent.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	revoked, err := s.store.RefreshTokens().Revoke(ctx, token, s.clock.Now())
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if revoked {
		s.audit.Event(ctx, EventLogout)
	}
	return nil
}

func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.RefreshTokens().RevokeAllForUser(ctx, userID, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	s.audit.Event(ctx, EventAllTokensRevoked, "user_id", userID, "revoked", n)
	return n, nil
}

// ValidateAccessToken authenticates a request. Beyond signature and expiry it
// requires the subject to exist and be active, and, unless the caller is an
// owner or impersonating, the token tenant to equal requestTenantID when one
// was resolved. The last-active update runs in the background and never
// affects the result.
func (s *TokenService) ValidateAccessToken(ctx context.Context, token, requestTenantID string) (*Principal, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		return nil, err
	}

	user, err := s.activeUser(ctx, claims.UserID())
	if err != nil {
		return nil, err
	}

	p := &Principal{User: user, IsImpersonating: claims.IsImpersonating, ImpersonatedBy: claims.ImpersonatedBy}

	if claims.IsImpersonating {
		owner, err := s.activeUser(ctx, claims.ImpersonatedBy)
		switch {
		case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrAccountDeactivated):
			return nil, common.ErrInvalidToken
		case err != nil:
			return nil, fmt.Errorf("load impersonator: %w", err)
		case owner.Role != models.RoleOwner:
			return nil, common.ErrInvalidToken
		}
	}

	if user.Role != models.RoleOwner {
		p.TenantID = claims.TenantIDOrEmpty()
		if p.TenantID == "" {
			p.TenantID = user.TenantIDOrEmpty()
		}
		if requestTenantID != "" && !claims.IsImpersonating && p.TenantID != requestTenantID {
			return nil, common.ErrInvalidSession
		}
	}

	s.touch(ctx, user.ID)
	return p, nil
}

func (s *TokenService) activeUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, common.ErrInvalidToken
	}
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, common.ErrAccountDeactivated
	}
	return user, nil
}

func (s *TokenService) touch(ctx context.Context, userID string) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), touchTimeout)
		defer cancel()
		if err := s.store.Users().TouchLastActive(ctx, userID, s.clock.Now()); err != nil {
			s.log.Warn(ctx, "last active update failed", "user_id", userID, "error", err)
		}
	}()
}

// Wait blocks until background updates started so far have finished.
func (s *TokenService) Wait() {
	s.bg.Wait()
}

// PurgeExpired deletes refresh tokens past their expiry.
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.store.RefreshTokens().DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return n, nil
}
