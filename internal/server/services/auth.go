package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/logging"
	"github.com/dmitrijs2005/saasgate/internal/server/auth"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

const (
	resetTokenTTL     = time.Hour
	accountTokenBytes = 32
	mailTimeout       = 30 * time.Second
)

// AuthResult is a signed-in user with a fresh token pair.
type AuthResult struct {
	User   *models.User
	Tokens *TokenPair
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// ExternalProfile is an identity asserted by an OAuth provider.
type ExternalProfile struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// AuthService implements the credential flows of tenant customers, tenant
// staff and platform owners.
type AuthService struct {
	store  Storage
	tokens *TokenService
	mailer Mailer
	clock  clock.Clock
	log    logging.Logger
	audit  *Audit

	bg sync.WaitGroup
}

func NewAuthService(store Storage, tokens *TokenService, mailer Mailer, clk clock.Clock, log logging.Logger, audit *Audit) *AuthService {
	if clk == nil {
		clk = clock.New()
	}
	return &AuthService{
		store:  store,
		tokens: tokens,
		mailer: mailer,
		clock:  clk,
		log:    log.With("module", "auth"),
		audit:  audit,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified CUSTOMER in tenantID and mails a
// verification link. No tokens are issued until the email is verified.
func (s *AuthService) Register(ctx context.Context, tenantID string, in RegisterInput) (*models.User, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	verifyToken, err := common.MakeRandHexString(accountTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate verify token: %w", err)
	}

	tid := tenantID
	user, err := s.store.Users().Create(ctx, &models.User{
		TenantID:     &tid,
		Email:        normalizeEmail(in.Email),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: &hash,
		Role:         models.RoleCustomer,
		IsActive:     true,
		VerifyToken:  &verifyToken,
	})
	if err != nil {
		if errors.Is(err, common.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.audit.Event(ctx, EventRegister, "user_id", user.ID, "tenant_id", tenantID)
	s.sendAsync(ctx, "verification", func(ctx context.Context) error {
		return s.mailer.SendVerification(ctx, user, verifyToken)
	})
	return user, nil
}

// Login signs a tenant user in. Unknown email and wrong password fail the
// same way; deactivation and missing verification are only reported once
// the password matched.
func (s *AuthService) Login(ctx context.Context, tenantID, email, password string) (*AuthResult, error) {
	u, err := s.store.Users().FindByEmail(ctx, tenantID, normalizeEmail(email))
	u, err = s.authenticate(ctx, u, err, password)
	if err != nil {
		return nil, err
	}
	if u.EmailVerifiedAt == nil {
		return nil, common.ErrUnverifiedEmail
	}
	return s.signIn(ctx, u)
}

// AdminLogin signs in ADMIN or STAFF users of tenantID. Email verification
// is not required for provisioned staff.
func (s *AuthService) AdminLogin(ctx context.Context, tenantID, email, password string) (*AuthResult, error) {
	u, err := s.store.Users().FindByEmail(ctx, tenantID, normalizeEmail(email))
	u, err = s.authenticate(ctx, u, err, password)
	if err != nil {
		return nil, err
	}
	if u.Role != models.RoleAdmin && u.Role != models.RoleStaff {
		s.audit.Event(ctx, EventLoginFailure, "user_id", u.ID, "reason", "role")
		return nil, common.ErrInvalidCredentials
	}
	return s.signIn(ctx, u)
}

// OwnerLogin signs in a platform owner. Owners have no tenant.
func (s *AuthService) OwnerLogin(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.store.Users().FindOwnerByEmail(ctx, normalizeEmail(email))
	u, err = s.authenticate(ctx, u, err, password)
	if err != nil {
		return nil, err
	}
	return s.signIn(ctx, u)
}

func (s *AuthService) authenticate(ctx context.Context, u *models.User, err error, password string) (*models.User, error) {
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			auth.BurnCompare(password)
			s.audit.Event(ctx, EventLoginFailure, "reason", "unknown_email")
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u.PasswordHash == nil {
		auth.BurnCompare(password)
		s.audit.Event(ctx, EventLoginFailure, "user_id", u.ID, "reason", "no_password")
		return nil, common.ErrInvalidCredentials
	}
	if !auth.CheckPassword(*u.PasswordHash, password) {
		s.audit.Event(ctx, EventLoginFailure, "user_id", u.ID, "reason", "password")
		return nil, common.ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, common.ErrAccountDeactivated
	}
	return u, nil
}

func (s *AuthService) signIn(ctx context.Context, u *models.User) (*AuthResult, error) {
	pair, err := s.tokens.IssuePair(ctx, u)
	if err != nil {
		return nil, err
	}
	s.audit.Event(ctx, EventLoginSuccess, "user_id", u.ID, "tenant_id", u.TenantIDOrEmpty(), "role", string(u.Role))
	return &AuthResult{User: u, Tokens: pair}, nil
}

// OAuthLogin finds or creates the tenant user behind an external identity:
// first by subject, then by email (linking the subject), else a new
// verified CUSTOMER. The provider must vouch for the email.
func (s *AuthService) OAuthLogin(ctx context.Context, tenantID string, p ExternalProfile) (*models.User, error) {
	if p.Subject == "" || p.Email == "" {
		return nil, common.ErrInvalidCredentials
	}
	if !p.EmailVerified {
		return nil, common.ErrUnverifiedEmail
	}
	users := s.store.Users()
	email := normalizeEmail(p.Email)
	now := s.clock.Now()

	u, err := users.FindByExternalID(ctx, tenantID, p.Subject)
	if errors.Is(err, common.ErrorNotFound) {
		u, err = users.FindByEmail(ctx, tenantID, email)
		if err == nil {
			if err := users.LinkExternalID(ctx, u.ID, p.Subject, &now); err != nil {
				return nil, fmt.Errorf("link external id: %w", err)
			}
			u, err = users.FindByID(ctx, u.ID)
		}
	}
	if errors.Is(err, common.ErrorNotFound) {
		tid, sub := tenantID, p.Subject
		u, err = users.Create(ctx, &models.User{
			TenantID:        &tid,
			Email:           email,
			Name:            strings.TrimSpace(p.Name),
			Role:            models.RoleCustomer,
			IsActive:        true,
			EmailVerifiedAt: &now,
			ExternalID:      &sub,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("oauth user: %w", err)
	}

	if !u.IsActive {
		return nil, common.ErrAccountDeactivated
	}
	return u, nil
}

// VerifyEmail consumes a verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	u, err := s.store.Users().FindByVerifyToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		return fmt.Errorf("find verify token: %w", err)
	}
	if err := s.store.Users().MarkEmailVerified(ctx, u.ID, s.clock.Now()); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	s.audit.Event(ctx, EventEmailVerified, "user_id", u.ID)
	return nil
}

// ResendVerification mails a fresh verification token. It reports success
// for unknown and already verified emails alike.
func (s *AuthService) ResendVerification(ctx context.Context, tenantID, email string) error {
	u, err := s.store.Users().FindByEmail(ctx, tenantID, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}
	if u.EmailVerifiedAt != nil {
		return nil
	}

	token, err := common.MakeRandHexString(accountTokenBytes)
	if err != nil {
		return fmt.Errorf("generate verify token: %w", err)
	}
	if err := s.store.Users().SetVerifyToken(ctx, u.ID, token); err != nil {
		return fmt.Errorf("store verify token: %w", err)
	}
	s.sendAsync(ctx, "verification", func(ctx context.Context) error {
		return s.mailer.SendVerification(ctx, u, token)
	})
	return nil
}

// ForgotPassword mails a one-hour reset token. Unknown emails succeed silently.
func (s *AuthService) ForgotPassword(ctx context.Context, tenantID, email string) error {
	u, err := s.store.Users().FindByEmail(ctx, tenantID, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}

	token, err := common.MakeRandHexString(accountTokenBytes)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.store.Users().SetResetToken(ctx, u.ID, token, s.clock.Now().Add(resetTokenTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	s.sendAsync(ctx, "password_reset", func(ctx context.Context) error {
		return s.mailer.SendPasswordReset(ctx, u, token)
	})
	return nil
}

// ResetPassword sets a new password with a live reset token and revokes
// every session of the user.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	u, err := s.store.Users().FindByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		return fmt.Errorf("find reset token: %w", err)
	}
	if u.ResetTokenExpiresAt == nil || !s.clock.Now().Before(*u.ResetTokenExpiresAt) {
		return common.ErrInvalidToken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.store.Users().UpdatePassword(ctx, u.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if _, err := s.tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		return err
	}
	s.audit.Event(ctx, EventPasswordReset, "user_id", u.ID)
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// sendAsync delivers mail in the background; failures are logged only.
func (s *AuthService) sendAsync(ctx context.Context, kind string, send func(context.Context) error) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			s.log.Error(ctx, "sending email failed", "kind", kind, "error", err)
		}
	}()
}

// Wait blocks until mails queued so far have been handed to the Mailer.
func (s *AuthService) Wait() {
	s.bg.Wait()
}
