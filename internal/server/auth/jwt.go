// Package auth signs and verifies access tokens and hashes passwords.
package auth

import (
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

// Claims is the access token payload. TenantID is JSON null for OWNER
// accounts.
type Claims struct {
	jwt.RegisteredClaims
	Email           string      `json:"email"`
	Role            models.Role `json:"role"`
	TenantID        *string     `json:"tenantId"`
	IsImpersonating bool        `json:"isImpersonating"`
	ImpersonatedBy  string      `json:"impersonatedBy,omitempty"`
}

func (c *Claims) UserID() string {
	return c.Subject
}

func (c *Claims) TenantIDOrEmpty() string {
	if c.TenantID == nil {
		return ""
	}
	return *c.TenantID
}

// Identity is who an access token speaks for.
type Identity struct {
	UserID   string
	Email    string
	Role     models.Role
	TenantID *string
	// ImpersonatedBy is the owner id when the token is an impersonation token.
	ImpersonatedBy string
}

func IdentityOf(u *models.User) Identity {
	return Identity{UserID: u.ID, Email: u.Email, Role: u.Role, TenantID: u.TenantID}
}

// Signer issues and verifies HS256 access tokens with a fixed lifetime.
type Signer struct {
	key   []byte
	ttl   time.Duration
	clock clock.Clock
}

// NewSigner fails on an empty secret so a misconfigured server never starts.
func NewSigner(secret string, ttl time.Duration, clk clock.Clock) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("access token secret is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("access token lifetime must be positive")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Signer{key: []byte(secret), ttl: ttl, clock: clk}, nil
}

func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign returns the token and its expiry.
func (s *Signer) Sign(id Identity) (string, time.Time, error) {
	now := s.clock.Now()
	exp := now.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:           id.Email,
		Role:            id.Role,
		TenantID:        id.TenantID,
		IsImpersonating: id.ImpersonatedBy != "",
		ImpersonatedBy:  id.ImpersonatedBy,
	})

	tokenString, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, exp, nil
}

// Parse verifies signature and expiry (now >= exp is expired) and returns
// the claims. Errors are common.ErrTokenExpired or common.ErrInvalidToken.
func (s *Signer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)

	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
