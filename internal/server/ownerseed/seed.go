// Package ownerseed creates or updates the platform OWNER account from the
// command line.
package ownerseed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/server/auth"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
	"github.com/dmitrijs2005/saasgate/internal/server/services"
)

var ErrEmailRequired = errors.New("owner email is required")

type Result struct {
	User    *models.User
	Created bool
	// Revoked counts refresh tokens killed by a password change.
	Revoked int64
}

// Seed creates the OWNER account for email, or resets the password of an
// existing one, reactivates it and signs it out everywhere. password is
// wiped before Seed returns.
func Seed(ctx context.Context, store services.Storage, clk clock.Clock, email, name string, password []byte) (*Result, error) {
	defer common.WipeByteArray(password)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrEmailRequired
	}
	hash, err := auth.HashPassword(string(password))
	if err != nil {
		return nil, err
	}

	users := store.Users()
	now := clk.Now()

	existing, err := users.FindOwnerByEmail(ctx, email)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("find owner: %w", err)
	}

	if existing == nil {
		u, err := users.Create(ctx, &models.User{
			Email:           email,
			Name:            strings.TrimSpace(name),
			PasswordHash:    &hash,
			Role:            models.RoleOwner,
			IsActive:        true,
			EmailVerifiedAt: &now,
		})
		if err != nil {
			return nil, fmt.Errorf("create owner: %w", err)
		}
		return &Result{User: u, Created: true}, nil
	}

	if err := users.UpdatePassword(ctx, existing.ID, hash); err != nil {
		return nil, fmt.Errorf("update owner password: %w", err)
	}
	if err := users.SetActive(ctx, existing.ID, true); err != nil {
		return nil, fmt.Errorf("activate owner: %w", err)
	}
	revoked, err := store.RefreshTokens().RevokeAllForUser(ctx, existing.ID, now)
	if err != nil {
		return nil, fmt.Errorf("revoke owner sessions: %w", err)
	}

	u, err := users.FindByID(ctx, existing.ID)
	if err != nil {
		return nil, fmt.Errorf("reload owner: %w", err)
	}
	return &Result{User: u, Revoked: revoked}, nil
}
