package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

type Users struct {
	s *Store
}

func (r *Users) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email != user.Email {
			continue
		}
		if (u.TenantID == nil && user.TenantID == nil) ||
			(u.TenantID != nil && user.TenantID != nil && *u.TenantID == *user.TenantID) {
			return nil, common.ErrEmailTaken
		}
	}

	user.ID = uuid.NewString()
	user.CreatedAt = r.s.clock.Now()
	r.s.users[user.ID] = *user
	out := *user
	return &out, nil
}

func (r *Users) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(func(u *models.User) bool { return u.ID == id })
}

func (r *Users) FindByEmail(ctx context.Context, tenantID, email string) (*models.User, error) {
	return r.findOne(func(u *models.User) bool { return u.InTenant(tenantID) && u.Email == email })
}

func (r *Users) FindOwnerByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(func(u *models.User) bool {
		return u.TenantID == nil && u.Role == models.RoleOwner && u.Email == email
	})
}

func (r *Users) FindByExternalID(ctx context.Context, tenantID, externalID string) (*models.User, error) {
	return r.findOne(func(u *models.User) bool {
		return u.InTenant(tenantID) && u.ExternalID != nil && *u.ExternalID == externalID
	})
}

func (r *Users) FindByVerifyToken(ctx context.Context, token string) (*models.User, error) {
	return r.findOne(func(u *models.User) bool { return u.VerifyToken != nil && *u.VerifyToken == token })
}

func (r *Users) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	return r.findOne(func(u *models.User) bool { return u.ResetToken != nil && *u.ResetToken == token })
}

func (r *Users) LinkExternalID(ctx context.Context, userID, externalID string, verifiedAt *time.Time) error {
	return r.update(userID, func(u *models.User) {
		u.ExternalID = &externalID
		if u.EmailVerifiedAt == nil && verifiedAt != nil {
			at := *verifiedAt
			u.EmailVerifiedAt = &at
		}
	})
}

func (r *Users) MarkEmailVerified(ctx context.Context, userID string, at time.Time) error {
	return r.update(userID, func(u *models.User) {
		u.EmailVerifiedAt = &at
		u.VerifyToken = nil
	})
}

func (r *Users) SetVerifyToken(ctx context.Context, userID, token string) error {
	return r.update(userID, func(u *models.User) { u.VerifyToken = &token })
}

func (r *Users) SetResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	return r.update(userID, func(u *models.User) {
		u.ResetToken = &token
		u.ResetTokenExpiresAt = &expiresAt
	})
}

func (r *Users) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return r.update(userID, func(u *models.User) {
		u.PasswordHash = &passwordHash
		u.ResetToken = nil
		u.ResetTokenExpiresAt = nil
	})
}

func (r *Users) SetActive(ctx context.Context, userID string, active bool) error {
	return r.update(userID, func(u *models.User) { u.IsActive = active })
}

func (r *Users) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	return r.update(userID, func(u *models.User) { u.LastActiveAt = &at })
}

func (r *Users) findOne(match func(u *models.User) bool) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if match(&u) {
			out := u
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *Users) update(userID string, apply func(u *models.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return common.ErrorNotFound
	}
	apply(&u)
	r.s.users[userID] = u
	return nil
}
