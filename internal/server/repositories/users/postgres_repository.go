package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/dbx"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

const userColumns = `id, tenant_id, email, name, password_hash, role, is_active,
		email_verified_at, external_id, last_active_at, verify_token, reset_token,
		reset_token_expires_at, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (tenant_id, email, name, password_hash, role, is_active,
			email_verified_at, external_id, verify_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.TenantID, user.Email, user.Name, user.PasswordHash, string(user.Role), user.IsActive,
		user.EmailVerifiedAt, user.ExternalID, user.VerifyToken,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrEmailTaken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, tenantID, email string) (*models.User, error) {
	return r.findOne(ctx, `WHERE tenant_id = $1 AND email = $2`, tenantID, email)
}

func (r *PostgresRepository) FindOwnerByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `WHERE tenant_id IS NULL AND role = 'OWNER' AND email = $1`, email)
}

func (r *PostgresRepository) FindByExternalID(ctx context.Context, tenantID, externalID string) (*models.User, error) {
	return r.findOne(ctx, `WHERE tenant_id = $1 AND external_id = $2`, tenantID, externalID)
}

func (r *PostgresRepository) FindByVerifyToken(ctx context.Context, token string) (*models.User, error) {
	return r.findOne(ctx, `WHERE verify_token = $1`, token)
}

func (r *PostgresRepository) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	return r.findOne(ctx, `WHERE reset_token = $1`, token)
}

func (r *PostgresRepository) LinkExternalID(ctx context.Context, userID, externalID string, verifiedAt *time.Time) error {
	query := `
		UPDATE users
		SET external_id = $2, email_verified_at = COALESCE(email_verified_at, $3)
		WHERE id = $1
	`
	return r.execOne(ctx, query, userID, externalID, verifiedAt)
}

func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, userID string, at time.Time) error {
	query := `
		UPDATE users
		SET email_verified_at = $2, verify_token = NULL
		WHERE id = $1
	`
	return r.execOne(ctx, query, userID, at)
}

func (r *PostgresRepository) SetVerifyToken(ctx context.Context, userID, token string) error {
	query := `
		UPDATE users
		SET verify_token = $2
		WHERE id = $1
	`
	return r.execOne(ctx, query, userID, token)
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET reset_token = $2, reset_token_expires_at = $3
		WHERE id = $1
	`
	return r.execOne(ctx, query, userID, token, expiresAt)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, reset_token = NULL, reset_token_expires_at = NULL
		WHERE id = $1
	`
	return r.execOne(ctx, query, userID, passwordHash)
}

func (r *PostgresRepository) SetActive(ctx context.Context, userID string, active bool) error {
	query := `
		UPDATE users
		SET is_active = $2
		WHERE id = $1
	`
	return r.execOne(ctx, query, userID, active)
}

func (r *PostgresRepository) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	query := `
		UPDATE users
		SET last_active_at = $2
		WHERE id = $1
	`
	return r.execOne(ctx, query, userID, at)
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, args ...any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ` + where

	var (
		u                                  models.User
		tenantID, passwordHash, externalID sql.NullString
		verifyToken, resetToken            sql.NullString
		verifiedAt, lastActive, resetExp   sql.NullTime
		role                               string
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &tenantID, &u.Email, &u.Name, &passwordHash, &role, &u.IsActive,
		&verifiedAt, &externalID, &lastActive, &verifyToken, &resetToken,
		&resetExp, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	u.Role = models.Role(role)
	u.TenantID = nullString(tenantID)
	u.PasswordHash = nullString(passwordHash)
	u.ExternalID = nullString(externalID)
	u.VerifyToken = nullString(verifyToken)
	u.ResetToken = nullString(resetToken)
	u.EmailVerifiedAt = nullTime(verifiedAt)
	u.LastActiveAt = nullTime(lastActive)
	u.ResetTokenExpiresAt = nullTime(resetExp)
	return &u, nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}
