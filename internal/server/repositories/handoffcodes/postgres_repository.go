package handoffcodes

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

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.HandoffCode) error {
	query := `
		INSERT INTO oauth_handoff_codes (code, user_id, tenant_id, return_path, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, c.Code, c.UserID, c.TenantID, c.ReturnPath, c.ExpiresAt); err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, code string) (*models.HandoffCode, error) {
	query := `
		SELECT code, user_id, tenant_id, return_path, expires_at, used_at, created_at
		FROM oauth_handoff_codes
		WHERE code = $1
	`
	c := &models.HandoffCode{}
	var usedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, code).
		Scan(&c.Code, &c.UserID, &c.TenantID, &c.ReturnPath, &c.ExpiresAt, &usedAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if usedAt.Valid {
		c.UsedAt = &usedAt.Time
	}
	return c, nil
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, code string, at time.Time) (bool, error) {
	query := `
		UPDATE oauth_handoff_codes
		SET used_at = $2
		WHERE code = $1 AND used_at IS NULL AND expires_at > $2
	`
	res, err := r.db.ExecContext(ctx, query, code, at)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM oauth_handoff_codes
		WHERE expires_at < $1
	`
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
