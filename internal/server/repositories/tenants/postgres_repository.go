package tenants

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

// snapshotSelect joins a tenant with its optional config and feature rows.
// The has_* columns tell a missing row apart from a row of zero values.
const snapshotSelect = `
		SELECT t.id, t.slug, t.name, t.status,
			c.tenant_id IS NOT NULL AS has_config,
			COALESCE(c.business_name, ''), COALESCE(c.logo_url, ''), COALESCE(c.primary_color, ''),
			COALESCE(c.email, ''), COALESCE(c.phone, ''), COALESCE(c.locale, ''),
			COALESCE(c.currency, ''), COALESCE(c.currency_symbol, ''), COALESCE(c.timezone, ''),
			f.tenant_id IS NOT NULL AS has_features,
			COALESCE(f.catalog, FALSE), COALESCE(f.pricing, FALSE), COALESCE(f.bookings, FALSE),
			COALESCE(f.ecommerce, FALSE), COALESCE(f.support, FALSE), COALESCE(f.invoicing, FALSE),
			COALESCE(f.cms, FALSE), COALESCE(f.marketing, FALSE), COALESCE(f.reviews, FALSE),
			COALESCE(f.analytics, FALSE), COALESCE(f.ai, FALSE)
		FROM tenants t
		LEFT JOIN tenant_configs c ON c.tenant_id = t.id
		LEFT JOIN tenant_features f ON f.tenant_id = t.id
	`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByDomain(ctx context.Context, domain string) (*models.TenantSnapshot, error) {
	query := snapshotSelect + `
		JOIN tenant_domains d ON d.tenant_id = t.id
		WHERE d.domain = $1
	`
	return scanSnapshot(r.db.QueryRowContext(ctx, query, domain))
}

func (r *PostgresRepository) FindByID(ctx context.Context, tenantID string) (*models.TenantSnapshot, error) {
	query := snapshotSelect + `
		WHERE t.id = $1
	`
	return scanSnapshot(r.db.QueryRowContext(ctx, query, tenantID))
}

func (r *PostgresRepository) FindDomainOwner(ctx context.Context, domain string) (string, error) {
	query := `
		SELECT tenant_id
		FROM tenant_domains
		WHERE domain = $1
	`
	var tenantID string
	if err := r.db.QueryRowContext(ctx, query, domain).Scan(&tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return tenantID, nil
}

func (r *PostgresRepository) ListDomains(ctx context.Context, tenantID string) ([]models.TenantDomain, error) {
	query := `
		SELECT domain, tenant_id, is_primary, created_at
		FROM tenant_domains
		WHERE tenant_id = $1
		ORDER BY is_primary DESC, domain
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var domains []models.TenantDomain
	for rows.Next() {
		var d models.TenantDomain
		if err := rows.Scan(&d.Domain, &d.TenantID, &d.IsPrimary, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		domains = append(domains, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return domains, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, tenantID string, status models.TenantStatus, at time.Time) error {
	query := `
		UPDATE tenants
		SET status = $2::text,
			suspended_at = CASE WHEN $2::text = 'SUSPENDED' THEN $3::timestamptz ELSE NULL END,
			archived_at = CASE WHEN $2::text = 'ARCHIVED' THEN $3::timestamptz ELSE archived_at END
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, tenantID, string(status), at)
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

func (r *PostgresRepository) AddDomain(ctx context.Context, tenantID, domain string, primary bool) error {
	if primary {
		demote := `
			UPDATE tenant_domains
			SET is_primary = FALSE
			WHERE tenant_id = $1 AND is_primary
		`
		if _, err := r.db.ExecContext(ctx, demote, tenantID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}

	query := `
		INSERT INTO tenant_domains (domain, tenant_id, is_primary)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, domain, tenantID, primary); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrDomainTaken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RemoveDomain(ctx context.Context, domain string) (string, error) {
	query := `
		DELETE FROM tenant_domains
		WHERE domain = $1
		RETURNING tenant_id
	`
	var tenantID string
	if err := r.db.QueryRowContext(ctx, query, domain).Scan(&tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return tenantID, nil
}

func (r *PostgresRepository) UpsertFeatures(ctx context.Context, tenantID string, f models.TenantFeatures) error {
	query := `
		INSERT INTO tenant_features (tenant_id, catalog, pricing, bookings, ecommerce, support,
			invoicing, cms, marketing, reviews, analytics, ai)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (tenant_id) DO UPDATE SET
			catalog = EXCLUDED.catalog, pricing = EXCLUDED.pricing, bookings = EXCLUDED.bookings,
			ecommerce = EXCLUDED.ecommerce, support = EXCLUDED.support, invoicing = EXCLUDED.invoicing,
			cms = EXCLUDED.cms, marketing = EXCLUDED.marketing, reviews = EXCLUDED.reviews,
			analytics = EXCLUDED.analytics, ai = EXCLUDED.ai
	`
	_, err := r.db.ExecContext(ctx, query, tenantID,
		f.Catalog, f.Pricing, f.Bookings, f.Ecommerce, f.Support,
		f.Invoicing, f.CMS, f.Marketing, f.Reviews, f.Analytics, f.AI,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func scanSnapshot(row *sql.Row) (*models.TenantSnapshot, error) {
	var (
		s           models.TenantSnapshot
		status      string
		hasConfig   bool
		hasFeatures bool
		cfg         models.TenantConfig
		f           models.TenantFeatures
	)
	err := row.Scan(
		&s.ID, &s.Slug, &s.Name, &status,
		&hasConfig,
		&cfg.BusinessName, &cfg.LogoURL, &cfg.PrimaryColor,
		&cfg.Email, &cfg.Phone, &cfg.Locale,
		&cfg.Currency, &cfg.CurrencySymbol, &cfg.Timezone,
		&hasFeatures,
		&f.Catalog, &f.Pricing, &f.Bookings,
		&f.Ecommerce, &f.Support, &f.Invoicing,
		&f.CMS, &f.Marketing, &f.Reviews,
		&f.Analytics, &f.AI,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	s.Status = models.TenantStatus(status)
	if hasConfig {
		s.Config = &cfg
	}
	if hasFeatures {
		s.Features = f
	} else {
		s.Features = models.DefaultTenantFeatures()
	}
	return &s, nil
}
