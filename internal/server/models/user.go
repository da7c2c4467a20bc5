package models

import "time"

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleStaff    Role = "STAFF"
	RoleAdmin    Role = "ADMIN"
	RoleOwner    Role = "OWNER"
)

// User belongs to exactly one tenant, except OWNER accounts which are
// platform-level and carry no tenant.
type User struct {
	ID                  string
	TenantID            *string
	Email               string
	Name                string
	PasswordHash        *string
	Role                Role
	IsActive            bool
	EmailVerifiedAt     *time.Time
	ExternalID          *string
	LastActiveAt        *time.Time
	VerifyToken         *string
	ResetToken          *string
	ResetTokenExpiresAt *time.Time
	CreatedAt           time.Time
}

// InTenant reports whether the user is scoped to tenantID.
func (u *User) InTenant(tenantID string) bool {
	return u.TenantID != nil && *u.TenantID == tenantID
}

func (u *User) TenantIDOrEmpty() string {
	if u.TenantID == nil {
		return ""
	}
	return *u.TenantID
}
