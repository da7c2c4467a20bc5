// Package models defines the server-side records shared by repositories,
// services and transports.
package models

import "time"

// TenantStatus is the lifecycle state of a tenant. Only ACTIVE tenants serve traffic.
type TenantStatus string

const (
	TenantDraft     TenantStatus = "DRAFT"
	TenantActive    TenantStatus = "ACTIVE"
	TenantSuspended TenantStatus = "SUSPENDED"
	TenantArchived  TenantStatus = "ARCHIVED"
	TenantSeeding   TenantStatus = "SEEDING"
)

// Valid reports whether s is a known status.
func (s TenantStatus) Valid() bool {
	switch s {
	case TenantDraft, TenantActive, TenantSuspended, TenantArchived, TenantSeeding:
		return true
	}
	return false
}

type Tenant struct {
	ID          string
	Slug        string
	Name        string
	Status      TenantStatus
	CreatedAt   time.Time
	SuspendedAt *time.Time
	ArchivedAt  *time.Time
}

// TenantConfig is the branding and regional payload served with a tenant.
type TenantConfig struct {
	BusinessName   string `json:"businessName"`
	LogoURL        string `json:"logoUrl,omitempty"`
	PrimaryColor   string `json:"primaryColor"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Locale         string `json:"locale"`
	Currency       string `json:"currency"`
	CurrencySymbol string `json:"currencySymbol"`
	Timezone       string `json:"timezone"`
}

// TenantFeatures gates optional subsystems per tenant.
type TenantFeatures struct {
	Catalog   bool `json:"catalog"`
	Pricing   bool `json:"pricing"`
	Bookings  bool `json:"bookings"`
	Ecommerce bool `json:"ecommerce"`
	Support   bool `json:"support"`
	Invoicing bool `json:"invoicing"`
	CMS       bool `json:"cms"`
	Marketing bool `json:"marketing"`
	Reviews   bool `json:"reviews"`
	Analytics bool `json:"analytics"`
	AI        bool `json:"ai"`
}

// DefaultTenantFeatures is the flag set reported for a tenant that has no
// feature row.
func DefaultTenantFeatures() TenantFeatures {
	return TenantFeatures{
		Catalog:   true,
		Pricing:   true,
		Bookings:  false,
		Ecommerce: false,
		Support:   false,
		Invoicing: false,
		CMS:       true,
		Marketing: false,
		Reviews:   false,
		Analytics: true,
		AI:        false,
	}
}

type TenantDomain struct {
	Domain    string
	TenantID  string
	IsPrimary bool
	CreatedAt time.Time
}

// TenantSnapshot is what tenant resolution attaches to a request and what
// the resolution cache stores.
type TenantSnapshot struct {
	ID       string         `json:"id"`
	Slug     string         `json:"slug"`
	Name     string         `json:"name"`
	Status   TenantStatus   `json:"status"`
	Config   *TenantConfig  `json:"config,omitempty"`
	Features TenantFeatures `json:"features"`
}

func (s *TenantSnapshot) Active() bool {
	return s.Status == TenantActive
}
