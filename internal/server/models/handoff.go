package models

import "time"

// HandoffCode bridges a cross-domain OAuth completion to a session on the
// tenant's own domain. It is single use.
type HandoffCode struct {
	Code       string
	UserID     string
	TenantID   string
	ReturnPath string
	ExpiresAt  time.Time
	UsedAt     *time.Time
	CreatedAt  time.Time
}

// Redeemable reports whether the code is unused and not yet expired at now.
func (c *HandoffCode) Redeemable(now time.Time) bool {
	return c.UsedAt == nil && now.Before(c.ExpiresAt)
}
