package models

import "time"

// RefreshToken is one persisted session-continuation credential. A nil
// RevokedAt means the token is live.
type RefreshToken struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

// Expired uses now >= expiry with no tolerance.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
