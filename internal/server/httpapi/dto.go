package httpapi

import (
	"time"

	"github.com/dmitrijs2005/saasgate/internal/server/models"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"max=200"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type handoffRequest struct {
	Code string `json:"code" validate:"required"`
}

type impersonateRequest struct {
	TargetUserID   string `json:"targetUserId" validate:"required,uuid"`
	TargetTenantID string `json:"targetTenantId" validate:"required,uuid"`
}

type statusRequest struct {
	Status models.TenantStatus `json:"status" validate:"required"`
}

type domainRequest struct {
	Domain  string `json:"domain" validate:"required,max=253"`
	Primary bool   `json:"primary"`
}

type userResponse struct {
	ID            string      `json:"id"`
	Email         string      `json:"email"`
	Name          string      `json:"name"`
	Role          models.Role `json:"role"`
	TenantID      *string     `json:"tenantId"`
	EmailVerified bool        `json:"emailVerified"`
	LastActiveAt  *time.Time  `json:"lastActiveAt,omitempty"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		TenantID:      u.TenantID,
		EmailVerified: u.EmailVerifiedAt != nil,
		LastActiveAt:  u.LastActiveAt,
	}
}

// sessionResponse is returned by every sign-in route. The refresh token
// travels only in its cookie.
type sessionResponse struct {
	User            userResponse `json:"user"`
	AccessToken     string       `json:"accessToken"`
	AccessExpiresAt time.Time    `json:"accessTokenExpiresAt"`
	ReturnPath      string       `json:"returnPath,omitempty"`
}

type meResponse struct {
	userResponse
	IsImpersonating bool   `json:"isImpersonating"`
	ImpersonatedBy  string `json:"impersonatedBy,omitempty"`
}
