package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/server/services"
	"github.com/dmitrijs2005/saasgate/internal/server/tenancy"
)

func (s *Server) writeSession(w http.ResponseWriter, status int, res *services.AuthResult, returnPath string) {
	s.setSessionCookies(w, res.Tokens)
	writeJSON(w, status, sessionResponse{
		User:            toUserResponse(res.User),
		AccessToken:     res.Tokens.AccessToken,
		AccessExpiresAt: res.Tokens.AccessExpiresAt,
		ReturnPath:      returnPath,
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req registerRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	u, err := s.auth.Register(r.Context(), tenantID, services.RegisterInput{
		Email: req.Email, Password: req.Password, Name: req.Name,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":    toUserResponse(u),
		"message": "Check your email to verify your account",
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.tenantLogin(w, r, s.auth.Login)
}

func (s *Server) adminLogin(w http.ResponseWriter, r *http.Request) {
	s.tenantLogin(w, r, s.auth.AdminLogin)
}

type loginFunc func(ctx context.Context, tenantID, email, password string) (*services.AuthResult, error)

func (s *Server) tenantLogin(w http.ResponseWriter, r *http.Request, login loginFunc) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req loginRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := login(r.Context(), tenantID, req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, res, "")
}

func (s *Server) ownerLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.auth.OwnerLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, res, "")
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	token := cookieValue(r, common.RefreshTokenCookie)
	if token == "" {
		s.writeError(w, r, common.ErrInvalidSession)
		return
	}
	pair, err := s.tokens.Refresh(r.Context(), token)
	if err != nil {
		s.clearSessionCookies(w)
		s.writeError(w, r, err)
		return
	}
	s.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":          pair.AccessToken,
		"accessTokenExpiresAt": pair.AccessExpiresAt,
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.tokens.Revoke(r.Context(), cookieValue(r, common.RefreshTokenCookie)); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	writeJSON(w, http.StatusOK, meResponse{
		userResponse:    toUserResponse(p.User),
		IsImpersonating: p.IsImpersonating,
		ImpersonatedBy:  p.ImpersonatedBy,
	})
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.auth.VerifyEmail(r.Context(), req.Token); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Email verified"})
}

func (s *Server) resendVerification(w http.ResponseWriter, r *http.Request) {
	s.emailAction(w, r, s.auth.ResendVerification, "If the account exists and is unverified, a new link has been sent")
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	s.emailAction(w, r, s.auth.ForgotPassword, "If the account exists, a reset link has been sent")
}

// emailAction answers identically whether or not the email is known.
func (s *Server) emailAction(w http.ResponseWriter, r *http.Request, action func(context.Context, string, string) error, message string) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req emailRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := action(r.Context(), tenantID, req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

func (s *Server) exchangeHandoff(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req handoffRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.handoff.Exchange(r.Context(), req.Code, tenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, &res.AuthResult, res.ReturnPath)
}
