package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
	"github.com/dmitrijs2005/saasgate/internal/server/services"
)

type impersonationResponse struct {
	User            userResponse `json:"user"`
	AccessToken     string       `json:"accessToken"`
	AccessExpiresAt time.Time    `json:"accessTokenExpiresAt"`
}

func (s *Server) writeImpersonation(w http.ResponseWriter, res *services.ImpersonationResult) {
	s.setAccessCookie(w, res.AccessToken)
	writeJSON(w, http.StatusOK, impersonationResponse{
		User:            toUserResponse(res.User),
		AccessToken:     res.AccessToken,
		AccessExpiresAt: res.ExpiresAt,
	})
}

func (s *Server) impersonate(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	var req impersonateRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.imp.Start(r.Context(), p.User.ID, req.TargetUserID, req.TargetTenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeImpersonation(w, res)
}

// endImpersonation runs under the impersonation token, so it sits outside
// the owner role guard.
func (s *Server) endImpersonation(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	if !p.IsImpersonating {
		s.writeError(w, r, common.ErrNotAuthorized)
		return
	}
	res, err := s.imp.End(r.Context(), p.ImpersonatedBy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeImpersonation(w, res)
}

// tenantParam returns the {id} path segment. Anything but a UUID cannot name
// a tenant.
func tenantParam(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return "", common.ErrTenantNotFound
	}
	return id, nil
}

func (s *Server) updateTenantStatus(w http.ResponseWriter, r *http.Request) {
	id, err := tenantParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.admin.UpdateStatus(r.Context(), id, req.Status); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateTenantFeatures(w http.ResponseWriter, r *http.Request) {
	id, err := tenantParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req models.TenantFeatures
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.admin.UpdateFeatures(r.Context(), id, req); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addTenantDomain(w http.ResponseWriter, r *http.Request) {
	id, err := tenantParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req domainRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	domain, err := s.admin.AddDomain(r.Context(), id, req.Domain, req.Primary)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"domain": domain, "primary": req.Primary})
}

func (s *Server) removeDomain(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.RemoveDomain(r.Context(), chi.URLParam(r, "domain")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
