package httpapi

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/server/oauthstate"
	"github.com/dmitrijs2005/saasgate/internal/server/services"
	"github.com/dmitrijs2005/saasgate/internal/server/tenancy"
)

const handoffPath = "/auth/handoff"

// googleStart remembers which tenant and page the sign-in began on and
// redirects to the consent screen.
func (s *Server) googleStart(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		s.writeError(w, r, services.ErrOAuthDisabled)
		return
	}
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	host := r.Header.Get(common.ForwardedHostHeader)
	if strings.TrimSpace(host) == "" {
		host = r.Host
	}
	returnHost, err := tenancy.NormalizeDomain(host)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	key, err := oauthstate.Issue(r.Context(), s.states, oauthstate.State{
		TenantID:   tenantID,
		ReturnHost: returnHost,
		ReturnPath: services.SafeReturnPath(r.URL.Query().Get("returnTo")),
	}, oauthstate.DefaultTTL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, s.google.AuthCodeURL(key), http.StatusFound)
}

// googleCallback finishes the flow on the platform host and sends the
// browser back to the tenant domain with a one-time handoff code.
func (s *Server) googleCallback(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		s.writeError(w, r, services.ErrOAuthDisabled)
		return
	}
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		s.log.Warn(r.Context(), "google sign-in cancelled", "error", e)
		s.writeError(w, r, common.ErrInvalidState)
		return
	}

	st, err := s.states.Take(r.Context(), q.Get("state"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	profile, err := s.google.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		s.log.Warn(r.Context(), "google code exchange failed", "error", err)
		s.writeError(w, r, common.ErrInvalidState)
		return
	}
	u, err := s.auth.OAuthLogin(r.Context(), st.TenantID, *profile)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	code, err := s.handoff.Create(r.Context(), u.ID, st.TenantID, st.ReturnPath)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, s.handoffURL(st.ReturnHost, code), http.StatusFound)
}

func (s *Server) handoffURL(returnHost, code string) string {
	target := url.URL{Scheme: "http", Host: returnHost, Path: handoffPath}
	if s.cfg.IsProduction() {
		target.Scheme = "https"
	}
	if returnHost == "" {
		if base, err := url.Parse(s.cfg.FrontendURL); err == nil {
			target.Scheme, target.Host = base.Scheme, base.Host
		}
	}
	target.RawQuery = url.Values{"code": {code}}.Encode()
	return target.String()
}
