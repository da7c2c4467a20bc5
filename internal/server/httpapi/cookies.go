package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/server/services"
)

func (s *Server) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	}
	if s.cfg.IsProduction() {
		c.Secure = true
		c.SameSite = http.SameSiteStrictMode
	}
	if maxAge < 0 {
		c.MaxAge = -1
	}
	return c
}

func (s *Server) setAccessCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, s.cookie(common.AccessTokenCookie, token, s.cfg.AccessTokenTTL))
}

func (s *Server) setSessionCookies(w http.ResponseWriter, pair *services.TokenPair) {
	s.setAccessCookie(w, pair.AccessToken)
	http.SetCookie(w, s.cookie(common.RefreshTokenCookie, pair.RefreshToken, s.cfg.RefreshTokenTTL))
}

func (s *Server) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie(common.AccessTokenCookie, "", -1))
	http.SetCookie(w, s.cookie(common.RefreshTokenCookie, "", -1))
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
