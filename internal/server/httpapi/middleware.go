package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
	"github.com/dmitrijs2005/saasgate/internal/server/services"
	"github.com/dmitrijs2005/saasgate/internal/server/tenancy"
)

type ctxKey string

const principalKey ctxKey = "principal"

// PrincipalFrom returns the caller set by the authenticate middleware.
func PrincipalFrom(ctx context.Context) (*services.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*services.Principal)
	return p, ok && p != nil
}

func tenantOrEmpty(r *http.Request) string {
	return tenancy.TenantID(r.Context())
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.log.Error(r.Context(), "panic in handler", "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
				s.writeError(w, r, fmt.Errorf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request and feeds the HTTP metrics with
// the matched route pattern.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := s.clock.Since(start)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		if s.metrics != nil {
			s.metrics.ObserveHTTP(r.Method, route, status, elapsed)
		}
		s.log.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// resolveTenant attaches the request's tenant. Rejections end the request
// before any tenant-dependent handler runs.
func (s *Server) resolveTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, err := s.resolver.Resolve(r.Context(), tenancy.Signals{
			Path:          r.URL.Path,
			TenantIDHint:  r.Header.Get(common.TenantIDHeader),
			ForwardedHost: r.Header.Get(common.ForwardedHostHeader),
			Host:          r.Host,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if snap != nil {
			r = r.WithContext(tenancy.WithTenant(r.Context(), snap))
		}
		next.ServeHTTP(w, r)
	})
}

// accessToken reads the access cookie, then an Authorization bearer header.
func accessToken(r *http.Request) string {
	if v := cookieValue(r, common.AccessTokenCookie); v != "" {
		return v
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := accessToken(r)
		if token == "" {
			s.writeError(w, r, errUnauthenticated)
			return
		}
		p, err := s.tokens.ValidateAccessToken(r.Context(), token, tenantOrEmpty(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
	})
}

// requireRole admits principals holding one of roles. An impersonated
// identity is judged by the assumed user's role.
func requireRole(s *Server, roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				s.writeError(w, r, errUnauthenticated)
				return
			}
			for _, role := range roles {
				if p.User.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			s.writeError(w, r, common.ErrNotAuthorized)
		})
	}
}
