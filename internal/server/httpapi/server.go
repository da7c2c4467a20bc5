// Package httpapi is the public HTTP surface: tenant resolution middleware,
// the auth and owner routes, cookies and the JSON error contract.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/saasgate/internal/logging"
	"github.com/dmitrijs2005/saasgate/internal/server/config"
	"github.com/dmitrijs2005/saasgate/internal/server/metrics"
	"github.com/dmitrijs2005/saasgate/internal/server/models"
	"github.com/dmitrijs2005/saasgate/internal/server/oauthstate"
	"github.com/dmitrijs2005/saasgate/internal/server/services"
	"github.com/dmitrijs2005/saasgate/internal/server/tenancy"
)

const shutdownTimeout = 10 * time.Second

// Deps are the collaborators the HTTP server routes to. Google may be nil,
// which disables sign-in with Google; Metrics may be nil.
type Deps struct {
	Config        *config.Config
	Resolver      *tenancy.Resolver
	Tokens        *services.TokenService
	Auth          *services.AuthService
	Impersonation *services.ImpersonationController
	Admin         *services.TenantAdmin
	Handoff       *services.HandoffService
	Google        *services.GoogleOAuth
	States        oauthstate.Store
	Metrics       *metrics.Registry
	Clock         clock.Clock
}

type Server struct {
	address string
	cfg     *config.Config
	log     logging.Logger
	clock   clock.Clock

	resolver *tenancy.Resolver
	tokens   *services.TokenService
	auth     *services.AuthService
	imp      *services.ImpersonationController
	admin    *services.TenantAdmin
	handoff  *services.HandoffService
	google   *services.GoogleOAuth
	states   oauthstate.Store
	metrics  *metrics.Registry

	validate *validator.Validate
	limiter  *ipLimiter
	router   chi.Router
}

func NewServer(address string, l logging.Logger, d Deps) *Server {
	clk := d.Clock
	if clk == nil {
		clk = clock.New()
	}
	s := &Server{
		address:  address,
		cfg:      d.Config,
		log:      l.With("module", "http_server"),
		clock:    clk,
		resolver: d.Resolver,
		tokens:   d.Tokens,
		auth:     d.Auth,
		imp:      d.Impersonation,
		admin:    d.Admin,
		handoff:  d.Handoff,
		google:   d.Google,
		states:   d.States,
		metrics:  d.Metrics,
		validate: newValidator(),
		limiter:  newIPLimiter(d.Config.AuthRateLimit, clk),
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, s.recoverer, s.requestLogger)

	r.Get("/health", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.resolveTenant)
		r.Get("/tenant/config", s.tenantConfig)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(s.rateLimit)
				r.Post("/register", s.register)
				r.Post("/login", s.login)
				r.Post("/admin-login", s.adminLogin)
				r.Post("/owner-login", s.ownerLogin)
				r.Post("/forgot-password", s.forgotPassword)
				r.Post("/reset-password", s.resetPassword)
				r.Post("/resend-verification", s.resendVerification)
			})
			r.Post("/verify-email", s.verifyEmail)
			r.Post("/refresh", s.refresh)
			r.Post("/logout", s.logout)
			r.Post("/handoff", s.exchangeHandoff)
			r.With(s.authenticate).Get("/me", s.me)
			r.Get("/google", s.googleStart)
			r.Get("/google/callback", s.googleCallback)
		})

		r.Route("/owner", func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/end-impersonate", s.endImpersonation)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(s, models.RoleOwner))
				r.Post("/impersonate", s.impersonate)
				r.Patch("/tenants/{id}/status", s.updateTenantStatus)
				r.Put("/tenants/{id}/features", s.updateTenantFeatures)
				r.Post("/tenants/{id}/domains", s.addTenantDomain)
				r.Delete("/domains/{domain}", s.removeDomain)
			})
		})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		s.log.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.log.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	// Serve returns as soon as Shutdown starts; wait for in-flight requests.
	<-drained
	return nil
}
