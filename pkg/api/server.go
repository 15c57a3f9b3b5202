package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/cashpro/pkg/audit"
	"github.com/platinummonkey/cashpro/pkg/httputil"
	"github.com/platinummonkey/cashpro/pkg/middleware"
	"github.com/platinummonkey/cashpro/pkg/observability"
	"github.com/platinummonkey/cashpro/pkg/rbac"
)

// Config carries the services and settings the HTTP surface is built from.
type Config struct {
	Auth          AuthService
	Resolver      middleware.IdentityResolver
	Companies     CompanyService
	Subscriptions SubscriptionService
	Admin         AdminService
	Roles         RoleService
	Permissions   PermissionService
	Ledger        LedgerService
	AuditLog      AuditSearcher

	// LoginLimiter throttles POST /api/auth/login. Nil disables throttling.
	LoginLimiter *middleware.RateLimitMiddleware
	// Audit receives the events handlers record. Nil drops them.
	Audit audit.Logger

	CORSOrigins  []string
	CookieSecure bool
	MaxBodyBytes int64

	Metrics *observability.Metrics
	Logger  *observability.Logger
}

// Server is the cashpro HTTP API
type Server struct {
	router  *mux.Router
	handler http.Handler
	cfg     Config
}

// NewServer creates the API server and registers every route.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = observability.NewDiscardLogger()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	s := &Server{router: mux.NewRouter(), cfg: cfg}
	s.setupRoutes()

	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware(cfg.Logger),
		httputil.LoggingMiddleware(cfg.Logger),
		httputil.RecoveryMiddleware(cfg.Logger),
		httputil.CORSMiddleware(cfg.CORSOrigins),
		httputil.MaxBytesMiddleware(cfg.MaxBodyBytes),
	}
	if cfg.Audit != nil {
		chain = append(chain, audit.NewMiddleware(cfg.Audit).Handler)
	}
	s.handler = httputil.Chain(chain...)(s.router)
	return s
}

// setupRoutes configures all the API routes. Anonymous routes live on the
// public subrouter; everything else requires a valid session.
func (s *Server) setupRoutes() {
	s.router.Use(observability.HTTPMetricsMiddleware(s.cfg.Metrics))

	api := s.router.PathPrefix("/api").Subrouter()

	public := api.NewRoute().Subrouter()
	public.Use(middleware.NewSessionAuth(s.cfg.Resolver, true, s.cfg.Logger).Handler)

	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.NewSessionAuth(s.cfg.Resolver, false, s.cfg.Logger).Handler)

	authHandlers := NewAuthHandlers(s.cfg.Auth, s.cfg.CookieSecure)
	authHandlers.RegisterPublicRoutes(public, s.cfg.LoginLimiter)
	authHandlers.RegisterRoutes(protected)

	NewCompanyHandlers(s.cfg.Companies, s.cfg.Subscriptions).RegisterRoutes(protected)
	NewRBACHandlers(s.cfg.Roles, s.cfg.Permissions).RegisterRoutes(protected)
	NewLedgerHandlers(s.cfg.Ledger, rbac.NewPermissionMiddleware(s.cfg.Permissions)).RegisterRoutes(protected)

	// stop-impersonate is reachable from the impersonated session, whose
	// person is usually not a super-admin.
	protected.HandleFunc("/admin/stop-impersonate", authHandlers.StopImpersonate).Methods(http.MethodPost)

	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireSuperAdmin)
	authHandlers.RegisterAdminRoutes(admin)
	NewAdminHandlers(s.cfg.Admin, s.cfg.AuditLog).RegisterRoutes(admin)
}

// Router exposes the route table, mainly for tests and route listing.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
