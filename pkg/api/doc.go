// Package api provides the HTTP surface of the cashpro control plane.
//
// # Overview
//
// Routes are served by gorilla/mux under /api and grouped by area, each
// group registering its own routes the same way:
//
//   - Auth: register, login, logout, me, switch-company
//   - Companies: company creation and subscription activation
//   - RBAC: tenant roles, permission catalog, role assignment, direct grants
//   - Ledger: tenant accounting reads gated by tenant permissions
//   - Admin: users, companies, tenant provisioning, impersonation, audit trail
//
// Sessions travel in the session_token cookie. Anonymous routes run behind
// optional session resolution; everything else rejects requests without a
// valid session with 401 "Not authenticated". Admin routes additionally
// require a super-admin, except stop-impersonate, which is called from the
// impersonated session.
//
// # Usage
//
//	server := api.NewServer(api.Config{
//		Auth:         authService,
//		Resolver:     resolver,
//		Companies:    companyService,
//		Permissions:  engine,
//		Audit:        auditLogger,
//		CookieSecure: cfg.Server.CookieSecure,
//		Logger:       logger,
//	})
//	http.ListenAndServe(":8000", server)
//
// # Errors
//
// Handlers answer service errors through httputil.WriteAppError, which maps
// the apperrors taxonomy onto status codes and writes {"error": ...}.
//
// # Related Packages
//
//   - pkg/middleware: session resolution, cookies, login throttling
//   - pkg/rbac: permission checks and the RequirePermission middleware
//   - pkg/audit: audit trail written by the handlers
package api
