// Package middleware provides HTTP middleware for session authentication,
// super-admin gating, and login rate limiting.
//
// # Session authentication
//
// SessionAuth reads the session_token cookie, resolves it through
// auth.Resolver and stores the identity in the request context:
//
//	sessions := middleware.NewSessionAuth(resolver, false, logger)
//	router.Handle("/api/auth/me", sessions.Handler(meHandler))
//
// Handlers read it back with GetIdentity(r). Every request passing through
// SessionAuth also carries auth.ClientInfo (client IP and user agent), which
// the auth service records on new sessions.
//
// SetSessionCookie and ClearSessionCookie write the cookie with the
// attributes the browser contract requires: HttpOnly, SameSite=Lax, Path=/.
//
// # Super-admin routes
//
//	admin := router.PathPrefix("/api/admin").Subrouter()
//	admin.Use(sessions.Handler, middleware.RequireSuperAdmin)
//
// # Rate limiting
//
// RateLimitMiddleware throttles by client IP through a Limiter. Two
// implementations exist:
//
//   - RateLimiter: in-process token buckets (golang.org/x/time/rate)
//   - DistributedRateLimiter: fixed windows in Redis, shared by all instances
//
// The server uses the Redis limiter when Redis is configured. Limiter errors
// fail open by default; SetFallbackEnabled(false) makes them answer 503.
//
// # Related Packages
//
//   - pkg/auth: identity resolution
//   - pkg/rbac: RequirePermission builds on GetIdentity
package middleware
