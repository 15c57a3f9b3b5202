package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
	"github.com/platinummonkey/cashpro/pkg/auth"
	"github.com/platinummonkey/cashpro/pkg/contextkeys"
	"github.com/platinummonkey/cashpro/pkg/httputil"
	"github.com/platinummonkey/cashpro/pkg/observability"
)

// IdentityResolver turns a raw session token into an identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*auth.Identity, error)
}

// SessionAuth reads the session cookie and attaches the resolved identity
// to the request context.
type SessionAuth struct {
	resolver IdentityResolver
	optional bool
	logger   *observability.Logger
}

// NewSessionAuth creates session middleware. When optional is true,
// anonymous requests pass through without an identity.
func NewSessionAuth(resolver IdentityResolver, optional bool, logger *observability.Logger) *SessionAuth {
	return &SessionAuth{resolver: resolver, optional: optional, logger: logger}
}

// Handler wraps next with session resolution.
func (m *SessionAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithClientInfo(r.Context(), auth.ClientInfo{
			IPAddress: ClientIP(r),
			UserAgent: r.UserAgent(),
		})

		token := SessionToken(r)
		if token == "" {
			if m.optional {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			httputil.WriteUnauthorized(w, "Not authenticated")
			return
		}

		identity, err := m.resolver.Resolve(ctx, token)
		if err != nil {
			if m.optional && errors.Is(err, apperrors.ErrUnauthenticated) {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			httputil.WriteAppError(w, r, err)
			return
		}

		ctx = contextkeys.WithIdentity(ctx, identity)
		ctx = contextkeys.WithSessionToken(ctx, token)
		logger := observability.GetLogger(ctx, m.logger).WithField("user_id", identity.Person.ID)
		if identity.IsImpersonating && identity.Impersonator != nil {
			logger = logger.WithField("impersonator_id", identity.Impersonator.ID)
		}
		ctx = observability.WithLogger(ctx, logger)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionToken returns the raw session token carried by r, or "".
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// IdentityFromContext returns the identity set by SessionAuth, or nil.
func IdentityFromContext(ctx context.Context) *auth.Identity {
	identity, _ := ctx.Value(contextkeys.IdentityKey).(*auth.Identity)
	return identity
}

// GetIdentity returns the identity for r, or nil for anonymous requests.
func GetIdentity(r *http.Request) *auth.Identity {
	return IdentityFromContext(r.Context())
}

// RequireAuth rejects requests without an identity. Useful behind an
// optional SessionAuth.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetIdentity(r) == nil {
			httputil.WriteUnauthorized(w, "Not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSuperAdmin rejects requests whose effective person is not an
// active super-admin. While impersonating, the effective person is the
// target, so admin routes close until impersonation stops.
func RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r)
		if identity == nil {
			httputil.WriteUnauthorized(w, "Not authenticated")
			return
		}
		if !identity.Person.IsSuperAdmin {
			httputil.WriteForbidden(w, "Super admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
