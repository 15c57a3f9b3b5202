package rbac

import (
	"context"
	"net/http"

	"github.com/platinummonkey/cashpro/pkg/httputil"
	"github.com/platinummonkey/cashpro/pkg/middleware"
)

// PermissionChecker is the part of Engine the middleware needs.
type PermissionChecker interface {
	CheckPermission(ctx context.Context, personID, companyID int64, resourceType, action string) bool
}

// PermissionMiddleware gates handlers on tenant permissions.
type PermissionMiddleware struct {
	checker PermissionChecker
}

// NewPermissionMiddleware creates a new permission middleware
func NewPermissionMiddleware(checker PermissionChecker) *PermissionMiddleware {
	return &PermissionMiddleware{checker: checker}
}

// RequirePermission lets a request through only when the caller holds
// resourceType:action in their active company. It must run after
// middleware.SessionAuth.
func (pm *PermissionMiddleware) RequirePermission(resourceType, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := middleware.GetIdentity(r)
			if identity == nil {
				httputil.WriteUnauthorized(w, "Not authenticated")
				return
			}

			if !pm.checker.CheckPermission(r.Context(), identity.Person.ID, identity.CompanyID(), resourceType, action) {
				httputil.WriteForbidden(w, "permission required: "+resourceType+":"+action)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission is shorthand for NewPermissionMiddleware(checker).RequirePermission.
func RequirePermission(checker PermissionChecker, resourceType, action string) func(http.Handler) http.Handler {
	return NewPermissionMiddleware(checker).RequirePermission(resourceType, action)
}
