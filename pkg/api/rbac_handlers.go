package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/cashpro/pkg/audit"
	"github.com/platinummonkey/cashpro/pkg/httputil"
	"github.com/platinummonkey/cashpro/pkg/middleware"
	"github.com/platinummonkey/cashpro/pkg/rbac"
)

// RBACHandlers exposes tenant role administration for the caller's active
// company.
type RBACHandlers struct {
	roles       RoleService
	permissions PermissionService
}

// NewRBACHandlers creates a new RBACHandlers
func NewRBACHandlers(roles RoleService, permissions PermissionService) *RBACHandlers {
	return &RBACHandlers{roles: roles, permissions: permissions}
}

// RegisterRoutes registers tenant RBAC routes
func (h *RBACHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/rbac/roles", h.ListRoles).Methods(http.MethodGet)
	router.HandleFunc("/rbac/roles", h.CreateRole).Methods(http.MethodPost)
	router.HandleFunc("/rbac/permissions", h.ListCatalog).Methods(http.MethodGet)
	router.HandleFunc("/rbac/assign-role", h.AssignRole).Methods(http.MethodPost)
	router.HandleFunc("/rbac/resource-permissions", h.GrantResourcePermission).Methods(http.MethodPost)
	router.HandleFunc("/rbac/me/permissions", h.MyPermissions).Methods(http.MethodGet)
}

type myPermissionsResponse struct {
	CompanyID   *int64   `json:"company_id"`
	Permissions []string `json:"permissions"`
}

// ListRoles handles GET /api/rbac/roles
func (h *RBACHandlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.ListRoles(r.Context(), middleware.GetIdentity(r).Company)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, roles)
}

// CreateRole handles POST /api/rbac/roles
func (h *RBACHandlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req rbac.CreateRoleInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	identity := middleware.GetIdentity(r)
	role, err := h.roles.CreateRole(r.Context(), identity.Person.ID, identity.Company, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	audit.Record(r.Context(), &audit.Event{
		EventType:    audit.EventRoleCreate,
		ResourceType: audit.ResourceRole,
		ResourceID:   strconv.FormatInt(role.ID, 10),
		Metadata:     map[string]interface{}{"name": role.Name, "permission_ids": req.PermissionIDs},
	})
	httputil.WriteSuccess(w, role)
}

// ListCatalog handles GET /api/rbac/permissions
func (h *RBACHandlers) ListCatalog(w http.ResponseWriter, r *http.Request) {
	perms, err := h.roles.ListCatalog(r.Context(), middleware.GetIdentity(r).Company)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, perms)
}

// AssignRole handles POST /api/rbac/assign-role
func (h *RBACHandlers) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req rbac.AssignRoleInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID <= 0 || req.RoleID <= 0 {
		httputil.WriteBadRequest(w, "user_id and role_id are required")
		return
	}

	identity := middleware.GetIdentity(r)
	assigned, err := h.roles.AssignRole(r.Context(), identity.Person.ID, identity.Company, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if !assigned {
		httputil.WriteSuccess(w, messageResponse{Message: "Role already assigned"})
		return
	}

	audit.Record(r.Context(), &audit.Event{
		EventType:    audit.EventRoleAssign,
		ResourceType: audit.ResourceRole,
		ResourceID:   strconv.FormatInt(req.RoleID, 10),
		Metadata:     map[string]interface{}{"user_id": req.UserID},
	})
	httputil.WriteSuccess(w, messageResponse{Message: "Role assigned successfully"})
}

// GrantResourcePermission handles POST /api/rbac/resource-permissions
func (h *RBACHandlers) GrantResourcePermission(w http.ResponseWriter, r *http.Request) {
	var req rbac.ResourceGrantInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		httputil.WriteBadRequest(w, "user_id is required")
		return
	}

	identity := middleware.GetIdentity(r)
	grant, err := h.roles.GrantResourcePermission(r.Context(), identity.Person.ID, identity.Company, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	audit.Record(r.Context(), &audit.Event{
		EventType:    audit.EventResourceGrant,
		ResourceType: audit.ResourceGrant,
		ResourceID:   strconv.FormatInt(grant.ID, 10),
		Metadata: map[string]interface{}{
			"user_id":       grant.UserID,
			"resource_type": grant.ResourceType,
			"resource_id":   grant.ResourceID,
			"permission":    grant.Permission,
		},
	})
	httputil.WriteSuccess(w, grant)
}

// MyPermissions handles GET /api/rbac/me/permissions. Without an active
// company the list is empty.
func (h *RBACHandlers) MyPermissions(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	resp := myPermissionsResponse{Permissions: []string{}}
	if companyID := identity.CompanyID(); companyID != 0 {
		resp.CompanyID = &companyID
		resp.Permissions = h.permissions.ListPermissions(r.Context(), identity.Person.ID, companyID)
	}
	httputil.WriteSuccess(w, resp)
}
