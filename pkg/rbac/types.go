package rbac

import (
	"fmt"
	"time"
)

// Decision names the rule that settled a permission check.
type Decision string

const (
	DecisionNoTenantDB     Decision = "no_tenant_db"
	DecisionNoMembership   Decision = "no_membership"
	DecisionCoarseRole     Decision = "coarse_role"
	DecisionRolePermission Decision = "role_permission"
	DecisionResourceGrant  Decision = "resource_grant"
	DecisionReadFallback   Decision = "read_fallback"
	DecisionDenied         Decision = "denied"
	DecisionError          Decision = "error"
)

// Allowed reports whether the decision grants access.
func (d Decision) Allowed() bool {
	switch d {
	case DecisionCoarseRole, DecisionRolePermission, DecisionResourceGrant, DecisionReadFallback:
		return true
	}
	return false
}

// ActionRead is the action member and viewer memberships get everywhere.
const ActionRead = "read"

// Permission is a tenant permission row.
type Permission struct {
	ID           int64   `json:"id"`
	ResourceType string  `json:"resource_type"`
	Action       string  `json:"action"`
	Description  *string `json:"description"`
}

// String returns the "resource_type:action" form.
func (p Permission) String() string {
	return fmt.Sprintf("%s:%s", p.ResourceType, p.Action)
}

// Role is a tenant role with its permissions.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description *string      `json:"description"`
	CompanyID   int64        `json:"company_id"`
	Permissions []Permission `json:"permissions"`
}

// CreateRoleInput is the payload for creating a role.
type CreateRoleInput struct {
	Name          string  `json:"name"`
	Description   *string `json:"description"`
	PermissionIDs []int64 `json:"permission_ids"`
}

// AssignRoleInput binds a role to a user in the active company.
type AssignRoleInput struct {
	UserID int64 `json:"user_id"`
	RoleID int64 `json:"role_id"`
}

// ResourceGrantInput grants one action on a resource type (optionally a
// single resource) directly to a user.
type ResourceGrantInput struct {
	UserID       int64  `json:"user_id"`
	ResourceType string `json:"resource_type"`
	ResourceID   *int64 `json:"resource_id"`
	Permission   string `json:"permission"`
}

// ResourceGrant is a stored direct grant.
type ResourceGrant struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	ResourceType string    `json:"resource_type"`
	ResourceID   *int64    `json:"resource_id"`
	Permission   string    `json:"permission"`
	GrantedAt    time.Time `json:"granted_at"`
}
