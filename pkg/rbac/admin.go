package rbac

import (
	"context"
	"errors"
	"strings"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
	"github.com/platinummonkey/cashpro/pkg/companies"
	"github.com/platinummonkey/cashpro/pkg/observability"
)

// Admin manages a company's tenant roles and grants on behalf of a caller.
type Admin struct {
	members MembershipReader
	graphs  GraphOpener
	logger  *observability.Logger
}

// NewAdmin creates a new RBAC admin service
func NewAdmin(members MembershipReader, graphs GraphOpener, logger *observability.Logger) *Admin {
	if logger == nil {
		logger = observability.NewDiscardLogger()
	}
	return &Admin{members: members, graphs: graphs, logger: logger}
}

func (a *Admin) roles(ctx context.Context, company *companies.Company) (RoleStore, error) {
	if company == nil || !company.HasDatabase() {
		return nil, apperrors.New(apperrors.ErrTenantUnavailable, "Company database not found")
	}
	return a.graphs.OpenRoles(ctx, company)
}

func (a *Admin) requireManager(ctx context.Context, personID int64, company *companies.Company) error {
	m, err := a.members.GetMembership(ctx, personID, company.ID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.New(apperrors.ErrForbidden, "Admin or owner access required")
	}
	if err != nil {
		return err
	}
	if !m.Role.IsManager() {
		return apperrors.New(apperrors.ErrForbidden, "Admin or owner access required")
	}
	return nil
}

// managed opens the role store after checking the tenant exists and the
// caller manages the company, in that order.
func (a *Admin) managed(ctx context.Context, personID int64, company *companies.Company) (RoleStore, error) {
	if company == nil || !company.HasDatabase() {
		return nil, apperrors.New(apperrors.ErrTenantUnavailable, "Company database not found")
	}
	if err := a.requireManager(ctx, personID, company); err != nil {
		return nil, err
	}
	return a.graphs.OpenRoles(ctx, company)
}

// ListRoles returns the company's roles with their permissions.
func (a *Admin) ListRoles(ctx context.Context, company *companies.Company) ([]Role, error) {
	store, err := a.roles(ctx, company)
	if err != nil {
		return nil, err
	}
	return store.ListRoles(ctx, company.ID)
}

// ListCatalog returns every permission defined in the tenant.
func (a *Admin) ListCatalog(ctx context.Context, company *companies.Company) ([]Permission, error) {
	store, err := a.roles(ctx, company)
	if err != nil {
		return nil, err
	}
	return store.ListCatalog(ctx)
}

func (a *Admin) CreateRole(ctx context.Context, personID int64, company *companies.Company, in CreateRoleInput) (*Role, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperrors.Validation("name", "role name is required")
	}
	store, err := a.managed(ctx, personID, company)
	if err != nil {
		return nil, err
	}
	role, err := store.CreateRole(ctx, company.ID, in)
	if err != nil {
		return nil, err
	}
	a.logger.WithFields(map[string]interface{}{
		"company_id": company.ID,
		"role_id":    role.ID,
		"role":       role.Name,
		"by":         personID,
	}).Info("Role created")
	return role, nil
}

// AssignRole reports false when the user already had the role.
func (a *Admin) AssignRole(ctx context.Context, personID int64, company *companies.Company, in AssignRoleInput) (bool, error) {
	store, err := a.managed(ctx, personID, company)
	if err != nil {
		return false, err
	}
	assigned, err := store.AssignRole(ctx, company.ID, in)
	if err != nil {
		return false, err
	}
	if assigned {
		a.logger.WithFields(map[string]interface{}{
			"company_id": company.ID,
			"role_id":    in.RoleID,
			"user_id":    in.UserID,
			"by":         personID,
		}).Info("Role assigned")
	}
	return assigned, nil
}

func (a *Admin) GrantResourcePermission(ctx context.Context, personID int64, company *companies.Company, in ResourceGrantInput) (*ResourceGrant, error) {
	in.ResourceType = strings.TrimSpace(in.ResourceType)
	in.Permission = strings.TrimSpace(in.Permission)
	if in.ResourceType == "" {
		return nil, apperrors.Validation("resource_type", "resource_type is required")
	}
	if in.Permission == "" {
		return nil, apperrors.Validation("permission", "permission is required")
	}
	store, err := a.managed(ctx, personID, company)
	if err != nil {
		return nil, err
	}
	grant, err := store.GrantResource(ctx, in)
	if err != nil {
		return nil, err
	}
	a.logger.WithFields(map[string]interface{}{
		"company_id": company.ID,
		"user_id":    in.UserID,
		"permission": in.ResourceType + ":" + in.Permission,
		"by":         personID,
	}).Info("Resource permission granted")
	return grant, nil
}
