package api

import (
	"context"
	"time"

	"github.com/platinummonkey/cashpro/pkg/admin"
	"github.com/platinummonkey/cashpro/pkg/audit"
	"github.com/platinummonkey/cashpro/pkg/auth"
	"github.com/platinummonkey/cashpro/pkg/companies"
	"github.com/platinummonkey/cashpro/pkg/rbac"
	"github.com/platinummonkey/cashpro/pkg/subscriptions"
	"github.com/platinummonkey/cashpro/pkg/tenant"
)

// AuthService is implemented by *auth.Service
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, string, error)
	Login(ctx context.Context, identifier, password string) (*auth.AuthResult, string, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, identity *auth.Identity) (*auth.AuthResult, error)
	SwitchCompany(ctx context.Context, identity *auth.Identity, companyID int64) error
	Impersonate(ctx context.Context, admin *auth.Person, targetID int64) (*auth.Person, string, error)
	StopImpersonate(ctx context.Context, identity *auth.Identity) (*auth.Person, string, error)
	SessionTTL() time.Duration
}

// CompanyService is implemented by *companies.Service
type CompanyService interface {
	CreateCompany(ctx context.Context, personID int64, in companies.CreateCompanyInput) (*companies.Company, error)
}

// SubscriptionService is implemented by *subscriptions.Service
type SubscriptionService interface {
	Create(ctx context.Context, personID int64, in subscriptions.CreateInput) (*subscriptions.Subscription, error)
}

// AdminService is implemented by *admin.Service
type AdminService interface {
	ListUsers(ctx context.Context) ([]*auth.Person, error)
	CreateUser(ctx context.Context, in admin.CreateUserInput) (*auth.Person, error)
	ListCompanies(ctx context.Context) ([]admin.CompanyDetail, error)
	CreateDatabase(ctx context.Context, companyID int64) (*admin.DatabaseResult, error)
}

// RoleService is implemented by *rbac.Admin
type RoleService interface {
	ListRoles(ctx context.Context, company *companies.Company) ([]rbac.Role, error)
	ListCatalog(ctx context.Context, company *companies.Company) ([]rbac.Permission, error)
	CreateRole(ctx context.Context, personID int64, company *companies.Company, in rbac.CreateRoleInput) (*rbac.Role, error)
	AssignRole(ctx context.Context, personID int64, company *companies.Company, in rbac.AssignRoleInput) (bool, error)
	GrantResourcePermission(ctx context.Context, personID int64, company *companies.Company, in rbac.ResourceGrantInput) (*rbac.ResourceGrant, error)
}

// PermissionService is implemented by *rbac.Engine
type PermissionService interface {
	rbac.PermissionChecker
	ListPermissions(ctx context.Context, personID, companyID int64) []string
}

// LedgerService is implemented by *tenant.Ledger
type LedgerService interface {
	ChartOfAccounts(ctx context.Context, company *companies.Company) ([]tenant.ChartAccount, error)
}

// AuditSearcher is implemented by *audit.DBLogger
type AuditSearcher interface {
	Search(ctx context.Context, filter audit.SearchFilter) ([]*audit.Event, error)
}
