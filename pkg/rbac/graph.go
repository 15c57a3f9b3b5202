package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
	"github.com/platinummonkey/cashpro/pkg/companies"
	"github.com/platinummonkey/cashpro/pkg/database"
)

// Graph answers permission questions from one tenant database.
type Graph interface {
	HasRolePermission(ctx context.Context, userID, companyID int64, resourceType, action string) (bool, error)
	HasResourceGrant(ctx context.Context, userID int64, resourceType, action string) (bool, error)
	PermissionStrings(ctx context.Context, userID, companyID int64) ([]string, error)
}

// RoleStore reads and changes the role graph of one tenant database.
type RoleStore interface {
	ListRoles(ctx context.Context, companyID int64) ([]Role, error)
	ListCatalog(ctx context.Context) ([]Permission, error)
	CreateRole(ctx context.Context, companyID int64, in CreateRoleInput) (*Role, error)
	AssignRole(ctx context.Context, companyID int64, in AssignRoleInput) (bool, error)
	GrantResource(ctx context.Context, in ResourceGrantInput) (*ResourceGrant, error)
}

// GraphOpener resolves a company to its tenant graph. Companies without a
// database yield apperrors.ErrTenantUnavailable.
type GraphOpener interface {
	OpenGraph(ctx context.Context, company *companies.Company) (Graph, error)
	OpenRoles(ctx context.Context, company *companies.Company) (RoleStore, error)
}

// MembershipReader is the control-database side of a check.
type MembershipReader interface {
	GetByID(ctx context.Context, id int64) (*companies.Company, error)
	GetMembership(ctx context.Context, personID, companyID int64) (*companies.Membership, error)
}

// Pools hands out tenant connection pools by database name.
type Pools interface {
	DB(ctx context.Context, name string) (*sql.DB, error)
}

// PoolOpener opens TenantGraphs on pooled tenant connections.
type PoolOpener struct {
	pools Pools
}

// NewPoolOpener creates a GraphOpener backed by pools.
func NewPoolOpener(pools Pools) *PoolOpener {
	return &PoolOpener{pools: pools}
}

func (o *PoolOpener) open(ctx context.Context, company *companies.Company) (*TenantGraph, error) {
	if !company.HasDatabase() {
		return nil, apperrors.New(apperrors.ErrTenantUnavailable, "Company database not found")
	}
	db, err := o.pools.DB(ctx, *company.DatabaseName)
	if err != nil {
		return nil, err
	}
	return NewTenantGraph(db), nil
}

func (o *PoolOpener) OpenGraph(ctx context.Context, company *companies.Company) (Graph, error) {
	return o.open(ctx, company)
}

func (o *PoolOpener) OpenRoles(ctx context.Context, company *companies.Company) (RoleStore, error) {
	return o.open(ctx, company)
}

// TenantGraph implements Graph and RoleStore with join queries.
type TenantGraph struct {
	db *sql.DB
}

// NewTenantGraph wraps a tenant database connection.
func NewTenantGraph(db *sql.DB) *TenantGraph {
	return &TenantGraph{db: db}
}

func (g *TenantGraph) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var found bool
	if err := g.db.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

// HasRolePermission follows user_roles -> role_permissions -> permissions
// in a single query.
func (g *TenantGraph) HasRolePermission(ctx context.Context, userID, companyID int64, resourceType, action string) (bool, error) {
	found, err := g.exists(ctx, `
		SELECT EXISTS(
			SELECT 1
			FROM user_roles ur
			JOIN role_permissions rp ON rp.role_id = ur.role_id
			JOIN permissions p ON p.id = rp.permission_id
			WHERE ur.user_id = $1 AND ur.company_id = $2 AND p.resource_type = $3 AND p.action = $4
		)`, userID, companyID, resourceType, action)
	if err != nil {
		return false, fmt.Errorf("failed to check role permissions: %w", err)
	}
	return found, nil
}

func (g *TenantGraph) HasResourceGrant(ctx context.Context, userID int64, resourceType, action string) (bool, error) {
	found, err := g.exists(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM resource_permissions
			WHERE user_id = $1 AND resource_type = $2 AND permission = $3
		)`, userID, resourceType, action)
	if err != nil {
		return false, fmt.Errorf("failed to check resource permissions: %w", err)
	}
	return found, nil
}

// PermissionStrings returns role-derived and directly granted permissions
// as "resource_type:action", possibly with duplicates.
func (g *TenantGraph) PermissionStrings(ctx context.Context, userID, companyID int64) ([]string, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT p.resource_type, p.action
		FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1 AND ur.company_id = $2
		UNION
		SELECT resource_type, permission
		FROM resource_permissions
		WHERE user_id = $3`, userID, companyID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var resourceType, action string
		if err := rows.Scan(&resourceType, &action); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		out = append(out, resourceType+":"+action)
	}
	return out, rows.Err()
}

func (g *TenantGraph) ListCatalog(ctx context.Context) ([]Permission, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT id, resource_type, action, description FROM permissions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func scanPermissions(rows *sql.Rows) ([]Permission, error) {
	perms := []Permission{}
	for rows.Next() {
		var p Permission
		var desc sql.NullString
		if err := rows.Scan(&p.ID, &p.ResourceType, &p.Action, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		if desc.Valid {
			p.Description = &desc.String
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (g *TenantGraph) ListRoles(ctx context.Context, companyID int64) ([]Role, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, name, description, company_id FROM roles WHERE company_id = $1 ORDER BY id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	roles := []Role{}
	for rows.Next() {
		var r Role
		var desc sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &desc, &r.CompanyID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		if desc.Valid {
			r.Description = &desc.String
		}
		roles = append(roles, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range roles {
		perms, err := rolePermissions(ctx, g.db, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = perms
	}
	return roles, nil
}

func rolePermissions(ctx context.Context, q database.Querier, roleID int64) ([]Permission, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT p.id, p.resource_type, p.action, p.description
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.id`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role permissions: %w", err)
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// CreateRole inserts a role and links the given permissions. Unknown
// permission ids are skipped.
func (g *TenantGraph) CreateRole(ctx context.Context, companyID int64, in CreateRoleInput) (*Role, error) {
	var role *Role
	err := database.WithTx(ctx, g.db, func(tx *sql.Tx) error {
		var taken bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM roles WHERE name = $1 AND company_id = $2)`, in.Name, companyID,
		).Scan(&taken)
		if err != nil {
			return fmt.Errorf("failed to check role: %w", err)
		}
		if taken {
			return apperrors.Conflict("name", "Role already exists")
		}

		role = &Role{Name: in.Name, Description: in.Description, CompanyID: companyID}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO roles (name, description, company_id) VALUES ($1, $2, $3) RETURNING id`,
			in.Name, in.Description, companyID,
		).Scan(&role.ID)
		if database.IsUniqueViolation(err, "") {
			return apperrors.Conflict("name", "Role already exists")
		}
		if err != nil {
			return fmt.Errorf("failed to create role: %w", err)
		}

		for _, permID := range in.PermissionIDs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO role_permissions (role_id, permission_id)
				SELECT $1, id FROM permissions WHERE id = $2
				ON CONFLICT DO NOTHING`, role.ID, permID)
			if err != nil {
				return fmt.Errorf("failed to link permission %d: %w", permID, err)
			}
		}

		role.Permissions, err = rolePermissions(ctx, tx, role.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return role, nil
}

// AssignRole binds a role to a user. It returns false when the binding
// already existed.
func (g *TenantGraph) AssignRole(ctx context.Context, companyID int64, in AssignRoleInput) (bool, error) {
	var roleID int64
	err := g.db.QueryRowContext(ctx,
		`SELECT id FROM roles WHERE id = $1 AND company_id = $2`, in.RoleID, companyID,
	).Scan(&roleID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, apperrors.New(apperrors.ErrNotFound, "Role not found")
	}
	if err != nil {
		return false, fmt.Errorf("failed to get role: %w", err)
	}

	res, err := g.db.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role_id, company_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`, in.UserID, roleID, companyID)
	if err != nil {
		return false, fmt.Errorf("failed to assign role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to assign role: %w", err)
	}
	return n > 0, nil
}

func (g *TenantGraph) GrantResource(ctx context.Context, in ResourceGrantInput) (*ResourceGrant, error) {
	grant := &ResourceGrant{
		UserID:       in.UserID,
		ResourceType: in.ResourceType,
		ResourceID:   in.ResourceID,
		Permission:   in.Permission,
		GrantedAt:    time.Now().UTC(),
	}
	err := g.db.QueryRowContext(ctx, `
		INSERT INTO resource_permissions (user_id, resource_type, resource_id, permission, granted_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		in.UserID, in.ResourceType, in.ResourceID, in.Permission, grant.GrantedAt,
	).Scan(&grant.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to grant resource permission: %w", err)
	}
	return grant, nil
}
