package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/cashpro/pkg/database"
)

// PermissionSeed is a default permission.
type PermissionSeed struct {
	ResourceType string
	Action       string
	Description  string
}

// RoleSeed is a default role and the "resource:action" permissions it gets.
type RoleSeed struct {
	Name        string
	Description string
	Permissions []string
}

// AccountSeed is a chart-of-accounts entry.
type AccountSeed struct {
	Code string
	Name string
	Type string
}

var DefaultPermissions = []PermissionSeed{
	{"invoice", "read", "Read invoices"},
	{"invoice", "write", "Create/edit invoices"},
	{"invoice", "delete", "Delete invoices"},
	{"customer", "read", "Read customers"},
	{"customer", "write", "Create/edit customers"},
	{"customer", "delete", "Delete customers"},
}

var DefaultRoles = []RoleSeed{
	{"Owner", "Full access to all resources", []string{
		"invoice:read", "invoice:write", "invoice:delete", "customer:read", "customer:write", "customer:delete",
	}},
	{"Admin", "Administrative access", []string{
		"invoice:read", "invoice:write", "customer:read", "customer:write",
	}},
	{"Member", "Standard user access", []string{"invoice:read", "customer:read"}},
	{"Viewer", "Read-only access", []string{"invoice:read", "customer:read"}},
}

var DefaultChartOfAccounts = []AccountSeed{
	{"1000", "Cash", "asset"},
	{"1100", "Bank Accounts", "asset"},
	{"1200", "Accounts Receivable", "asset"},
	{"1300", "Inventory", "asset"},
	{"1400", "Prepaid Expenses", "asset"},
	{"1500", "Fixed Assets", "asset"},
	{"2000", "Accounts Payable", "liability"},
	{"2100", "Short-term Debt", "liability"},
	{"2200", "Long-term Debt", "liability"},
	{"2300", "Accrued Expenses", "liability"},
	{"3000", "Capital", "equity"},
	{"3100", "Retained Earnings", "equity"},
	{"3200", "Current Year Earnings", "equity"},
	{"4000", "Sales Revenue", "revenue"},
	{"4100", "Service Revenue", "revenue"},
	{"4200", "Other Income", "revenue"},
	{"5000", "Cost of Goods Sold", "expense"},
	{"5100", "Operating Expenses", "expense"},
	{"5200", "Salaries and Wages", "expense"},
	{"5300", "Rent Expense", "expense"},
	{"5400", "Utilities", "expense"},
	{"5500", "Marketing and Advertising", "expense"},
	{"5600", "Depreciation", "expense"},
	{"5700", "Interest Expense", "expense"},
	{"5800", "Tax Expense", "expense"},
}

// Seed writes the default permissions, roles and chart of accounts for a
// company. Running it again changes nothing.
func Seed(ctx context.Context, db *sql.DB, companyID int64) error {
	return database.WithTx(ctx, db, func(tx *sql.Tx) error {
		if err := seedPermissions(ctx, tx); err != nil {
			return err
		}
		if err := seedRoles(ctx, tx, companyID); err != nil {
			return err
		}
		return seedChartOfAccounts(ctx, tx, companyID)
	})
}

func seedPermissions(ctx context.Context, tx *sql.Tx) error {
	for _, p := range DefaultPermissions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO permissions (resource_type, action, description)
			VALUES ($1, $2, $3)
			ON CONFLICT (resource_type, action) DO NOTHING`,
			p.ResourceType, p.Action, p.Description)
		if err != nil {
			return fmt.Errorf("failed to seed permission %s:%s: %w", p.ResourceType, p.Action, err)
		}
	}
	return nil
}

// seedRoles only grants permissions to roles it created, so edits made to
// an existing role are left alone.
func seedRoles(ctx context.Context, tx *sql.Tx, companyID int64) error {
	for _, r := range DefaultRoles {
		var roleID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO roles (name, description, company_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (name, company_id) DO NOTHING
			RETURNING id`,
			r.Name, r.Description, companyID,
		).Scan(&roleID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to seed role %s: %w", r.Name, err)
		}

		for _, perm := range r.Permissions {
			resourceType, action, _ := strings.Cut(perm, ":")
			_, err := tx.ExecContext(ctx, `
				INSERT INTO role_permissions (role_id, permission_id)
				SELECT $1, id FROM permissions WHERE resource_type = $2 AND action = $3
				ON CONFLICT DO NOTHING`,
				roleID, resourceType, action)
			if err != nil {
				return fmt.Errorf("failed to grant %s to role %s: %w", perm, r.Name, err)
			}
		}
	}
	return nil
}

func seedChartOfAccounts(ctx context.Context, tx *sql.Tx, companyID int64) error {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM chart_of_accounts WHERE company_id = $1)`, companyID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check chart of accounts: %w", err)
	}
	if exists {
		return nil
	}

	for _, a := range DefaultChartOfAccounts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chart_of_accounts (account_code, account_name, account_type, company_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (company_id, account_code) DO NOTHING`,
			a.Code, a.Name, a.Type, companyID)
		if err != nil {
			return fmt.Errorf("failed to seed account %s: %w", a.Code, err)
		}
	}
	return nil
}
