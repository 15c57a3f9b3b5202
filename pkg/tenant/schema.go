package tenant

import "github.com/platinummonkey/cashpro/pkg/database"

// MigrationsTable tracks applied migrations inside each tenant database.
const MigrationsTable = "tenant_migrations"

// Migrations returns the tenant database schema history. user_id,
// created_by and company_id columns refer to the control database and
// cannot carry foreign keys.
func Migrations() []database.Migration {
	return []database.Migration{
		{
			Version:     1,
			Description: "Create RBAC tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(100) NOT NULL,
					description TEXT,
					company_id BIGINT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT roles_name_company_key UNIQUE (name, company_id)
				);

				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					resource_type VARCHAR(100) NOT NULL,
					action VARCHAR(50) NOT NULL,
					description TEXT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT permissions_resource_action_key UNIQUE (resource_type, action)
				);

				CREATE TABLE IF NOT EXISTS role_permissions (
					id BIGSERIAL PRIMARY KEY,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT role_permissions_role_permission_key UNIQUE (role_id, permission_id)
				);

				CREATE TABLE IF NOT EXISTS user_roles (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					company_id BIGINT NOT NULL,
					assigned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT user_roles_user_role_company_key UNIQUE (user_id, role_id, company_id)
				);

				CREATE TABLE IF NOT EXISTS resource_permissions (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL,
					resource_type VARCHAR(100) NOT NULL,
					resource_id BIGINT,
					permission VARCHAR(50) NOT NULL,
					granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_user_roles_user_company ON user_roles(user_id, company_id);
				CREATE INDEX IF NOT EXISTS idx_resource_permissions_user ON resource_permissions(user_id, resource_type);
			`,
		},
		{
			Version:     2,
			Description: "Create chart of accounts",
			SQL: `
				CREATE TABLE IF NOT EXISTS chart_of_accounts (
					id BIGSERIAL PRIMARY KEY,
					account_code VARCHAR(20) NOT NULL,
					account_name VARCHAR(255) NOT NULL,
					account_type VARCHAR(20) NOT NULL
						CHECK (account_type IN ('asset', 'liability', 'equity', 'revenue', 'expense')),
					parent_account_id BIGINT REFERENCES chart_of_accounts(id),
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					company_id BIGINT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT chart_of_accounts_company_code_key UNIQUE (company_id, account_code)
				);
			`,
		},
		{
			Version:     3,
			Description: "Create ledger tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS accounts (
					id BIGSERIAL PRIMARY KEY,
					account_number VARCHAR(64) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					bank_name VARCHAR(255),
					account_type VARCHAR(20) NOT NULL
						CHECK (account_type IN ('checking', 'savings', 'credit', 'cash', 'investment')),
					chart_account_id BIGINT NOT NULL REFERENCES chart_of_accounts(id),
					currency VARCHAR(3) NOT NULL DEFAULT 'USD',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					company_id BIGINT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS categories (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					type VARCHAR(20) NOT NULL CHECK (type IN ('income', 'expense', 'transfer')),
					parent_id BIGINT REFERENCES categories(id),
					chart_account_id BIGINT REFERENCES chart_of_accounts(id),
					company_id BIGINT NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS journal_entries (
					id BIGSERIAL PRIMARY KEY,
					entry_number VARCHAR(64) NOT NULL UNIQUE,
					entry_date TIMESTAMPTZ NOT NULL,
					description TEXT NOT NULL,
					reference VARCHAR(255),
					created_by BIGINT NOT NULL,
					company_id BIGINT NOT NULL,
					is_posted BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS journal_entry_lines (
					id BIGSERIAL PRIMARY KEY,
					journal_entry_id BIGINT NOT NULL REFERENCES journal_entries(id) ON DELETE CASCADE,
					chart_account_id BIGINT NOT NULL REFERENCES chart_of_accounts(id),
					debit_amount NUMERIC(15, 2),
					credit_amount NUMERIC(15, 2),
					description TEXT,
					reference VARCHAR(255),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT check_debit_credit_exclusive CHECK (
						(debit_amount IS NOT NULL AND debit_amount >= 0 AND credit_amount IS NULL) OR
						(credit_amount IS NOT NULL AND credit_amount >= 0 AND debit_amount IS NULL)
					)
				);

				CREATE TABLE IF NOT EXISTS transactions (
					id BIGSERIAL PRIMARY KEY,
					account_id BIGINT NOT NULL REFERENCES accounts(id),
					transaction_type VARCHAR(20) NOT NULL
						CHECK (transaction_type IN ('deposit', 'withdrawal', 'transfer')),
					amount NUMERIC(15, 2) NOT NULL,
					description TEXT NOT NULL,
					category_id BIGINT REFERENCES categories(id),
					transaction_date DATE NOT NULL,
					journal_entry_id BIGINT REFERENCES journal_entries(id),
					created_by BIGINT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_journal_entries_company_date ON journal_entries(company_id, entry_date);
				CREATE INDEX IF NOT EXISTS idx_transactions_account_date ON transactions(account_id, transaction_date);
			`,
		},
	}
}
