package tenant

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// sqliteSchema mirrors the RBAC and chart-of-accounts tables closely
// enough for the seed statements to run unchanged.
const sqliteSchema = `
CREATE TABLE roles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	description TEXT,
	company_id INTEGER NOT NULL,
	UNIQUE (name, company_id)
);
CREATE TABLE permissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	resource_type TEXT NOT NULL,
	action TEXT NOT NULL,
	description TEXT,
	UNIQUE (resource_type, action)
);
CREATE TABLE role_permissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	role_id INTEGER NOT NULL,
	permission_id INTEGER NOT NULL,
	UNIQUE (role_id, permission_id)
);
CREATE TABLE chart_of_accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_code TEXT NOT NULL,
	account_name TEXT NOT NULL,
	account_type TEXT NOT NULL,
	parent_account_id INTEGER,
	is_active BOOLEAN NOT NULL DEFAULT 1,
	company_id INTEGER NOT NULL,
	UNIQUE (company_id, account_code)
);
CREATE TABLE tenant_migrations (
	version INT PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// newSQLiteTenantDB returns an in-memory tenant database whose migrations
// are already marked as applied.
func newSQLiteTenantDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)
	for _, m := range Migrations() {
		_, err := db.Exec(`INSERT INTO tenant_migrations (version, description) VALUES (?, ?)`, m.Version, m.Description)
		require.NoError(t, err)
	}
	return db
}

func count(t *testing.T, db *sql.DB, query string, args ...interface{}) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}
