package rbac

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
	"github.com/platinummonkey/cashpro/pkg/companies"
)

const graphSchema = `
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
CREATE TABLE user_roles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	role_id INTEGER NOT NULL,
	company_id INTEGER NOT NULL,
	UNIQUE (user_id, role_id, company_id)
);
CREATE TABLE resource_permissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id INTEGER,
	permission TEXT NOT NULL,
	granted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// setupGraphDB returns an in-memory tenant database with a small graph:
// permissions 1 invoice:read, 2 invoice:write, 3 report:read; role 1
// "Bookkeeper" (invoice:read, invoice:write) in company 10.
func setupGraphDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(graphSchema)
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO permissions (resource_type, action, description) VALUES
			('invoice', 'read', 'Read invoices'),
			('invoice', 'write', NULL),
			('report', 'read', NULL);
		INSERT INTO roles (name, description, company_id) VALUES ('Bookkeeper', NULL, 10);
		INSERT INTO role_permissions (role_id, permission_id) VALUES (1, 1), (1, 2);
	`)
	require.NoError(t, err)
	return db
}

func exec(t *testing.T, db *sql.DB, query string, args ...interface{}) {
	t.Helper()
	_, err := db.Exec(query, args...)
	require.NoError(t, err)
}

func strPtr(s string) *string { return &s }

func tenantCompany(id int64) *companies.Company {
	return &companies.Company{ID: id, Name: "Acme", Slug: "acme", DatabaseName: strPtr("tenant_acme_10")}
}

// fakeMembers is an in-memory MembershipReader.
type fakeMembers struct {
	companies map[int64]*companies.Company
	roles     map[[2]int64]companies.Role
	err       error
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{
		companies: map[int64]*companies.Company{},
		roles:     map[[2]int64]companies.Role{},
	}
}

func (f *fakeMembers) GetByID(_ context.Context, id int64) (*companies.Company, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.companies[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrNotFound, "company not found")
	}
	return c, nil
}

func (f *fakeMembers) GetMembership(_ context.Context, personID, companyID int64) (*companies.Membership, error) {
	if f.err != nil {
		return nil, f.err
	}
	role, ok := f.roles[[2]int64{personID, companyID}]
	if !ok {
		return nil, apperrors.New(apperrors.ErrNotFound, "membership not found")
	}
	return &companies.Membership{PersonID: personID, CompanyID: companyID, Role: role}, nil
}

// staticOpener hands out one tenant graph for every company with a
// database.
type staticOpener struct {
	graph  *TenantGraph
	err    error
	opened int
	// bounded records, per OpenGraph call, whether ctx carried a deadline.
	bounded []bool
}

func (o *staticOpener) OpenGraph(ctx context.Context, company *companies.Company) (Graph, error) {
	o.opened++
	_, hasDeadline := ctx.Deadline()
	o.bounded = append(o.bounded, hasDeadline)
	if o.err != nil {
		return nil, o.err
	}
	return o.graph, nil
}

func (o *staticOpener) OpenRoles(_ context.Context, company *companies.Company) (RoleStore, error) {
	o.opened++
	if o.err != nil {
		return nil, o.err
	}
	return o.graph, nil
}
