// Package companies is the tenant registry: companies, their settings and
// the person-company membership graph stored in the control database.
//
// A membership carries the coarse company role (owner, admin, member,
// viewer). Fine-grained roles live in each tenant's own database and are
// handled by pkg/rbac.
package companies
