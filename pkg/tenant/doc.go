// Package tenant owns the per-company databases: naming, creation,
// schema, default data and a bounded cache of open connection pools.
//
// A company's database is created on first activation and recorded in
// companies.database_name only after its schema and seed data are in
// place, so a failed run can simply be retried.
package tenant
