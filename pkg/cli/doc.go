// Package cli implements cashpro-admin, the operator command line.
//
// # Commands
//
// migrate: apply pending control database migrations
//
//	cashpro-admin migrate
//
// init-super-admin: create the bootstrap super-admin, or reset its password
// and promote an existing person. Defaults come from CASHPRO_SUPER_ADMIN_*;
// the placeholder credentials from sample configs are refused.
//
//	cashpro-admin init-super-admin -email ops@example.com
//
// provision: create, migrate and seed a company's tenant database. Safe to
// rerun; an existing database is reported, not recreated.
//
//	cashpro-admin provision -company 42
//
// sweep-sessions: delete expired sessions once
//
//	cashpro-admin sweep-sessions
//
// prune-audit: delete audit events older than N days (default 90)
//
//	cashpro-admin prune-audit -days 365
//
// Every command reads the same configuration as the server: CASHPRO_*
// environment variables, optionally over a YAML file passed with -config.
package cli
