package database

// ControlMigrationsTable tracks applied control-database migrations.
const ControlMigrationsTable = "schema_migrations"

// ControlMigrations returns the control database schema history.
func ControlMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create people table",
			SQL: `
				CREATE TABLE IF NOT EXISTS people (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(255) NOT NULL,
					username VARCHAR(150),
					hashed_password VARCHAR(255) NOT NULL,
					first_name VARCHAR(100) NOT NULL DEFAULT '',
					last_name VARCHAR(100) NOT NULL DEFAULT '',
					phone VARCHAR(50),
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					is_verified BOOLEAN NOT NULL DEFAULT FALSE,
					is_super_admin BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT people_email_key UNIQUE (email),
					CONSTRAINT people_username_key UNIQUE (username)
				);
			`,
		},
		{
			Version:     2,
			Description: "Create companies and company_settings tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS companies (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(255) NOT NULL,
					legal_name VARCHAR(255),
					tax_id VARCHAR(100),
					address_line1 VARCHAR(255),
					address_line2 VARCHAR(255),
					city VARCHAR(100),
					state VARCHAR(100),
					postal_code VARCHAR(20),
					country VARCHAR(100),
					phone VARCHAR(50),
					website VARCHAR(255),
					database_name VARCHAR(255),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT companies_slug_key UNIQUE (slug),
					CONSTRAINT companies_database_name_key UNIQUE (database_name)
				);

				CREATE TABLE IF NOT EXISTS company_settings (
					id BIGSERIAL PRIMARY KEY,
					company_id BIGINT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
					timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
					locale VARCHAR(16) NOT NULL DEFAULT 'en_US',
					currency VARCHAR(3) NOT NULL DEFAULT 'USD',
					settings_json JSONB,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT company_settings_company_id_key UNIQUE (company_id)
				);
			`,
		},
		{
			Version:     3,
			Description: "Create person_companies table",
			SQL: `
				CREATE TABLE IF NOT EXISTS person_companies (
					id BIGSERIAL PRIMARY KEY,
					person_id BIGINT NOT NULL REFERENCES people(id) ON DELETE CASCADE,
					company_id BIGINT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
					role VARCHAR(20) NOT NULL DEFAULT 'member'
						CHECK (role IN ('owner', 'admin', 'member', 'viewer')),
					is_primary BOOLEAN NOT NULL DEFAULT FALSE,
					joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT person_companies_person_company_key UNIQUE (person_id, company_id)
				);

				CREATE INDEX IF NOT EXISTS idx_person_companies_company_id ON person_companies(company_id);
			`,
		},
		{
			Version:     4,
			Description: "Create sessions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS sessions (
					id BIGSERIAL PRIMARY KEY,
					person_id BIGINT NOT NULL REFERENCES people(id) ON DELETE CASCADE,
					company_id BIGINT REFERENCES companies(id) ON DELETE SET NULL,
					session_token VARCHAR(64) NOT NULL,
					expires_at TIMESTAMPTZ NOT NULL,
					ip_address VARCHAR(64),
					user_agent TEXT,
					impersonated_by BIGINT REFERENCES people(id) ON DELETE CASCADE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT sessions_session_token_key UNIQUE (session_token)
				);

				CREATE INDEX IF NOT EXISTS idx_sessions_person_id ON sessions(person_id);
				CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
			`,
		},
		{
			Version:     5,
			Description: "Create subscriptions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS subscriptions (
					id BIGSERIAL PRIMARY KEY,
					company_id BIGINT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
					plan_name VARCHAR(100) NOT NULL,
					plan_tier VARCHAR(50) NOT NULL,
					status VARCHAR(20) NOT NULL
						CHECK (status IN ('trial', 'active', 'cancelled', 'expired')),
					billing_cycle VARCHAR(20) NOT NULL
						CHECK (billing_cycle IN ('monthly', 'annual')),
					price NUMERIC(10, 2) NOT NULL DEFAULT 0,
					currency VARCHAR(3) NOT NULL DEFAULT 'USD',
					starts_at TIMESTAMPTZ NOT NULL,
					ends_at TIMESTAMPTZ,
					cancelled_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_subscriptions_company_status ON subscriptions(company_id, status);
			`,
		},
		{
			Version:     6,
			Description: "Create audit_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_events (
					id BIGSERIAL PRIMARY KEY,
					event_type VARCHAR(64) NOT NULL,
					status VARCHAR(16) NOT NULL,
					actor_id BIGINT,
					impersonated_by BIGINT,
					company_id BIGINT,
					resource_type VARCHAR(64),
					resource_id VARCHAR(255),
					ip_address VARCHAR(64),
					request_id VARCHAR(64),
					message TEXT,
					metadata JSONB,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_audit_events_company_id ON audit_events(company_id);
				CREATE INDEX IF NOT EXISTS idx_audit_events_actor_id ON audit_events(actor_id);
			`,
		},
	}
}
