// Package config loads cashpro configuration from an optional YAML file and
// CASHPRO_* environment variables, environment taking precedence.
//
// Common variables:
//
//	CASHPRO_PORT="8000"
//	CASHPRO_HEALTH_PORT="9090"
//	CASHPRO_DATABASE_URL="postgres://app:secret@db:5432/cashpro?sslmode=disable"
//	CASHPRO_TENANT_DATABASE_URL_TEMPLATE="postgres://app:secret@db:5432/{db}?sslmode=disable"
//	CASHPRO_REDIS_URL="redis://cache:6379/0"
//	CASHPRO_SESSION_SWEEP_SCHEDULE="@hourly"   # empty disables the sweep
//	CASHPRO_LOG_LEVEL="debug"
package config
