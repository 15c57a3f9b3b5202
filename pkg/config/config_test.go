package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/cashpro/pkg/observability"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CASHPRO_TEST_STR", "custom")
	t.Setenv("CASHPRO_TEST_BOOL", "1")
	t.Setenv("CASHPRO_TEST_INT", "not-a-number")
	t.Setenv("CASHPRO_TEST_DUR", "90s")
	t.Setenv("CASHPRO_TEST_LIST", " https://a.example , ,https://b.example")

	assert.Equal(t, "custom", getEnv("CASHPRO_TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("CASHPRO_TEST_UNSET", "default"))
	assert.True(t, getEnvBool("CASHPRO_TEST_BOOL", false))
	assert.Equal(t, 7, getEnvInt("CASHPRO_TEST_INT", 7))
	assert.Equal(t, 90*time.Second, getEnvDuration("CASHPRO_TEST_DUR", time.Second))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, getEnvList("CASHPRO_TEST_LIST", nil))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "@hourly", cfg.Session.SweepSchedule)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.Empty(t, cfg.Redis.URL)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("CASHPRO_PORT", "8081")
	t.Setenv("CASHPRO_LOG_LEVEL", "debug")
	t.Setenv("CASHPRO_SESSION_SWEEP_SCHEDULE", "")
	t.Setenv("CASHPRO_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("CASHPRO_TENANT_CACHE_SIZE", "16")
	t.Setenv("CASHPRO_TENANT_RECONCILE_WORKERS", "8")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Empty(t, cfg.Session.SweepSchedule)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, 16, cfg.Tenant.CacheSize)
	assert.Equal(t, 8, cfg.Tenant.ReconcileWorkers)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cashpro.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "8100"
  cors_origins: ["https://app.example"]
tenant:
  idle_ttl: 2m
observability:
  log_level: warn
`), 0o600))
	t.Setenv("CASHPRO_HEALTH_PORT", "9200")

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "8100", cfg.Server.Port)
	assert.Equal(t, "9200", cfg.Server.HealthPort)
	assert.Equal(t, []string{"https://app.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 2*time.Minute, cfg.Tenant.IdleTTL)
	assert.Equal(t, observability.WarnLevel, cfg.Observability.LogLevel)
	assert.Equal(t, 128, cfg.Tenant.CacheSize)
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "same ports",
			mutate:  func(c *Config) { c.Server.HealthPort = c.Server.Port },
			wantErr: "must be different",
		},
		{
			name:    "missing control url",
			mutate:  func(c *Config) { c.Database.ControlURL = "" },
			wantErr: "control database URL is required",
		},
		{
			name:    "template without placeholder",
			mutate:  func(c *Config) { c.Database.TenantURLTemplate = "postgres://db/tenant" },
			wantErr: "{db}",
		},
		{
			name:    "half bootstrap",
			mutate:  func(c *Config) { c.Bootstrap.SuperAdminEmail = "root@example.com" },
			wantErr: "both email and password",
		},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelEndpoint = ""
			},
			wantErr: "endpoint is required",
		},
		{
			name:    "zero rate",
			mutate:  func(c *Config) { c.RateLimit.LoginPerMinute = 0 },
			wantErr: "rate limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTenantURL(t *testing.T) {
	d := DatabaseConfig{
		ControlURL:          "postgres://app:secret@db:5432/cashpro?sslmode=disable",
		MaintenanceDatabase: "postgres",
	}

	got, err := d.TenantURL("tenant_acme_1")
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:secret@db:5432/tenant_acme_1?sslmode=disable", got)

	maint, err := d.MaintenanceURL()
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:secret@db:5432/postgres?sslmode=disable", maint)

	d.TenantURLTemplate = "postgres://ro@replica/{db}"
	got, err = d.TenantURL("tenant_acme_1")
	require.NoError(t, err)
	assert.Equal(t, "postgres://ro@replica/tenant_acme_1", got)
}
