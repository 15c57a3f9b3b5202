package cli

import (
	"context"
	"fmt"

	"github.com/platinummonkey/cashpro/pkg/admin"
	"github.com/platinummonkey/cashpro/pkg/audit"
	"github.com/platinummonkey/cashpro/pkg/auth"
	"github.com/platinummonkey/cashpro/pkg/companies"
	"github.com/platinummonkey/cashpro/pkg/database"
	"github.com/platinummonkey/cashpro/pkg/tenant"
)

// DefaultAuditRetentionDays is used by prune-audit when -days is not given.
const DefaultAuditRetentionDays = 90

func newMigrateCommand() *Command {
	return &Command{
		Name:        "migrate",
		Description: "Apply pending control database migrations",
		Run:         runMigrate,
	}
}

func runMigrate(ctx context.Context, env *Env, args []string) error {
	flags := newFlagSet("migrate", env.Out)
	if err := flags.Parse(args); err != nil {
		return err
	}

	db, err := env.controlDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	migrations := database.ControlMigrations()
	if err := database.Migrate(ctx, db, database.ControlMigrationsTable, migrations, env.Logger); err != nil {
		return err
	}
	env.printf("Control database is at version %d\n", migrations[len(migrations)-1].Version)
	return nil
}

func newInitSuperAdminCommand() *Command {
	return &Command{
		Name:        "init-super-admin",
		Description: "Create or update the bootstrap super-admin",
		Run:         runInitSuperAdmin,
	}
}

func runInitSuperAdmin(ctx context.Context, env *Env, args []string) error {
	flags := newFlagSet("init-super-admin", env.Out)
	email := flags.String("email", env.Config.Bootstrap.SuperAdminEmail, "Super-admin email or bare username")
	password := flags.String("password", env.Config.Bootstrap.SuperAdminPassword, "Super-admin password (prefer CASHPRO_SUPER_ADMIN_PASSWORD)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	db, err := env.controlDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	service := auth.NewService(auth.ServiceConfig{
		People:    auth.NewPostgresPersonStore(db),
		Sessions:  auth.NewPostgresSessionStore(db),
		Companies: companies.NewPostgresStore(db),
		Logger:    env.Logger,
		Now:       env.Now,
	})

	person, action, err := service.EnsureSuperAdmin(ctx, *email, *password)
	if err != nil {
		return err
	}
	env.printf("Super admin %s: %s (id %d)\n", action, person.Email, person.ID)
	return nil
}

func newProvisionCommand() *Command {
	return &Command{
		Name:        "provision",
		Description: "Create, migrate and seed a company's tenant database",
		Run:         runProvision,
	}
}

func runProvision(ctx context.Context, env *Env, args []string) error {
	flags := newFlagSet("provision", env.Out)
	companyID := flags.Int64("company", 0, "Company id to provision")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *companyID <= 0 {
		return fmt.Errorf("-company is required")
	}

	control, err := env.controlDB(ctx)
	if err != nil {
		return err
	}
	defer control.Close()

	maintenanceURL, err := env.Config.Database.MaintenanceURL()
	if err != nil {
		return err
	}
	maintenance, err := env.Open(ctx, maintenanceURL, database.PoolConfig{MaxOpenConns: 1})
	if err != nil {
		return fmt.Errorf("failed to connect to maintenance database: %w", err)
	}
	defer maintenance.Close()

	pools := tenant.NewManager(tenant.ManagerConfig{
		Size:   1,
		Pool:   database.PoolConfig{MaxOpenConns: 2},
		URL:    env.Config.Database.TenantURL,
		Open:   tenant.OpenFunc(env.Open),
		Logger: env.Logger,
	})
	defer pools.Close()

	store := companies.NewPostgresStore(control)
	provisioner := tenant.NewProvisioner(store, maintenance, pools, nil, env.Logger)
	service := admin.NewService(auth.NewPostgresPersonStore(control), store, auth.NewBcryptHasher(0), provisioner, env.Logger)

	result, err := service.CreateDatabase(ctx, *companyID)
	if err != nil {
		return err
	}
	env.printf("%s: %s\n", result.Message, result.DatabaseName)
	return nil
}

func newSweepSessionsCommand() *Command {
	return &Command{
		Name:        "sweep-sessions",
		Description: "Delete expired sessions",
		Run:         runSweepSessions,
	}
}

func runSweepSessions(ctx context.Context, env *Env, args []string) error {
	flags := newFlagSet("sweep-sessions", env.Out)
	if err := flags.Parse(args); err != nil {
		return err
	}

	db, err := env.controlDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	service := auth.NewService(auth.ServiceConfig{
		People:    auth.NewPostgresPersonStore(db),
		Sessions:  auth.NewPostgresSessionStore(db),
		Companies: companies.NewPostgresStore(db),
		Logger:    env.Logger,
		Now:       env.Now,
	})

	removed, err := service.SweepExpired(ctx)
	if err != nil {
		return err
	}
	env.printf("Removed %d expired sessions\n", removed)
	return nil
}

func newPruneAuditCommand() *Command {
	return &Command{
		Name:        "prune-audit",
		Description: "Delete audit events older than -days",
		Run:         runPruneAudit,
	}
}

func runPruneAudit(ctx context.Context, env *Env, args []string) error {
	flags := newFlagSet("prune-audit", env.Out)
	days := flags.Int("days", DefaultAuditRetentionDays, "Keep events from the last N days")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *days <= 0 {
		return fmt.Errorf("-days must be positive")
	}

	db, err := env.controlDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	logger, err := audit.NewDBLogger(db)
	if err != nil {
		return err
	}

	cutoff := env.Now().UTC().AddDate(0, 0, -*days)
	removed, err := logger.Cleanup(ctx, cutoff)
	if err != nil {
		return err
	}
	env.printf("Removed %d audit events before %s\n", removed, cutoff.Format("2006-01-02"))
	return nil
}
