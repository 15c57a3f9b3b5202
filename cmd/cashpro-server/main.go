package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/cashpro/pkg/admin"
	"github.com/platinummonkey/cashpro/pkg/async"
	"github.com/platinummonkey/cashpro/pkg/api"
	"github.com/platinummonkey/cashpro/pkg/audit"
	"github.com/platinummonkey/cashpro/pkg/auth"
	"github.com/platinummonkey/cashpro/pkg/companies"
	"github.com/platinummonkey/cashpro/pkg/config"
	"github.com/platinummonkey/cashpro/pkg/database"
	"github.com/platinummonkey/cashpro/pkg/middleware"
	"github.com/platinummonkey/cashpro/pkg/observability"
	"github.com/platinummonkey/cashpro/pkg/rbac"
	"github.com/platinummonkey/cashpro/pkg/subscriptions"
	"github.com/platinummonkey/cashpro/pkg/tenant"
)

var configPath = flag.String("config", os.Getenv("CASHPRO_CONFIG"), "Path to a YAML config file (environment variables override it)")

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", cfg.Observability.OTelServiceName)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfigFile(path)
	}
	return config.LoadConfig()
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	shutdown.Register("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	pool := database.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	controlDB, err := database.Open(ctx, cfg.Database.ControlURL, pool)
	if err != nil {
		return fmt.Errorf("failed to connect to control database: %w", err)
	}
	shutdown.Register("control-db", func(context.Context) error { return controlDB.Close() })

	if err := database.Migrate(ctx, controlDB, database.ControlMigrationsTable, database.ControlMigrations(), logger); err != nil {
		return fmt.Errorf("failed to migrate control database: %w", err)
	}

	maintenanceURL, err := cfg.Database.MaintenanceURL()
	if err != nil {
		return err
	}
	maintenanceDB, err := database.Open(ctx, maintenanceURL, database.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		return fmt.Errorf("failed to connect to maintenance database: %w", err)
	}
	shutdown.Register("maintenance-db", func(context.Context) error { return maintenanceDB.Close() })

	redisClient, err := connectRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}

	// Tenant pools
	tenants := tenant.NewManager(tenant.ManagerConfig{
		Size: cfg.Tenant.CacheSize,
		TTL:  cfg.Tenant.IdleTTL,
		Pool: database.PoolConfig{MaxOpenConns: cfg.Tenant.MaxOpenConns, MaxIdleConns: 1},
		URL:  cfg.Database.TenantURL,
		Open: database.Open,

		Metrics: metrics,
		Logger:  logger.WithField("component", "tenant"),
	})
	tenants.StartIdleSweep(ctx)
	shutdown.Register("tenant-pools", func(context.Context) error { return tenants.Close() })

	// Stores
	people := auth.NewPostgresPersonStore(controlDB)
	companyStore := companies.NewPostgresStore(controlDB)
	subscriptionStore := subscriptions.NewPostgresStore(controlDB)
	var sessions auth.SessionStore = auth.NewPostgresSessionStore(controlDB)
	if redisClient != nil {
		sessions = auth.NewCachedSessionStore(sessions, redisClient, cfg.Session.CacheTTL, metrics, logger)
	}

	// Services
	hasher := auth.NewBcryptHasher(0)
	authService := auth.NewService(auth.ServiceConfig{
		People:     people,
		Sessions:   sessions,
		Companies:  companyStore,
		Hasher:     hasher,
		SessionTTL: cfg.Session.TTL,
		Metrics:    metrics,
		Logger:     logger.WithField("component", "auth"),
	})
	resolver := auth.NewResolver(people, sessions, companyStore, logger, nil)

	provisioner := tenant.NewProvisioner(companyStore, maintenanceDB, tenants, metrics, logger.WithField("component", "provisioner"))
	graphs := rbac.NewPoolOpener(tenants)
	engine := rbac.NewEngine(companyStore, graphs, cfg.Tenant.QueryTimeout, metrics, logger.WithField("component", "rbac"))

	dbAudit, err := audit.NewDBLogger(controlDB)
	if err != nil {
		return err
	}
	auditLogger := audit.NewMultiLogger(dbAudit, audit.NewStructuredLogger(logger))

	if cfg.Bootstrap.SuperAdminEmail != "" {
		person, action, err := authService.EnsureSuperAdmin(ctx, cfg.Bootstrap.SuperAdminEmail, cfg.Bootstrap.SuperAdminPassword)
		if err != nil {
			return fmt.Errorf("failed to bootstrap super admin: %w", err)
		}
		logger.WithFields(map[string]interface{}{"email": person.Email, "action": string(action)}).Info("Super admin ready")
	}

	if cfg.Tenant.ProvisionOnBoot {
		reconcileTenants(ctx, companyStore, subscriptionStore, provisioner, cfg.Tenant.ReconcileWorkers, logger)
	}

	server := api.NewServer(api.Config{
		Auth:          authService,
		Resolver:      resolver,
		Companies:     companies.NewService(companyStore, logger),
		Subscriptions: subscriptions.NewService(subscriptionStore, companyStore, provisioner, logger, nil),
		Admin:         admin.NewService(people, companyStore, hasher, provisioner, logger),
		Roles:         rbac.NewAdmin(companyStore, graphs, logger),
		Permissions:   engine,
		Ledger:        tenant.NewLedger(tenants, cfg.Tenant.QueryTimeout),
		AuditLog:      dbAudit,
		LoginLimiter:  newLoginLimiter(ctx, cfg.RateLimit, redisClient, metrics, logger),
		Audit:         auditLogger,
		CORSOrigins:   cfg.Server.CORSOrigins,
		CookieSecure:  cfg.Server.CookieSecure,
		Metrics:       metrics,
		Logger:        logger,
	})

	sweeper, err := scheduleSessionSweep(cfg.Session.SweepSchedule, authService, logger)
	if err != nil {
		return err
	}
	if sweeper != nil {
		sweeper.Start()
		shutdown.Register("session-sweep", func(ctx context.Context) error {
			select {
			case <-sweeper.Stop().Done():
			case <-ctx.Done():
			}
			return nil
		})
	}

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(server, "cashpro-api"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	shutdown.AddServer(httpServer)

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(controlDB, redisClient, cfg.Observability.OTelServiceVersion))
	if metrics != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}
	shutdown.AddServer(healthServer)

	errCh := make(chan error, 2)
	go serve(httpServer, "api", logger, errCh)
	go serve(healthServer, "health", logger, errCh)

	go func() {
		if err := <-errCh; err != nil {
			logger.WithError(err).Error("Listener failed")
			cancel()
		}
	}()

	return shutdown.WaitForShutdown(ctx)
}

func serve(srv *http.Server, name string, logger *observability.Logger, errCh chan<- error) {
	defer observability.RecoverPanic(logger, name+" server")

	logger.WithField("addr", srv.Addr).Infof("Starting %s server", name)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		errCh <- fmt.Errorf("%s server: %w", name, err)
	}
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *observability.Logger) (*redis.Client, error) {
	if cfg.URL == "" {
		logger.Info("Redis not configured; session cache and shared rate limits disabled")
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		// The cache and limiter degrade when Redis is down; startup continues.
		logger.WithError(err).Warn("Redis ping failed")
	}
	return client, nil
}

// newLoginLimiter shares login throttling across replicas through Redis
// when it is available and keeps per-process buckets otherwise.
func newLoginLimiter(ctx context.Context, cfg config.RateLimitConfig, client *redis.Client, metrics *observability.Metrics, logger *observability.Logger) *middleware.RateLimitMiddleware {
	if !cfg.Enabled {
		return nil
	}

	limits := middleware.LoginRateLimitConfig(cfg.LoginPerMinute, cfg.LoginBurst)
	if client != nil {
		return middleware.NewRateLimitMiddleware(
			middleware.NewDistributedRateLimiter(client, limits, "cashpro:ratelimit"),
			limits, "login", metrics, logger,
		)
	}

	local := middleware.NewRateLimiter(limits)
	local.StartCleanup(ctx)
	return middleware.NewRateLimitMiddleware(local, limits, "login", metrics, logger)
}

type sessionSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// scheduleSessionSweep returns nil when schedule is empty.
func scheduleSessionSweep(schedule string, sweeper sessionSweeper, logger *observability.Logger) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		defer observability.RecoverPanic(logger, "session sweep")

		removed, err := sweeper.SweepExpired(context.Background())
		if err != nil {
			logger.WithError(err).Warn("Session sweep failed")
			return
		}
		logger.WithField("removed", removed).Info("Expired sessions swept")
	})
	if err != nil {
		return nil, fmt.Errorf("invalid session sweep schedule %q: %w", schedule, err)
	}
	return c, nil
}

type companyLister interface {
	ListAll(ctx context.Context) ([]*companies.Company, error)
}

type subscriptionChecker interface {
	HasCurrent(ctx context.Context, companyID int64) (bool, error)
}

type tenantProvisioner interface {
	Provision(ctx context.Context, companyID int64, slug string) (string, error)
}

// reconcileTenants provisions databases for subscribed companies that do
// not have one yet, typically after a best-effort provision failed.
func reconcileTenants(ctx context.Context, list companyLister, subs subscriptionChecker, provisioner tenantProvisioner, workers int, logger *observability.Logger) int {
	all, err := list.ListAll(ctx)
	if err != nil {
		logger.WithError(err).Warn("Tenant reconcile skipped: listing companies failed")
		return 0
	}

	var pending []*companies.Company
	for _, company := range all {
		if company.HasDatabase() {
			continue
		}
		current, err := subs.HasCurrent(ctx, company.ID)
		if err != nil {
			logger.WithError(err).WithField("company_id", company.ID).Warn("Tenant reconcile: subscription lookup failed")
			continue
		}
		if current {
			pending = append(pending, company)
		}
	}

	errs := async.Batch(ctx, pending, workers, 0, func(ctx context.Context, company *companies.Company) error {
		name, err := provisioner.Provision(ctx, company.ID, company.Slug)
		if err != nil {
			logger.WithError(err).WithField("company_id", company.ID).Warn("Tenant reconcile: provisioning failed")
			return err
		}
		logger.WithFields(map[string]interface{}{"company_id": company.ID, "database": name}).Info("Tenant provisioned on boot")
		return nil
	})
	return len(pending) - len(errs)
}
