package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
	"github.com/platinummonkey/cashpro/pkg/companies"
	"github.com/platinummonkey/cashpro/pkg/database"
	"github.com/platinummonkey/cashpro/pkg/observability"
)

// Registry is the company lookup and update the provisioner needs.
type Registry interface {
	GetByID(ctx context.Context, id int64) (*companies.Company, error)
	SetDatabaseName(ctx context.Context, companyID int64, name string) (bool, error)
}

// Pools hands out tenant connection pools.
type Pools interface {
	DB(ctx context.Context, name string) (*sql.DB, error)
}

// Provisioner creates, migrates and seeds tenant databases.
type Provisioner struct {
	registry    Registry
	maintenance *sql.DB
	pools       Pools
	metrics     *observability.Metrics
	logger      *observability.Logger
	group       singleflight.Group
}

// NewProvisioner creates a provisioner. maintenance is a connection to a
// database that always exists (usually "postgres") used for CREATE DATABASE.
func NewProvisioner(registry Registry, maintenance *sql.DB, pools Pools, metrics *observability.Metrics, logger *observability.Logger) *Provisioner {
	if logger == nil {
		logger = observability.NewDiscardLogger()
	}
	return &Provisioner{
		registry:    registry,
		maintenance: maintenance,
		pools:       pools,
		metrics:     metrics,
		logger:      logger,
	}
}

// Provision makes sure the company has a ready tenant database and returns
// its name. An already provisioned company is returned untouched. slug may
// be empty, in which case the company's own slug is used.
func (p *Provisioner) Provision(ctx context.Context, companyID int64, slug string) (string, error) {
	v, err, _ := p.group.Do(strconv.FormatInt(companyID, 10), func() (interface{}, error) {
		return p.provision(ctx, companyID, slug)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (p *Provisioner) provision(ctx context.Context, companyID int64, slug string) (name string, err error) {
	ctx, span := observability.StartSpan(ctx, "tenant.provision", attribute.Int64("company_id", companyID))
	defer func() { observability.EndSpan(span, err) }()

	logger := p.logger.WithField("company_id", companyID)

	company, err := p.registry.GetByID(ctx, companyID)
	if err != nil {
		return "", err
	}
	if company.HasDatabase() {
		p.metrics.TenantProvisioned("existing")
		return *company.DatabaseName, nil
	}
	if slug == "" {
		slug = company.Slug
	}

	name = DatabaseName(slug, companyID)
	span.SetAttributes(attribute.String("database", name))

	if err := p.provisionDatabase(ctx, companyID, name); err != nil {
		p.metrics.TenantProvisioned("failed")
		logger.WithError(err).WithField("database", name).Error("Tenant provisioning failed")
		return "", apperrors.Wrap(apperrors.ErrProvisioningFailure, "tenant provisioning failed", err)
	}

	recorded, err := p.registry.SetDatabaseName(ctx, companyID, name)
	if err != nil {
		p.metrics.TenantProvisioned("failed")
		return "", apperrors.Wrap(apperrors.ErrProvisioningFailure, "tenant provisioning failed", err)
	}
	if !recorded {
		// Someone else recorded a name first; theirs wins.
		company, err := p.registry.GetByID(ctx, companyID)
		if err != nil {
			return "", err
		}
		if company.HasDatabase() {
			p.metrics.TenantProvisioned("existing")
			return *company.DatabaseName, nil
		}
		return "", apperrors.New(apperrors.ErrProvisioningFailure, "tenant provisioning failed")
	}

	p.metrics.TenantProvisioned("created")
	logger.WithField("database", name).Info("Tenant database provisioned")
	return name, nil
}

func (p *Provisioner) provisionDatabase(ctx context.Context, companyID int64, name string) error {
	if err := p.ensureDatabase(ctx, name); err != nil {
		return err
	}
	db, err := p.pools.DB(ctx, name)
	if err != nil {
		return err
	}
	if err := database.Migrate(ctx, db, MigrationsTable, Migrations(), p.logger); err != nil {
		return err
	}
	return Seed(ctx, db, companyID)
}

// ensureDatabase creates name unless it already exists. Losing a
// CREATE DATABASE race to another process counts as success.
func (p *Provisioner) ensureDatabase(ctx context.Context, name string) error {
	var one int
	err := p.maintenance.QueryRowContext(ctx, `SELECT 1 FROM pg_database WHERE datname = $1`, name).Scan(&one)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check database %s: %w", name, err)
	}

	if _, err := p.maintenance.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		if database.IsDuplicateDatabase(err) {
			return nil
		}
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	p.logger.WithField("database", name).Info("Tenant database created")
	return nil
}

// ProvisionBestEffort provisions and only logs failures. Used where
// provisioning must not fail the caller, such as subscription activation.
func (p *Provisioner) ProvisionBestEffort(ctx context.Context, companyID int64, slug string) {
	if _, err := p.Provision(ctx, companyID, slug); err != nil {
		p.logger.WithError(err).WithField("company_id", companyID).Warn("Best-effort tenant provisioning failed")
	}
}
