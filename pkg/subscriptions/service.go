package subscriptions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
	"github.com/platinummonkey/cashpro/pkg/companies"
	"github.com/platinummonkey/cashpro/pkg/observability"
)

// OwnerLookup finds the company a person owns.
type OwnerLookup interface {
	OwnedCompany(ctx context.Context, personID int64) (*companies.Company, error)
}

// Provisioner creates the tenant database once a plan is active.
type Provisioner interface {
	ProvisionBestEffort(ctx context.Context, companyID int64, slug string)
}

// Service creates subscriptions.
type Service struct {
	store       Store
	companies   OwnerLookup
	provisioner Provisioner
	logger      *observability.Logger
	now         func() time.Time
}

// NewService creates a subscription service. A nil clock means time.Now.
func NewService(store Store, owners OwnerLookup, provisioner Provisioner, logger *observability.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, companies: owners, provisioner: provisioner, logger: logger, now: now}
}

// Create activates a subscription for the company personID owns, then
// provisions its tenant database. Provisioning failures do not fail the
// subscription; the database can be created later from the admin surface.
func (s *Service) Create(ctx context.Context, personID int64, in CreateInput) (*Subscription, error) {
	in.PlanName = strings.TrimSpace(in.PlanName)
	in.PlanTier = strings.TrimSpace(in.PlanTier)
	if in.PlanName == "" {
		return nil, apperrors.Validation("plan_name", "plan_name is required")
	}
	if in.PlanTier == "" {
		return nil, apperrors.Validation("plan_tier", "plan_tier is required")
	}
	if !in.BillingCycle.Valid() {
		return nil, apperrors.Validation("billing_cycle", "billing_cycle must be monthly or annual")
	}
	if in.Price < 0 {
		return nil, apperrors.Validation("price", "price must not be negative")
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}

	company, err := s.companies.OwnedCompany(ctx, personID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.New(apperrors.ErrNotFound, "No company found. Please create a company first.")
	}
	if err != nil {
		return nil, err
	}

	current, err := s.store.HasCurrent(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	if current {
		return nil, apperrors.Conflict("company", "Company already has an active subscription")
	}

	startsAt := s.now().UTC()
	endsAt := startsAt.Add(in.BillingCycle.Period())
	sub := &Subscription{
		CompanyID:    company.ID,
		PlanName:     in.PlanName,
		PlanTier:     in.PlanTier,
		Status:       StatusActive,
		BillingCycle: in.BillingCycle,
		Price:        in.Price,
		Currency:     in.Currency,
		StartsAt:     startsAt,
		EndsAt:       &endsAt,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"company_id":      company.ID,
		"subscription_id": sub.ID,
		"plan_tier":       sub.PlanTier,
	}).Info("Subscription activated")

	s.provisioner.ProvisionBestEffort(ctx, company.ID, company.Slug)
	return sub, nil
}
