package companies

import (
	"context"
	"strings"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
	"github.com/platinummonkey/cashpro/pkg/observability"
)

// Service implements company creation for authenticated people.
type Service struct {
	store  Store
	logger *observability.Logger
}

// NewService creates a new company service
func NewService(store Store, logger *observability.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// CreateCompany creates a company owned by personID. A person may create a
// company only while they belong to none; the check and the insert are not
// atomic.
func (s *Service) CreateCompany(ctx context.Context, personID int64, in CreateCompanyInput) (*Company, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperrors.Validation("name", "company name is required")
	}

	hasCompany, err := s.store.HasMembership(ctx, personID)
	if err != nil {
		return nil, err
	}
	if hasCompany {
		return nil, apperrors.Conflict("company", "User already has a company")
	}

	base := GenerateSlug(in.Name)
	if base == "" {
		base = "company"
	}
	slug, err := uniqueSlug(ctx, base, s.store.SlugExists)
	if err != nil {
		return nil, err
	}

	company, err := s.store.CreateWithOwner(ctx, in, slug, personID)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"company_id": company.ID,
		"person_id":  personID,
		"slug":       company.Slug,
	}).Info("company created")
	return company, nil
}
