package auth

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
	"github.com/platinummonkey/cashpro/pkg/companies"
	"github.com/platinummonkey/cashpro/pkg/observability"
)

// CompanyDirectory is the part of the company registry auth needs.
type CompanyDirectory interface {
	GetByID(ctx context.Context, id int64) (*companies.Company, error)
	ListForPerson(ctx context.Context, personID int64) ([]*companies.Company, error)
	GetMembership(ctx context.Context, personID, companyID int64) (*companies.Membership, error)
	DefaultCompanyID(ctx context.Context, personID int64) (*int64, error)
}

// Resolver turns a raw session token into an Identity. It never writes.
type Resolver struct {
	people    PersonStore
	sessions  SessionStore
	companies CompanyDirectory
	logger    *observability.Logger
	now       func() time.Time
}

// NewResolver creates a resolver. A nil clock means time.Now.
func NewResolver(people PersonStore, sessions SessionStore, dir CompanyDirectory, logger *observability.Logger, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{people: people, sessions: sessions, companies: dir, logger: logger, now: now}
}

func unauthenticated(msg string) error {
	return apperrors.New(apperrors.ErrUnauthenticated, msg)
}

// Resolve returns the identity behind token or ErrUnauthenticated.
func (r *Resolver) Resolve(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, unauthenticated("Not authenticated")
	}

	now := r.now()
	session, err := r.sessions.GetValid(ctx, HashToken(token), now)
	if err != nil {
		return nil, err
	}
	if !session.ExpiresAt.After(now) {
		return nil, unauthenticated("Not authenticated")
	}

	person, err := r.people.GetByID(ctx, session.PersonID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, unauthenticated("Not authenticated")
	}
	if err != nil {
		return nil, err
	}
	if !person.IsActive {
		return nil, unauthenticated("Account is inactive")
	}

	identity := &Identity{
		Person:          person,
		Session:         session,
		IsImpersonating: session.ImpersonatedBy != nil,
	}

	if session.CompanyID != nil {
		company, err := r.companies.GetByID(ctx, *session.CompanyID)
		switch {
		case err == nil:
			identity.Company = company
		case errors.Is(err, apperrors.ErrNotFound):
			r.logger.WithField("company_id", *session.CompanyID).Warn("Session references missing company")
		default:
			return nil, err
		}
	}

	if session.ImpersonatedBy != nil {
		admin, err := r.people.GetByID(ctx, *session.ImpersonatedBy)
		switch {
		case err == nil:
			identity.Impersonator = admin
		case errors.Is(err, apperrors.ErrNotFound):
		default:
			return nil, err
		}
	}

	return identity, nil
}
