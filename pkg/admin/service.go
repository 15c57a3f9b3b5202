// Package admin implements the super-admin operations: managing people,
// listing companies and provisioning tenant databases on demand.
// Impersonation lives in pkg/auth because it mints sessions.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
	"github.com/platinummonkey/cashpro/pkg/auth"
	"github.com/platinummonkey/cashpro/pkg/companies"
	"github.com/platinummonkey/cashpro/pkg/observability"
)

// CompanyRegistry is the read side of the company store.
type CompanyRegistry interface {
	GetByID(ctx context.Context, id int64) (*companies.Company, error)
	ListAll(ctx context.Context) ([]*companies.Company, error)
}

// Provisioner creates tenant databases.
type Provisioner interface {
	Provision(ctx context.Context, companyID int64, slug string) (string, error)
}

// CreateUserInput is the payload for creating a person directly.
type CreateUserInput struct {
	Email        string  `json:"email"`
	Password     string  `json:"password"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Username     *string `json:"username"`
	Phone        *string `json:"phone"`
	IsActive     *bool   `json:"is_active"`
	IsVerified   bool    `json:"is_verified"`
	IsSuperAdmin bool    `json:"is_super_admin"`
}

// CompanyDetail is a company as the admin listing shows it.
type CompanyDetail struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	DatabaseName *string   `json:"database_name"`
	CreatedAt    time.Time `json:"created_at"`
	HasDatabase  bool      `json:"has_database"`
}

// DatabaseResult reports the outcome of an on-demand provision.
type DatabaseResult struct {
	Message      string `json:"message"`
	DatabaseName string `json:"database_name"`
	Created      bool   `json:"-"`
}

// Service implements the admin operations. Callers are expected to have
// checked super-admin status already.
type Service struct {
	people      auth.PersonStore
	companies   CompanyRegistry
	hasher      auth.Hasher
	provisioner Provisioner
	logger      *observability.Logger
}

// NewService creates a new admin service
func NewService(people auth.PersonStore, registry CompanyRegistry, hasher auth.Hasher, provisioner Provisioner, logger *observability.Logger) *Service {
	return &Service{
		people:      people,
		companies:   registry,
		hasher:      hasher,
		provisioner: provisioner,
		logger:      logger,
	}
}

// ListUsers returns every person.
func (s *Service) ListUsers(ctx context.Context) ([]*auth.Person, error) {
	return s.people.List(ctx)
}

// CreateUser creates a person with the given flags. Email and username must
// be unused.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*auth.Person, error) {
	email := strings.TrimSpace(in.Email)
	if !auth.ValidEmail(email) {
		return nil, apperrors.Validation("email", "a valid email is required")
	}
	if in.Password == "" {
		return nil, apperrors.Validation("password", "password is required")
	}

	exists, err := s.people.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Conflict("email", fmt.Sprintf("User with email '%s' already exists", email))
	}

	var username *string
	if in.Username != nil {
		if u := strings.TrimSpace(*in.Username); u != "" {
			exists, err := s.people.UsernameExists(ctx, u)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, apperrors.Conflict("username", fmt.Sprintf("User with username '%s' already exists", u))
			}
			username = &u
		}
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	person, err := s.people.Create(ctx, auth.NewPerson{
		Email:          email,
		Username:       username,
		HashedPassword: hashed,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Phone:          in.Phone,
		IsActive:       active,
		IsVerified:     in.IsVerified,
		IsSuperAdmin:   in.IsSuperAdmin,
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"person_id":      person.ID,
		"is_super_admin": person.IsSuperAdmin,
	}).Info("User created by admin")
	return person, nil
}

// ListCompanies returns every company with its provisioning state.
func (s *Service) ListCompanies(ctx context.Context) ([]CompanyDetail, error) {
	list, err := s.companies.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CompanyDetail, 0, len(list))
	for _, c := range list {
		out = append(out, CompanyDetail{
			ID:           c.ID,
			Name:         c.Name,
			Slug:         c.Slug,
			DatabaseName: c.DatabaseName,
			CreatedAt:    c.CreatedAt,
			HasDatabase:  c.HasDatabase(),
		})
	}
	return out, nil
}

// CreateDatabase provisions the company's tenant database unless it
// already has one.
func (s *Service) CreateDatabase(ctx context.Context, companyID int64) (*DatabaseResult, error) {
	company, err := s.companies.GetByID(ctx, companyID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.New(apperrors.ErrNotFound, "Company not found")
	}
	if err != nil {
		return nil, err
	}
	if company.HasDatabase() {
		return &DatabaseResult{Message: "Database already exists", DatabaseName: *company.DatabaseName}, nil
	}

	name, err := s.provisioner.Provision(ctx, company.ID, company.Slug)
	if err != nil {
		return nil, err
	}
	return &DatabaseResult{Message: "Database created successfully", DatabaseName: name, Created: true}, nil
}
