package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
)

// Placeholder credentials shipped in sample configs. Bootstrapping refuses them.
const (
	PlaceholderAdminEmail    = "admin@example.com"
	PlaceholderAdminPassword = "change_me"
)

// BootstrapAction describes what EnsureSuperAdmin did.
type BootstrapAction string

const (
	BootstrapCreated  BootstrapAction = "created"
	BootstrapUpdated  BootstrapAction = "updated"
	BootstrapPromoted BootstrapAction = "promoted"
)

// EnsureSuperAdmin makes sure a super-admin exists for identifier, which is
// an email or a bare username (stored as <username>@cashpro.local).
// An existing super-admin gets the new password, an existing regular person
// is promoted, otherwise a new person is created.
func (s *Service) EnsureSuperAdmin(ctx context.Context, identifier, password string) (*Person, BootstrapAction, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, "", apperrors.Validation("bootstrap", "super admin email and password are required")
	}
	if identifier == PlaceholderAdminEmail || password == PlaceholderAdminPassword {
		return nil, "", apperrors.Validation("bootstrap", "refusing to bootstrap with placeholder credentials")
	}

	email := identifier
	if !strings.Contains(email, "@") {
		email = identifier + "@cashpro.local"
	}
	username := localPart(email)

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, "", err
	}

	existing, err := s.people.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.IsSuperAdmin:
		if err := s.people.UpdatePassword(ctx, existing.ID, hashed); err != nil {
			return nil, "", err
		}
		s.logger.WithField("person_id", existing.ID).Info("Super admin password updated")
		return existing, BootstrapUpdated, nil
	case err == nil:
		if err := s.people.PromoteSuperAdmin(ctx, existing.ID, hashed, username); err != nil {
			return nil, "", err
		}
		existing.IsSuperAdmin = true
		if existing.Username == nil {
			existing.Username = &username
		}
		s.logger.WithField("person_id", existing.ID).Warn("Existing person promoted to super admin")
		return existing, BootstrapPromoted, nil
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, "", err
	}

	person, err := s.people.Create(ctx, NewPerson{
		Email:          email,
		Username:       &username,
		HashedPassword: hashed,
		FirstName:      "Super",
		LastName:       "Admin",
		IsActive:       true,
		IsVerified:     true,
		IsSuperAdmin:   true,
	})
	if err != nil {
		return nil, "", err
	}
	s.logger.WithField("person_id", person.ID).Info("Super admin created")
	return person, BootstrapCreated, nil
}
