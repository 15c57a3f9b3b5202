package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
	"github.com/platinummonkey/cashpro/pkg/observability"
)

// DefaultSessionTTL applies to login, register and impersonation sessions alike.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Session kinds, used as the metric label.
const (
	KindLogin         = "login"
	KindRegister      = "register"
	KindImpersonation = "impersonation"
	KindAdmin         = "admin"
)

// Service implements the session lifecycle.
type Service struct {
	people    PersonStore
	sessions  SessionStore
	companies CompanyDirectory
	hasher    Hasher
	ttl       time.Duration
	metrics   *observability.Metrics
	logger    *observability.Logger
	now       func() time.Time
}

// ServiceConfig holds the Service dependencies.
type ServiceConfig struct {
	People     PersonStore
	Sessions   SessionStore
	Companies  CompanyDirectory
	Hasher     Hasher
	SessionTTL time.Duration
	Metrics    *observability.Metrics
	Logger     *observability.Logger
	Now        func() time.Time
}

// NewService creates a new auth service
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		people:    cfg.People,
		sessions:  cfg.Sessions,
		companies: cfg.Companies,
		hasher:    cfg.Hasher,
		ttl:       cfg.SessionTTL,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultSessionTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.hasher == nil {
		s.hasher = NewBcryptHasher(0)
	}
	if s.logger == nil {
		s.logger = observability.NewDiscardLogger()
	}
	return s
}

// SessionTTL is the lifetime given to every new session.
func (s *Service) SessionTTL() time.Duration {
	return s.ttl
}

func (s *Service) createSession(ctx context.Context, personID int64, companyID, impersonatedBy *int64, kind string) (*Session, string, error) {
	token, hash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", err
	}
	info := ClientInfoFrom(ctx)
	session, err := s.sessions.Create(ctx, &Session{
		PersonID:       personID,
		CompanyID:      companyID,
		TokenHash:      hash,
		ExpiresAt:      s.now().Add(s.ttl),
		IPAddress:      optional(info.IPAddress),
		UserAgent:      optional(info.UserAgent),
		ImpersonatedBy: impersonatedBy,
	})
	if err != nil {
		return nil, "", err
	}
	s.metrics.SessionCreated(kind)
	return session, token, nil
}

func (s *Service) result(ctx context.Context, person *Person, currentCompanyID *int64, impersonating bool) (*AuthResult, error) {
	list, err := s.companies.ListForPerson(ctx, person.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Person:           person,
		Companies:        summarize(list),
		CurrentCompanyID: currentCompanyID,
		IsImpersonating:  impersonating,
	}, nil
}

// Register creates an active, unverified person and logs them in with no
// company selected. It returns the raw session token for the cookie.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, string, error) {
	email := strings.TrimSpace(in.Email)
	if !ValidEmail(email) {
		return nil, "", apperrors.Validation("email", "a valid email is required")
	}
	if in.Password == "" {
		return nil, "", apperrors.Validation("password", "password is required")
	}

	taken, err := s.people.EmailExists(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if taken {
		return nil, "", apperrors.Conflict("email", "Email already registered")
	}

	username, err := s.uniqueUsername(ctx, localPart(email))
	if err != nil {
		return nil, "", err
	}
	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, "", err
	}

	person, err := s.people.Create(ctx, NewPerson{
		Email:          email,
		Username:       &username,
		HashedPassword: hashed,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		IsActive:       true,
	})
	if err != nil {
		return nil, "", err
	}

	_, token, err := s.createSession(ctx, person.ID, nil, nil, KindRegister)
	if err != nil {
		return nil, "", err
	}

	s.logger.WithFields(map[string]interface{}{
		"person_id": person.ID,
		"username":  username,
	}).Info("Person registered")

	return &AuthResult{Person: person, Companies: []CompanySummary{}}, token, nil
}

// ValidEmail reports whether email is a bare address. Display-name forms
// such as "Alice <alice@x.com>" parse as RFC 5322 but are rejected.
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func localPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

// uniqueUsername returns base, or base1, base2, ... whichever is free first.
func (s *Service) uniqueUsername(ctx context.Context, base string) (string, error) {
	candidate := base
	for i := 1; ; i++ {
		exists, err := s.people.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
}

func (s *Service) lookup(ctx context.Context, identifier string) (*Person, error) {
	var person *Person
	var err error
	if strings.Contains(identifier, "@") {
		person, err = s.people.GetByEmail(ctx, identifier)
	} else {
		person, err = s.people.GetByUsername(ctx, identifier)
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		person, err = s.people.GetByEmail(ctx, identifier)
	}
	return person, err
}

// Login authenticates by email or username. Unknown identifiers and wrong
// passwords share one error; the active flag is checked only after the
// password matched.
func (s *Service) Login(ctx context.Context, identifier, password string) (*AuthResult, string, error) {
	identifier = strings.TrimSpace(identifier)
	invalid := apperrors.New(apperrors.ErrInvalidCredentials, "Invalid email/username or password")

	person, err := s.lookup(ctx, identifier)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.metrics.LoginAttempt("invalid")
		return nil, "", invalid
	}
	if err != nil {
		s.metrics.LoginAttempt("error")
		return nil, "", err
	}

	if !s.hasher.Verify(person.HashedPassword, password) {
		s.metrics.LoginAttempt("invalid")
		s.logger.WithField("person_id", person.ID).Info("Login rejected: bad password")
		return nil, "", invalid
	}
	if !person.IsActive {
		s.metrics.LoginAttempt("inactive")
		return nil, "", apperrors.New(apperrors.ErrAccountInactive, "Account is inactive")
	}

	companyID, err := s.companies.DefaultCompanyID(ctx, person.ID)
	if err != nil {
		s.metrics.LoginAttempt("error")
		return nil, "", err
	}

	_, token, err := s.createSession(ctx, person.ID, companyID, nil, KindLogin)
	if err != nil {
		s.metrics.LoginAttempt("error")
		return nil, "", err
	}
	s.metrics.LoginAttempt("success")

	res, err := s.result(ctx, person, companyID, false)
	if err != nil {
		return nil, "", err
	}
	return res, token, nil
}

// Logout deletes the session behind token. Unknown and empty tokens are fine.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, HashToken(token))
}

// Me describes the resolved identity.
func (s *Service) Me(ctx context.Context, identity *Identity) (*AuthResult, error) {
	return s.result(ctx, identity.Person, identity.Session.CompanyID, identity.IsImpersonating)
}

// SwitchCompany points the current session at companyID. The person must
// be a member; nothing changes otherwise.
func (s *Service) SwitchCompany(ctx context.Context, identity *Identity, companyID int64) error {
	_, err := s.companies.GetMembership(ctx, identity.Person.ID, companyID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.New(apperrors.ErrForbidden, "Access denied to this company")
	}
	if err != nil {
		return err
	}

	if err := s.sessions.UpdateCompany(ctx, identity.Session.TokenHash, companyID); err != nil {
		return err
	}
	identity.Session.CompanyID = &companyID

	s.logger.WithFields(map[string]interface{}{
		"person_id":  identity.Person.ID,
		"company_id": companyID,
	}).Info("Company switched")
	return nil
}

// Impersonate opens a session as target on behalf of a super-admin. The
// admin's own session is left alone.
func (s *Service) Impersonate(ctx context.Context, admin *Person, targetID int64) (*Person, string, error) {
	if admin == nil || !admin.IsSuperAdmin {
		return nil, "", apperrors.New(apperrors.ErrForbidden, "Super admin access required")
	}

	target, err := s.people.GetByID(ctx, targetID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, "", apperrors.New(apperrors.ErrNotFound, "User not found")
	}
	if err != nil {
		return nil, "", err
	}

	adminID := admin.ID
	_, token, err := s.createSession(ctx, target.ID, nil, &adminID, KindImpersonation)
	if err != nil {
		return nil, "", err
	}

	s.logger.WithFields(map[string]interface{}{
		"admin_id":  admin.ID,
		"target_id": target.ID,
	}).Warn("Impersonation started")
	return target, token, nil
}

// StopImpersonate drops the current impersonation session, if that is what
// it is, and starts a fresh session for the acting admin with no company.
func (s *Service) StopImpersonate(ctx context.Context, identity *Identity) (*Person, string, error) {
	admin := identity.ActingAdmin()
	if admin == nil || !admin.IsSuperAdmin || !admin.IsActive {
		return nil, "", apperrors.New(apperrors.ErrForbidden, "Super admin access required")
	}

	if identity.Session.ImpersonatedBy != nil {
		if err := s.sessions.Delete(ctx, identity.Session.TokenHash); err != nil {
			return nil, "", err
		}
	}

	_, token, err := s.createSession(ctx, admin.ID, nil, nil, KindAdmin)
	if err != nil {
		return nil, "", err
	}

	s.logger.WithField("admin_id", admin.ID).Info("Impersonation stopped")
	return admin, token, nil
}

// SweepExpired deletes every session at or past its expiry.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.metrics.SessionsSwept(n)
	if n > 0 {
		s.logger.WithField("count", n).Info("Expired sessions swept")
	}
	return n, nil
}
