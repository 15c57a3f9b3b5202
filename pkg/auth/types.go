package auth

import (
	"time"

	"github.com/platinummonkey/cashpro/pkg/companies"
)

// Person is a login identity in the control database.
type Person struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	Username       *string   `json:"username,omitempty"`
	HashedPassword string    `json:"-"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Phone          *string   `json:"phone,omitempty"`
	IsActive       bool      `json:"is_active"`
	IsVerified     bool      `json:"is_verified"`
	IsSuperAdmin   bool      `json:"is_super_admin"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Session is a server-side login. TokenHash is the sha256 hex of the
// cookie value; the raw token is never stored.
type Session struct {
	ID             int64     `json:"id"`
	PersonID       int64     `json:"person_id"`
	CompanyID      *int64    `json:"company_id"`
	TokenHash      string    `json:"token_hash"`
	ExpiresAt      time.Time `json:"expires_at"`
	IPAddress      *string   `json:"ip_address,omitempty"`
	UserAgent      *string   `json:"user_agent,omitempty"`
	ImpersonatedBy *int64    `json:"impersonated_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Identity is the resolved caller of a request.
type Identity struct {
	Person  *Person
	Company *companies.Company
	Session *Session
	// Impersonator is the super-admin behind an impersonation session.
	Impersonator    *Person
	IsImpersonating bool
}

// CompanyID returns the active company id, or 0 when none is selected.
func (i *Identity) CompanyID() int64 {
	if i == nil || i.Company == nil {
		return 0
	}
	return i.Company.ID
}

// ActingAdmin returns the person actually operating the session: the
// impersonator during impersonation, otherwise the session's person.
func (i *Identity) ActingAdmin() *Person {
	if i.IsImpersonating {
		return i.Impersonator
	}
	return i.Person
}

// CompanySummary is the company shape embedded in auth responses.
type CompanySummary struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Slug         string  `json:"slug"`
	DatabaseName *string `json:"database_name"`
}

func summarize(list []*companies.Company) []CompanySummary {
	out := make([]CompanySummary, 0, len(list))
	for _, c := range list {
		out = append(out, CompanySummary{ID: c.ID, Name: c.Name, Slug: c.Slug, DatabaseName: c.DatabaseName})
	}
	return out
}

// AuthResult is returned by register, login and me.
type AuthResult struct {
	Person           *Person          `json:"person"`
	Companies        []CompanySummary `json:"companies"`
	CurrentCompanyID *int64           `json:"current_company_id"`
	IsImpersonating  bool             `json:"is_impersonating"`
}

// RegisterInput is the self-service sign-up payload.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// NewPerson is what a store needs to insert a person.
type NewPerson struct {
	Email          string
	Username       *string
	HashedPassword string
	FirstName      string
	LastName       string
	Phone          *string
	IsActive       bool
	IsVerified     bool
	IsSuperAdmin   bool
}
