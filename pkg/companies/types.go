package companies

import (
	"time"
)

// Role is the coarse company-level role of a membership.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the four membership roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// IsManager reports whether the role grants full access within the company.
func (r Role) IsManager() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Company is a tenant. DatabaseName is nil until the tenant database has
// been provisioned and never changes afterwards.
type Company struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	LegalName    *string   `json:"legal_name,omitempty"`
	TaxID        *string   `json:"tax_id,omitempty"`
	AddressLine1 *string   `json:"address_line1,omitempty"`
	AddressLine2 *string   `json:"address_line2,omitempty"`
	City         *string   `json:"city,omitempty"`
	State        *string   `json:"state,omitempty"`
	PostalCode   *string   `json:"postal_code,omitempty"`
	Country      *string   `json:"country,omitempty"`
	Phone        *string   `json:"phone,omitempty"`
	Website      *string   `json:"website,omitempty"`
	DatabaseName *string   `json:"database_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasDatabase reports whether the tenant database has been provisioned.
func (c *Company) HasDatabase() bool {
	return c != nil && c.DatabaseName != nil && *c.DatabaseName != ""
}

// Membership links a person to a company.
type Membership struct {
	ID        int64     `json:"id"`
	PersonID  int64     `json:"person_id"`
	CompanyID int64     `json:"company_id"`
	Role      Role      `json:"role"`
	IsPrimary bool      `json:"is_primary"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Settings are the per-company defaults created alongside the company.
type Settings struct {
	CompanyID int64  `json:"company_id"`
	Timezone  string `json:"timezone"`
	Locale    string `json:"locale"`
	Currency  string `json:"currency"`
}

// DefaultSettings are applied to every new company.
var DefaultSettings = Settings{Timezone: "UTC", Locale: "en_US", Currency: "USD"}

// CreateCompanyInput is the payload for creating a company.
type CreateCompanyInput struct {
	Name         string  `json:"name"`
	LegalName    *string `json:"legal_name,omitempty"`
	TaxID        *string `json:"tax_id,omitempty"`
	AddressLine1 *string `json:"address_line1,omitempty"`
	AddressLine2 *string `json:"address_line2,omitempty"`
	City         *string `json:"city,omitempty"`
	State        *string `json:"state,omitempty"`
	PostalCode   *string `json:"postal_code,omitempty"`
	Country      *string `json:"country,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Website      *string `json:"website,omitempty"`
}
