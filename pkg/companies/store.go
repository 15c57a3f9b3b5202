package companies

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
	"github.com/platinummonkey/cashpro/pkg/database"
)

// Store is the control-database access for companies and memberships.
type Store interface {
	GetByID(ctx context.Context, id int64) (*Company, error)
	ListAll(ctx context.Context) ([]*Company, error)
	ListForPerson(ctx context.Context, personID int64) ([]*Company, error)
	GetMembership(ctx context.Context, personID, companyID int64) (*Membership, error)
	HasMembership(ctx context.Context, personID int64) (bool, error)
	DefaultCompanyID(ctx context.Context, personID int64) (*int64, error)
	OwnedCompany(ctx context.Context, personID int64) (*Company, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	CreateWithOwner(ctx context.Context, in CreateCompanyInput, slug string, ownerID int64) (*Company, error)
	SetDatabaseName(ctx context.Context, companyID int64, name string) (bool, error)
}

// PostgresStore implements Store on the control database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const companyColumns = `c.id, c.name, c.slug, c.legal_name, c.tax_id, c.address_line1, c.address_line2,
	c.city, c.state, c.postal_code, c.country, c.phone, c.website, c.database_name, c.created_at, c.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCompany(row rowScanner) (*Company, error) {
	c := &Company{}
	var legal, tax, addr1, addr2, city, state, postal, country, phone, website, dbName sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &legal, &tax, &addr1, &addr2,
		&city, &state, &postal, &country, &phone, &website, &dbName, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.LegalName = nullable(legal)
	c.TaxID = nullable(tax)
	c.AddressLine1 = nullable(addr1)
	c.AddressLine2 = nullable(addr2)
	c.City = nullable(city)
	c.State = nullable(state)
	c.PostalCode = nullable(postal)
	c.Country = nullable(country)
	c.Phone = nullable(phone)
	c.Website = nullable(website)
	c.DatabaseName = nullable(dbName)
	return c, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*Company, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies c WHERE c.id = $1`, id)
	c, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrNotFound, "company not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*Company, error) {
	return s.queryCompanies(ctx, `SELECT `+companyColumns+` FROM companies c ORDER BY c.id`)
}

// ListForPerson returns every company the person belongs to in membership order.
func (s *PostgresStore) ListForPerson(ctx context.Context, personID int64) ([]*Company, error) {
	return s.queryCompanies(ctx, `
		SELECT `+companyColumns+`
		FROM companies c
		JOIN person_companies pc ON pc.company_id = c.id
		WHERE pc.person_id = $1
		ORDER BY pc.id`, personID)
}

func (s *PostgresStore) queryCompanies(ctx context.Context, query string, args ...interface{}) ([]*Company, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	companies := []*Company{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (s *PostgresStore) GetMembership(ctx context.Context, personID, companyID int64) (*Membership, error) {
	m := &Membership{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, person_id, company_id, role, is_primary, joined_at
		FROM person_companies
		WHERE person_id = $1 AND company_id = $2`, personID, companyID,
	).Scan(&m.ID, &m.PersonID, &m.CompanyID, &m.Role, &m.IsPrimary, &m.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrNotFound, "membership not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) HasMembership(ctx context.Context, personID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM person_companies WHERE person_id = $1)`, personID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

// DefaultCompanyID picks the primary membership, else the oldest one.
// nil means the person belongs to no company.
func (s *PostgresStore) DefaultCompanyID(ctx context.Context, personID int64) (*int64, error) {
	var companyID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT company_id FROM person_companies
		WHERE person_id = $1
		ORDER BY is_primary DESC, id ASC
		LIMIT 1`, personID,
	).Scan(&companyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default company: %w", err)
	}
	return &companyID, nil
}

func (s *PostgresStore) OwnedCompany(ctx context.Context, personID int64) (*Company, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+companyColumns+`
		FROM companies c
		JOIN person_companies pc ON pc.company_id = c.id
		WHERE pc.person_id = $1 AND pc.role = 'owner'
		ORDER BY pc.id
		LIMIT 1`, personID)
	c, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrNotFound, "no company found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get owned company: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM companies WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}

// CreateWithOwner inserts the company, its owner membership and default
// settings in one transaction.
func (s *PostgresStore) CreateWithOwner(ctx context.Context, in CreateCompanyInput, slug string, ownerID int64) (*Company, error) {
	var company *Company
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO companies (name, slug, legal_name, tax_id, address_line1, address_line2,
				city, state, postal_code, country, phone, website)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id, name, slug, legal_name, tax_id, address_line1, address_line2,
				city, state, postal_code, country, phone, website, database_name, created_at, updated_at`,
			in.Name, slug, in.LegalName, in.TaxID, in.AddressLine1, in.AddressLine2,
			in.City, in.State, in.PostalCode, in.Country, in.Phone, in.Website)
		c, err := scanCompany(row)
		if err != nil {
			if database.IsUniqueViolation(err, "companies_slug_key") {
				return apperrors.Conflict("slug", "company slug already exists")
			}
			return fmt.Errorf("failed to create company: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO person_companies (person_id, company_id, role, is_primary)
			VALUES ($1, $2, $3, TRUE)`, ownerID, c.ID, RoleOwner); err != nil {
			return fmt.Errorf("failed to create owner membership: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO company_settings (company_id, timezone, locale, currency)
			VALUES ($1, $2, $3, $4)`,
			c.ID, DefaultSettings.Timezone, DefaultSettings.Locale, DefaultSettings.Currency); err != nil {
			return fmt.Errorf("failed to create company settings: %w", err)
		}

		company = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return company, nil
}

// SetDatabaseName records the tenant database once. It reports false when
// the company already had one (the stored name is left untouched).
func (s *PostgresStore) SetDatabaseName(ctx context.Context, companyID int64, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE companies SET database_name = $2, updated_at = NOW()
		WHERE id = $1 AND database_name IS NULL`, companyID, name)
	if err != nil {
		return false, fmt.Errorf("failed to set database name: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to set database name: %w", err)
	}
	return n == 1, nil
}
