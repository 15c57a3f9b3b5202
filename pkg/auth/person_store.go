package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
	"github.com/platinummonkey/cashpro/pkg/database"
)

// PersonStore reads and writes people in the control database.
type PersonStore interface {
	GetByID(ctx context.Context, id int64) (*Person, error)
	GetByEmail(ctx context.Context, email string) (*Person, error)
	GetByUsername(ctx context.Context, username string) (*Person, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, p NewPerson) (*Person, error)
	List(ctx context.Context) ([]*Person, error)
	UpdatePassword(ctx context.Context, id int64, hashedPassword string) error
	PromoteSuperAdmin(ctx context.Context, id int64, hashedPassword, username string) error
}

// PostgresPersonStore implements PersonStore.
type PostgresPersonStore struct {
	db *sql.DB
}

// NewPostgresPersonStore creates a new person store
func NewPostgresPersonStore(db *sql.DB) *PostgresPersonStore {
	return &PostgresPersonStore{db: db}
}

const personColumns = `id, email, username, hashed_password, first_name, last_name, phone,
	is_active, is_verified, is_super_admin, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPerson(row scanner) (*Person, error) {
	p := &Person{}
	var username, phone sql.NullString
	err := row.Scan(&p.ID, &p.Email, &username, &p.HashedPassword, &p.FirstName, &p.LastName, &phone,
		&p.IsActive, &p.IsVerified, &p.IsSuperAdmin, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if username.Valid {
		p.Username = &username.String
	}
	if phone.Valid {
		p.Phone = &phone.String
	}
	return p, nil
}

func (s *PostgresPersonStore) getOne(ctx context.Context, where string, arg interface{}) (*Person, error) {
	p, err := scanPerson(s.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM people WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return p, nil
}

func (s *PostgresPersonStore) GetByID(ctx context.Context, id int64) (*Person, error) {
	return s.getOne(ctx, "id = $1", id)
}

func (s *PostgresPersonStore) GetByEmail(ctx context.Context, email string) (*Person, error) {
	return s.getOne(ctx, "email = $1", email)
}

func (s *PostgresPersonStore) GetByUsername(ctx context.Context, username string) (*Person, error) {
	return s.getOne(ctx, "username = $1", username)
}

func (s *PostgresPersonStore) exists(ctx context.Context, column, value string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM people WHERE `+column+` = $1)`, value,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", column, err)
	}
	return exists, nil
}

func (s *PostgresPersonStore) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, "email", email)
}

func (s *PostgresPersonStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, "username", username)
}

// Create inserts a person. Unique violations on email or username come back
// as conflicts so callers racing a pre-check still get a 400.
func (s *PostgresPersonStore) Create(ctx context.Context, np NewPerson) (*Person, error) {
	p, err := scanPerson(s.db.QueryRowContext(ctx, `
		INSERT INTO people (email, username, hashed_password, first_name, last_name, phone,
			is_active, is_verified, is_super_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+personColumns,
		np.Email, np.Username, np.HashedPassword, np.FirstName, np.LastName, np.Phone,
		np.IsActive, np.IsVerified, np.IsSuperAdmin,
	))
	switch {
	case database.IsUniqueViolation(err, "people_email_key"):
		return nil, apperrors.Conflict("email", fmt.Sprintf("User with email '%s' already exists", np.Email))
	case database.IsUniqueViolation(err, "people_username_key"):
		name := ""
		if np.Username != nil {
			name = *np.Username
		}
		return nil, apperrors.Conflict("username", fmt.Sprintf("User with username '%s' already exists", name))
	case err != nil:
		return nil, fmt.Errorf("failed to create person: %w", err)
	}
	return p, nil
}

func (s *PostgresPersonStore) List(ctx context.Context) ([]*Person, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+personColumns+` FROM people ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	defer rows.Close()

	people := []*Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

func (s *PostgresPersonStore) UpdatePassword(ctx context.Context, id int64, hashedPassword string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE people SET hashed_password = $1, updated_at = NOW() WHERE id = $2`, hashedPassword, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// PromoteSuperAdmin grants super-admin, resets the password and fills in a
// username only when the person has none.
func (s *PostgresPersonStore) PromoteSuperAdmin(ctx context.Context, id int64, hashedPassword, username string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE people
		SET is_super_admin = TRUE, hashed_password = $1, username = COALESCE(username, $2), updated_at = NOW()
		WHERE id = $3`, hashedPassword, username, id)
	if err != nil {
		return fmt.Errorf("failed to promote super admin: %w", err)
	}
	return nil
}
