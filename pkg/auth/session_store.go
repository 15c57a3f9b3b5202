package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
)

// SessionStore persists sessions keyed by token hash.
type SessionStore interface {
	Create(ctx context.Context, s *Session) (*Session, error)
	// GetValid returns the session only if expires_at > now.
	GetValid(ctx context.Context, tokenHash string, now time.Time) (*Session, error)
	Delete(ctx context.Context, tokenHash string) error
	UpdateCompany(ctx context.Context, tokenHash string, companyID int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PostgresSessionStore implements SessionStore on the sessions table.
type PostgresSessionStore struct {
	db *sql.DB
}

// NewPostgresSessionStore creates a new session store
func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

const sessionColumns = `id, person_id, company_id, session_token, expires_at, ip_address, user_agent,
	impersonated_by, created_at`

func scanSession(row scanner) (*Session, error) {
	s := &Session{}
	var companyID, impersonatedBy sql.NullInt64
	var ip, ua sql.NullString
	err := row.Scan(&s.ID, &s.PersonID, &companyID, &s.TokenHash, &s.ExpiresAt, &ip, &ua,
		&impersonatedBy, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if companyID.Valid {
		s.CompanyID = &companyID.Int64
	}
	if impersonatedBy.Valid {
		s.ImpersonatedBy = &impersonatedBy.Int64
	}
	if ip.Valid {
		s.IPAddress = &ip.String
	}
	if ua.Valid {
		s.UserAgent = &ua.String
	}
	return s, nil
}

func (st *PostgresSessionStore) Create(ctx context.Context, s *Session) (*Session, error) {
	created, err := scanSession(st.db.QueryRowContext(ctx, `
		INSERT INTO sessions (person_id, company_id, session_token, expires_at, ip_address, user_agent, impersonated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+sessionColumns,
		s.PersonID, s.CompanyID, s.TokenHash, s.ExpiresAt, s.IPAddress, s.UserAgent, s.ImpersonatedBy,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return created, nil
}

func (st *PostgresSessionStore) GetValid(ctx context.Context, tokenHash string, now time.Time) (*Session, error) {
	s, err := scanSession(st.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_token = $1 AND expires_at > $2`,
		tokenHash, now,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrUnauthenticated, "Not authenticated")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

func (st *PostgresSessionStore) Delete(ctx context.Context, tokenHash string) error {
	if _, err := st.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_token = $1`, tokenHash); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (st *PostgresSessionStore) UpdateCompany(ctx context.Context, tokenHash string, companyID int64) error {
	_, err := st.db.ExecContext(ctx,
		`UPDATE sessions SET company_id = $1 WHERE session_token = $2`, companyID, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to update session company: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions whose expires_at <= now and returns the count.
func (st *PostgresSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := st.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return n, nil
}
