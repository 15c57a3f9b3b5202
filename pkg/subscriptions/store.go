package subscriptions

import (
	"context"
	"database/sql"
	"fmt"
)

// Store persists subscriptions in the control database.
type Store interface {
	HasCurrent(ctx context.Context, companyID int64) (bool, error)
	Create(ctx context.Context, sub *Subscription) error
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// HasCurrent reports whether the company has an active or trial subscription.
func (s *PostgresStore) HasCurrent(ctx context.Context, companyID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM subscriptions
			WHERE company_id = $1 AND status IN ('active', 'trial')
		)`, companyID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check subscriptions: %w", err)
	}
	return exists, nil
}

// Create inserts sub and fills in its id and timestamps.
func (s *PostgresStore) Create(ctx context.Context, sub *Subscription) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO subscriptions (company_id, plan_name, plan_tier, status, billing_cycle, price, currency, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		sub.CompanyID, sub.PlanName, sub.PlanTier, sub.Status, sub.BillingCycle,
		sub.Price, sub.Currency, sub.StartsAt, sub.EndsAt,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}
