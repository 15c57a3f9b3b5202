// Package subscriptions activates a plan for a company and triggers tenant
// provisioning. Plan catalogs and payment processing live elsewhere.
package subscriptions

import "time"

// Status represents the status of a subscription
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// BillingCycle is how often a subscription renews.
type BillingCycle string

const (
	BillingMonthly BillingCycle = "monthly"
	BillingAnnual  BillingCycle = "annual"
)

// Valid reports whether c is a known billing cycle.
func (c BillingCycle) Valid() bool {
	return c == BillingMonthly || c == BillingAnnual
}

// Period returns the length of one billing period.
func (c BillingCycle) Period() time.Duration {
	if c == BillingAnnual {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

// Subscription is a company's plan.
type Subscription struct {
	ID           int64        `json:"id"`
	CompanyID    int64        `json:"company_id"`
	PlanName     string       `json:"plan_name"`
	PlanTier     string       `json:"plan_tier"`
	Status       Status       `json:"status"`
	BillingCycle BillingCycle `json:"billing_cycle"`
	Price        float64      `json:"price"`
	Currency     string       `json:"currency"`
	StartsAt     time.Time    `json:"starts_at"`
	EndsAt       *time.Time   `json:"ends_at"`
	CancelledAt  *time.Time   `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// CreateInput is the payload for creating a subscription.
type CreateInput struct {
	PlanName     string       `json:"plan_name"`
	PlanTier     string       `json:"plan_tier"`
	BillingCycle BillingCycle `json:"billing_cycle"`
	Price        float64      `json:"price"`
	Currency     string       `json:"currency"`
}
