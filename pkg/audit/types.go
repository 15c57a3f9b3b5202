package audit

import (
	"time"
)

// EventType names the action being recorded
type EventType string

const (
	// Authentication events
	EventRegister      EventType = "auth.register"
	EventLogin         EventType = "auth.login"
	EventLoginFailed   EventType = "auth.login_failed"
	EventLogout        EventType = "auth.logout"
	EventSwitchCompany EventType = "auth.switch_company"

	// Admin events
	EventImpersonate     EventType = "admin.impersonate"
	EventStopImpersonate EventType = "admin.stop_impersonate"
	EventUserCreate      EventType = "admin.user_create"
	EventTenantProvision EventType = "admin.tenant_provision"

	// Tenant RBAC events
	EventRoleCreate    EventType = "rbac.role_create"
	EventRoleAssign    EventType = "rbac.role_assign"
	EventResourceGrant EventType = "rbac.resource_grant"

	// Lifecycle events
	EventCompanyCreate      EventType = "company.create"
	EventSubscriptionCreate EventType = "subscription.create"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	StatusSuccess EventStatus = "success"
	StatusFailure EventStatus = "failure"
	StatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource acted on
type ResourceType string

const (
	ResourceUser         ResourceType = "user"
	ResourceCompany      ResourceType = "company"
	ResourceSession      ResourceType = "session"
	ResourceRole         ResourceType = "role"
	ResourceGrant        ResourceType = "resource_permission"
	ResourceSubscription ResourceType = "subscription"
	ResourceDatabase     ResourceType = "database"
)

// Event is a single audit_events row.
type Event struct {
	ID        int64       `json:"id"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// ActorID is the effective person; ImpersonatedBy is the admin behind
	// an impersonation session.
	ActorID        *int64 `json:"actor_id,omitempty"`
	ImpersonatedBy *int64 `json:"impersonated_by,omitempty"`
	CompanyID      *int64 `json:"company_id,omitempty"`

	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	IPAddress string `json:"ip_address,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// SearchFilter represents filters for searching audit events
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	ActorID   *int64
	CompanyID *int64

	EventTypes []EventType
	Status     *EventStatus

	// Pagination. Limit defaults to DefaultSearchLimit and is capped at
	// MaxSearchLimit.
	Limit  int
	Offset int
}

const (
	DefaultSearchLimit = 100
	MaxSearchLimit     = 1000
)

func (f SearchFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultSearchLimit
	case f.Limit > MaxSearchLimit:
		return MaxSearchLimit
	default:
		return f.Limit
	}
}
