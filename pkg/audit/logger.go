package audit

import (
	"context"

	"github.com/platinummonkey/cashpro/pkg/auth"
	"github.com/platinummonkey/cashpro/pkg/contextkeys"
	"github.com/platinummonkey/cashpro/pkg/middleware"
	"github.com/platinummonkey/cashpro/pkg/observability"
)

// Logger is the interface for audit sinks
type Logger interface {
	// Log writes an event. Implementations may fill in ID and CreatedAt.
	Log(ctx context.Context, event *Event) error

	// Close flushes any buffered events
	Close() error
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return contextkeys.WithAuditLogger(ctx, logger)
}

// FromContext retrieves the audit logger from context. A no-op logger is
// returned when none is set.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok && logger != nil {
		return logger
	}
	return noOpLogger{}
}

type noOpLogger struct{}

func (noOpLogger) Log(context.Context, *Event) error { return nil }
func (noOpLogger) Close() error                      { return nil }

// Enrich fills the request-derived fields of event that the caller left
// empty: actor, impersonating admin, company, client IP and request id.
func Enrich(ctx context.Context, event *Event) {
	if event.RequestID == "" {
		event.RequestID = contextkeys.GetRequestID(ctx)
	}
	if event.IPAddress == "" {
		event.IPAddress = auth.ClientInfoFrom(ctx).IPAddress
	}

	identity := middleware.IdentityFromContext(ctx)
	if identity == nil {
		return
	}
	if event.ActorID == nil && identity.Person != nil {
		id := identity.Person.ID
		event.ActorID = &id
	}
	if event.ImpersonatedBy == nil && identity.Session != nil && identity.Session.ImpersonatedBy != nil {
		id := *identity.Session.ImpersonatedBy
		event.ImpersonatedBy = &id
	}
	if event.CompanyID == nil {
		if id := identity.CompanyID(); id != 0 {
			event.CompanyID = &id
		}
	}
}

// Record enriches event from ctx and writes it to the context's logger.
// Failures are logged, never returned: the audited action has already
// happened.
func Record(ctx context.Context, event *Event) {
	if event.Status == "" {
		event.Status = StatusSuccess
	}
	Enrich(ctx, event)

	if err := FromContext(ctx).Log(ctx, event); err != nil {
		observability.FromContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"event_type": event.EventType,
			"status":     event.Status,
		}).Warn("Failed to record audit event")
	}
}

// Int64 returns a pointer to v, for the optional id fields of Event.
func Int64(v int64) *int64 {
	return &v
}
