package audit

import (
	"context"
	"errors"

	"github.com/platinummonkey/cashpro/pkg/observability"
)

// MultiLogger writes every event to each of its loggers in order. A failing
// logger does not stop the others.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a new multi-logger that writes to multiple destinations
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log logs an audit event to all configured loggers
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	var errs []error
	for _, logger := range m.loggers {
		if err := logger.Log(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all loggers
func (m *MultiLogger) Close() error {
	var errs []error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StructuredLogger mirrors audit events into the application log so they
// reach log shipping even when the database write fails.
type StructuredLogger struct {
	logger *observability.Logger
}

// NewStructuredLogger creates an audit logger backed by logger.
func NewStructuredLogger(logger *observability.Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger.WithField("component", "audit")}
}

// Log writes event as one structured log line.
func (s *StructuredLogger) Log(_ context.Context, event *Event) error {
	fields := map[string]interface{}{
		"event_type": event.EventType,
		"status":     event.Status,
	}
	if event.ActorID != nil {
		fields["actor_id"] = *event.ActorID
	}
	if event.ImpersonatedBy != nil {
		fields["impersonated_by"] = *event.ImpersonatedBy
	}
	if event.CompanyID != nil {
		fields["company_id"] = *event.CompanyID
	}
	if event.ResourceType != "" {
		fields["resource_type"] = event.ResourceType
		fields["resource_id"] = event.ResourceID
	}
	if event.IPAddress != "" {
		fields["ip_address"] = event.IPAddress
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}

	msg := event.Message
	if msg == "" {
		msg = string(event.EventType)
	}
	entry := s.logger.WithFields(fields)
	if event.Status == StatusSuccess {
		entry.Info(msg)
	} else {
		entry.Warn(msg)
	}
	return nil
}

// Close is a no-op.
func (s *StructuredLogger) Close() error {
	return nil
}
