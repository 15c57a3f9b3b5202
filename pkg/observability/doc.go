// Package observability provides structured logging, Prometheus metrics,
// health checks, graceful shutdown and OpenTelemetry tracing.
//
// Logging is JSON via logrus:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("company_id", id).Info("tenant database provisioned")
//
// Metrics are registered on a caller-owned registry and exposed on the
// health port:
//
//	metrics := observability.NewMetrics(registry)
//	metrics.PermissionCheck("allow")
//
// Spans go to the global tracer; with OpenTelemetry disabled they are no-ops:
//
//	ctx, span := observability.StartSpan(ctx, "tenant.provision")
//	defer func() { observability.EndSpan(span, err) }()
package observability
