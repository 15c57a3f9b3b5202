// Package audit records security-relevant actions in the control database's
// audit_events table.
//
// # Overview
//
// Handlers describe what happened; Record fills in who and from where using
// the request context (acting person, impersonating admin, current company,
// client IP, request id) and hands the event to the Logger stored in the
// context by Middleware. Recording never fails a request: write errors are
// logged and dropped.
//
// # Event Types
//
// Authentication: auth.register, auth.login, auth.login_failed, auth.logout,
// auth.switch_company
// Administration: admin.impersonate, admin.stop_impersonate,
// admin.user_create, admin.tenant_provision
// Tenant RBAC: rbac.role_create, rbac.role_assign, rbac.resource_grant
// Lifecycle: company.create, subscription.create
//
// # Usage Example
//
//	audit.Record(ctx, &audit.Event{
//		EventType:    audit.EventRoleAssign,
//		Status:       audit.StatusSuccess,
//		ResourceType: audit.ResourceRole,
//		ResourceID:   strconv.FormatInt(roleID, 10),
//		Metadata:     map[string]interface{}{"user_id": userID},
//	})
//
// Search the trail:
//
//	events, err := dbLogger.Search(ctx, audit.SearchFilter{
//		CompanyID:  &companyID,
//		EventTypes: []audit.EventType{audit.EventLoginFailed},
//		Limit:      50,
//	})
//
// # Retention
//
// DBLogger.Cleanup deletes events older than a cutoff; cashpro-admin exposes
// it as prune-audit.
package audit
