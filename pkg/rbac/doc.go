// Package rbac decides what a person may do inside a company.
//
// # Overview
//
// Authorization combines two sources that live in different databases:
//
//	control database   person_companies.role      owner | admin | member | viewer
//	tenant database    user_roles -> role_permissions -> permissions
//	                   resource_permissions (direct grants)
//
// The coarse membership role is read from the control database through a
// MembershipReader. Everything else is read from the company's own
// database through a Graph obtained from a GraphOpener. Those two
// interfaces are the only places where the control and tenant databases
// meet.
//
// # Evaluation order
//
// Engine.CheckPermission answers in this order and stops at the first
// match:
//
//  1. company unknown or not provisioned    deny
//  2. no membership in the company          deny
//  3. owner or admin                        allow
//  4. a tenant role grants resource:action  allow
//  5. a direct resource grant matches       allow
//  6. member or viewer asking for "read"    allow
//  7. otherwise                             deny
//
// Errors never surface to callers: a failed lookup denies, is logged at
// warn level and is counted under cashpro_permission_checks_total with
// decision="error". Engine.Explain returns the Decision that was reached.
//
// # Permissions
//
// Permissions are "resource_type:action" pairs such as "invoice:read".
// New tenants are seeded with invoice and customer permissions and the
// Owner, Admin, Member and Viewer roles (see package tenant).
//
// # Administration
//
// Admin manages roles, role assignments and direct grants within the
// caller's active company. Mutations require an owner or admin membership.
//
// # HTTP
//
//	r.Handle("/api/ledger/chart-of-accounts",
//		rbac.RequirePermission(engine, "chart_of_accounts", "read")(handler))
package rbac
