package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/cashpro/pkg/admin"
	"github.com/platinummonkey/cashpro/pkg/apperrors"
	"github.com/platinummonkey/cashpro/pkg/audit"
	"github.com/platinummonkey/cashpro/pkg/auth"
	"github.com/platinummonkey/cashpro/pkg/companies"
	"github.com/platinummonkey/cashpro/pkg/middleware"
	"github.com/platinummonkey/cashpro/pkg/rbac"
	"github.com/platinummonkey/cashpro/pkg/subscriptions"
	"github.com/platinummonkey/cashpro/pkg/tenant"
)

const (
	ownerToken     = "owner-token"
	adminToken     = "admin-token"
	impToken       = "impersonation-token"
	newcomerToken  = "newcomer-token"
	sessionTTLTest = 7 * 24 * time.Hour
)

func strPtr(s string) *string { return &s }

var (
	acme = &companies.Company{ID: 10, Name: "Acme", Slug: "acme", DatabaseName: strPtr("tenant_acme_10")}

	owner    = &auth.Person{ID: 5, Email: "ann@acme.test", IsActive: true}
	root     = &auth.Person{ID: 1, Email: "root@cashpro.local", IsActive: true, IsSuperAdmin: true}
	newcomer = &auth.Person{ID: 7, Email: "new@example.com", IsActive: true}
)

// stubResolver maps fixed tokens to identities.
type stubResolver struct {
	identities map[string]*auth.Identity
}

func (s *stubResolver) Resolve(_ context.Context, token string) (*auth.Identity, error) {
	if identity, ok := s.identities[token]; ok {
		return identity, nil
	}
	return nil, apperrors.New(apperrors.ErrUnauthenticated, "Not authenticated")
}

func newStubResolver() *stubResolver {
	rootID := root.ID
	companyID := acme.ID
	return &stubResolver{identities: map[string]*auth.Identity{
		ownerToken: {
			Person:  owner,
			Company: acme,
			Session: &auth.Session{ID: 1, PersonID: owner.ID, CompanyID: &companyID},
		},
		adminToken: {
			Person:  root,
			Session: &auth.Session{ID: 2, PersonID: root.ID},
		},
		impToken: {
			Person:          owner,
			Session:         &auth.Session{ID: 3, PersonID: owner.ID, ImpersonatedBy: &rootID},
			Impersonator:    root,
			IsImpersonating: true,
		},
		newcomerToken: {
			Person:  newcomer,
			Session: &auth.Session{ID: 4, PersonID: newcomer.ID},
		},
	}}
}

// mockAuthService is a mock implementation of AuthService for testing
type mockAuthService struct {
	registerFunc        func(in auth.RegisterInput) (*auth.AuthResult, string, error)
	loginFunc           func(identifier, password string) (*auth.AuthResult, string, error)
	logoutFunc          func(token string) error
	meFunc              func(identity *auth.Identity) (*auth.AuthResult, error)
	switchCompanyFunc   func(identity *auth.Identity, companyID int64) error
	impersonateFunc     func(admin *auth.Person, targetID int64) (*auth.Person, string, error)
	stopImpersonateFunc func(identity *auth.Identity) (*auth.Person, string, error)
}

func (m *mockAuthService) Register(_ context.Context, in auth.RegisterInput) (*auth.AuthResult, string, error) {
	if m.registerFunc != nil {
		return m.registerFunc(in)
	}
	return &auth.AuthResult{Person: newcomer, Companies: []auth.CompanySummary{}}, "registered-token", nil
}

func (m *mockAuthService) Login(_ context.Context, identifier, password string) (*auth.AuthResult, string, error) {
	if m.loginFunc != nil {
		return m.loginFunc(identifier, password)
	}
	companyID := acme.ID
	return &auth.AuthResult{Person: owner, CurrentCompanyID: &companyID}, "login-token", nil
}

func (m *mockAuthService) Logout(_ context.Context, token string) error {
	if m.logoutFunc != nil {
		return m.logoutFunc(token)
	}
	return nil
}

func (m *mockAuthService) Me(_ context.Context, identity *auth.Identity) (*auth.AuthResult, error) {
	if m.meFunc != nil {
		return m.meFunc(identity)
	}
	return &auth.AuthResult{Person: identity.Person, IsImpersonating: identity.IsImpersonating}, nil
}

func (m *mockAuthService) SwitchCompany(_ context.Context, identity *auth.Identity, companyID int64) error {
	if m.switchCompanyFunc != nil {
		return m.switchCompanyFunc(identity, companyID)
	}
	return nil
}

func (m *mockAuthService) Impersonate(_ context.Context, admin *auth.Person, targetID int64) (*auth.Person, string, error) {
	if m.impersonateFunc != nil {
		return m.impersonateFunc(admin, targetID)
	}
	return owner, "impersonation-token", nil
}

func (m *mockAuthService) StopImpersonate(_ context.Context, identity *auth.Identity) (*auth.Person, string, error) {
	if m.stopImpersonateFunc != nil {
		return m.stopImpersonateFunc(identity)
	}
	return root, "admin-token-2", nil
}

func (m *mockAuthService) SessionTTL() time.Duration {
	return sessionTTLTest
}

type mockCompanyService struct {
	createFunc func(personID int64, in companies.CreateCompanyInput) (*companies.Company, error)
}

func (m *mockCompanyService) CreateCompany(_ context.Context, personID int64, in companies.CreateCompanyInput) (*companies.Company, error) {
	if m.createFunc != nil {
		return m.createFunc(personID, in)
	}
	return &companies.Company{ID: 11, Name: in.Name, Slug: "beta"}, nil
}

type mockSubscriptionService struct {
	createFunc func(personID int64, in subscriptions.CreateInput) (*subscriptions.Subscription, error)
}

func (m *mockSubscriptionService) Create(_ context.Context, personID int64, in subscriptions.CreateInput) (*subscriptions.Subscription, error) {
	if m.createFunc != nil {
		return m.createFunc(personID, in)
	}
	return &subscriptions.Subscription{
		ID: 3, CompanyID: acme.ID, PlanName: in.PlanName, PlanTier: in.PlanTier,
		Status: subscriptions.StatusActive, BillingCycle: in.BillingCycle,
	}, nil
}

type mockAdminService struct {
	listUsersFunc      func() ([]*auth.Person, error)
	createUserFunc     func(in admin.CreateUserInput) (*auth.Person, error)
	listCompaniesFunc  func() ([]admin.CompanyDetail, error)
	createDatabaseFunc func(companyID int64) (*admin.DatabaseResult, error)
}

func (m *mockAdminService) ListUsers(context.Context) ([]*auth.Person, error) {
	if m.listUsersFunc != nil {
		return m.listUsersFunc()
	}
	return []*auth.Person{root, owner}, nil
}

func (m *mockAdminService) CreateUser(_ context.Context, in admin.CreateUserInput) (*auth.Person, error) {
	if m.createUserFunc != nil {
		return m.createUserFunc(in)
	}
	return &auth.Person{ID: 20, Email: in.Email, IsActive: true}, nil
}

func (m *mockAdminService) ListCompanies(context.Context) ([]admin.CompanyDetail, error) {
	if m.listCompaniesFunc != nil {
		return m.listCompaniesFunc()
	}
	return []admin.CompanyDetail{{ID: acme.ID, Name: acme.Name, Slug: acme.Slug, DatabaseName: acme.DatabaseName, HasDatabase: true}}, nil
}

func (m *mockAdminService) CreateDatabase(_ context.Context, companyID int64) (*admin.DatabaseResult, error) {
	if m.createDatabaseFunc != nil {
		return m.createDatabaseFunc(companyID)
	}
	return &admin.DatabaseResult{Message: "Database created successfully", DatabaseName: "tenant_beta_11", Created: true}, nil
}

type mockRoleService struct {
	roles      []rbac.Role
	catalog    []rbac.Permission
	createErr  error
	assigned   bool
	assignErr  error
	grantErr   error
	lastAssign rbac.AssignRoleInput
	lastGrant  rbac.ResourceGrantInput
}

func (m *mockRoleService) tenant(company *companies.Company) error {
	if company == nil || !company.HasDatabase() {
		return apperrors.New(apperrors.ErrTenantUnavailable, "Company database not found")
	}
	return nil
}

func (m *mockRoleService) ListRoles(_ context.Context, company *companies.Company) ([]rbac.Role, error) {
	if err := m.tenant(company); err != nil {
		return nil, err
	}
	return m.roles, nil
}

func (m *mockRoleService) ListCatalog(_ context.Context, company *companies.Company) ([]rbac.Permission, error) {
	if err := m.tenant(company); err != nil {
		return nil, err
	}
	return m.catalog, nil
}

func (m *mockRoleService) CreateRole(_ context.Context, _ int64, company *companies.Company, in rbac.CreateRoleInput) (*rbac.Role, error) {
	if err := m.tenant(company); err != nil {
		return nil, err
	}
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &rbac.Role{ID: 9, Name: in.Name, CompanyID: company.ID, Permissions: []rbac.Permission{}}, nil
}

func (m *mockRoleService) AssignRole(_ context.Context, _ int64, company *companies.Company, in rbac.AssignRoleInput) (bool, error) {
	if err := m.tenant(company); err != nil {
		return false, err
	}
	m.lastAssign = in
	return m.assigned, m.assignErr
}

func (m *mockRoleService) GrantResourcePermission(_ context.Context, _ int64, company *companies.Company, in rbac.ResourceGrantInput) (*rbac.ResourceGrant, error) {
	if err := m.tenant(company); err != nil {
		return nil, err
	}
	if m.grantErr != nil {
		return nil, m.grantErr
	}
	m.lastGrant = in
	return &rbac.ResourceGrant{ID: 4, UserID: in.UserID, ResourceType: in.ResourceType, ResourceID: in.ResourceID, Permission: in.Permission}, nil
}

// mockPermissionService grants exactly the listed "resource:action" pairs.
type mockPermissionService struct {
	granted map[string]bool
}

func (m *mockPermissionService) CheckPermission(_ context.Context, _, _ int64, resourceType, action string) bool {
	return m.granted[resourceType+":"+action]
}

func (m *mockPermissionService) ListPermissions(context.Context, int64, int64) []string {
	out := []string{}
	for p, ok := range m.granted {
		if ok {
			out = append(out, p)
		}
	}
	return out
}

type mockLedgerService struct {
	accounts []tenant.ChartAccount
}

func (m *mockLedgerService) ChartOfAccounts(_ context.Context, company *companies.Company) ([]tenant.ChartAccount, error) {
	if company == nil || !company.HasDatabase() {
		return nil, apperrors.New(apperrors.ErrTenantUnavailable, "Company database not found")
	}
	return m.accounts, nil
}

type mockAuditSearcher struct {
	filter audit.SearchFilter
	events []*audit.Event
}

func (m *mockAuditSearcher) Search(_ context.Context, filter audit.SearchFilter) ([]*audit.Event, error) {
	m.filter = filter
	return m.events, nil
}

// recordingAudit collects the events handlers record.
type recordingAudit struct {
	events []*audit.Event
}

func (r *recordingAudit) Log(_ context.Context, event *audit.Event) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAudit) Close() error { return nil }

func (r *recordingAudit) last() *audit.Event {
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

type fixture struct {
	server   *Server
	auth     *mockAuthService
	company  *mockCompanyService
	subs     *mockSubscriptionService
	admin    *mockAdminService
	roles    *mockRoleService
	perms    *mockPermissionService
	ledger   *mockLedgerService
	auditLog *mockAuditSearcher
	recorded *recordingAudit
}

func newFixture(t *testing.T, limiter *middleware.RateLimitMiddleware) *fixture {
	t.Helper()
	f := &fixture{
		auth:     &mockAuthService{},
		company:  &mockCompanyService{},
		subs:     &mockSubscriptionService{},
		admin:    &mockAdminService{},
		roles:    &mockRoleService{},
		perms:    &mockPermissionService{granted: map[string]bool{}},
		ledger:   &mockLedgerService{},
		auditLog: &mockAuditSearcher{},
		recorded: &recordingAudit{},
	}
	f.server = NewServer(Config{
		Auth:          f.auth,
		Resolver:      newStubResolver(),
		Companies:     f.company,
		Subscriptions: f.subs,
		Admin:         f.admin,
		Roles:         f.roles,
		Permissions:   f.perms,
		Ledger:        f.ledger,
		AuditLog:      f.auditLog,
		LoginLimiter:  limiter,
		Audit:         f.recorded,
		CookieSecure:  true,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	}
	rr := httptest.NewRecorder()
	f.server.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dest))
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, rr, &body)
	return body.Error
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}
