package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
	"github.com/platinummonkey/cashpro/pkg/companies"
	"github.com/platinummonkey/cashpro/pkg/observability"
)

type harness struct {
	people   *memPeople
	sessions *memSessions
	dir      *memDirectory
	clock    *clock
	svc      *Service
	resolver *Resolver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		people:   newMemPeople(),
		sessions: newMemSessions(),
		dir:      newMemDirectory(),
		clock:    newClock(),
	}
	logger := observability.NewDiscardLogger()
	h.svc = NewService(ServiceConfig{
		People:    h.people,
		Sessions:  h.sessions,
		Companies: h.dir,
		Hasher:    NewBcryptHasher(bcrypt.MinCost),
		Logger:    logger,
		Now:       h.clock.Now,
	})
	h.resolver = NewResolver(h.people, h.sessions, h.dir, logger, h.clock.Now)
	return h
}

func (h *harness) addPerson(t *testing.T, email, username, password string, active, superAdmin bool) *Person {
	t.Helper()
	hashed, err := NewBcryptHasher(bcrypt.MinCost).Hash(password)
	require.NoError(t, err)
	p, err := h.people.Create(context.Background(), NewPerson{
		Email:          email,
		Username:       &username,
		HashedPassword: hashed,
		IsActive:       active,
		IsSuperAdmin:   superAdmin,
	})
	require.NoError(t, err)
	return p
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	ctx := WithClientInfo(context.Background(), ClientInfo{IPAddress: "10.0.0.1", UserAgent: "curl"})

	res, token, err := h.svc.Register(ctx, RegisterInput{
		Email: "a@x.io", Password: "pw", FirstName: "Ann", LastName: "Lee",
	})
	require.NoError(t, err)
	assert.Len(t, token, 43)
	assert.Empty(t, res.Companies)
	assert.Nil(t, res.CurrentCompanyID)
	assert.False(t, res.IsImpersonating)
	assert.True(t, res.Person.IsActive)
	assert.False(t, res.Person.IsVerified)
	require.NotNil(t, res.Person.Username)
	assert.Equal(t, "a", *res.Person.Username)

	session := h.sessions.get(HashToken(token))
	require.NotNil(t, session)
	assert.Nil(t, session.CompanyID)
	assert.Equal(t, "10.0.0.1", *session.IPAddress)
	assert.Equal(t, h.clock.Now().Add(7*24*time.Hour), session.ExpiresAt)
}

func TestRegisterUsernameSuffix(t *testing.T) {
	h := newHarness(t)
	h.addPerson(t, "a@other.io", "a", "pw", true, false)
	h.addPerson(t, "a1@other.io", "a1", "pw", true, false)

	res, _, err := h.svc.Register(context.Background(), RegisterInput{Email: "a@x.io", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "a2", *res.Person.Username)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	h.addPerson(t, "a@x.io", "a", "pw", true, false)

	_, _, err := h.svc.Register(context.Background(), RegisterInput{Email: "a@x.io", Password: "pw"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, "Email already registered", apperrors.Message(err))
	assert.Equal(t, 0, h.sessions.count())
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.svc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "pw"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, _, err = h.svc.Register(context.Background(), RegisterInput{Email: "a@x.io"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, _, err = h.svc.Register(context.Background(), RegisterInput{Email: "Alice <alice@x.com>", Password: "pw"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "email", apperrors.FieldOf(err))
}

func TestValidEmail(t *testing.T) {
	testCases := []struct {
		email string
		valid bool
	}{
		{"alice@x.com", true},
		{"a.b+tag@sub.example.org", true},
		{"Alice <alice@x.com>", false},
		{"<alice@x.com>", false},
		{"alice", false},
		{"", false},
	}

	for _, tc := range testCases {
		t.Run(tc.email, func(t *testing.T) {
			assert.Equal(t, tc.valid, ValidEmail(tc.email))
		})
	}
}

func TestLoginPicksPrimaryCompany(t *testing.T) {
	h := newHarness(t)
	p := h.addPerson(t, "a@x.io", "ann", "pw", true, false)
	h.dir.addCompany(1, "first")
	h.dir.addCompany(2, "second")
	h.dir.join(p.ID, 1, companies.RoleMember, false)
	h.dir.join(p.ID, 2, companies.RoleOwner, true)

	res, token, err := h.svc.Login(context.Background(), "  a@x.io ", "pw")
	require.NoError(t, err)
	require.NotNil(t, res.CurrentCompanyID)
	assert.Equal(t, int64(2), *res.CurrentCompanyID)
	assert.Len(t, res.Companies, 2)
	assert.Equal(t, int64(2), *h.sessions.get(HashToken(token)).CompanyID)
}

func TestLoginFallsBackToLowestMembership(t *testing.T) {
	h := newHarness(t)
	p := h.addPerson(t, "a@x.io", "ann", "pw", true, false)
	h.dir.addCompany(5, "five")
	h.dir.addCompany(3, "three")
	h.dir.join(p.ID, 5, companies.RoleMember, false)
	h.dir.join(p.ID, 3, companies.RoleMember, false)

	res, _, err := h.svc.Login(context.Background(), "ann", "pw")
	require.NoError(t, err)
	assert.Equal(t, int64(5), *res.CurrentCompanyID)
}

func TestLoginWithoutCompany(t *testing.T) {
	h := newHarness(t)
	h.addPerson(t, "a@x.io", "ann", "pw", true, false)

	res, _, err := h.svc.Login(context.Background(), "ann", "pw")
	require.NoError(t, err)
	assert.Nil(t, res.CurrentCompanyID)
	assert.Empty(t, res.Companies)
}

func TestLoginUsernameFallsBackToEmail(t *testing.T) {
	h := newHarness(t)
	// No '@', not a username, but stored verbatim as an email.
	hashed, _ := NewBcryptHasher(bcrypt.MinCost).Hash("pw")
	_, err := h.people.Create(context.Background(), NewPerson{Email: "legacy", HashedPassword: hashed, IsActive: true})
	require.NoError(t, err)

	_, _, err = h.svc.Login(context.Background(), "legacy", "pw")
	assert.NoError(t, err)
}

func TestLoginFailures(t *testing.T) {
	h := newHarness(t)
	h.addPerson(t, "a@x.io", "ann", "pw", true, false)
	h.addPerson(t, "off@x.io", "off", "pw", false, false)

	_, _, err := h.svc.Login(context.Background(), "nobody@x.io", "pw")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, _, err = h.svc.Login(context.Background(), "a@x.io", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	assert.Equal(t, "Invalid email/username or password", apperrors.Message(err))

	// A wrong password on an inactive account must not reveal the state.
	_, _, err = h.svc.Login(context.Background(), "off@x.io", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, _, err = h.svc.Login(context.Background(), "off@x.io", "pw")
	assert.ErrorIs(t, err, apperrors.ErrAccountInactive)

	assert.Equal(t, 0, h.sessions.count())
}

func TestLogoutIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.addPerson(t, "a@x.io", "ann", "pw", true, false)
	_, token, err := h.svc.Login(context.Background(), "ann", "pw")
	require.NoError(t, err)

	require.NoError(t, h.svc.Logout(context.Background(), token))
	require.NoError(t, h.svc.Logout(context.Background(), token))
	require.NoError(t, h.svc.Logout(context.Background(), ""))

	_, err = h.resolver.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestSwitchCompany(t *testing.T) {
	h := newHarness(t)
	p := h.addPerson(t, "a@x.io", "ann", "pw", true, false)
	h.dir.addCompany(1, "one")
	h.dir.addCompany(2, "two")
	h.dir.addCompany(3, "three")
	h.dir.join(p.ID, 1, companies.RoleOwner, true)
	h.dir.join(p.ID, 2, companies.RoleViewer, false)

	_, token, err := h.svc.Login(context.Background(), "ann", "pw")
	require.NoError(t, err)
	identity, err := h.resolver.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), identity.CompanyID())

	require.NoError(t, h.svc.SwitchCompany(context.Background(), identity, 2))
	identity, err = h.resolver.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(2), identity.CompanyID())

	err = h.svc.SwitchCompany(context.Background(), identity, 3)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Equal(t, "Access denied to this company", apperrors.Message(err))
	assert.Equal(t, int64(2), *h.sessions.get(HashToken(token)).CompanyID)
}

func TestImpersonationRoundTrip(t *testing.T) {
	h := newHarness(t)
	admin := h.addPerson(t, "root@x.io", "root", "pw", true, true)
	target := h.addPerson(t, "b@x.io", "bob", "pw", true, false)
	h.dir.addCompany(1, "one")
	h.dir.join(admin.ID, 1, companies.RoleOwner, true)

	_, adminToken, err := h.svc.Login(context.Background(), "root", "pw")
	require.NoError(t, err)

	who, impToken, err := h.svc.Impersonate(context.Background(), admin, target.ID)
	require.NoError(t, err)
	assert.Equal(t, target.ID, who.ID)

	identity, err := h.resolver.Resolve(context.Background(), impToken)
	require.NoError(t, err)
	assert.True(t, identity.IsImpersonating)
	assert.Equal(t, target.ID, identity.Person.ID)
	assert.Nil(t, identity.Company)
	require.NotNil(t, identity.Impersonator)
	assert.Equal(t, admin.ID, identity.ActingAdmin().ID)

	// The admin's own session survives.
	_, err = h.resolver.Resolve(context.Background(), adminToken)
	require.NoError(t, err)

	back, freshToken, err := h.svc.StopImpersonate(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, back.ID)
	assert.Nil(t, h.sessions.get(HashToken(impToken)))

	fresh, err := h.resolver.Resolve(context.Background(), freshToken)
	require.NoError(t, err)
	assert.False(t, fresh.IsImpersonating)
	assert.Nil(t, fresh.Session.CompanyID)
	assert.Equal(t, admin.ID, fresh.Person.ID)
}

func TestImpersonateRequiresSuperAdmin(t *testing.T) {
	h := newHarness(t)
	regular := h.addPerson(t, "a@x.io", "ann", "pw", true, false)
	target := h.addPerson(t, "b@x.io", "bob", "pw", true, false)

	_, _, err := h.svc.Impersonate(context.Background(), regular, target.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	admin := h.addPerson(t, "root@x.io", "root", "pw", true, true)
	_, _, err = h.svc.Impersonate(context.Background(), admin, 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, "User not found", apperrors.Message(err))
}

func TestStopImpersonateWithoutImpersonation(t *testing.T) {
	h := newHarness(t)
	h.addPerson(t, "root@x.io", "root", "pw", true, true)
	_, token, err := h.svc.Login(context.Background(), "root", "pw")
	require.NoError(t, err)
	identity, err := h.resolver.Resolve(context.Background(), token)
	require.NoError(t, err)

	_, fresh, err := h.svc.StopImpersonate(context.Background(), identity)
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh)
	assert.NotNil(t, h.sessions.get(HashToken(token)))
	assert.Equal(t, 2, h.sessions.count())
}

func TestStopImpersonateRejectsRegularUser(t *testing.T) {
	h := newHarness(t)
	h.addPerson(t, "a@x.io", "ann", "pw", true, false)
	_, token, err := h.svc.Login(context.Background(), "ann", "pw")
	require.NoError(t, err)
	identity, err := h.resolver.Resolve(context.Background(), token)
	require.NoError(t, err)

	_, _, err = h.svc.StopImpersonate(context.Background(), identity)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestSessionExpiryBoundary(t *testing.T) {
	h := newHarness(t)
	h.addPerson(t, "a@x.io", "ann", "pw", true, false)
	start := h.clock.Now()
	_, token, err := h.svc.Login(context.Background(), "ann", "pw")
	require.NoError(t, err)

	h.clock.Set(start.Add(DefaultSessionTTL - time.Nanosecond))
	_, err = h.resolver.Resolve(context.Background(), token)
	require.NoError(t, err)

	h.clock.Set(start.Add(DefaultSessionTTL))
	_, err = h.resolver.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	n, err := h.svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, h.sessions.count())
}

func TestResolveInactivePerson(t *testing.T) {
	h := newHarness(t)
	p := h.addPerson(t, "a@x.io", "ann", "pw", true, false)
	_, token, err := h.svc.Login(context.Background(), "ann", "pw")
	require.NoError(t, err)

	h.people.byID[p.ID].IsActive = false
	_, err = h.resolver.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	assert.Equal(t, "Account is inactive", apperrors.Message(err))

	_, err = h.resolver.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestMe(t *testing.T) {
	h := newHarness(t)
	p := h.addPerson(t, "a@x.io", "ann", "pw", true, false)
	h.dir.addCompany(1, "one")
	h.dir.join(p.ID, 1, companies.RoleAdmin, true)
	_, token, err := h.svc.Login(context.Background(), "ann", "pw")
	require.NoError(t, err)
	identity, err := h.resolver.Resolve(context.Background(), token)
	require.NoError(t, err)

	res, err := h.svc.Me(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, p.ID, res.Person.ID)
	assert.Equal(t, int64(1), *res.CurrentCompanyID)
	require.Len(t, res.Companies, 1)
	assert.Equal(t, "one", res.Companies[0].Name)
}

func TestEnsureSuperAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, _, err := h.svc.EnsureSuperAdmin(ctx, PlaceholderAdminEmail, "s3cret")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, _, err = h.svc.EnsureSuperAdmin(ctx, "ops@x.io", PlaceholderAdminPassword)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	p, action, err := h.svc.EnsureSuperAdmin(ctx, "ops@x.io", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, BootstrapCreated, action)
	assert.True(t, p.IsSuperAdmin)
	assert.True(t, p.IsVerified)
	assert.Equal(t, "ops", *p.Username)
	assert.Equal(t, "Super", p.FirstName)

	_, action, err = h.svc.EnsureSuperAdmin(ctx, "ops@x.io", "n3w")
	require.NoError(t, err)
	assert.Equal(t, BootstrapUpdated, action)
	_, _, err = h.svc.Login(ctx, "ops", "n3w")
	assert.NoError(t, err)
}

func TestEnsureSuperAdminPromotesExisting(t *testing.T) {
	h := newHarness(t)
	existing := h.addPerson(t, "a@x.io", "ann", "pw", true, false)

	p, action, err := h.svc.EnsureSuperAdmin(context.Background(), "a@x.io", "rootpw")
	require.NoError(t, err)
	assert.Equal(t, BootstrapPromoted, action)
	assert.Equal(t, existing.ID, p.ID)
	assert.Equal(t, "ann", *h.people.byID[existing.ID].Username)
	assert.True(t, h.people.byID[existing.ID].IsSuperAdmin)
}

func TestEnsureSuperAdminBareUsername(t *testing.T) {
	h := newHarness(t)
	p, _, err := h.svc.EnsureSuperAdmin(context.Background(), "ops", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "ops@cashpro.local", p.Email)
	assert.Equal(t, "ops", *p.Username)
}
