package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
	"github.com/platinummonkey/cashpro/pkg/companies"
	"github.com/platinummonkey/cashpro/pkg/observability"
)

type fakeOwners struct {
	owned map[int64]*companies.Company
}

func (f *fakeOwners) OwnedCompany(_ context.Context, personID int64) (*companies.Company, error) {
	c, ok := f.owned[personID]
	if !ok {
		return nil, apperrors.New(apperrors.ErrNotFound, "no company found")
	}
	return c, nil
}

type recordingProvisioner struct {
	calls []int64
	slugs []string
}

func (p *recordingProvisioner) ProvisionBestEffort(_ context.Context, companyID int64, slug string) {
	p.calls = append(p.calls, companyID)
	p.slugs = append(p.slugs, slug)
}

type memStore struct {
	subs []*Subscription
	err  error
}

func (m *memStore) HasCurrent(_ context.Context, companyID int64) (bool, error) {
	for _, s := range m.subs {
		if s.CompanyID == companyID && (s.Status == StatusActive || s.Status == StatusTrial) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) Create(_ context.Context, sub *Subscription) error {
	if m.err != nil {
		return m.err
	}
	sub.ID = int64(len(m.subs) + 1)
	m.subs = append(m.subs, sub)
	return nil
}

var clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *memStore, *recordingProvisioner) {
	store := &memStore{}
	prov := &recordingProvisioner{}
	owners := &fakeOwners{owned: map[int64]*companies.Company{
		1: {ID: 10, Name: "Acme", Slug: "acme"},
	}}
	svc := NewService(store, owners, prov, observability.NewDiscardLogger(), func() time.Time { return clock })
	return svc, store, prov
}

func TestCreateSubscription(t *testing.T) {
	svc, _, prov := newTestService()

	sub, err := svc.Create(context.Background(), 1, CreateInput{
		PlanName: "Starter", PlanTier: "starter", BillingCycle: BillingMonthly, Price: 29.99,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), sub.CompanyID)
	assert.Equal(t, StatusActive, sub.Status)
	assert.Equal(t, "USD", sub.Currency)
	assert.Equal(t, clock, sub.StartsAt)
	require.NotNil(t, sub.EndsAt)
	assert.Equal(t, clock.AddDate(0, 0, 30), *sub.EndsAt)
	assert.Equal(t, []int64{10}, prov.calls)
	assert.Equal(t, []string{"acme"}, prov.slugs)
}

func TestCreateSubscriptionAnnual(t *testing.T) {
	svc, _, _ := newTestService()

	sub, err := svc.Create(context.Background(), 1, CreateInput{
		PlanName: "Pro", PlanTier: "pro", BillingCycle: BillingAnnual, Price: 299, Currency: "EUR",
	})
	require.NoError(t, err)
	assert.Equal(t, clock.AddDate(0, 0, 365), *sub.EndsAt)
	assert.Equal(t, "EUR", sub.Currency)
}

func TestCreateSubscriptionRejectsSecond(t *testing.T) {
	svc, _, prov := newTestService()
	in := CreateInput{PlanName: "Starter", PlanTier: "starter", BillingCycle: BillingMonthly}

	_, err := svc.Create(context.Background(), 1, in)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), 1, in)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.Equal(t, "Company already has an active subscription", apperrors.Message(err))
	assert.Len(t, prov.calls, 1)
}

func TestCreateSubscriptionWithoutCompany(t *testing.T) {
	svc, _, prov := newTestService()

	_, err := svc.Create(context.Background(), 2, CreateInput{PlanName: "Starter", PlanTier: "starter", BillingCycle: BillingMonthly})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, "No company found. Please create a company first.", apperrors.Message(err))
	assert.Empty(t, prov.calls)
}

func TestCreateSubscriptionValidation(t *testing.T) {
	svc, _, _ := newTestService()

	tests := []struct {
		name  string
		in    CreateInput
		field string
	}{
		{"missing plan name", CreateInput{PlanTier: "pro", BillingCycle: BillingMonthly}, "plan_name"},
		{"missing tier", CreateInput{PlanName: "Pro", BillingCycle: BillingMonthly}, "plan_tier"},
		{"bad cycle", CreateInput{PlanName: "Pro", PlanTier: "pro", BillingCycle: "weekly"}, "billing_cycle"},
		{"negative price", CreateInput{PlanName: "Pro", PlanTier: "pro", BillingCycle: BillingAnnual, Price: -1}, "price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), 1, tt.in)
			assert.True(t, errors.Is(err, apperrors.ErrValidation))
			assert.Equal(t, tt.field, apperrors.FieldOf(err))
		})
	}
}

func TestCreateSubscriptionStoreFailureSkipsProvisioning(t *testing.T) {
	svc, store, prov := newTestService()
	store.err = errors.New("insert failed")

	_, err := svc.Create(context.Background(), 1, CreateInput{PlanName: "Pro", PlanTier: "pro", BillingCycle: BillingMonthly})
	assert.Error(t, err)
	assert.Empty(t, prov.calls)
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestPostgresStore(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewPostgresStore(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	current, err := store.HasCurrent(ctx, 10)
	require.NoError(t, err)
	assert.True(t, current)

	ends := clock.AddDate(0, 0, 30)
	sub := &Subscription{
		CompanyID: 10, PlanName: "Starter", PlanTier: "starter", Status: StatusActive,
		BillingCycle: BillingMonthly, Price: 29.99, Currency: "USD", StartsAt: clock, EndsAt: &ends,
	}
	mock.ExpectQuery("INSERT INTO subscriptions").
		WithArgs(int64(10), "Starter", "starter", StatusActive, BillingMonthly, 29.99, "USD", clock, &ends).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(5, clock, clock))

	require.NoError(t, store.Create(ctx, sub))
	assert.Equal(t, int64(5), sub.ID)
	assert.Equal(t, clock, sub.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
