package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
	"github.com/platinummonkey/cashpro/pkg/companies"
)

type memPeople struct {
	mu     sync.Mutex
	byID   map[int64]*Person
	nextID int64
}

func newMemPeople() *memPeople {
	return &memPeople{byID: map[int64]*Person{}}
}

func (m *memPeople) find(match func(*Person) bool) (*Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperrors.New(apperrors.ErrNotFound, "user not found")
}

func (m *memPeople) GetByID(_ context.Context, id int64) (*Person, error) {
	return m.find(func(p *Person) bool { return p.ID == id })
}

func (m *memPeople) GetByEmail(_ context.Context, email string) (*Person, error) {
	return m.find(func(p *Person) bool { return p.Email == email })
}

func (m *memPeople) GetByUsername(_ context.Context, username string) (*Person, error) {
	return m.find(func(p *Person) bool { return p.Username != nil && *p.Username == username })
}

func (m *memPeople) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *memPeople) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	return err == nil, nil
}

func (m *memPeople) Create(_ context.Context, np NewPerson) (*Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p := &Person{
		ID:             m.nextID,
		Email:          np.Email,
		Username:       np.Username,
		HashedPassword: np.HashedPassword,
		FirstName:      np.FirstName,
		LastName:       np.LastName,
		Phone:          np.Phone,
		IsActive:       np.IsActive,
		IsVerified:     np.IsVerified,
		IsSuperAdmin:   np.IsSuperAdmin,
		CreatedAt:      time.Now(),
	}
	m.byID[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *memPeople) List(context.Context) ([]*Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*Person{}
	for _, p := range m.byID {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memPeople) UpdatePassword(_ context.Context, id int64, hashed string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].HashedPassword = hashed
	return nil
}

func (m *memPeople) PromoteSuperAdmin(_ context.Context, id int64, hashed, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.byID[id]
	p.IsSuperAdmin = true
	p.HashedPassword = hashed
	if p.Username == nil {
		p.Username = &username
	}
	return nil
}

type memSessions struct {
	mu     sync.Mutex
	byHash map[string]*Session
	nextID int64
}

func newMemSessions() *memSessions {
	return &memSessions{byHash: map[string]*Session{}}
}

func (m *memSessions) Create(_ context.Context, s *Session) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cp := *s
	cp.ID = m.nextID
	m.byHash[cp.TokenHash] = &cp
	out := cp
	return &out, nil
}

func (m *memSessions) GetValid(_ context.Context, hash string, now time.Time) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byHash[hash]
	if !ok || !s.ExpiresAt.After(now) {
		return nil, apperrors.New(apperrors.ErrUnauthenticated, "Not authenticated")
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) Delete(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byHash, hash)
	return nil
}

func (m *memSessions) UpdateCompany(_ context.Context, hash string, companyID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byHash[hash]; ok {
		s.CompanyID = &companyID
	}
	return nil
}

func (m *memSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for h, s := range m.byHash {
		if !s.ExpiresAt.After(now) {
			delete(m.byHash, h)
			n++
		}
	}
	return n, nil
}

func (m *memSessions) get(hash string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byHash[hash]
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byHash)
}

type memDirectory struct {
	companies   map[int64]*companies.Company
	memberships []*companies.Membership
}

func newMemDirectory() *memDirectory {
	return &memDirectory{companies: map[int64]*companies.Company{}}
}

func (d *memDirectory) addCompany(id int64, name string) *companies.Company {
	c := &companies.Company{ID: id, Name: name, Slug: name}
	d.companies[id] = c
	return c
}

func (d *memDirectory) join(personID, companyID int64, role companies.Role, primary bool) {
	d.memberships = append(d.memberships, &companies.Membership{
		ID:        int64(len(d.memberships) + 1),
		PersonID:  personID,
		CompanyID: companyID,
		Role:      role,
		IsPrimary: primary,
	})
}

func (d *memDirectory) GetByID(_ context.Context, id int64) (*companies.Company, error) {
	c, ok := d.companies[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrNotFound, "company not found")
	}
	return c, nil
}

func (d *memDirectory) ListForPerson(_ context.Context, personID int64) ([]*companies.Company, error) {
	out := []*companies.Company{}
	for _, m := range d.memberships {
		if m.PersonID == personID {
			out = append(out, d.companies[m.CompanyID])
		}
	}
	return out, nil
}

func (d *memDirectory) GetMembership(_ context.Context, personID, companyID int64) (*companies.Membership, error) {
	for _, m := range d.memberships {
		if m.PersonID == personID && m.CompanyID == companyID {
			return m, nil
		}
	}
	return nil, apperrors.New(apperrors.ErrNotFound, "membership not found")
}

func (d *memDirectory) DefaultCompanyID(_ context.Context, personID int64) (*int64, error) {
	var best *companies.Membership
	for _, m := range d.memberships {
		if m.PersonID != personID {
			continue
		}
		if best == nil || (m.IsPrimary && !best.IsPrimary) || (m.IsPrimary == best.IsPrimary && m.ID < best.ID) {
			best = m
		}
	}
	if best == nil {
		return nil, nil
	}
	id := best.CompanyID
	return &id, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
