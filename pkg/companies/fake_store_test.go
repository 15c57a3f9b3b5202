package companies

import (
	"context"
	"time"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
)

// memStore is an in-memory Store used by service tests.
type memStore struct {
	companies   map[int64]*Company
	memberships []*Membership
	nextID      int64
}

func newMemStore() *memStore {
	return &memStore{companies: map[int64]*Company{}}
}

func (m *memStore) GetByID(_ context.Context, id int64) (*Company, error) {
	c, ok := m.companies[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrNotFound, "company not found")
	}
	return c, nil
}

func (m *memStore) ListAll(context.Context) ([]*Company, error) {
	var out []*Company
	for i := int64(1); i <= m.nextID; i++ {
		if c, ok := m.companies[i]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) ListForPerson(_ context.Context, personID int64) ([]*Company, error) {
	var out []*Company
	for _, ms := range m.memberships {
		if ms.PersonID == personID {
			out = append(out, m.companies[ms.CompanyID])
		}
	}
	return out, nil
}

func (m *memStore) GetMembership(_ context.Context, personID, companyID int64) (*Membership, error) {
	for _, ms := range m.memberships {
		if ms.PersonID == personID && ms.CompanyID == companyID {
			return ms, nil
		}
	}
	return nil, apperrors.New(apperrors.ErrNotFound, "membership not found")
}

func (m *memStore) HasMembership(_ context.Context, personID int64) (bool, error) {
	for _, ms := range m.memberships {
		if ms.PersonID == personID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) DefaultCompanyID(_ context.Context, personID int64) (*int64, error) {
	var pick *Membership
	for _, ms := range m.memberships {
		if ms.PersonID != personID {
			continue
		}
		if pick == nil || (ms.IsPrimary && !pick.IsPrimary) {
			pick = ms
		}
	}
	if pick == nil {
		return nil, nil
	}
	id := pick.CompanyID
	return &id, nil
}

func (m *memStore) OwnedCompany(_ context.Context, personID int64) (*Company, error) {
	for _, ms := range m.memberships {
		if ms.PersonID == personID && ms.Role == RoleOwner {
			return m.companies[ms.CompanyID], nil
		}
	}
	return nil, apperrors.New(apperrors.ErrNotFound, "no company found")
}

func (m *memStore) SlugExists(_ context.Context, slug string) (bool, error) {
	for _, c := range m.companies {
		if c.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateWithOwner(_ context.Context, in CreateCompanyInput, slug string, ownerID int64) (*Company, error) {
	m.nextID++
	c := &Company{ID: m.nextID, Name: in.Name, Slug: slug, LegalName: in.LegalName, CreatedAt: time.Now()}
	m.companies[c.ID] = c
	m.memberships = append(m.memberships, &Membership{
		ID: int64(len(m.memberships) + 1), PersonID: ownerID, CompanyID: c.ID, Role: RoleOwner, IsPrimary: true,
	})
	return c, nil
}

func (m *memStore) SetDatabaseName(_ context.Context, companyID int64, name string) (bool, error) {
	c, ok := m.companies[companyID]
	if !ok || c.DatabaseName != nil {
		return false, nil
	}
	c.DatabaseName = &name
	return true, nil
}
