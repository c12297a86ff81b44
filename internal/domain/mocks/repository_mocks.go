package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/V4T54L/customer-authz/internal/domain"
	"github.com/V4T54L/customer-authz/internal/pkg/sqlfilter"
)

// MockCustomerRepository is an in-memory domain.CustomerRepository that
// records every call. Scopes are recorded, not evaluated.
type MockCustomerRepository struct {
	mu        sync.Mutex
	Customers []domain.Customer
	Calls     []string
	Writes    int
	LastScope sqlfilter.Clause

	CreateErr error
	ReadErr   error
	UpdateErr error
	DeleteErr error
	NamesErr  error
}

func (m *MockCustomerRepository) record(call string, write bool) {
	m.Calls = append(m.Calls, call)
	if write {
		m.Writes++
	}
}

func (m *MockCustomerRepository) Create(ctx context.Context, input domain.CustomerInput) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Create", true)
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	for _, c := range m.Customers {
		if c.Name == input.Name || (input.ID != 0 && c.ID == input.ID) {
			return nil, domain.Errorf(domain.KindConflict, "customer.create", "customer %q already exists", input.Name)
		}
	}
	id := input.ID
	if id == 0 {
		id = int64(len(m.Customers) + 1)
	}
	c := domain.Customer{
		ID:         id,
		Name:       input.Name,
		Comment:    input.Comment,
		PrivateKey: input.PrivateKey,
		Created:    time.Now().UTC(),
	}
	m.Customers = append(m.Customers, c)
	return &c, nil
}

func (m *MockCustomerRepository) find(match func(domain.Customer) bool) (*domain.Customer, error) {
	for _, c := range m.Customers {
		if match(c) {
			c := c
			return &c, nil
		}
	}
	return nil, domain.E(domain.KindNotFound, "customer.get", nil)
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, id int64, scope sqlfilter.Clause) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetByID", false)
	m.LastScope = scope
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return m.find(func(c domain.Customer) bool { return c.ID == id })
}

func (m *MockCustomerRepository) GetByName(ctx context.Context, name string, scope sqlfilter.Clause) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetByName", false)
	m.LastScope = scope
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return m.find(func(c domain.Customer) bool { return c.Name == name })
}

func (m *MockCustomerRepository) GetByProjectID(ctx context.Context, projectID int64, scope sqlfilter.Clause) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetByProjectID", false)
	m.LastScope = scope
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return nil, domain.E(domain.KindNotFound, "customer.get_by_project", nil)
}

func (m *MockCustomerRepository) List(ctx context.Context, filter domain.CustomerFilter, scope sqlfilter.Clause) ([]domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("List", false)
	m.LastScope = scope
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	out := make([]domain.Customer, 0, len(m.Customers))
	for _, c := range m.Customers {
		if filter.CreatedAfter != nil && c.Created.Before(*filter.CreatedAfter) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *MockCustomerRepository) Update(ctx context.Context, id int64, patch domain.CustomerPatch) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Update", true)
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	for i := range m.Customers {
		c := &m.Customers[i]
		if c.ID != id {
			continue
		}
		if patch.Name != nil {
			c.Name = *patch.Name
		}
		if patch.Comment != nil {
			c.Comment = patch.Comment
		}
		if patch.PrivateKey != nil {
			c.PrivateKey = patch.PrivateKey
		}
		out := *c
		return &out, nil
	}
	return nil, domain.E(domain.KindNotFound, "customer.update", nil)
}

func (m *MockCustomerRepository) DeleteByName(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DeleteByName", true)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	for i, c := range m.Customers {
		if c.Name == name {
			m.Customers = append(m.Customers[:i], m.Customers[i+1:]...)
			return nil
		}
	}
	return domain.Errorf(domain.KindNotFound, "customer.delete", "no customer named %q", name)
}

func (m *MockCustomerRepository) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DeleteAll", true)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.Customers = nil
	return nil
}

func (m *MockCustomerRepository) Names(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Names", false)
	if m.NamesErr != nil {
		return nil, m.NamesErr
	}
	names := make([]string, len(m.Customers))
	for i, c := range m.Customers {
		names[i] = c.Name
	}
	return names, nil
}

// StoreCalls returns how many calls of any kind reached the repository.
func (m *MockCustomerRepository) StoreCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// PutRoleCall is one push recorded by MockTenantIndex.
type PutRoleCall struct {
	Role string
	Doc  domain.RoleDocument
}

// MockTenantIndex is a mock implementation of domain.TenantIndex.
type MockTenantIndex struct {
	mu     sync.Mutex
	Pushes []PutRoleCall
	PutErr error
}

func (m *MockTenantIndex) PutRole(ctx context.Context, role string, doc domain.RoleDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return m.PutErr
	}
	m.Pushes = append(m.Pushes, PutRoleCall{Role: role, Doc: doc})
	return nil
}

// LastMapping returns the tenants of the most recent successful push.
func (m *MockTenantIndex) LastMapping() domain.TenantAccessMapping {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Pushes) == 0 {
		return nil
	}
	return m.Pushes[len(m.Pushes)-1].Doc.Tenants
}
