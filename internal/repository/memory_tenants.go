package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"poem-backend/internal/domain"
)

// MemoryTenantsRepository backs the tenant registry when no database is
// available (dev mode) and service-level tests.
type MemoryTenantsRepository struct {
	mu      sync.RWMutex
	tenants map[string]domain.Tenant // schema -> tenant
	apiKeys map[string]string
	nextID  int64
}

func NewMemoryTenantsRepository() *MemoryTenantsRepository {
	return &MemoryTenantsRepository{
		tenants: map[string]domain.Tenant{},
		apiKeys: map[string]string{},
	}
}

var _ TenantsRepository = (*MemoryTenantsRepository)(nil)

// AddTenant seeds one registry row.
func (r *MemoryTenantsRepository) AddTenant(name, schema string) *domain.Tenant {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	t := domain.Tenant{ID: r.nextID, Name: name, SchemaName: schema, Active: true}
	r.tenants[schema] = t
	return &t
}

func (r *MemoryTenantsRepository) ListTenants(_ context.Context) ([]*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*domain.Tenant
	for _, t := range r.tenants {
		if t.SchemaName == domain.PublicSchema || !t.Active {
			continue
		}
		copied := t
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

func (r *MemoryTenantsRepository) GetTenantBySchema(_ context.Context, schema string) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tenants[schema]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := t
	return &copied, nil
}

func (r *MemoryTenantsRepository) GetAPIKey(_ context.Context, name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.apiKeys[name]
	if !ok {
		return "", sql.ErrNoRows
	}
	return token, nil
}

func (r *MemoryTenantsRepository) SaveAPIKey(_ context.Context, name, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apiKeys[name] = token
	return nil
}
