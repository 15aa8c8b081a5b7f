package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"poem-backend/internal/domain"
)

// MemoryProfilesRepository holds profile mirror rows per schema and
// kind, for dev mode and service-level tests.
type MemoryProfilesRepository struct {
	mu      sync.RWMutex
	schemas map[string]map[domain.ProfileKind]map[string]domain.Profile
	nextID  int64
}

func NewMemoryProfilesRepository() *MemoryProfilesRepository {
	return &MemoryProfilesRepository{
		schemas: map[string]map[domain.ProfileKind]map[string]domain.Profile{},
	}
}

var _ ProfilesRepository = (*MemoryProfilesRepository)(nil)

func (r *MemoryProfilesRepository) bucket(tc domain.TenantContext, kind domain.ProfileKind) map[string]domain.Profile {
	kinds, ok := r.schemas[tc.SchemaName]
	if !ok {
		kinds = map[domain.ProfileKind]map[string]domain.Profile{}
		r.schemas[tc.SchemaName] = kinds
	}
	profiles, ok := kinds[kind]
	if !ok {
		profiles = map[string]domain.Profile{}
		kinds[kind] = profiles
	}
	return profiles
}

func (r *MemoryProfilesRepository) GetProfile(_ context.Context, tc domain.TenantContext, kind domain.ProfileKind, apiID string) (*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.schemas[tc.SchemaName][kind][apiID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := p
	return &copied, nil
}

func (r *MemoryProfilesRepository) ListProfiles(_ context.Context, tc domain.TenantContext, kind domain.ProfileKind) ([]*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*domain.Profile
	for _, p := range r.schemas[tc.SchemaName][kind] {
		copied := p
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

func (r *MemoryProfilesRepository) UpsertProfile(_ context.Context, tc domain.TenantContext, kind domain.ProfileKind, p *domain.Profile) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	profiles := r.bucket(tc, kind)
	if existing, ok := profiles[p.APIID]; ok {
		existing.Name = p.Name
		existing.GroupName = p.GroupName
		profiles[p.APIID] = existing
		p.ID = existing.ID
		return existing.ID, nil
	}
	r.nextID++
	stored := *p
	stored.ID = r.nextID
	profiles[p.APIID] = stored
	p.ID = stored.ID
	return stored.ID, nil
}

func (r *MemoryProfilesRepository) DeleteProfile(_ context.Context, tc domain.TenantContext, kind domain.ProfileKind, apiID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	profiles := r.bucket(tc, kind)
	p, ok := profiles[apiID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	delete(profiles, apiID)
	return p.ID, nil
}
