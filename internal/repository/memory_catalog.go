package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"poem-backend/internal/domain"
)

// MemoryProbesRepository is the in-memory public probe catalog for dev
// mode and service-level tests.
type MemoryProbesRepository struct {
	mu      sync.RWMutex
	probes  map[string]domain.Probe
	history []domain.ProbeHistory
	nextID  int64
}

func NewMemoryProbesRepository() *MemoryProbesRepository {
	return &MemoryProbesRepository{probes: map[string]domain.Probe{}}
}

var _ ProbesRepository = (*MemoryProbesRepository)(nil)

func (r *MemoryProbesRepository) GetProbe(_ context.Context, name string) (*domain.Probe, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.probes[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := p
	return &copied, nil
}

func (r *MemoryProbesRepository) ListProbes(_ context.Context) ([]*domain.Probe, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*domain.Probe
	for _, p := range r.probes {
		copied := p
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

func (r *MemoryProbesRepository) CreateProbe(_ context.Context, probe *domain.Probe) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.probes[probe.Name]; exists {
		return 0, ErrDuplicate
	}
	r.nextID++
	stored := *probe
	stored.ID = r.nextID
	stored.DateCreated = time.Now()
	r.probes[probe.Name] = stored
	probe.ID = stored.ID
	return stored.ID, nil
}

func (r *MemoryProbesRepository) UpdateProbe(_ context.Context, probe *domain.Probe) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, existing := range r.probes {
		if existing.ID == probe.ID {
			delete(r.probes, name)
			r.probes[probe.Name] = *probe
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *MemoryProbesRepository) DeleteProbe(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.probes[name]
	if !ok {
		return sql.ErrNoRows
	}
	delete(r.probes, name)
	kept := r.history[:0]
	for _, h := range r.history {
		if h.ObjectID != p.ID {
			kept = append(kept, h)
		}
	}
	r.history = kept
	return nil
}

func (r *MemoryProbesRepository) InsertProbeHistory(_ context.Context, h *domain.ProbeHistory) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	stored := *h
	stored.ID = r.nextID
	if stored.DateCreated.IsZero() {
		stored.DateCreated = time.Now()
	}
	r.history = append(r.history, stored)
	h.ID = stored.ID
	return stored.ID, nil
}

func (r *MemoryProbesRepository) LatestProbeHistory(_ context.Context, objectID int64) (*domain.ProbeHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].ObjectID == objectID {
			copied := r.history[i]
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *MemoryProbesRepository) ListProbeHistory(_ context.Context, objectID int64) ([]*domain.ProbeHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var versions []*domain.ProbeHistory
	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].ObjectID == objectID {
			copied := r.history[i]
			versions = append(versions, &copied)
		}
	}
	return versions, nil
}

func (r *MemoryProbesRepository) GetProbeHistoryByID(_ context.Context, id int64) (*domain.ProbeHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.history {
		if h.ID == id {
			copied := h
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *MemoryProbesRepository) GetProbeHistory(_ context.Context, probeName, packageVersion string) (*domain.ProbeHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.history) - 1; i >= 0; i-- {
		h := r.history[i]
		if h.Name == probeName && h.PackageVersion == packageVersion {
			copied := h
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

// MemoryPackagesRepository is the in-memory package catalog.
type MemoryPackagesRepository struct {
	mu       sync.RWMutex
	packages []domain.Package
	repos    []domain.YumRepo
	nextID   int64
}

func NewMemoryPackagesRepository() *MemoryPackagesRepository {
	return &MemoryPackagesRepository{}
}

var _ PackagesRepository = (*MemoryPackagesRepository)(nil)

func (r *MemoryPackagesRepository) GetPackage(_ context.Context, name, version string) (*domain.Package, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.packages {
		if p.Name == name && p.EffectiveVersion() == version {
			copied := p
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *MemoryPackagesRepository) GetPackageByID(_ context.Context, id int64) (*domain.Package, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.packages {
		if p.ID == id {
			copied := p
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *MemoryPackagesRepository) ListPackages(_ context.Context) ([]*domain.Package, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*domain.Package
	for _, p := range r.packages {
		copied := p
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].Version < all[j].Version
	})
	return all, nil
}

func (r *MemoryPackagesRepository) CreatePackage(_ context.Context, pkg *domain.Package, _ []int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.packages {
		if p.Name == pkg.Name && p.Version == pkg.Version {
			return 0, ErrDuplicate
		}
	}
	r.nextID++
	stored := *pkg
	stored.ID = r.nextID
	r.packages = append(r.packages, stored)
	pkg.ID = stored.ID
	return stored.ID, nil
}

func (r *MemoryPackagesRepository) ListYumRepos(_ context.Context) ([]*domain.YumRepo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*domain.YumRepo
	for _, repo := range r.repos {
		copied := repo
		all = append(all, &copied)
	}
	return all, nil
}

// MemoryMetricTemplatesRepository is the in-memory template catalog.
type MemoryMetricTemplatesRepository struct {
	mu        sync.RWMutex
	templates map[string]domain.MetricTemplate
	history   []domain.MetricTemplateHistory
	nextID    int64
}

func NewMemoryMetricTemplatesRepository() *MemoryMetricTemplatesRepository {
	return &MemoryMetricTemplatesRepository{templates: map[string]domain.MetricTemplate{}}
}

var _ MetricTemplatesRepository = (*MemoryMetricTemplatesRepository)(nil)

func (r *MemoryMetricTemplatesRepository) GetTemplate(_ context.Context, name string) (*domain.MetricTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := t
	return &copied, nil
}

func (r *MemoryMetricTemplatesRepository) ListTemplates(_ context.Context) ([]*domain.MetricTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*domain.MetricTemplate
	for _, t := range r.templates {
		copied := t
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

func (r *MemoryMetricTemplatesRepository) CreateTemplate(_ context.Context, tmpl *domain.MetricTemplate) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.templates[tmpl.Name]; exists {
		return 0, ErrDuplicate
	}
	r.nextID++
	stored := *tmpl
	stored.ID = r.nextID
	r.templates[tmpl.Name] = stored
	tmpl.ID = stored.ID
	return stored.ID, nil
}

func (r *MemoryMetricTemplatesRepository) UpdateTemplate(_ context.Context, tmpl *domain.MetricTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, existing := range r.templates {
		if existing.ID == tmpl.ID {
			delete(r.templates, name)
			r.templates[tmpl.Name] = *tmpl
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *MemoryMetricTemplatesRepository) DeleteTemplate(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.templates[name]
	if !ok {
		return sql.ErrNoRows
	}
	delete(r.templates, name)
	kept := r.history[:0]
	for _, h := range r.history {
		if h.ObjectID != t.ID {
			kept = append(kept, h)
		}
	}
	r.history = kept
	return nil
}

func (r *MemoryMetricTemplatesRepository) InsertTemplateHistory(_ context.Context, h *domain.MetricTemplateHistory) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	stored := *h
	stored.ID = r.nextID
	if stored.DateCreated.IsZero() {
		stored.DateCreated = time.Now()
	}
	r.history = append(r.history, stored)
	h.ID = stored.ID
	return stored.ID, nil
}

func (r *MemoryMetricTemplatesRepository) LatestTemplateHistory(_ context.Context, objectID int64) (*domain.MetricTemplateHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].ObjectID == objectID {
			copied := r.history[i]
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *MemoryMetricTemplatesRepository) ListTemplateHistory(_ context.Context, objectID int64) ([]*domain.MetricTemplateHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var versions []*domain.MetricTemplateHistory
	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].ObjectID == objectID {
			copied := r.history[i]
			versions = append(versions, &copied)
		}
	}
	return versions, nil
}

func (r *MemoryMetricTemplatesRepository) GetTemplateHistory(_ context.Context, name string, probeKeyID int64) (*domain.MetricTemplateHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.history) - 1; i >= 0; i-- {
		h := r.history[i]
		if h.Name == name && h.ProbeKeyID != nil && *h.ProbeKeyID == probeKeyID {
			copied := h
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}
