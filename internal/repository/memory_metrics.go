package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"poem-backend/internal/domain"
)

// MemoryMetricsRepository holds tenant metrics per schema, for dev mode
// and service-level tests.
type MemoryMetricsRepository struct {
	mu      sync.RWMutex
	schemas map[string]map[string]domain.Metric // schema -> metric name -> metric
	nextID  int64
}

func NewMemoryMetricsRepository() *MemoryMetricsRepository {
	return &MemoryMetricsRepository{schemas: map[string]map[string]domain.Metric{}}
}

var _ MetricsRepository = (*MemoryMetricsRepository)(nil)

func (r *MemoryMetricsRepository) schema(tc domain.TenantContext) map[string]domain.Metric {
	m, ok := r.schemas[tc.SchemaName]
	if !ok {
		m = map[string]domain.Metric{}
		r.schemas[tc.SchemaName] = m
	}
	return m
}

func (r *MemoryMetricsRepository) GetMetric(_ context.Context, tc domain.TenantContext, name string) (*domain.Metric, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.schemas[tc.SchemaName][name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := m
	return &copied, nil
}

func (r *MemoryMetricsRepository) GetMetricByNameAndProbeVersion(_ context.Context, tc domain.TenantContext, name, probeVersion string) (*domain.Metric, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.schemas[tc.SchemaName][name]
	if !ok || (probeVersion != "" && m.ProbeVersion != probeVersion) {
		return nil, sql.ErrNoRows
	}
	copied := m
	return &copied, nil
}

func (r *MemoryMetricsRepository) ListMetrics(_ context.Context, tc domain.TenantContext) ([]*domain.Metric, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*domain.Metric
	for _, m := range r.schemas[tc.SchemaName] {
		copied := m
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

func (r *MemoryMetricsRepository) CreateMetric(_ context.Context, tc domain.TenantContext, m *domain.Metric) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	metrics := r.schema(tc)
	if _, exists := metrics[m.Name]; exists {
		return 0, ErrDuplicate
	}
	r.nextID++
	stored := *m
	stored.ID = r.nextID
	metrics[m.Name] = stored
	m.ID = stored.ID
	return stored.ID, nil
}

func (r *MemoryMetricsRepository) UpdateMetric(_ context.Context, tc domain.TenantContext, m *domain.Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	metrics := r.schema(tc)
	for name, existing := range metrics {
		if existing.ID == m.ID {
			delete(metrics, name)
			metrics[m.Name] = *m
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *MemoryMetricsRepository) DeleteMetric(_ context.Context, tc domain.TenantContext, name string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	metrics := r.schema(tc)
	m, ok := metrics[name]
	if !ok {
		return 0, sql.ErrNoRows
	}
	delete(metrics, name)
	return m.ID, nil
}

// MemoryHistoryRepository is the in-memory tenant_history table.
// Insertion order doubles as the timestamp tie-break, matching the
// bigserial ordering of the Postgres implementation.
type MemoryHistoryRepository struct {
	mu      sync.RWMutex
	schemas map[string][]domain.TenantHistory
	nextID  int64
}

func NewMemoryHistoryRepository() *MemoryHistoryRepository {
	return &MemoryHistoryRepository{schemas: map[string][]domain.TenantHistory{}}
}

var _ HistoryRepository = (*MemoryHistoryRepository)(nil)

func (r *MemoryHistoryRepository) InsertTenantHistory(_ context.Context, tc domain.TenantContext, h *domain.TenantHistory) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	stored := *h
	stored.ID = r.nextID
	r.schemas[tc.SchemaName] = append(r.schemas[tc.SchemaName], stored)
	return stored.ID, nil
}

func (r *MemoryHistoryRepository) LatestTenantHistory(_ context.Context, tc domain.TenantContext, objectID int64, contentType string) (*domain.TenantHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.schemas[tc.SchemaName]
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].ObjectID == objectID && rows[i].ContentType == contentType {
			copied := rows[i]
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *MemoryHistoryRepository) ListTenantHistory(_ context.Context, tc domain.TenantContext, objectID int64, contentType string) ([]*domain.TenantHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var versions []*domain.TenantHistory
	rows := r.schemas[tc.SchemaName]
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].ObjectID == objectID && rows[i].ContentType == contentType {
			copied := rows[i]
			versions = append(versions, &copied)
		}
	}
	return versions, nil
}

func (r *MemoryHistoryRepository) DeleteTenantHistory(_ context.Context, tc domain.TenantContext, objectID int64, contentType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.schemas[tc.SchemaName]
	kept := rows[:0]
	for _, h := range rows {
		if h.ObjectID == objectID && h.ContentType == contentType {
			continue
		}
		kept = append(kept, h)
	}
	r.schemas[tc.SchemaName] = kept
	return nil
}
