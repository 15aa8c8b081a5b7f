package repository

import (
	"context"

	"poem-backend/internal/domain"
)

// MetricsRepository is the tenant-schema metric store. Every call
// receives an explicit TenantContext; implementations qualify table
// names with the tenant schema instead of relying on any ambient
// search-path state.
type MetricsRepository interface {
	GetMetric(ctx context.Context, tc domain.TenantContext, name string) (*domain.Metric, error)

	// GetMetricByNameAndProbeVersion matches the tenant-local copy of a
	// template: by (name, probeversion) for probe-backed metrics, by
	// name alone when probeVersion is "" (passive metric).
	GetMetricByNameAndProbeVersion(ctx context.Context, tc domain.TenantContext, name, probeVersion string) (*domain.Metric, error)

	ListMetrics(ctx context.Context, tc domain.TenantContext) ([]*domain.Metric, error)

	// CreateMetric returns ErrDuplicate when the metric name already
	// exists in the tenant.
	CreateMetric(ctx context.Context, tc domain.TenantContext, m *domain.Metric) (int64, error)
	UpdateMetric(ctx context.Context, tc domain.TenantContext, m *domain.Metric) error
	DeleteMetric(ctx context.Context, tc domain.TenantContext, name string) (int64, error)
}

// HistoryRepository is the generic per-tenant append-only version
// store shared by all tenant-schema entities.
type HistoryRepository interface {
	InsertTenantHistory(ctx context.Context, tc domain.TenantContext, h *domain.TenantHistory) (int64, error)

	// LatestTenantHistory returns the newest row for an object, or
	// sql.ErrNoRows when the object has no history yet.
	LatestTenantHistory(ctx context.Context, tc domain.TenantContext, objectID int64, contentType string) (*domain.TenantHistory, error)
	ListTenantHistory(ctx context.Context, tc domain.TenantContext, objectID int64, contentType string) ([]*domain.TenantHistory, error)

	// DeleteTenantHistory removes every history row of one object; it
	// is called explicitly on entity deletion because nothing cascades
	// across schemas.
	DeleteTenantHistory(ctx context.Context, tc domain.TenantContext, objectID int64, contentType string) error
}

// ProfilesRepository stores the tenant-local mirror rows of externally
// sourced profiles. The row carries identity and ownership only; the
// payload lives in the latest tenant_history snapshot.
type ProfilesRepository interface {
	GetProfile(ctx context.Context, tc domain.TenantContext, kind domain.ProfileKind, apiID string) (*domain.Profile, error)
	ListProfiles(ctx context.Context, tc domain.TenantContext, kind domain.ProfileKind) ([]*domain.Profile, error)
	UpsertProfile(ctx context.Context, tc domain.TenantContext, kind domain.ProfileKind, p *domain.Profile) (int64, error)
	DeleteProfile(ctx context.Context, tc domain.TenantContext, kind domain.ProfileKind, apiID string) (int64, error)
}
