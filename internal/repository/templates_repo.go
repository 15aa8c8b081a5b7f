package repository

import (
	"context"

	"poem-backend/internal/domain"
)

// MetricTemplatesRepository is the public-schema metric template
// catalog with its append-only version history.
type MetricTemplatesRepository interface {
	GetTemplate(ctx context.Context, name string) (*domain.MetricTemplate, error)
	ListTemplates(ctx context.Context) ([]*domain.MetricTemplate, error)
	CreateTemplate(ctx context.Context, tmpl *domain.MetricTemplate) (int64, error)
	UpdateTemplate(ctx context.Context, tmpl *domain.MetricTemplate) error

	// DeleteTemplate removes the template and every one of its history
	// rows; cleanup is explicit, nothing cascades.
	DeleteTemplate(ctx context.Context, name string) error

	InsertTemplateHistory(ctx context.Context, h *domain.MetricTemplateHistory) (int64, error)
	LatestTemplateHistory(ctx context.Context, objectID int64) (*domain.MetricTemplateHistory, error)
	ListTemplateHistory(ctx context.Context, objectID int64) ([]*domain.MetricTemplateHistory, error)

	// GetTemplateHistory resolves the snapshot of a template at a given
	// probe version (used by the import engine when pinning a template
	// to the tenant's installed probe package).
	GetTemplateHistory(ctx context.Context, name string, probeKeyID int64) (*domain.MetricTemplateHistory, error)
}
