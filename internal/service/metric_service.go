package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"poem-backend/internal/domain"
	"poem-backend/internal/history"
	"poem-backend/internal/repository"
)

// MetricService is the tenant-facing admin surface for derived
// metrics: tenant admins may edit ownership and tenant-local config,
// everything else flows down from the public template catalog.
type MetricService struct {
	metrics repository.MetricsRepository
	history repository.HistoryRepository
	logger  *zap.Logger
}

func NewMetricService(
	metrics repository.MetricsRepository,
	historyRepo repository.HistoryRepository,
	logger *zap.Logger,
) *MetricService {
	return &MetricService{metrics: metrics, history: historyRepo, logger: logger}
}

func (s *MetricService) GetMetric(ctx context.Context, tc domain.TenantContext, name string) (*domain.Metric, error) {
	return s.metrics.GetMetric(ctx, tc, name)
}

func (s *MetricService) ListMetrics(ctx context.Context, tc domain.TenantContext) ([]*domain.Metric, error) {
	return s.metrics.ListMetrics(ctx, tc)
}

// ListMetricVersions returns the metric's history, newest first.
func (s *MetricService) ListMetricVersions(ctx context.Context, tc domain.TenantContext, name string) ([]*domain.TenantHistory, error) {
	metric, err := s.metrics.GetMetric(ctx, tc, name)
	if err != nil {
		return nil, err
	}
	return s.history.ListTenantHistory(ctx, tc, metric.ID, domain.ContentMetric)
}

// UpdateMetric persists a tenant-local edit and appends a history row
// with the computed change comment.
func (s *MetricService) UpdateMetric(ctx context.Context, tc domain.TenantContext, oldName string, metric *domain.Metric, user string) error {
	old, err := s.metrics.GetMetric(ctx, tc, oldName)
	if err != nil {
		return err
	}
	metric.ID = old.ID

	if err := s.metrics.UpdateMetric(ctx, tc, metric); err != nil {
		return err
	}

	comment := history.InitialVersion
	last, err := s.history.LatestTenantHistory(ctx, tc, metric.ID, domain.ContentMetric)
	switch {
	case err == nil:
		prev, err := domain.DecodeSnapshot(last.SerializedData)
		if err != nil {
			return err
		}
		comment, err = history.CreateComment(history.MetricFields, prev, metric.Snapshot())
		if err != nil {
			return err
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return err
	}

	data, err := metric.Snapshot().Encode()
	if err != nil {
		return err
	}
	_, err = s.history.InsertTenantHistory(ctx, tc, &domain.TenantHistory{
		ObjectID:       metric.ID,
		ContentType:    domain.ContentMetric,
		SerializedData: data,
		ObjectRepr:     metric.Name,
		Comment:        comment,
		VersionUser:    user,
	})
	return err
}

// DeleteMetric removes the metric together with all its history rows.
// No cascade exists across the two tables, so both deletes are
// explicit.
func (s *MetricService) DeleteMetric(ctx context.Context, tc domain.TenantContext, name string) error {
	id, err := s.metrics.DeleteMetric(ctx, tc, name)
	if err != nil {
		return err
	}
	if err := s.history.DeleteTenantHistory(ctx, tc, id, domain.ContentMetric); err != nil {
		return err
	}
	s.logger.Info("Deleted tenant metric",
		zap.String("tenant", tc.Name),
		zap.String("metric", name),
	)
	return nil
}
