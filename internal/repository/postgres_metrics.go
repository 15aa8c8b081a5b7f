package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"poem-backend/internal/domain"
)

// PostgresMetricsRepository implements MetricsRepository. Table names
// are qualified with the quoted tenant schema on every query; the
// connection's search_path is never touched.
type PostgresMetricsRepository struct {
	db *sql.DB
}

func NewPostgresMetricsRepository(db *sql.DB) *PostgresMetricsRepository {
	return &PostgresMetricsRepository{db: db}
}

var _ MetricsRepository = (*PostgresMetricsRepository)(nil)

func metricsTable(tc domain.TenantContext) string {
	return pq.QuoteIdentifier(tc.SchemaName) + ".metrics"
}

const metricColumns = `
	metric_id, metric_name, mtype, probeversion, groupname, description, parent,
	probeexecutable, config, attribute, dependency, flags, files, parameter,
	fileparameter, tags
`

func scanMetricRow(scan func(dest ...any) error) (*domain.Metric, error) {
	var m domain.Metric
	var tags pq.StringArray
	err := scan(&m.ID, &m.Name, &m.MType, &m.ProbeVersion, &m.GroupName, &m.Description,
		&m.Parent, &m.ProbeExecutable, &m.Config, &m.Attribute, &m.Dependency, &m.Flags,
		&m.Files, &m.Parameter, &m.FileParameter, &tags)
	if err != nil {
		return nil, err
	}
	m.Tags = tags
	return &m, nil
}

func (r *PostgresMetricsRepository) GetMetric(ctx context.Context, tc domain.TenantContext, name string) (*domain.Metric, error) {
	query := `SELECT ` + metricColumns + ` FROM ` + metricsTable(tc) + ` WHERE metric_name = $1`
	m, err := scanMetricRow(r.db.QueryRowContext(ctx, query, name).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get metric %q in %s: %w", name, tc.SchemaName, err)
	}
	return m, nil
}

func (r *PostgresMetricsRepository) GetMetricByNameAndProbeVersion(ctx context.Context, tc domain.TenantContext, name, probeVersion string) (*domain.Metric, error) {
	query := `
		SELECT ` + metricColumns + `
		FROM ` + metricsTable(tc) + `
		WHERE metric_name = $1 AND ($2 = '' OR probeversion = $2)
	`
	m, err := scanMetricRow(r.db.QueryRowContext(ctx, query, name, probeVersion).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get metric %q (%s) in %s: %w", name, probeVersion, tc.SchemaName, err)
	}
	return m, nil
}

func (r *PostgresMetricsRepository) ListMetrics(ctx context.Context, tc domain.TenantContext) ([]*domain.Metric, error) {
	query := `SELECT ` + metricColumns + ` FROM ` + metricsTable(tc) + ` ORDER BY metric_name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics in %s: %w", tc.SchemaName, err)
	}
	defer rows.Close()

	var metrics []*domain.Metric
	for rows.Next() {
		m, err := scanMetricRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metrics: %w", err)
	}
	return metrics, nil
}

func (r *PostgresMetricsRepository) CreateMetric(ctx context.Context, tc domain.TenantContext, m *domain.Metric) (int64, error) {
	query := `
		INSERT INTO ` + metricsTable(tc) + ` (metric_name, mtype, probeversion, groupname,
			description, parent, probeexecutable, config, attribute, dependency, flags,
			files, parameter, fileparameter, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING metric_id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, m.Name, m.MType, m.ProbeVersion, m.GroupName,
		m.Description, m.Parent, m.ProbeExecutable, m.Config, m.Attribute, m.Dependency,
		m.Flags, m.Files, m.Parameter, m.FileParameter, pq.Array(m.Tags)).Scan(&id)
	if err != nil {
		if mapped := mapConstraintError(err); mapped == ErrDuplicate {
			return 0, mapped
		}
		return 0, fmt.Errorf("failed to create metric %q in %s: %w", m.Name, tc.SchemaName, err)
	}
	m.ID = id
	return id, nil
}

func (r *PostgresMetricsRepository) UpdateMetric(ctx context.Context, tc domain.TenantContext, m *domain.Metric) error {
	query := `
		UPDATE ` + metricsTable(tc) + `
		SET metric_name = $2, mtype = $3, probeversion = $4, groupname = $5, description = $6,
		    parent = $7, probeexecutable = $8, config = $9, attribute = $10, dependency = $11,
		    flags = $12, files = $13, parameter = $14, fileparameter = $15, tags = $16
		WHERE metric_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, m.ID, m.Name, m.MType, m.ProbeVersion,
		m.GroupName, m.Description, m.Parent, m.ProbeExecutable, m.Config, m.Attribute,
		m.Dependency, m.Flags, m.Files, m.Parameter, m.FileParameter, pq.Array(m.Tags))
	if err != nil {
		return fmt.Errorf("failed to update metric %q in %s: %w", m.Name, tc.SchemaName, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteMetric removes the row and returns its id so the caller can
// clean up the object's history in the same operation.
func (r *PostgresMetricsRepository) DeleteMetric(ctx context.Context, tc domain.TenantContext, name string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM `+metricsTable(tc)+` WHERE metric_name = $1 RETURNING metric_id`, name).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("failed to delete metric %q in %s: %w", name, tc.SchemaName, err)
	}
	return id, nil
}
