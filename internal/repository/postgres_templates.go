package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"poem-backend/internal/domain"
)

// PostgresMetricTemplatesRepository implements
// MetricTemplatesRepository over the public schema metric_templates /
// metric_template_history tables.
type PostgresMetricTemplatesRepository struct {
	db *sql.DB
}

func NewPostgresMetricTemplatesRepository(db *sql.DB) *PostgresMetricTemplatesRepository {
	return &PostgresMetricTemplatesRepository{db: db}
}

var _ MetricTemplatesRepository = (*PostgresMetricTemplatesRepository)(nil)

// probeversion is denormalized through probe_history + packages so
// callers never need a second round trip; passive templates get ''.
const templateColumns = `
	t.template_id, t.template_name, t.mtype, t.probekey_id, t.description, t.parent,
	t.probeexecutable, t.config, t.attribute, t.dependency, t.flags, t.files,
	t.parameter, t.fileparameter, t.tags,
	COALESCE(h.probe_name || ' (' ||
		CASE WHEN pkg.use_present_version THEN 'present' ELSE pkg.version END || ')', '')
`

const templateJoins = `
	LEFT JOIN probe_history h ON h.probe_history_id = t.probekey_id
	LEFT JOIN packages pkg ON pkg.package_id = h.package_id
`

func scanTemplateRow(scan func(dest ...any) error) (*domain.MetricTemplate, error) {
	var t domain.MetricTemplate
	var tags pq.StringArray
	err := scan(&t.ID, &t.Name, &t.MType, &t.ProbeKeyID, &t.Description, &t.Parent,
		&t.ProbeExecutable, &t.Config, &t.Attribute, &t.Dependency, &t.Flags, &t.Files,
		&t.Parameter, &t.FileParameter, &tags, &t.ProbeVersion)
	if err != nil {
		return nil, err
	}
	t.Tags = tags
	return &t, nil
}

func (r *PostgresMetricTemplatesRepository) GetTemplate(ctx context.Context, name string) (*domain.MetricTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM metric_templates t` + templateJoins + `
		WHERE t.template_name = $1
	`
	t, err := scanTemplateRow(r.db.QueryRowContext(ctx, query, name).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get metric template %q: %w", name, err)
	}
	return t, nil
}

func (r *PostgresMetricTemplatesRepository) ListTemplates(ctx context.Context) ([]*domain.MetricTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM metric_templates t` + templateJoins + `
		ORDER BY t.template_name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list metric templates: %w", err)
	}
	defer rows.Close()

	var templates []*domain.MetricTemplate
	for rows.Next() {
		t, err := scanTemplateRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metric template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metric templates: %w", err)
	}
	return templates, nil
}

func (r *PostgresMetricTemplatesRepository) CreateTemplate(ctx context.Context, tmpl *domain.MetricTemplate) (int64, error) {
	query := `
		INSERT INTO metric_templates (template_name, mtype, probekey_id, description, parent,
			probeexecutable, config, attribute, dependency, flags, files, parameter,
			fileparameter, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING template_id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, tmpl.Name, tmpl.MType, tmpl.ProbeKeyID,
		tmpl.Description, tmpl.Parent, tmpl.ProbeExecutable, tmpl.Config, tmpl.Attribute,
		tmpl.Dependency, tmpl.Flags, tmpl.Files, tmpl.Parameter, tmpl.FileParameter,
		pq.Array(tmpl.Tags)).Scan(&id)
	if err != nil {
		if mapped := mapConstraintError(err); mapped == ErrDuplicate {
			return 0, mapped
		}
		return 0, fmt.Errorf("failed to create metric template %q: %w", tmpl.Name, err)
	}
	tmpl.ID = id
	return id, nil
}

func (r *PostgresMetricTemplatesRepository) UpdateTemplate(ctx context.Context, tmpl *domain.MetricTemplate) error {
	query := `
		UPDATE metric_templates
		SET template_name = $2, mtype = $3, probekey_id = $4, description = $5, parent = $6,
		    probeexecutable = $7, config = $8, attribute = $9, dependency = $10, flags = $11,
		    files = $12, parameter = $13, fileparameter = $14, tags = $15
		WHERE template_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, tmpl.ID, tmpl.Name, tmpl.MType, tmpl.ProbeKeyID,
		tmpl.Description, tmpl.Parent, tmpl.ProbeExecutable, tmpl.Config, tmpl.Attribute,
		tmpl.Dependency, tmpl.Flags, tmpl.Files, tmpl.Parameter, tmpl.FileParameter,
		pq.Array(tmpl.Tags))
	if err != nil {
		return fmt.Errorf("failed to update metric template %q: %w", tmpl.Name, err)
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

func (r *PostgresMetricTemplatesRepository) DeleteTemplate(ctx context.Context, name string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	if err := tx.QueryRowContext(ctx,
		`SELECT template_id FROM metric_templates WHERE template_name = $1`, name).Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("failed to resolve metric template %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM metric_template_history WHERE object_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete template history for %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM metric_templates WHERE template_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete metric template %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const templateHistoryColumns = `
	h.template_history_id, h.object_id, h.template_name, h.mtype, h.probekey_id,
	h.description, h.parent, h.probeexecutable, h.config, h.attribute, h.dependency,
	h.flags, h.files, h.parameter, h.fileparameter, h.tags, h.date_created,
	h.version_comment, h.version_user,
	COALESCE(ph.probe_name || ' (' ||
		CASE WHEN pkg.use_present_version THEN 'present' ELSE pkg.version END || ')', '')
`

const templateHistoryJoins = `
	LEFT JOIN probe_history ph ON ph.probe_history_id = h.probekey_id
	LEFT JOIN packages pkg ON pkg.package_id = ph.package_id
`

func scanTemplateHistoryRow(scan func(dest ...any) error) (*domain.MetricTemplateHistory, error) {
	var h domain.MetricTemplateHistory
	var tags pq.StringArray
	err := scan(&h.ID, &h.ObjectID, &h.Name, &h.MType, &h.ProbeKeyID,
		&h.Description, &h.Parent, &h.ProbeExecutable, &h.Config, &h.Attribute, &h.Dependency,
		&h.Flags, &h.Files, &h.Parameter, &h.FileParameter, &tags, &h.DateCreated,
		&h.VersionComment, &h.VersionUser, &h.ProbeVersion)
	if err != nil {
		return nil, err
	}
	h.Tags = tags
	return &h, nil
}

func (r *PostgresMetricTemplatesRepository) InsertTemplateHistory(ctx context.Context, h *domain.MetricTemplateHistory) (int64, error) {
	query := `
		INSERT INTO metric_template_history (object_id, template_name, mtype, probekey_id,
			description, parent, probeexecutable, config, attribute, dependency, flags,
			files, parameter, fileparameter, tags, version_comment, version_user)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING template_history_id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, h.ObjectID, h.Name, h.MType, h.ProbeKeyID,
		h.Description, h.Parent, h.ProbeExecutable, h.Config, h.Attribute, h.Dependency,
		h.Flags, h.Files, h.Parameter, h.FileParameter, pq.Array(h.Tags),
		h.VersionComment, h.VersionUser).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert template history for %q: %w", h.Name, err)
	}
	h.ID = id
	return id, nil
}

func (r *PostgresMetricTemplatesRepository) LatestTemplateHistory(ctx context.Context, objectID int64) (*domain.MetricTemplateHistory, error) {
	query := `
		SELECT ` + templateHistoryColumns + `
		FROM metric_template_history h` + templateHistoryJoins + `
		WHERE h.object_id = $1
		ORDER BY h.date_created DESC, h.template_history_id DESC
		LIMIT 1
	`
	h, err := scanTemplateHistoryRow(r.db.QueryRowContext(ctx, query, objectID).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get latest template history: %w", err)
	}
	return h, nil
}

func (r *PostgresMetricTemplatesRepository) ListTemplateHistory(ctx context.Context, objectID int64) ([]*domain.MetricTemplateHistory, error) {
	query := `
		SELECT ` + templateHistoryColumns + `
		FROM metric_template_history h` + templateHistoryJoins + `
		WHERE h.object_id = $1
		ORDER BY h.date_created DESC, h.template_history_id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list template history: %w", err)
	}
	defer rows.Close()

	var versions []*domain.MetricTemplateHistory
	for rows.Next() {
		h, err := scanTemplateHistoryRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template history: %w", err)
		}
		versions = append(versions, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate template history: %w", err)
	}
	return versions, nil
}

func (r *PostgresMetricTemplatesRepository) GetTemplateHistory(ctx context.Context, name string, probeKeyID int64) (*domain.MetricTemplateHistory, error) {
	query := `
		SELECT ` + templateHistoryColumns + `
		FROM metric_template_history h` + templateHistoryJoins + `
		WHERE h.template_name = $1 AND h.probekey_id = $2
		ORDER BY h.date_created DESC, h.template_history_id DESC
		LIMIT 1
	`
	h, err := scanTemplateHistoryRow(r.db.QueryRowContext(ctx, query, name, probeKeyID).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get template history %q at probekey %d: %w", name, probeKeyID, err)
	}
	return h, nil
}
