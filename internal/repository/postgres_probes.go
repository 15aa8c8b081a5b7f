package repository

import (
	"context"
	"database/sql"
	"fmt"

	"poem-backend/internal/domain"
)

// PostgresProbesRepository implements ProbesRepository over the public
// schema probes / probe_history tables.
type PostgresProbesRepository struct {
	db *sql.DB
}

func NewPostgresProbesRepository(db *sql.DB) *PostgresProbesRepository {
	return &PostgresProbesRepository{db: db}
}

var _ ProbesRepository = (*PostgresProbesRepository)(nil)

const probeColumns = `
	p.probe_id, p.probe_name, p.package_id, p.description, p.comment,
	p.repository, p.docurl, p.version_user, p.date_created,
	pkg.package_name,
	CASE WHEN pkg.use_present_version THEN 'present' ELSE pkg.version END
`

func (r *PostgresProbesRepository) scanProbe(row *sql.Row) (*domain.Probe, error) {
	var p domain.Probe
	err := row.Scan(&p.ID, &p.Name, &p.PackageID, &p.Description, &p.Comment,
		&p.Repository, &p.DocURL, &p.User, &p.DateCreated,
		&p.PackageName, &p.PackageVersion)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresProbesRepository) GetProbe(ctx context.Context, name string) (*domain.Probe, error) {
	query := `
		SELECT ` + probeColumns + `
		FROM probes p
		JOIN packages pkg ON pkg.package_id = p.package_id
		WHERE p.probe_name = $1
	`
	p, err := r.scanProbe(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get probe %q: %w", name, err)
	}
	return p, nil
}

func (r *PostgresProbesRepository) ListProbes(ctx context.Context) ([]*domain.Probe, error) {
	query := `
		SELECT ` + probeColumns + `
		FROM probes p
		JOIN packages pkg ON pkg.package_id = p.package_id
		ORDER BY p.probe_name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list probes: %w", err)
	}
	defer rows.Close()

	var probes []*domain.Probe
	for rows.Next() {
		var p domain.Probe
		if err := rows.Scan(&p.ID, &p.Name, &p.PackageID, &p.Description, &p.Comment,
			&p.Repository, &p.DocURL, &p.User, &p.DateCreated,
			&p.PackageName, &p.PackageVersion); err != nil {
			return nil, fmt.Errorf("failed to scan probe: %w", err)
		}
		probes = append(probes, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate probes: %w", err)
	}
	return probes, nil
}

func (r *PostgresProbesRepository) CreateProbe(ctx context.Context, probe *domain.Probe) (int64, error) {
	query := `
		INSERT INTO probes (probe_name, package_id, description, comment, repository, docurl, version_user)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING probe_id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, probe.Name, probe.PackageID, probe.Description,
		probe.Comment, probe.Repository, probe.DocURL, probe.User).Scan(&id)
	if err != nil {
		if mapped := mapConstraintError(err); mapped == ErrDuplicate {
			return 0, mapped
		}
		return 0, fmt.Errorf("failed to create probe %q: %w", probe.Name, err)
	}
	probe.ID = id
	return id, nil
}

func (r *PostgresProbesRepository) UpdateProbe(ctx context.Context, probe *domain.Probe) error {
	query := `
		UPDATE probes
		SET probe_name = $2, package_id = $3, description = $4, comment = $5,
		    repository = $6, docurl = $7, version_user = $8
		WHERE probe_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, probe.ID, probe.Name, probe.PackageID,
		probe.Description, probe.Comment, probe.Repository, probe.DocURL, probe.User)
	if err != nil {
		return fmt.Errorf("failed to update probe %q: %w", probe.Name, err)
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

// DeleteProbe removes the probe head and all of its history rows in one
// transaction, newest history included.
func (r *PostgresProbesRepository) DeleteProbe(ctx context.Context, name string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	if err := tx.QueryRowContext(ctx,
		`SELECT probe_id FROM probes WHERE probe_name = $1`, name).Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("failed to resolve probe %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM probe_history WHERE object_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete probe history for %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM probes WHERE probe_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete probe %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const probeHistoryColumns = `
	h.probe_history_id, h.object_id, h.probe_name, h.package_id, h.description,
	h.comment, h.repository, h.docurl, h.date_created, h.version_comment, h.version_user,
	pkg.package_name,
	CASE WHEN pkg.use_present_version THEN 'present' ELSE pkg.version END
`

func scanProbeHistoryRow(scan func(dest ...any) error) (*domain.ProbeHistory, error) {
	var h domain.ProbeHistory
	err := scan(&h.ID, &h.ObjectID, &h.Name, &h.PackageID, &h.Description,
		&h.Comment, &h.Repository, &h.DocURL, &h.DateCreated, &h.VersionComment, &h.VersionUser,
		&h.PackageName, &h.PackageVersion)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *PostgresProbesRepository) InsertProbeHistory(ctx context.Context, h *domain.ProbeHistory) (int64, error) {
	query := `
		INSERT INTO probe_history (object_id, probe_name, package_id, description, comment,
		                           repository, docurl, version_comment, version_user)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING probe_history_id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, h.ObjectID, h.Name, h.PackageID, h.Description,
		h.Comment, h.Repository, h.DocURL, h.VersionComment, h.VersionUser).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert probe history for %q: %w", h.Name, err)
	}
	h.ID = id
	return id, nil
}

func (r *PostgresProbesRepository) LatestProbeHistory(ctx context.Context, objectID int64) (*domain.ProbeHistory, error) {
	query := `
		SELECT ` + probeHistoryColumns + `
		FROM probe_history h
		JOIN packages pkg ON pkg.package_id = h.package_id
		WHERE h.object_id = $1
		ORDER BY h.date_created DESC, h.probe_history_id DESC
		LIMIT 1
	`
	h, err := scanProbeHistoryRow(r.db.QueryRowContext(ctx, query, objectID).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get latest probe history: %w", err)
	}
	return h, nil
}

func (r *PostgresProbesRepository) ListProbeHistory(ctx context.Context, objectID int64) ([]*domain.ProbeHistory, error) {
	query := `
		SELECT ` + probeHistoryColumns + `
		FROM probe_history h
		JOIN packages pkg ON pkg.package_id = h.package_id
		WHERE h.object_id = $1
		ORDER BY h.date_created DESC, h.probe_history_id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list probe history: %w", err)
	}
	defer rows.Close()

	var versions []*domain.ProbeHistory
	for rows.Next() {
		h, err := scanProbeHistoryRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan probe history: %w", err)
		}
		versions = append(versions, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate probe history: %w", err)
	}
	return versions, nil
}

func (r *PostgresProbesRepository) GetProbeHistoryByID(ctx context.Context, id int64) (*domain.ProbeHistory, error) {
	query := `
		SELECT ` + probeHistoryColumns + `
		FROM probe_history h
		JOIN packages pkg ON pkg.package_id = h.package_id
		WHERE h.probe_history_id = $1
	`
	h, err := scanProbeHistoryRow(r.db.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get probe history %d: %w", id, err)
	}
	return h, nil
}

// GetProbeHistory resolves the natural key tenant metrics store. The
// sentinel "present" version is matched through the package flag, not
// the stored version string.
func (r *PostgresProbesRepository) GetProbeHistory(ctx context.Context, probeName, packageVersion string) (*domain.ProbeHistory, error) {
	query := `
		SELECT ` + probeHistoryColumns + `
		FROM probe_history h
		JOIN packages pkg ON pkg.package_id = h.package_id
		WHERE h.probe_name = $1
		  AND (pkg.version = $2 OR (pkg.use_present_version AND $2 = 'present'))
		ORDER BY h.date_created DESC, h.probe_history_id DESC
		LIMIT 1
	`
	h, err := scanProbeHistoryRow(r.db.QueryRowContext(ctx, query, probeName, packageVersion).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get probe history %s (%s): %w", probeName, packageVersion, err)
	}
	return h, nil
}
