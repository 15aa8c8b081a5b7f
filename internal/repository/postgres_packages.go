package repository

import (
	"context"
	"database/sql"
	"fmt"

	"poem-backend/internal/domain"
)

// PostgresPackagesRepository implements PackagesRepository over the
// public schema packages / yum_repos tables.
type PostgresPackagesRepository struct {
	db *sql.DB
}

func NewPostgresPackagesRepository(db *sql.DB) *PostgresPackagesRepository {
	return &PostgresPackagesRepository{db: db}
}

var _ PackagesRepository = (*PostgresPackagesRepository)(nil)

func (r *PostgresPackagesRepository) GetPackage(ctx context.Context, name, version string) (*domain.Package, error) {
	query := `
		SELECT package_id, package_name, version, use_present_version
		FROM packages
		WHERE package_name = $1
		  AND (version = $2 OR (use_present_version AND $2 = 'present'))
	`
	var p domain.Package
	err := r.db.QueryRowContext(ctx, query, name, version).Scan(
		&p.ID, &p.Name, &p.Version, &p.UsePresentVersion)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get package %s (%s): %w", name, version, err)
	}
	return &p, nil
}

func (r *PostgresPackagesRepository) GetPackageByID(ctx context.Context, id int64) (*domain.Package, error) {
	var p domain.Package
	err := r.db.QueryRowContext(ctx, `
		SELECT package_id, package_name, version, use_present_version
		FROM packages
		WHERE package_id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Version, &p.UsePresentVersion)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get package %d: %w", id, err)
	}
	return &p, nil
}

func (r *PostgresPackagesRepository) ListPackages(ctx context.Context) ([]*domain.Package, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT package_id, package_name, version, use_present_version
		FROM packages
		ORDER BY package_name, version
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer rows.Close()

	var packages []*domain.Package
	for rows.Next() {
		var p domain.Package
		if err := rows.Scan(&p.ID, &p.Name, &p.Version, &p.UsePresentVersion); err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		packages = append(packages, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate packages: %w", err)
	}
	return packages, nil
}

func (r *PostgresPackagesRepository) CreatePackage(ctx context.Context, pkg *domain.Package, repoIDs []int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO packages (package_name, version, use_present_version)
		VALUES ($1, $2, $3)
		RETURNING package_id
	`, pkg.Name, pkg.Version, pkg.UsePresentVersion).Scan(&id)
	if err != nil {
		if mapped := mapConstraintError(err); mapped == ErrDuplicate {
			return 0, mapped
		}
		return 0, fmt.Errorf("failed to create package %s (%s): %w", pkg.Name, pkg.Version, err)
	}

	for _, repoID := range repoIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO package_repos (package_id, repo_id) VALUES ($1, $2)
		`, id, repoID); err != nil {
			return 0, fmt.Errorf("failed to link package %d to repo %d: %w", id, repoID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	pkg.ID = id
	return id, nil
}

func (r *PostgresPackagesRepository) ListYumRepos(ctx context.Context) ([]*domain.YumRepo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT repo_id, repo_name, tag FROM yum_repos ORDER BY repo_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list yum repos: %w", err)
	}
	defer rows.Close()

	var repos []*domain.YumRepo
	for rows.Next() {
		var repo domain.YumRepo
		if err := rows.Scan(&repo.ID, &repo.Name, &repo.Tag); err != nil {
			return nil, fmt.Errorf("failed to scan yum repo: %w", err)
		}
		repos = append(repos, &repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate yum repos: %w", err)
	}
	return repos, nil
}
