package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"poem-backend/internal/domain"
)

// PostgresProfilesRepository implements ProfilesRepository. The three
// profile kinds share one row shape but live in separate tables.
type PostgresProfilesRepository struct {
	db *sql.DB
}

func NewPostgresProfilesRepository(db *sql.DB) *PostgresProfilesRepository {
	return &PostgresProfilesRepository{db: db}
}

var _ ProfilesRepository = (*PostgresProfilesRepository)(nil)

func profileTable(tc domain.TenantContext, kind domain.ProfileKind) (string, error) {
	var table string
	switch kind {
	case domain.KindMetricProfile:
		table = "metric_profiles"
	case domain.KindAggregation:
		table = "aggregations"
	case domain.KindThresholdsProfile:
		table = "thresholds_profiles"
	default:
		return "", fmt.Errorf("unknown profile kind %q", kind)
	}
	return pq.QuoteIdentifier(tc.SchemaName) + "." + table, nil
}

func (r *PostgresProfilesRepository) GetProfile(ctx context.Context, tc domain.TenantContext, kind domain.ProfileKind, apiID string) (*domain.Profile, error) {
	table, err := profileTable(tc, kind)
	if err != nil {
		return nil, err
	}
	var p domain.Profile
	err = r.db.QueryRowContext(ctx,
		`SELECT profile_id, apiid, profile_name, groupname FROM `+table+` WHERE apiid = $1`,
		apiID).Scan(&p.ID, &p.APIID, &p.Name, &p.GroupName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get %s %q in %s: %w", kind, apiID, tc.SchemaName, err)
	}
	return &p, nil
}

func (r *PostgresProfilesRepository) ListProfiles(ctx context.Context, tc domain.TenantContext, kind domain.ProfileKind) ([]*domain.Profile, error) {
	table, err := profileTable(tc, kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT profile_id, apiid, profile_name, groupname FROM `+table+` ORDER BY profile_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s in %s: %w", kind, tc.SchemaName, err)
	}
	defer rows.Close()

	var profiles []*domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.ID, &p.APIID, &p.Name, &p.GroupName); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	return profiles, nil
}

func (r *PostgresProfilesRepository) UpsertProfile(ctx context.Context, tc domain.TenantContext, kind domain.ProfileKind, p *domain.Profile) (int64, error) {
	table, err := profileTable(tc, kind)
	if err != nil {
		return 0, err
	}
	query := `
		INSERT INTO ` + table + ` (apiid, profile_name, groupname)
		VALUES ($1, $2, $3)
		ON CONFLICT (apiid) DO UPDATE SET profile_name = EXCLUDED.profile_name,
			groupname = EXCLUDED.groupname
		RETURNING profile_id
	`
	var id int64
	if err := r.db.QueryRowContext(ctx, query, p.APIID, p.Name, p.GroupName).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to upsert %s %q in %s: %w", kind, p.Name, tc.SchemaName, err)
	}
	p.ID = id
	return id, nil
}

// DeleteProfile removes the row and returns its id so the caller can
// delete the object's history in the same operation.
func (r *PostgresProfilesRepository) DeleteProfile(ctx context.Context, tc domain.TenantContext, kind domain.ProfileKind, apiID string) (int64, error) {
	table, err := profileTable(tc, kind)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.db.QueryRowContext(ctx,
		`DELETE FROM `+table+` WHERE apiid = $1 RETURNING profile_id`, apiID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("failed to delete %s %q in %s: %w", kind, apiID, tc.SchemaName, err)
	}
	return id, nil
}
